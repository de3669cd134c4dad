package games

import (
	"context"
	"strings"
	"unicode"

	"github.com/littleexplorer/explorer/internal/catalog"
)

// Bubble carries one letter of the target word.
type Bubble struct {
	ID     int    `json:"id"`
	Letter string `json:"letter"`
	Popped bool   `json:"popped"`
}

// LetterPop spells a word by popping letter bubbles in order.
type LetterPop struct {
	base
	card     catalog.Card
	letters  []rune
	bubbles  []Bubble
	progress int
}

type LetterPopView struct {
	Game     string        `json:"game"`
	State    string        `json:"state"`
	Round    int           `json:"round"`
	Card     *catalog.Card `json:"card,omitempty"`
	Bubbles  []Bubble      `json:"bubbles"`
	Progress int           `json:"progress"`
	Length   int           `json:"length"`
}

func NewLetterPop(deps Deps) *LetterPop {
	return &LetterPop{base: newBase(NameLetterPop, deps)}
}

// Next picks a word and scatters its letters.
func (g *LetterPop) Next(ctx context.Context) error {
	for _, c := range g.shuffled(g.deps.Cards.All()) {
		letters := spell(c.Word)
		if len(letters) == 0 {
			continue
		}
		bubbles := make([]Bubble, len(letters))
		for i, r := range letters {
			bubbles[i] = Bubble{Letter: string(r)}
		}
		g.deps.Rand.Shuffle(len(bubbles), func(i, j int) { bubbles[i], bubbles[j] = bubbles[j], bubbles[i] })
		for i := range bubbles {
			bubbles[i].ID = i
		}

		g.card = c
		g.letters = letters
		g.bubbles = bubbles
		g.progress = 0
		g.start()
		return nil
	}
	return ErrNotEnoughCards
}

// Tap pops the bubble if it holds the next letter. A wrong letter is a
// miss and keeps the progress made so far.
func (g *LetterPop) Tap(ctx context.Context, bubbleID int) (Result, error) {
	if !g.active() {
		return ResultIgnored, nil
	}
	if bubbleID < 0 || bubbleID >= len(g.bubbles) {
		return ResultIgnored, ErrUnknownOption
	}
	b := &g.bubbles[bubbleID]
	if b.Popped {
		return ResultIgnored, nil
	}
	if b.Letter != string(g.letters[g.progress]) {
		return ResultMiss, nil
	}

	b.Popped = true
	g.progress++
	if g.progress == len(g.letters) {
		g.win(ctx)
		return ResultWin, nil
	}
	return ResultHit, nil
}

func (g *LetterPop) Card() catalog.Card { return g.card }
func (g *LetterPop) Progress() int      { return g.progress }
func (g *LetterPop) Length() int        { return len(g.letters) }

// Spelled is the part of the word already popped.
func (g *LetterPop) Spelled() string { return string(g.letters[:g.progress]) }

func (g *LetterPop) Bubbles() []Bubble {
	return append([]Bubble(nil), g.bubbles...)
}

func (g *LetterPop) Snapshot() any {
	v := LetterPopView{
		Game:     g.name,
		State:    g.state.String(),
		Round:    g.round,
		Bubbles:  g.Bubbles(),
		Progress: g.progress,
		Length:   len(g.letters),
	}
	if g.state != StateIdle {
		card := g.card
		v.Card = &card
	}
	return v
}

// spell upper-cases a word and drops whitespace.
func spell(word string) []rune {
	var out []rune
	for _, r := range strings.ToUpper(word) {
		if unicode.IsSpace(r) {
			continue
		}
		out = append(out, r)
	}
	return out
}
