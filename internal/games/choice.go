package games

import (
	"context"

	"github.com/littleexplorer/explorer/internal/catalog"
)

// Mode selects what the child is shown when picking a picture.
type Mode int

const (
	ModeWordToPicture Mode = iota
	ModeTranslationToPicture
	ModeSoundToPicture
)

func (m Mode) name() string {
	switch m {
	case ModeTranslationToPicture:
		return NameTranslationToPicture
	case ModeSoundToPicture:
		return NameSoundToPicture
	default:
		return NameWordToPicture
	}
}

// Choice shows a prompt and four pictures, one of them correct.
type Choice struct {
	base
	mode    Mode
	target  catalog.Card
	options []catalog.Card
}

// ChoiceView is the visible state of a choice round.
type ChoiceView struct {
	Game    string         `json:"game"`
	State   string         `json:"state"`
	Round   int            `json:"round"`
	Prompt  string         `json:"prompt,omitempty"`
	Target  string         `json:"target_id,omitempty"`
	Options []catalog.Card `json:"options"`
}

func NewChoice(mode Mode, deps Deps) *Choice {
	return &Choice{base: newBase(mode.name(), deps), mode: mode}
}

// Next draws a target and three distractors with different pictures.
func (g *Choice) Next(ctx context.Context) error {
	pool := g.shuffled(g.deps.Cards.All())
	if g.mode == ModeTranslationToPicture {
		pool = withTranslation(pool)
	}
	options := distinctPictures(pool, choiceOptionCount)
	if len(options) < choiceOptionCount {
		return ErrNotEnoughCards
	}

	g.target = options[0]
	g.options = g.shuffled(options)
	g.start()

	if g.mode == ModeSoundToPicture {
		g.speak(g.target.Word)
	}
	return nil
}

// Prompt is what the child sees or hears before choosing.
func (g *Choice) Prompt() string {
	switch g.mode {
	case ModeTranslationToPicture:
		return g.target.Translation
	case ModeSoundToPicture:
		return ""
	default:
		return g.target.Word
	}
}

// Repeat speaks the target again in sound mode.
func (g *Choice) Repeat() {
	if g.active() && g.mode == ModeSoundToPicture {
		g.speak(g.target.Word)
	}
}

func (g *Choice) Target() catalog.Card    { return g.target }
func (g *Choice) Options() []catalog.Card { return append([]catalog.Card(nil), g.options...) }

// Choose answers the round. A wrong pick keeps the round open.
func (g *Choice) Choose(ctx context.Context, cardID string) (Result, error) {
	if !g.active() {
		return ResultIgnored, nil
	}
	if !containsCard(g.options, cardID) {
		return ResultIgnored, ErrUnknownOption
	}
	if cardID != g.target.ID {
		return ResultMiss, nil
	}
	g.win(ctx)
	return ResultWin, nil
}

func (g *Choice) Snapshot() any {
	v := ChoiceView{Game: g.name, State: g.state.String(), Round: g.round, Options: g.Options()}
	if g.state != StateIdle {
		v.Prompt = g.Prompt()
	}
	if g.state == StateResolved {
		v.Target = g.target.ID
	}
	return v
}

func withTranslation(cards []catalog.Card) []catalog.Card {
	var out []catalog.Card
	for _, c := range cards {
		if c.Translation != "" {
			out = append(out, c)
		}
	}
	return out
}

func containsCard(cards []catalog.Card, id string) bool {
	for _, c := range cards {
		if c.ID == id {
			return true
		}
	}
	return false
}
