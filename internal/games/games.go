// Package games holds the mini-game state machines. Games are synchronous:
// timing between feedback and the next round belongs to the front-end,
// which uses the exported delays.
package games

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/littleexplorer/explorer/internal/catalog"
	"github.com/littleexplorer/explorer/internal/events"
)

// PointsPerWin is the score reported with every win.
const PointsPerWin = 10

// Front-end pacing.
const (
	ChoiceFeedbackDelay   = 1200 * time.Millisecond
	MemoryMatchDelay      = 500 * time.Millisecond
	MemoryMismatchDelay   = 1000 * time.Millisecond
	MemoryNextRoundDelay  = 1000 * time.Millisecond
	LetterPopWinDelay     = 2000 * time.Millisecond
	LetterPopMissDelay    = 500 * time.Millisecond
	DefaultMemoryPairs    = 3
	choiceOptionCount     = 4
	oddOneOutGroupSize    = 3
	minimumOddCategories  = 2
	minimumSortCategories = 2
)

var (
	ErrNotEnoughCards = errors.New("not enough cards for this game")
	ErrUnknownOption  = errors.New("unknown option")
	ErrUnknownGame    = errors.New("unknown game")
)

// State of the current round.
type State int

const (
	StateIdle State = iota
	StateActive
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateResolved:
		return "resolved"
	default:
		return "idle"
	}
}

// Result describes what an input did.
type Result int

const (
	// ResultIgnored means the input was not applicable and nothing changed.
	ResultIgnored Result = iota
	ResultMiss
	ResultHit
	ResultWin
)

func (r Result) String() string {
	switch r {
	case ResultMiss:
		return "miss"
	case ResultHit:
		return "hit"
	case ResultWin:
		return "win"
	default:
		return "ignored"
	}
}

// Game names, also used as GameWon.Game.
const (
	NameWordToPicture        = "word_to_picture"
	NameTranslationToPicture = "translation_to_picture"
	NameSoundToPicture       = "sound_to_picture"
	NameOddOneOut            = "odd_one_out"
	NameSorting              = "sorting"
	NameMemory               = "memory"
	NameLetterPop            = "letter_pop"
)

// Names lists every game in menu order.
var Names = []string{
	NameWordToPicture,
	NameTranslationToPicture,
	NameSoundToPicture,
	NameOddOneOut,
	NameSorting,
	NameMemory,
	NameLetterPop,
}

// CardSource provides the cards rounds are drawn from.
type CardSource interface {
	All() []catalog.Card
	Categories() []catalog.Category
}

// Publisher receives wins.
type Publisher interface {
	Publish(ctx context.Context, e events.Event)
}

// Speaker reads prompts aloud.
type Speaker interface {
	Speak(text string)
}

// Game is the part every mini-game shares.
type Game interface {
	Name() string
	State() State
	Round() int
	Next(ctx context.Context) error
	Snapshot() any
}

// Deps are the collaborators of a game.
type Deps struct {
	Cards   CardSource
	Rand    *rand.Rand
	Bus     Publisher
	Speaker Speaker
}

// New creates the game with the given name.
func New(name string, deps Deps) (Game, error) {
	switch name {
	case NameWordToPicture:
		return NewChoice(ModeWordToPicture, deps), nil
	case NameTranslationToPicture:
		return NewChoice(ModeTranslationToPicture, deps), nil
	case NameSoundToPicture:
		return NewChoice(ModeSoundToPicture, deps), nil
	case NameOddOneOut:
		return NewOddOneOut(deps), nil
	case NameSorting:
		return NewSorting(deps), nil
	case NameMemory:
		return NewMemory(DefaultMemoryPairs, deps), nil
	case NameLetterPop:
		return NewLetterPop(deps), nil
	}
	return nil, ErrUnknownGame
}

type base struct {
	name  string
	deps  Deps
	state State
	round int
}

func newBase(name string, deps Deps) base {
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	return base{name: name, deps: deps}
}

func (b *base) Name() string { return b.name }
func (b *base) State() State { return b.state }
func (b *base) Round() int   { return b.round }

func (b *base) active() bool { return b.state == StateActive }

func (b *base) start() {
	b.state = StateActive
	b.round++
}

func (b *base) win(ctx context.Context) {
	b.state = StateResolved
	if b.deps.Bus != nil {
		b.deps.Bus.Publish(ctx, events.GameWon{Game: b.name, Points: PointsPerWin})
	}
}

func (b *base) speak(text string) {
	if b.deps.Speaker != nil {
		b.deps.Speaker.Speak(text)
	}
}

// shuffled returns a shuffled copy of cards.
func (b *base) shuffled(cards []catalog.Card) []catalog.Card {
	out := make([]catalog.Card, len(cards))
	copy(out, cards)
	b.deps.Rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// byCategory groups cards by category, keeping only groups with at least
// atLeast cards. Group order follows the category list.
func (b *base) byCategory(atLeast int) ([]catalog.Category, map[string][]catalog.Card) {
	groups := make(map[string][]catalog.Card)
	for _, c := range b.deps.Cards.All() {
		groups[c.Category] = append(groups[c.Category], c)
	}
	var eligible []catalog.Category
	for _, cat := range b.deps.Cards.Categories() {
		if len(groups[cat.ID]) >= atLeast {
			eligible = append(eligible, cat)
		}
	}
	return eligible, groups
}

// pickTwo returns two distinct indexes below n (n >= 2).
func (b *base) pickTwo(n int) (int, int) {
	i := b.deps.Rand.IntN(n)
	j := b.deps.Rand.IntN(n - 1)
	if j >= i {
		j++
	}
	return i, j
}

// distinctPictures keeps the first card of every emoji so options can be
// told apart on screen.
func distinctPictures(cards []catalog.Card, limit int) []catalog.Card {
	seen := make(map[string]bool)
	var out []catalog.Card
	for _, c := range cards {
		if seen[c.Emoji] {
			continue
		}
		seen[c.Emoji] = true
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	return out
}
