package games

import (
	"context"

	"github.com/littleexplorer/explorer/internal/catalog"
)

// OddOneOut shows three cards from one category and one from another.
type OddOneOut struct {
	base
	odd     catalog.Card
	options []catalog.Card
}

type OddOneOutView struct {
	Game    string         `json:"game"`
	State   string         `json:"state"`
	Round   int            `json:"round"`
	Options []catalog.Card `json:"options"`
	Odd     string         `json:"odd_id,omitempty"`
}

func NewOddOneOut(deps Deps) *OddOneOut {
	return &OddOneOut{base: newBase(NameOddOneOut, deps)}
}

// Next needs two categories with at least three cards each. Otherwise it
// returns ErrNotEnoughCards and the game state is left as it was.
func (g *OddOneOut) Next(ctx context.Context) error {
	eligible, groups := g.byCategory(oddOneOutGroupSize)
	if len(eligible) < minimumOddCategories {
		return ErrNotEnoughCards
	}
	i, j := g.pickTwo(len(eligible))
	main := g.shuffled(groups[eligible[i].ID])[:oddOneOutGroupSize]
	odd := g.shuffled(groups[eligible[j].ID])[0]

	g.odd = odd
	g.options = g.shuffled(append(append([]catalog.Card(nil), main...), odd))
	g.start()
	return nil
}

func (g *OddOneOut) Odd() catalog.Card       { return g.odd }
func (g *OddOneOut) Options() []catalog.Card { return append([]catalog.Card(nil), g.options...) }

// Choose picks the card that does not belong.
func (g *OddOneOut) Choose(ctx context.Context, cardID string) (Result, error) {
	if !g.active() {
		return ResultIgnored, nil
	}
	if !containsCard(g.options, cardID) {
		return ResultIgnored, ErrUnknownOption
	}
	if cardID != g.odd.ID {
		return ResultMiss, nil
	}
	g.win(ctx)
	return ResultWin, nil
}

func (g *OddOneOut) Snapshot() any {
	v := OddOneOutView{Game: g.name, State: g.state.String(), Round: g.round, Options: g.Options()}
	if g.state == StateResolved {
		v.Odd = g.odd.ID
	}
	return v
}
