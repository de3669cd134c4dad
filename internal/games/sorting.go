package games

import (
	"context"

	"github.com/littleexplorer/explorer/internal/catalog"
)

// Sorting asks which of two category buckets a card belongs in.
type Sorting struct {
	base
	card    catalog.Card
	buckets []catalog.Category
}

type SortingView struct {
	Game    string             `json:"game"`
	State   string             `json:"state"`
	Round   int                `json:"round"`
	Card    *catalog.Card      `json:"card,omitempty"`
	Buckets []catalog.Category `json:"buckets"`
}

func NewSorting(deps Deps) *Sorting {
	return &Sorting{base: newBase(NameSorting, deps)}
}

// Next picks two categories that have cards and a card from either.
func (g *Sorting) Next(ctx context.Context) error {
	eligible, groups := g.byCategory(1)
	if len(eligible) < minimumSortCategories {
		return ErrNotEnoughCards
	}
	i, j := g.pickTwo(len(eligible))
	first, second := eligible[i], eligible[j]

	pool := append(append([]catalog.Card(nil), groups[first.ID]...), groups[second.ID]...)
	g.card = pool[g.deps.Rand.IntN(len(pool))]
	g.buckets = []catalog.Category{first, second}
	g.start()
	return nil
}

func (g *Sorting) Card() catalog.Card          { return g.card }
func (g *Sorting) Buckets() []catalog.Category { return append([]catalog.Category(nil), g.buckets...) }

// Choose drops the card into the bucket with the given category ID.
func (g *Sorting) Choose(ctx context.Context, categoryID string) (Result, error) {
	if !g.active() {
		return ResultIgnored, nil
	}
	known := false
	for _, b := range g.buckets {
		if b.ID == categoryID {
			known = true
		}
	}
	if !known {
		return ResultIgnored, ErrUnknownOption
	}
	if categoryID != g.card.Category {
		return ResultMiss, nil
	}
	g.win(ctx)
	return ResultWin, nil
}

func (g *Sorting) Snapshot() any {
	v := SortingView{Game: g.name, State: g.state.String(), Round: g.round, Buckets: g.Buckets()}
	if g.state != StateIdle {
		card := g.card
		v.Card = &card
	}
	return v
}
