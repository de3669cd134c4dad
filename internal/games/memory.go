package games

import (
	"context"
)

// MemoryCard is one face-down tile.
type MemoryCard struct {
	Index   int    `json:"index"`
	CardID  string `json:"card_id"`
	Emoji   string `json:"emoji"`
	FaceUp  bool   `json:"face_up"`
	Matched bool   `json:"matched"`
}

// Memory is a pairs game. Flip turns tiles over and Settle resolves the
// pending pair once the front-end has shown it.
type Memory struct {
	base
	pairs   int
	cards   []MemoryCard
	pending []int
}

type MemoryView struct {
	Game    string       `json:"game"`
	State   string       `json:"state"`
	Round   int          `json:"round"`
	Cards   []MemoryCard `json:"cards"`
	Pending int          `json:"pending"`
}

func NewMemory(pairs int, deps Deps) *Memory {
	if pairs < 1 {
		pairs = DefaultMemoryPairs
	}
	return &Memory{base: newBase(NameMemory, deps), pairs: pairs}
}

// Next lays out pairs of cards with different pictures.
func (g *Memory) Next(ctx context.Context) error {
	chosen := distinctPictures(g.shuffled(g.deps.Cards.All()), g.pairs)
	if len(chosen) < g.pairs {
		return ErrNotEnoughCards
	}

	cards := make([]MemoryCard, 0, 2*g.pairs)
	for _, c := range chosen {
		tile := MemoryCard{CardID: c.ID, Emoji: c.Emoji}
		cards = append(cards, tile, tile)
	}
	g.deps.Rand.Shuffle(len(cards), func(i, j int) { cards[i], cards[j] = cards[j], cards[i] })
	for i := range cards {
		cards[i].Index = i
	}

	g.cards = cards
	g.pending = nil
	g.start()
	return nil
}

// Flip turns a tile face up. It is ignored while two tiles are waiting to
// be settled, and for tiles that are already face up or matched.
func (g *Memory) Flip(i int) Result {
	if !g.active() || i < 0 || i >= len(g.cards) || len(g.pending) == 2 {
		return ResultIgnored
	}
	if g.cards[i].FaceUp || g.cards[i].Matched {
		return ResultIgnored
	}
	g.cards[i].FaceUp = true
	g.pending = append(g.pending, i)
	return ResultHit
}

// NeedsSettle reports whether a pair is face up and waiting.
func (g *Memory) NeedsSettle() bool {
	return g.active() && len(g.pending) == 2
}

// PendingMatch reports whether the face-up pair shows the same picture.
// The front-end uses it to pick the settle delay.
func (g *Memory) PendingMatch() bool {
	if len(g.pending) != 2 {
		return false
	}
	return g.cards[g.pending[0]].Emoji == g.cards[g.pending[1]].Emoji
}

// Settle locks a matching pair or turns a mismatch face down again.
// Matching every pair wins the round.
func (g *Memory) Settle(ctx context.Context) Result {
	if !g.NeedsSettle() {
		return ResultIgnored
	}
	a, b := g.pending[0], g.pending[1]
	g.pending = nil

	if g.cards[a].Emoji != g.cards[b].Emoji {
		g.cards[a].FaceUp = false
		g.cards[b].FaceUp = false
		return ResultMiss
	}
	g.cards[a].Matched = true
	g.cards[b].Matched = true

	if g.Complete() {
		g.win(ctx)
		return ResultWin
	}
	return ResultHit
}

// Complete reports whether every tile is matched.
func (g *Memory) Complete() bool {
	if len(g.cards) == 0 {
		return false
	}
	for _, c := range g.cards {
		if !c.Matched {
			return false
		}
	}
	return true
}

func (g *Memory) Cards() []MemoryCard {
	return append([]MemoryCard(nil), g.cards...)
}

func (g *Memory) Snapshot() any {
	cards := g.Cards()
	for i := range cards {
		if !cards[i].FaceUp && !cards[i].Matched {
			cards[i].Emoji = ""
			cards[i].CardID = ""
		}
	}
	return MemoryView{Game: g.name, State: g.state.String(), Round: g.round, Cards: cards, Pending: len(g.pending)}
}
