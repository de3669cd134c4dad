package events

import (
	"context"
	"sync"
)

// Event is anything published on the bus.
type Event interface {
	EventName() string
}

// GameWon is published when a mini-game round is won.
type GameWon struct {
	Game   string `json:"game"`
	Points int    `json:"points"`
	Stars  int    `json:"stars"`
}

// StarsEarned grants stars outside of games, e.g. for a drawing.
type StarsEarned struct {
	N      int    `json:"n"`
	Reason string `json:"reason"`
}

// WordsDiscovered reports the running total of curriculum words.
type WordsDiscovered struct {
	Category string `json:"category"`
	Added    int    `json:"added"`
	Total    int    `json:"total"`
}

// PronunciationMatched is published when the child says a card's word.
type PronunciationMatched struct {
	CardID string `json:"card_id"`
}

// ItemPurchased is published when a shop item is bought.
type ItemPurchased struct {
	ItemID string `json:"item_id"`
}

// StickerUnlocked is published once per sticker.
type StickerUnlocked struct {
	StickerID string `json:"sticker_id"`
	Name      string `json:"name"`
}

func (GameWon) EventName() string              { return "game_won" }
func (StarsEarned) EventName() string          { return "stars_earned" }
func (WordsDiscovered) EventName() string      { return "words_discovered" }
func (PronunciationMatched) EventName() string { return "pronunciation_matched" }
func (ItemPurchased) EventName() string        { return "item_purchased" }
func (StickerUnlocked) EventName() string      { return "sticker_unlocked" }

// Handler receives events.
type Handler func(ctx context.Context, e Event)

// Bus delivers events synchronously to every subscriber in publish order.
// Handlers may publish further events.
type Bus struct {
	mu       sync.RWMutex
	next     int
	handlers map[int]Handler
	order    []int
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{handlers: make(map[int]Handler)}
}

// Subscribe registers h and returns a function that removes it
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	b.handlers[id] = h
	b.order = append(b.order, id)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
		for i, v := range b.order {
			if v == id {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers e to the current subscribers
func (b *Bus) Publish(ctx context.Context, e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.order))
	for _, id := range b.order {
		handlers = append(handlers, b.handlers[id])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, e)
	}
}
