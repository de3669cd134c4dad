package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/littleexplorer/explorer/internal/events"
)

// DefaultFeedSize is how many recent items the activity feed keeps.
const DefaultFeedSize = 50

// FeedItem is one line of the activity feed.
type FeedItem struct {
	At     time.Time `json:"at"`
	Event  string    `json:"event"`
	Text   string    `json:"text"`
	Remote bool      `json:"remote"`
}

// Feed is a fixed-size ring of recent activity, newest last.
type Feed struct {
	mu    sync.Mutex
	items []FeedItem
	next  int
	full  bool
	now   func() time.Time
}

func NewFeed(size int) *Feed {
	if size <= 0 {
		size = DefaultFeedSize
	}
	return &Feed{items: make([]FeedItem, size), now: time.Now}
}

// Add appends item, overwriting the oldest when full.
func (f *Feed) Add(item FeedItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if item.At.IsZero() {
		item.At = f.now()
	}
	f.items[f.next] = item
	f.next = (f.next + 1) % len(f.items)
	if f.next == 0 {
		f.full = true
	}
}

// Items returns the feed oldest first.
func (f *Feed) Items() []FeedItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.full {
		return append([]FeedItem(nil), f.items[:f.next]...)
	}
	out := make([]FeedItem, 0, len(f.items))
	out = append(out, f.items[f.next:]...)
	return append(out, f.items[:f.next]...)
}

// FeedItemFor describes an event for the feed. remote marks events
// relayed from another device.
func FeedItemFor(e events.Event, remote bool) FeedItem {
	item := FeedItem{Event: e.EventName(), Remote: remote}
	switch ev := e.(type) {
	case events.GameWon:
		item.Text = fmt.Sprintf("Won a round of %s", ev.Game)
	case events.StarsEarned:
		item.Text = fmt.Sprintf("Earned %d stars for a %s", ev.N, ev.Reason)
	case events.WordsDiscovered:
		item.Text = fmt.Sprintf("Found %d new %s words", ev.Added, ev.Category)
	case events.PronunciationMatched:
		item.Text = "Said a word perfectly"
	case events.ItemPurchased:
		item.Text = "Bought " + ev.ItemID
	case events.StickerUnlocked:
		item.Text = "Unlocked the " + ev.Name + " sticker"
	default:
		item.Text = e.EventName()
	}
	return item
}

// FeedItemFromEnvelope describes an event relayed over Redis. Envelopes
// that cannot be decoded are reported by name only.
func FeedItemFromEnvelope(env events.Envelope) FeedItem {
	e, err := env.Decode()
	if err != nil {
		return FeedItem{At: env.SentAt, Event: env.Name, Text: env.Name, Remote: true}
	}
	item := FeedItemFor(e, true)
	item.At = env.SentAt
	return item
}
