package rewards

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/littleexplorer/explorer/internal/db"
	"github.com/littleexplorer/explorer/internal/events"
	"github.com/littleexplorer/explorer/internal/logger"
)

const (
	statsKey    = "stats"
	stickersKey = "stickers"

	celebrationBuffer = 4
)

// errNoChange aborts an update that would not change anything.
var errNoChange = errors.New("no change")

// Ledger owns the star balance, the shop and the sticker book.
type Ledger struct {
	stats    *db.Doc[Stats]
	unlocked *db.Doc[map[string]bool]
	bus      *events.Bus
	log      *logger.Logger

	mu          sync.Mutex
	subscribers []chan Celebration
	unsubscribe func()
}

// NewLedger creates a ledger backed by store. When bus is not nil the
// ledger applies its unlock rules to events published there.
func NewLedger(store db.ProgressStore, bus *events.Bus, log *logger.Logger) *Ledger {
	if log == nil {
		log = logger.NewNop()
	}
	l := &Ledger{
		stats:    db.NewDoc(store, statsKey, func() Stats { return Stats{Owned: []string{}} }, log),
		unlocked: db.NewDoc(store, stickersKey, func() map[string]bool { return map[string]bool{} }, log),
		bus:      bus,
		log:      log.With("component", "ledger"),
	}
	if bus != nil {
		l.unsubscribe = bus.Subscribe(l.handle)
	}
	return l
}

// Load reads persisted state
func (l *Ledger) Load(ctx context.Context) error {
	if err := l.stats.Load(ctx); err != nil {
		return fmt.Errorf("failed to load stats: %w", err)
	}
	if err := l.unlocked.Load(ctx); err != nil {
		return fmt.Errorf("failed to load stickers: %w", err)
	}
	return nil
}

// Close detaches the ledger from the bus and closes observer channels
func (l *Ledger) Close() {
	if l.unsubscribe != nil {
		l.unsubscribe()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ch := range l.subscribers {
		close(ch)
	}
	l.subscribers = nil
}

// Stats returns the current balance and shop state
func (l *Ledger) Stats() Stats {
	return l.stats.Get().clone()
}

// Stickers returns the sticker book
func (l *Ledger) Stickers() []Sticker {
	unlocked := l.unlocked.Get()
	out := make([]Sticker, len(stickers))
	for i, s := range stickers {
		s.Unlocked = unlocked[s.ID]
		out[i] = s
	}
	return out
}

// Shop returns the shop items
func (l *Ledger) Shop() []ShopItem {
	return append([]ShopItem(nil), shop...)
}

// Equipped returns the item worn by the companion, if any
func (l *Ledger) Equipped() (ShopItem, bool) {
	return findItem(l.stats.Get().Equipped)
}

// Subscribe returns a channel of celebrations. Slow readers miss
// celebrations rather than blocking the ledger.
func (l *Ledger) Subscribe() <-chan Celebration {
	ch := make(chan Celebration, celebrationBuffer)
	l.mu.Lock()
	l.subscribers = append(l.subscribers, ch)
	l.mu.Unlock()
	return ch
}

// GrantStars adds n stars. Non-positive n is ignored.
func (l *Ledger) GrantStars(ctx context.Context, n int) (Stats, error) {
	if n <= 0 {
		return l.Stats(), nil
	}
	next, err := l.stats.Update(ctx, func(s *Stats) error {
		s.Stars += n
		return nil
	})
	if err != nil {
		return l.Stats(), fmt.Errorf("failed to grant stars: %w", err)
	}
	return next.clone(), nil
}

// UnlockBadge unlocks sticker id. It reports whether this call did the
// unlocking; repeated calls change nothing.
func (l *Ledger) UnlockBadge(ctx context.Context, id string) (bool, error) {
	sticker, ok := findSticker(id)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownSticker, id)
	}

	_, err := l.unlocked.Update(ctx, func(m *map[string]bool) error {
		if *m == nil {
			*m = map[string]bool{}
		}
		if (*m)[id] {
			return errNoChange
		}
		(*m)[id] = true
		return nil
	})
	if errors.Is(err, errNoChange) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to unlock sticker: %w", err)
	}

	sticker.Unlocked = true
	l.log.Info("sticker unlocked", "sticker", id, "name", sticker.Name)
	l.celebrate(Celebration{Sticker: sticker})
	l.bus.Publish(ctx, events.StickerUnlocked{StickerID: id, Name: sticker.Name})
	return true, nil
}

// PurchaseItem buys item id, or toggles it on and off when already owned.
func (l *Ledger) PurchaseItem(ctx context.Context, id string) (Purchase, error) {
	item, ok := findItem(id)
	if !ok {
		return Purchase{}, fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}

	var action PurchaseAction
	next, err := l.stats.Update(ctx, func(s *Stats) error {
		if s.owns(id) {
			if s.Equipped == id {
				s.Equipped = ""
				action = ActionUnequipped
			} else {
				s.Equipped = id
				action = ActionEquipped
			}
			return nil
		}
		if s.Stars < item.Cost {
			return ErrInsufficientStars
		}
		s.Stars -= item.Cost
		s.Owned = append(s.Owned, id)
		s.Equipped = id
		action = ActionBought
		return nil
	})
	if err != nil {
		return Purchase{Item: item, Stats: l.Stats()}, err
	}

	if action == ActionBought {
		l.log.Info("item purchased", "item", id, "cost", item.Cost, "stars", next.Stars)
		l.bus.Publish(ctx, events.ItemPurchased{ItemID: id})
	}
	return Purchase{Item: item, Action: action, Stats: next.clone()}, nil
}

// handle applies the unlock rules to bus events
func (l *Ledger) handle(ctx context.Context, e events.Event) {
	var err error
	switch ev := e.(type) {
	case events.GameWon:
		err = l.recordWin(ctx, ev)
	case events.StarsEarned:
		_, err = l.GrantStars(ctx, ev.N)
	case events.WordsDiscovered:
		if ev.Total >= 10 {
			_, err = l.UnlockBadge(ctx, StickerTenWords)
		}
	case events.PronunciationMatched:
		_, err = l.UnlockBadge(ctx, StickerPronunciation)
	case events.ItemPurchased:
		_, err = l.UnlockBadge(ctx, StickerFirstPurchase)
	}
	if err != nil {
		l.log.Error("failed to apply reward rule", "event", e.EventName(), "error", err)
	}
}

func (l *Ledger) recordWin(ctx context.Context, ev events.GameWon) error {
	stars := ev.Stars
	if stars <= 0 {
		stars = StarsPerWin
	}
	next, err := l.stats.Update(ctx, func(s *Stats) error {
		s.Stars += stars
		if ev.Points > 0 {
			s.Score += ev.Points
		}
		s.Wins++
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record win: %w", err)
	}

	unlock := []string{StickerFirstWin}
	if next.Score >= 50 {
		unlock = append(unlock, StickerScore50)
	}
	if next.Score >= 100 {
		unlock = append(unlock, StickerScore100)
	}
	for _, id := range unlock {
		if _, err := l.UnlockBadge(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) celebrate(c Celebration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ch := range l.subscribers {
		select {
		case ch <- c:
		default:
			l.log.Warn("celebration dropped, observer is not keeping up", "sticker", c.Sticker.ID)
		}
	}
}
