package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/littleexplorer/explorer/internal/ai"
	"github.com/littleexplorer/explorer/internal/db"
	"github.com/littleexplorer/explorer/internal/events"
	"github.com/littleexplorer/explorer/internal/logger"
	"github.com/littleexplorer/explorer/internal/parser"
)

const cardsKey = "cards"

var (
	ErrUnknownCategory = errors.New("unknown category")
	ErrUnknownCard     = errors.New("unknown card")
)

// WordSource supplies new curriculum words.
type WordSource interface {
	WordBatch(ctx context.Context, category string, exclude []string) ([]ai.WordEntry, error)
	WordsFromText(ctx context.Context, category, text string, exclude []string) ([]ai.WordEntry, error)
}

// Catalog holds the categories and every card, seeded and discovered.
type Catalog struct {
	seed     *Seed
	byID     map[string]Card
	category map[string]Category
	dynamic  *db.Doc[[]Card]
	words    WordSource
	bus      *events.Bus
	log      *logger.Logger

	// now and extract are replaced in tests.
	now     func() time.Time
	extract func(path string) (string, error)

	mu sync.RWMutex
}

// New creates a catalog from seed. Dynamic cards live in store under the
// "cards" progress key.
func New(seed *Seed, store db.ProgressStore, words WordSource, bus *events.Bus, log *logger.Logger) *Catalog {
	if log == nil {
		log = logger.NewNop()
	}
	c := &Catalog{
		seed:     seed,
		byID:     make(map[string]Card, len(seed.Cards)),
		category: make(map[string]Category, len(seed.Categories)),
		dynamic:  db.NewDoc(store, cardsKey, func() []Card { return []Card{} }, log),
		words:    words,
		bus:      bus,
		log:      log.With("component", "catalog"),
		now:      time.Now,
		extract:  parser.ExtractText,
	}
	for _, cat := range seed.Categories {
		c.category[cat.ID] = cat
	}
	for _, card := range seed.Cards {
		c.byID[card.ID] = card
	}
	return c
}

// Load merges persisted dynamic cards with the seed. Entries that collide
// with a seed ID or name an unknown category are skipped.
func (c *Catalog) Load(ctx context.Context) error {
	if err := c.dynamic.Load(ctx); err != nil {
		return fmt.Errorf("failed to load cards: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, card := range c.dynamic.Get() {
		if _, isSeed := c.byID[card.ID]; isSeed {
			c.log.Warn("skipping stored card that shadows a seed card", "card", card.ID)
			continue
		}
		if _, ok := c.category[card.Category]; !ok {
			c.log.Warn("skipping stored card with unknown category", "card", card.ID, "category", card.Category)
			continue
		}
		c.byID[card.ID] = card
	}
	return nil
}

// Categories returns every category in display order
func (c *Catalog) Categories() []Category {
	return append([]Category(nil), c.seed.Categories...)
}

// Category looks up a category by ID
func (c *Catalog) Category(id string) (Category, bool) {
	cat, ok := c.category[id]
	return cat, ok
}

// Alphabet returns the alphabet book pages
func (c *Catalog) Alphabet() []Letter {
	return append([]Letter(nil), c.seed.Alphabet...)
}

// Card looks up a card by ID
func (c *Catalog) Card(id string) (Card, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	card, ok := c.byID[id]
	return card, ok
}

// CardsFor returns the seed cards of a category followed by its discovered
// cards in the order they were added.
func (c *Catalog) CardsFor(category string) []Card {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Card
	for _, card := range c.seed.Cards {
		if card.Category == category {
			out = append(out, card)
		}
	}
	for _, card := range c.dynamic.Get() {
		if card.Category == category && c.byID[card.ID] == card {
			out = append(out, card)
		}
	}
	return out
}

// All returns every card, seed first
func (c *Catalog) All() []Card {
	var out []Card
	for _, cat := range c.seed.Categories {
		out = append(out, c.CardsFor(cat.ID)...)
	}
	return out
}

// DiscoveredCount returns the number of cards added by curriculum growth
func (c *Catalog) DiscoveredCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID) - len(c.seed.Cards)
}

// GrowCategory asks the word source for new words and appends the ones the
// category does not have yet. It returns the added cards.
func (c *Catalog) GrowCategory(ctx context.Context, category string) ([]Card, error) {
	if _, ok := c.Category(category); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}

	entries, err := c.words.WordBatch(ctx, category, c.existingWords(category))
	if err != nil {
		return nil, err
	}
	return c.add(ctx, category, entries)
}

// ImportWorksheet extracts text from a PDF or DOCX worksheet and adds the
// words found in it to category.
func (c *Catalog) ImportWorksheet(ctx context.Context, category, path string) ([]Card, error) {
	if _, ok := c.Category(category); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}

	text, err := c.extract(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read worksheet: %w", err)
	}

	entries, err := c.words.WordsFromText(ctx, category, text, c.existingWords(category))
	if err != nil {
		return nil, err
	}
	return c.add(ctx, category, entries)
}

// existingWords returns the lower-cased words already in category
func (c *Catalog) existingWords(category string) []string {
	cards := c.CardsFor(category)
	words := make([]string, 0, len(cards))
	for _, card := range cards {
		words = append(words, normalize(card.Word))
	}
	return words
}

// add filters entries against the category and appends the survivors. The
// filtering runs inside the store update so concurrent growth of the same
// category cannot add a word twice.
func (c *Catalog) add(ctx context.Context, category string, entries []ai.WordEntry) ([]Card, error) {
	added, total, err := c.append(ctx, category, entries)
	if err != nil || len(added) == 0 {
		return added, err
	}
	c.bus.Publish(ctx, events.WordsDiscovered{Category: category, Added: len(added), Total: total})
	return added, nil
}

func (c *Catalog) append(ctx context.Context, category string, entries []ai.WordEntry) ([]Card, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var added []Card
	next, err := c.dynamic.Update(ctx, func(dynamic *[]Card) error {
		added = nil

		present := make(map[string]bool)
		taken := make(map[string]bool, len(c.byID)+len(*dynamic))
		for id, card := range c.byID {
			taken[id] = true
			if card.Category == category {
				present[normalize(card.Word)] = true
			}
		}
		for _, card := range *dynamic {
			taken[card.ID] = true
			if card.Category == category {
				present[normalize(card.Word)] = true
			}
		}

		stamp := c.now().UnixMilli()
		seq := 0
		for _, e := range entries {
			word := strings.TrimSpace(e.Word)
			key := normalize(word)
			if key == "" || present[key] {
				continue
			}
			present[key] = true

			id := fmt.Sprintf("dyn-%d-%d", stamp, seq)
			for taken[id] {
				seq++
				id = fmt.Sprintf("dyn-%d-%d", stamp, seq)
			}
			taken[id] = true
			seq++

			added = append(added, Card{
				ID:          id,
				Word:        word,
				Translation: strings.TrimSpace(e.Translation),
				Category:    category,
				Emoji:       strings.TrimSpace(e.Emoji),
			})
		}
		if len(added) == 0 {
			return errNothingNew
		}
		*dynamic = append(*dynamic, added...)
		return nil
	})
	if errors.Is(err, errNothingNew) {
		return []Card{}, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to save cards: %w", err)
	}

	for _, card := range added {
		c.byID[card.ID] = card
	}
	total := len(c.byID) - len(c.seed.Cards)
	c.log.Info("category grown", "category", category, "added", len(added), "stored", len(next), "total", total)
	return added, total, nil
}

var errNothingNew = errors.New("no new words")

func normalize(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}
