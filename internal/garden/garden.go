package garden

import (
	"context"
	"fmt"
	"time"

	"github.com/littleexplorer/explorer/internal/catalog"
	"github.com/littleexplorer/explorer/internal/db"
	"github.com/littleexplorer/explorer/internal/logger"
)

const (
	gardenKey = "garden"

	// MaxLevel is the fully grown stage.
	MaxLevel = 4
)

// Plant is a word growing in the garden.
type Plant struct {
	WordID      string    `json:"word_id"`
	Word        string    `json:"word"`
	Icon        string    `json:"icon"`
	GrowthLevel int       `json:"growth_level"`
	LastVisited time.Time `json:"last_visited"`
}

// Stage returns the emoji for a plant's growth level.
func Stage(level int) string {
	switch level {
	case 2:
		return "🌿"
	case 3:
		return "🪴"
	case 4:
		return "🌸"
	default:
		return "🌱"
	}
}

// Garden tracks the words the child has visited.
type Garden struct {
	doc *db.Doc[[]Plant]
	log *logger.Logger
	now func() time.Time
}

// New creates a garden stored under the "garden" progress key
func New(store db.ProgressStore, log *logger.Logger) *Garden {
	if log == nil {
		log = logger.NewNop()
	}
	return &Garden{
		doc: db.NewDoc(store, gardenKey, func() []Plant { return []Plant{} }, log),
		log: log.With("component", "garden"),
		now: time.Now,
	}
}

// Load reads the stored garden
func (g *Garden) Load(ctx context.Context) error {
	if err := g.doc.Load(ctx); err != nil {
		return fmt.Errorf("failed to load garden: %w", err)
	}
	return nil
}

// Plants returns the plants in planting order
func (g *Garden) Plants() []Plant {
	return append([]Plant(nil), g.doc.Get()...)
}

// Visit plants card on the first visit and grows it by one level on later
// visits, up to MaxLevel.
func (g *Garden) Visit(ctx context.Context, card catalog.Card) (Plant, error) {
	var visited Plant
	_, err := g.doc.Update(ctx, func(plants *[]Plant) error {
		now := g.now().UTC()
		for i := range *plants {
			p := &(*plants)[i]
			if p.WordID != card.ID {
				continue
			}
			if p.GrowthLevel < MaxLevel {
				p.GrowthLevel++
			}
			p.LastVisited = now
			visited = *p
			return nil
		}
		visited = Plant{
			WordID:      card.ID,
			Word:        card.Word,
			Icon:        card.Emoji,
			GrowthLevel: 1,
			LastVisited: now,
		}
		*plants = append(*plants, visited)
		return nil
	})
	if err != nil {
		return Plant{}, fmt.Errorf("failed to visit plant: %w", err)
	}
	g.log.Debug("plant visited", "word", visited.Word, "level", visited.GrowthLevel)
	return visited, nil
}
