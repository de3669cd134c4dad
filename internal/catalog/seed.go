package catalog

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var seedYAML []byte

// Card is a single flashcard.
type Card struct {
	ID          string `json:"id" yaml:"id"`
	Word        string `json:"word" yaml:"word"`
	Translation string `json:"translation" yaml:"translation"`
	Category    string `json:"category" yaml:"category"`
	Emoji       string `json:"emoji" yaml:"emoji"`
}

// Category groups cards.
type Category struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Icon  string `json:"icon" yaml:"icon"`
	Color string `json:"color" yaml:"color"`
}

// Letter is one page of the alphabet book.
type Letter struct {
	Letter string `json:"letter" yaml:"letter"`
	Word   string `json:"word" yaml:"word"`
	Emoji  string `json:"emoji" yaml:"emoji"`
}

// Seed is the built-in content.
type Seed struct {
	Categories []Category `yaml:"categories"`
	Cards      []Card     `yaml:"cards"`
	Alphabet   []Letter   `yaml:"alphabet"`
}

// ValidationError lists the seed entries that cannot be loaded.
type ValidationError struct {
	UnknownCategory []string
	DuplicateIDs    []string
	Incomplete      []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.UnknownCategory) > 0 {
		parts = append(parts, "unknown category for cards "+strings.Join(e.UnknownCategory, ", "))
	}
	if len(e.DuplicateIDs) > 0 {
		parts = append(parts, "duplicate ids "+strings.Join(e.DuplicateIDs, ", "))
	}
	if len(e.Incomplete) > 0 {
		parts = append(parts, "missing id or word for entries "+strings.Join(e.Incomplete, ", "))
	}
	return "invalid seed: " + strings.Join(parts, "; ")
}

// DefaultSeed parses the embedded seed data
func DefaultSeed() (*Seed, error) {
	return ParseSeed(seedYAML)
}

// ParseSeed decodes and validates seed YAML
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to decode seed: %w", err)
	}
	if err := seed.Validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

// Validate checks that every card has a unique ID and a known category
func (s *Seed) Validate() error {
	verr := &ValidationError{}

	known := make(map[string]bool, len(s.Categories))
	for i, c := range s.Categories {
		if c.ID == "" {
			verr.Incomplete = append(verr.Incomplete, fmt.Sprintf("category #%d", i+1))
			continue
		}
		if known[c.ID] {
			verr.DuplicateIDs = append(verr.DuplicateIDs, c.ID)
		}
		known[c.ID] = true
	}

	seen := make(map[string]bool, len(s.Cards))
	for i, card := range s.Cards {
		if card.ID == "" || strings.TrimSpace(card.Word) == "" {
			verr.Incomplete = append(verr.Incomplete, fmt.Sprintf("card #%d", i+1))
			continue
		}
		if seen[card.ID] {
			verr.DuplicateIDs = append(verr.DuplicateIDs, card.ID)
		}
		seen[card.ID] = true
		if !known[card.Category] {
			verr.UnknownCategory = append(verr.UnknownCategory, card.ID)
		}
	}

	if len(verr.UnknownCategory)+len(verr.DuplicateIDs)+len(verr.Incomplete) == 0 {
		return nil
	}
	sort.Strings(verr.UnknownCategory)
	sort.Strings(verr.DuplicateIDs)
	return verr
}
