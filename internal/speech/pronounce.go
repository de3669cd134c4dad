package speech

import (
	"context"
	"strings"

	"github.com/littleexplorer/explorer/internal/catalog"
	"github.com/littleexplorer/explorer/internal/events"
	"github.com/littleexplorer/explorer/internal/logger"
)

// Praise is spoken after a correct pronunciation.
const Praise = "Excellent!"

// Sayer speaks text without waiting.
type Sayer interface {
	Speak(text string)
}

// Publisher receives PronunciationMatched events.
type Publisher interface {
	Publish(ctx context.Context, e events.Event)
}

// Attempt is the outcome of one pronunciation try.
type Attempt struct {
	CardID   string `json:"card_id"`
	Expected string `json:"expected"`
	Heard    string `json:"heard"`
	Matched  bool   `json:"matched"`
}

// Checker listens to the child saying a card's word.
type Checker struct {
	rec   Recognizer
	voice Sayer
	bus   Publisher
	log   *logger.Logger
}

func NewChecker(rec Recognizer, voice Sayer, bus Publisher, log *logger.Logger) *Checker {
	if rec == nil {
		rec = Unsupported{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Checker{rec: rec, voice: voice, bus: bus, log: log.With("component", "pronunciation")}
}

// Check transcribes audio and compares it with the card's word. A match
// is praised aloud and published.
func (c *Checker) Check(ctx context.Context, card catalog.Card, audio []byte) (Attempt, error) {
	heard, err := c.rec.Recognize(ctx, audio)
	if err != nil {
		return Attempt{}, err
	}
	a := Attempt{CardID: card.ID, Expected: card.Word, Heard: heard, Matched: Matches(heard, card.Word)}
	if !a.Matched {
		c.log.Debug("pronunciation missed", "card", card.ID, "heard", heard)
		return a, nil
	}

	if c.voice != nil {
		c.voice.Speak(Praise)
	}
	if c.bus != nil {
		c.bus.Publish(ctx, events.PronunciationMatched{CardID: card.ID})
	}
	return a, nil
}

// Matches reports whether the transcript contains the word, ignoring case.
func Matches(heard, word string) bool {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return false
	}
	return strings.Contains(strings.ToLower(heard), word)
}
