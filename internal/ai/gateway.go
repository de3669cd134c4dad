package ai

import (
	"context"
	"strings"
)

// ChatFallback is the reply shown when the chat companion cannot be reached.
const ChatFallback = "Let's play!"

// chatDefault is the reply used when the model answers with nothing.
const chatDefault = "Hello!"

// WordEntry is one word returned by the curriculum service.
type WordEntry struct {
	Word        string `json:"word"`
	Translation string `json:"translation"`
	Emoji       string `json:"emoji"`
}

// SketchResult is a child's drawing redrawn as a cartoon.
type SketchResult struct {
	Image []byte
	Word  string
}

// Gateway is the remote content service used by the app.
type Gateway interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
	// SketchToCartoon returns nil when the drawing is not recognised.
	SketchToCartoon(ctx context.Context, png []byte) (*SketchResult, error)
	Chat(ctx context.Context, message string) (string, error)
	WordBatch(ctx context.Context, category string, exclude []string) ([]WordEntry, error)
	WordsFromText(ctx context.Context, category, text string, exclude []string) ([]WordEntry, error)
}

// TextModel serves chat, curriculum and sketch labelling.
type TextModel interface {
	Chat(ctx context.Context, message string) (string, error)
	WordBatch(ctx context.Context, category string, exclude []string) ([]WordEntry, error)
	WordsFromText(ctx context.Context, category, text string, exclude []string) ([]WordEntry, error)
	LabelSketch(ctx context.Context, png []byte) (string, error)
}

// ImageGenerator turns a prompt into PNG bytes.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// Service combines the text model and the image model into a Gateway.
type Service struct {
	text   TextModel
	images ImageGenerator
}

// NewService creates a gateway from its two backends
func NewService(text TextModel, images ImageGenerator) *Service {
	return &Service{text: text, images: images}
}

// GenerateImage renders prompt as an image
func (s *Service) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	return s.images.GenerateImage(ctx, prompt)
}

// SketchToCartoon labels the drawing then redraws it as a cartoon
func (s *Service) SketchToCartoon(ctx context.Context, png []byte) (*SketchResult, error) {
	word, err := s.text.LabelSketch(ctx, png)
	if err != nil {
		return nil, err
	}
	if word == "" {
		return nil, nil
	}
	img, err := s.images.GenerateImage(ctx, SketchPrompt(word))
	if err != nil {
		return nil, err
	}
	return &SketchResult{Image: img, Word: word}, nil
}

// Chat forwards a child's message to the companion
func (s *Service) Chat(ctx context.Context, message string) (string, error) {
	return s.text.Chat(ctx, message)
}

// WordBatch asks for new words in a category
func (s *Service) WordBatch(ctx context.Context, category string, exclude []string) ([]WordEntry, error) {
	return s.text.WordBatch(ctx, category, exclude)
}

// WordsFromText asks for kid-friendly words found in a worksheet
func (s *Service) WordsFromText(ctx context.Context, category, text string, exclude []string) ([]WordEntry, error) {
	return s.text.WordsFromText(ctx, category, text, exclude)
}

// CardPrompt builds the image prompt for a flashcard word
func CardPrompt(word, category string) string {
	return "A cute, colorful cartoon illustration of a " + strings.TrimSpace(word) +
		" (" + category + ") for a children's flashcard. Simple shapes, thick outlines, plain white background, square 1:1."
}

// SketchPrompt builds the image prompt used to redraw a recognised sketch
func SketchPrompt(word string) string {
	return "Turn a child's crayon drawing of a " + strings.TrimSpace(word) +
		" into a bright, friendly cartoon. Keep it simple and cheerful, plain white background, square 1:1."
}

// HasCredential reports whether key looks like a usable API key.
func HasCredential(key string) bool {
	key = strings.TrimSpace(key)
	return key != "" && key != "undefined" && len(key) >= 10
}
