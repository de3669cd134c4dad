package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/littleexplorer/explorer/internal/logger"
)

const (
	chatPersona = "You are Bubbles, a kind teddy bear. Talk to a 4-year-old learning English. " +
		"Use very simple words. You can use Farsi only if the child doesn't understand, otherwise stick to English."

	// unknownSketch is what the model answers when it cannot tell what a
	// drawing shows.
	unknownSketch = "UNKNOWN"

	wordBatchSize = 10
	callTimeout   = 60 * time.Second
)

// ClaudeClient implements TextModel using Claude API
type ClaudeClient struct {
	client *anthropic.Client
	apiKey string
	model  anthropic.Model
	retry  RetryPolicy
	log    *logger.Logger
}

// ClaudeOption customises a ClaudeClient.
type ClaudeOption func(*claudeConfig)

type claudeConfig struct {
	baseURL string
	retry   RetryPolicy
}

// WithClaudeBaseURL points the client at another endpoint
func WithClaudeBaseURL(url string) ClaudeOption {
	return func(c *claudeConfig) { c.baseURL = url }
}

// WithClaudeRetry overrides the retry policy
func WithClaudeRetry(p RetryPolicy) ClaudeOption {
	return func(c *claudeConfig) { c.retry = p }
}

// NewClaudeClient creates a new Claude API client. A missing key is not an
// error here; every call then fails with KindMissingCredential.
func NewClaudeClient(apiKey string, log *logger.Logger, opts ...ClaudeOption) *ClaudeClient {
	if log == nil {
		log = logger.NewNop()
	}
	cfg := claudeConfig{retry: DefaultRetryPolicy}
	for _, opt := range opts {
		opt(&cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	client := anthropic.NewClient(reqOpts...)

	return &ClaudeClient{
		client: &client,
		apiKey: apiKey,
		model:  anthropic.ModelClaudeSonnet4_5_20250929,
		retry:  cfg.retry,
		log:    log.With("service", "claude"),
	}
}

// Chat sends the child's message to the companion persona
func (c *ClaudeClient) Chat(ctx context.Context, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return chatDefault, nil
	}
	reply, err := c.complete(ctx, "chat", chatPersona, 300, anthropic.NewTextBlock(message))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(reply) == "" {
		return chatDefault, nil
	}
	return strings.TrimSpace(reply), nil
}

// WordBatch asks Claude for new words in a category
func (c *ClaudeClient) WordBatch(ctx context.Context, category string, exclude []string) ([]WordEntry, error) {
	reply, err := c.complete(ctx, "word_batch", "", 2000, anthropic.NewTextBlock(buildWordBatchPrompt(category, exclude)))
	if err != nil {
		return nil, err
	}
	return parseWordResponse(reply)
}

// WordsFromText asks Claude for kid-friendly words found in worksheet text
func (c *ClaudeClient) WordsFromText(ctx context.Context, category, text string, exclude []string) ([]WordEntry, error) {
	if strings.TrimSpace(text) == "" {
		return []WordEntry{}, nil
	}
	reply, err := c.complete(ctx, "words_from_text", "", 2000, anthropic.NewTextBlock(buildWorksheetPrompt(category, text, exclude)))
	if err != nil {
		return nil, err
	}
	return parseWordResponse(reply)
}

// LabelSketch names the single object a child drew. It returns "" when the
// drawing cannot be recognised.
func (c *ClaudeClient) LabelSketch(ctx context.Context, png []byte) (string, error) {
	if len(png) == 0 {
		return "", nil
	}
	image := anthropic.NewImageBlockBase64("image/png", base64.StdEncoding.EncodeToString(png))
	prompt := anthropic.NewTextBlock(fmt.Sprintf(
		"This is a young child's drawing. Answer with ONE simple English noun for what it shows, nothing else. If you cannot tell, answer %s.",
		unknownSketch))

	reply, err := c.complete(ctx, "label_sketch", "", 20, image, prompt)
	if err != nil {
		return "", err
	}
	return parseSketchLabel(reply), nil
}

func (c *ClaudeClient) complete(ctx context.Context, op, system string, maxTokens int64, blocks ...anthropic.ContentBlockParamUnion) (string, error) {
	if err := validateAPIKey(c.apiKey); err != nil {
		return "", missingCredential("Claude")
	}

	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(blocks...),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	return withRetry(ctx, c.log, c.retry, op, func(ctx context.Context) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()

		message, err := c.client.Messages.New(ctx, params)
		if err != nil {
			return "", toAIError(err)
		}
		if string(message.StopReason) == "refusal" {
			return "", &AIError{Kind: KindContentRejected, Message: "request was refused", StatusCode: 200}
		}

		var b strings.Builder
		for _, block := range message.Content {
			if block.Type == "text" {
				b.WriteString(block.AsText().Text)
			}
		}
		return b.String(), nil
	})
}

func toAIError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		out := &AIError{
			Message:     apiErr.Error(),
			StatusCode:  apiErr.StatusCode,
			RequestID:   apiErr.RequestID,
			RawResponse: apiErr.RawJSON(),
		}
		out.Kind = classify(out.StatusCode, out.RawResponse)
		if apiErr.Response != nil {
			out.RetryAfter = retryAfter(apiErr.Response.Header)
		}
		return out
	}
	return &AIError{
		Kind:    KindGeneric,
		Message: fmt.Sprintf("failed to call Claude API: %v", err),
	}
}

// buildWordBatchPrompt constructs the curriculum prompt
func buildWordBatchPrompt(category string, exclude []string) string {
	return fmt.Sprintf(`Give me %d DIFFERENT and NEW English words for kids in the category: "%s".
IMPORTANT: DO NOT use any of these words: %s.
Return ONLY a JSON array of objects with "word" (English), "translation" (Persian/Farsi meaning), and "emoji".

Return format: [{"word": "Lion", "translation": "شیر", "emoji": "🦁"}, ...]`,
		wordBatchSize, category, strings.Join(exclude, ", "))
}

// buildWorksheetPrompt constructs the prompt for worksheet import
func buildWorksheetPrompt(category, text string, exclude []string) string {
	return fmt.Sprintf(`You are helping a 4-year-old learn English. Pick the simple English words from the following worksheet that fit the category "%s".

Do NOT include:
- Any of these words: %s
- Titles, instructions or sentences
- Duplicate entries

Return ONLY a JSON array of objects with "word" (English), "translation" (Persian/Farsi meaning), and "emoji".

Worksheet content:
%s`, category, strings.Join(exclude, ", "), text)
}

// parseWordResponse extracts word entries from Claude's JSON response,
// handling optional markdown code block wrappers.
func parseWordResponse(response string) ([]WordEntry, error) {
	response = strings.TrimSpace(response)

	// Remove markdown code blocks if present
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	var entries []WordEntry
	if err := json.Unmarshal([]byte(response), &entries); err != nil {
		return nil, &AIError{Kind: KindGeneric, Message: fmt.Sprintf("invalid JSON response: %v", err), RawResponse: response}
	}

	return sanitizeEntries(entries), nil
}

// sanitizeEntries trims whitespace and drops entries without a word
func sanitizeEntries(entries []WordEntry) []WordEntry {
	cleaned := make([]WordEntry, 0, len(entries))
	for _, e := range entries {
		e.Word = strings.TrimSpace(e.Word)
		e.Translation = strings.TrimSpace(e.Translation)
		e.Emoji = strings.TrimSpace(e.Emoji)
		if e.Word != "" {
			cleaned = append(cleaned, e)
		}
	}
	return cleaned
}

func parseSketchLabel(reply string) string {
	word := strings.TrimSpace(reply)
	word = strings.Trim(word, ".!\"'` \n")
	if word == "" || strings.EqualFold(word, unknownSketch) || strings.ContainsAny(word, "\n") {
		return ""
	}
	if fields := strings.Fields(word); len(fields) > 2 {
		return ""
	}
	return strings.ToLower(word)
}

// validateAPIKey checks if the API key is valid
func validateAPIKey(apiKey string) error {
	if !HasCredential(apiKey) {
		return fmt.Errorf("API key is missing or malformed")
	}
	return nil
}
