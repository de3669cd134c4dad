package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/littleexplorer/explorer/internal/logger"
)

// ImageClient calls an OpenAI-compatible /v1/images/generations endpoint.
type ImageClient struct {
	baseURL    string
	apiKey     string
	model      string
	size       string
	httpClient *http.Client
	retry      RetryPolicy
	log        *logger.Logger
}

// NewImageClient creates an image generator. A missing key makes every call
// fail with KindMissingCredential.
func NewImageClient(baseURL, apiKey, model string, log *logger.Logger) *ImageClient {
	if log == nil {
		log = logger.NewNop()
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	return &ImageClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		size:       "1024x1024",
		httpClient: &http.Client{Timeout: 120 * time.Second},
		retry:      DefaultRetryPolicy,
		log:        log.With("service", "images"),
	}
}

// WithRetry returns a copy of the client using p
func (c *ImageClient) WithRetry(p RetryPolicy) *ImageClient {
	cp := *c
	cp.retry = p
	return &cp
}

type imagesGenerationRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n,omitempty"`
	Size           string `json:"size,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type imagesGenerationResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// GenerateImage renders prompt as a square PNG
func (c *ImageClient) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, errors.New("image prompt required")
	}
	if err := validateAPIKey(c.apiKey); err != nil {
		return nil, missingCredential("image")
	}

	req := imagesGenerationRequest{
		Model:  c.model,
		Prompt: prompt,
		N:      1,
		Size:   c.size,
	}
	// gpt-image models always answer in base64 and reject the parameter.
	if !strings.HasPrefix(strings.ToLower(c.model), "gpt-image-") {
		req.ResponseFormat = "b64_json"
	}

	return withRetry(ctx, c.log, c.retry, "generate_image", func(ctx context.Context) ([]byte, error) {
		var resp imagesGenerationResponse
		if err := c.doOnce(ctx, "/v1/images/generations", req, &resp); err != nil {
			return nil, err
		}
		if len(resp.Data) == 0 || strings.TrimSpace(resp.Data[0].B64JSON) == "" {
			return nil, &AIError{Kind: KindGeneric, Message: "no image returned", StatusCode: http.StatusOK}
		}
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(resp.Data[0].B64JSON))
		if err != nil || len(raw) == 0 {
			return nil, &AIError{Kind: KindGeneric, Message: fmt.Sprintf("decode image base64: %v", err), StatusCode: http.StatusOK}
		}
		return raw, nil
	})
}

func (c *ImageClient) doOnce(ctx context.Context, path string, body any, out any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &AIError{Kind: KindGeneric, Message: fmt.Sprintf("failed to call image API: %v", err)}
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return &AIError{Kind: KindGeneric, Message: fmt.Sprintf("failed to read image response: %v", readErr)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &AIError{
			Kind:        classify(resp.StatusCode, string(raw)),
			Message:     http.StatusText(resp.StatusCode),
			StatusCode:  resp.StatusCode,
			RequestID:   resp.Header.Get("X-Request-Id"),
			RawResponse: string(raw),
			RetryAfter:  retryAfter(resp.Header),
		}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &AIError{Kind: KindGeneric, Message: fmt.Sprintf("image decode error: %v", err), StatusCode: resp.StatusCode, RawResponse: string(raw)}
	}
	return nil
}
