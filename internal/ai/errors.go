package ai

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Kind classifies gateway failures for the UI.
type Kind int

const (
	KindGeneric Kind = iota
	KindMissingCredential
	KindQuotaExceeded
	KindContentRejected
)

func (k Kind) String() string {
	switch k {
	case KindMissingCredential:
		return "missing_credential"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindContentRejected:
		return "content_rejected"
	default:
		return "generic"
	}
}

// AIError represents an error from a remote AI service
type AIError struct {
	Kind        Kind
	Message     string
	StatusCode  int
	RequestID   string
	RawResponse string
	RetryAfter  time.Duration
	// Err is the underlying cause, if any.
	Err error
}

func (e *AIError) Error() string {
	msg := fmt.Sprintf("AI API error (%d, %s): %s", e.StatusCode, e.Kind, e.Message)
	if e.RequestID != "" {
		msg += fmt.Sprintf("\n  request-id: %s", e.RequestID)
	}
	if e.RawResponse != "" {
		msg += fmt.Sprintf("\n  raw: %s", e.RawResponse)
	}
	return msg
}

func (e *AIError) Unwrap() error { return e.Err }

// IsAIError checks if an error is an AIError
func IsAIError(err error) bool {
	var aiErr *AIError
	return errors.As(err, &aiErr)
}

// KindOf returns the failure kind of err. Errors that are not AIErrors are
// generic.
func KindOf(err error) Kind {
	var aiErr *AIError
	if errors.As(err, &aiErr) {
		return aiErr.Kind
	}
	return KindGeneric
}

// retryable reports whether a failed call is worth repeating: quota
// exhaustion, server errors and network failures.
func (e *AIError) retryable() bool {
	switch e.Kind {
	case KindQuotaExceeded:
		return true
	case KindMissingCredential, KindContentRejected:
		return false
	}
	return e.StatusCode == 0 || e.StatusCode >= 500
}

func missingCredential(service string) *AIError {
	return &AIError{
		Kind:       KindMissingCredential,
		Message:    service + " API key is not configured",
		StatusCode: http.StatusUnauthorized,
	}
}

// classify maps an HTTP status and response body to a failure kind.
func classify(status int, body string) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindMissingCredential
	case status == http.StatusTooManyRequests:
		return KindQuotaExceeded
	case status == http.StatusBadRequest && mentionsContentPolicy(body):
		return KindContentRejected
	}
	return KindGeneric
}

func mentionsContentPolicy(body string) bool {
	body = strings.ToLower(body)
	for _, marker := range []string{"content_policy", "content policy", "safety", "moderation"} {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return false
}

func retryAfter(h http.Header) time.Duration {
	if h == nil {
		return 0
	}
	ra := strings.TrimSpace(h.Get("Retry-After"))
	if ra == "" {
		return 0
	}
	if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
