package core

import (
	"context"
	"sync"
	"time"

	"github.com/littleexplorer/explorer/internal/ai"
	"github.com/littleexplorer/explorer/internal/logger"
)

// DefaultCredentialInterval is how often the API key is re-read.
const DefaultCredentialInterval = 3 * time.Second

// CredentialMonitor watches the AI key so the front-ends can show a
// banner while it is missing.
type CredentialMonitor struct {
	key      func() string
	interval time.Duration
	log      *logger.Logger

	mu        sync.Mutex
	missing   bool
	listeners []func(missing bool)
}

// NewCredentialMonitor checks key once immediately.
func NewCredentialMonitor(key func() string, interval time.Duration, log *logger.Logger) *CredentialMonitor {
	if interval <= 0 {
		interval = DefaultCredentialInterval
	}
	if log == nil {
		log = logger.NewNop()
	}
	m := &CredentialMonitor{key: key, interval: interval, log: log.With("component", "credentials")}
	m.missing = !ai.HasCredential(key())
	return m
}

// Missing reports the result of the last check.
func (m *CredentialMonitor) Missing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.missing
}

// OnChange calls fn whenever the missing state flips.
func (m *CredentialMonitor) OnChange(fn func(missing bool)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Check re-reads the key and returns whether it is missing.
func (m *CredentialMonitor) Check() bool {
	missing := !ai.HasCredential(m.key())

	m.mu.Lock()
	changed := missing != m.missing
	m.missing = missing
	listeners := append([]func(bool){}, m.listeners...)
	m.mu.Unlock()

	if changed {
		if missing {
			m.log.Warn("AI key missing, magic features disabled")
		} else {
			m.log.Info("AI key found")
		}
		for _, fn := range listeners {
			fn(missing)
		}
	}
	return missing
}

// Run checks on every tick until ctx ends.
func (m *CredentialMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Check()
		}
	}
}
