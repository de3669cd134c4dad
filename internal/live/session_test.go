package live

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// MockTransport feeds messages from a channel
type MockTransport struct {
	incoming chan Message
	mu       sync.Mutex
	sent     [][]byte
	closed   bool
}

func newMockTransport() *MockTransport {
	return &MockTransport{incoming: make(chan Message)}
}

func (m *MockTransport) Send(ctx context.Context, audio []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, audio)
	return nil
}

func (m *MockTransport) Receive(ctx context.Context) (Message, error) {
	select {
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case msg, ok := <-m.incoming:
		if !ok {
			return Message{}, errors.New("connection closed")
		}
		return msg, nil
	}
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// MockPlayer blocks each chunk until released or cancelled
type MockPlayer struct {
	started   chan string
	release   chan struct{}
	cancelled chan string
}

func newMockPlayer() *MockPlayer {
	return &MockPlayer{
		started:   make(chan string, 10),
		release:   make(chan struct{}),
		cancelled: make(chan string, 10),
	}
}

func (m *MockPlayer) Play(ctx context.Context, chunk []byte) error {
	m.started <- string(chunk)
	select {
	case <-ctx.Done():
		m.cancelled <- string(chunk)
		return ctx.Err()
	case <-m.release:
		return nil
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func expectString(t *testing.T, ch chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Timed out waiting for %q", want)
	}
}

func TestSessionInterrupt(t *testing.T) {
	player := newMockPlayer()
	var mu sync.Mutex
	var lines []Transcript
	s := NewSession(player, func(tr Transcript) {
		mu.Lock()
		lines = append(lines, tr)
		mu.Unlock()
	}, nil)
	if s.ID == "" {
		t.Fatal("Session needs an id")
	}

	transport := newMockTransport()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, transport, nil) }()

	transport.incoming <- Message{Audio: []byte("a")}
	expectString(t, player.started, "a")
	transport.incoming <- Message{Audio: []byte("b")}
	transport.incoming <- Message{Audio: []byte("c"), Transcript: &Transcript{Role: RoleModel, Text: "Hi friend"}}
	waitFor(t, "queued chunks", func() bool { return s.Pending() == 2 })

	transport.incoming <- Message{Interrupted: true}
	expectString(t, player.cancelled, "a")
	waitFor(t, "empty queue", func() bool { return s.Pending() == 0 })
	if _, dropped := s.Stats(); dropped != 2 {
		t.Errorf("Expected 2 dropped chunks, got %d", dropped)
	}

	// Playback resumes with audio that arrives after the interruption
	transport.incoming <- Message{Audio: []byte("d")}
	expectString(t, player.started, "d")
	player.release <- struct{}{}
	waitFor(t, "played chunk", func() bool { played, _ := s.Stats(); return played == 1 })

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	transport.mu.Lock()
	if !transport.closed {
		t.Error("Transport should be closed")
	}
	transport.mu.Unlock()

	mu.Lock()
	defer mu.Unlock()
	if len(lines) != 1 || lines[0].Text != "Hi friend" || lines[0].Role != RoleModel {
		t.Errorf("Unexpected transcripts %+v", lines)
	}
}

func TestSessionPlaysInOrder(t *testing.T) {
	player := newMockPlayer()
	s := NewSession(player, nil, nil)
	for _, c := range []string{"1", "2", "3"} {
		s.Enqueue([]byte(c))
	}
	s.Enqueue(nil)
	if s.Pending() != 3 {
		t.Fatalf("Expected 3 queued chunks, got %d", s.Pending())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.playLoop(ctx)

	for _, want := range []string{"1", "2", "3"} {
		expectString(t, player.started, want)
		player.release <- struct{}{}
	}
	waitFor(t, "all played", func() bool { played, _ := s.Stats(); return played == 3 })
}

func TestSessionForwardsMicrophone(t *testing.T) {
	s := NewSession(newMockPlayer(), nil, nil)
	transport := newMockTransport()
	mic := make(chan []byte, 2)
	mic <- []byte("hello")
	mic <- []byte("there")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, transport, mic) }()

	waitFor(t, "sent audio", func() bool {
		transport.mu.Lock()
		defer transport.mu.Unlock()
		return len(transport.sent) == 2
	})
	cancel()
	<-done
}

func TestSessionTransportError(t *testing.T) {
	s := NewSession(newMockPlayer(), nil, nil)
	transport := newMockTransport()
	close(transport.incoming)
	if err := s.Run(context.Background(), transport, nil); err == nil {
		t.Error("Expected transport error")
	}
}
