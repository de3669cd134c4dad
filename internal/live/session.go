// Package live runs a voice conversation with a streaming model. Audio
// devices and the network connection are supplied by the caller.
package live

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/littleexplorer/explorer/internal/logger"
)

// Role of a transcript line.
type Role string

const (
	RoleChild Role = "child"
	RoleModel Role = "model"
)

// Transcript is one piece of recognised speech.
type Transcript struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Message is what the server streams back.
type Message struct {
	Audio       []byte
	Transcript  *Transcript
	Interrupted bool
}

// Transport is the connection to the live model.
type Transport interface {
	Send(ctx context.Context, audio []byte) error
	Receive(ctx context.Context) (Message, error)
	Close() error
}

// Player plays one chunk, returning early when ctx is cancelled.
type Player interface {
	Play(ctx context.Context, chunk []byte) error
}

// Session queues model audio for playback in arrival order. An
// interruption from the server drops everything queued and stops the
// chunk being played.
type Session struct {
	ID string

	player       Player
	onTranscript func(Transcript)
	log          *logger.Logger

	mu          sync.Mutex
	queue       [][]byte
	generation  int
	stopCurrent context.CancelFunc
	wake        chan struct{}
	played      int
	dropped     int
}

func NewSession(player Player, onTranscript func(Transcript), log *logger.Logger) *Session {
	if log == nil {
		log = logger.NewNop()
	}
	id := uuid.NewString()
	return &Session{
		ID:           id,
		player:       player,
		onTranscript: onTranscript,
		log:          log.With("session", id),
		wake:         make(chan struct{}, 1),
	}
}

// Enqueue adds a chunk to the end of the playback queue.
func (s *Session) Enqueue(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	s.mu.Lock()
	s.queue = append(s.queue, chunk)
	s.mu.Unlock()
	s.signal()
}

// Interrupt drops all queued audio and cancels the current chunk.
func (s *Session) Interrupt() {
	s.mu.Lock()
	s.dropped += len(s.queue)
	s.queue = nil
	s.generation++
	if s.stopCurrent != nil {
		s.stopCurrent()
		s.stopCurrent = nil
	}
	s.mu.Unlock()
	s.log.Debug("playback interrupted")
}

// Pending returns the number of queued chunks.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Stats returns how many chunks were played to the end and how many
// were dropped by interruptions.
func (s *Session) Stats() (played, dropped int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.played, s.dropped
}

// Handle applies one server message.
func (s *Session) Handle(msg Message) {
	if msg.Interrupted {
		s.Interrupt()
	}
	if msg.Transcript != nil && msg.Transcript.Text != "" && s.onTranscript != nil {
		s.onTranscript(*msg.Transcript)
	}
	if len(msg.Audio) > 0 {
		s.Enqueue(msg.Audio)
	}
}

// Run receives server messages, plays audio and forwards microphone
// chunks from mic until ctx ends or the transport fails. mic may be nil.
// The transport is closed on return.
func (s *Session) Run(ctx context.Context, t Transport, mic <-chan []byte) error {
	defer t.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.playLoop(ctx)
	})
	if mic != nil {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case chunk, ok := <-mic:
					if !ok {
						return nil
					}
					if err := t.Send(ctx, chunk); err != nil {
						return err
					}
				}
			}
		})
	}
	g.Go(func() error {
		for {
			msg, err := t.Receive(ctx)
			if err != nil {
				return err
			}
			s.Handle(msg)
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Session) playLoop(ctx context.Context) error {
	for {
		chunk, playCtx, done, ok := s.next(ctx)
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.wake:
			}
			continue
		}

		err := s.player.Play(playCtx, chunk)
		interrupted := playCtx.Err() != nil && ctx.Err() == nil
		done(err == nil && !interrupted)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil && !interrupted {
			s.log.Warn("playback failed", "error", err)
		}
	}
}

// next pops the head of the queue with a context the next Interrupt
// cancels.
func (s *Session) next(ctx context.Context) ([]byte, context.Context, func(bool), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, nil, nil, false
	}
	chunk := s.queue[0]
	s.queue = s.queue[1:]

	playCtx, cancel := context.WithCancel(ctx)
	s.stopCurrent = cancel
	gen := s.generation

	done := func(completed bool) {
		cancel()
		s.mu.Lock()
		defer s.mu.Unlock()
		if completed {
			s.played++
		}
		if s.generation == gen {
			s.stopCurrent = nil
		}
	}
	return chunk, playCtx, done, true
}

func (s *Session) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
