package speech

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"strings"
	"sync"

	"github.com/littleexplorer/explorer/internal/logger"
)

// Voice settings for spoken output.
type Voice struct {
	Language string
	Rate     float64
	Pitch    float64
}

// DefaultVoice is slow and a little high, for small children.
var DefaultVoice = Voice{Language: "en-US", Rate: 0.8, Pitch: 1.2}

// espeak-ng defaults that Rate and Pitch scale
const (
	baseWordsPerMinute = 175
	basePitch          = 50
)

// runFunc runs an external command until it exits or ctx is cancelled.
type runFunc func(ctx context.Context, name string, args ...string) error

// Speaker reads text aloud through an external TTS command. Each call
// cancels the utterance in progress before starting the new one.
type Speaker struct {
	command string
	voice   Voice
	log     *logger.Logger
	run     runFunc

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSpeaker creates a speaker for command, e.g. "espeak-ng".
func NewSpeaker(command string, log *logger.Logger) *Speaker {
	if log == nil {
		log = logger.NewNop()
	}
	return &Speaker{
		command: command,
		voice:   DefaultVoice,
		log:     log.With("component", "speaker"),
		run:     runCommand,
	}
}

// Available reports whether the TTS command can be found.
func (s *Speaker) Available() bool {
	if s.command == "" {
		return false
	}
	_, err := exec.LookPath(s.command)
	return err == nil
}

// Speak starts reading text and returns immediately.
func (s *Speaker) Speak(text string) {
	text = strings.TrimSpace(text)
	if text == "" || s.command == "" {
		return
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer cancel()
		if err := s.run(ctx, s.command, s.args(text)...); err != nil && ctx.Err() == nil {
			s.log.Warn("speech output failed", "command", s.command, "error", err)
		}
	}()
}

// Stop cancels the current utterance.
func (s *Speaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Wait blocks until every started utterance has ended.
func (s *Speaker) Wait() {
	s.wg.Wait()
}

func (s *Speaker) args(text string) []string {
	wpm := int(math.Round(baseWordsPerMinute * s.voice.Rate))
	pitch := int(math.Round(basePitch * s.voice.Pitch))
	if pitch > 99 {
		pitch = 99
	}
	return []string{
		"-v", strings.ToLower(s.voice.Language),
		"-s", fmt.Sprint(wpm),
		"-p", fmt.Sprint(pitch),
		"--", text,
	}
}

func runCommand(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}
