package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/littleexplorer/explorer/internal/catalog"
	"github.com/littleexplorer/explorer/internal/games"
)

// settleMsg resolves a face-up memory pair
type settleMsg struct{ round int }

// nextRoundMsg starts the next round after a win
type nextRoundMsg struct{ round int }

// clearFeedbackMsg hides the last miss
type clearFeedbackMsg struct{ round int }

// session drives one game inside the terminal. Timed follow-ups carry the
// round they were scheduled in and are dropped once the round moves on.
type session struct {
	game     games.Game
	feedback string
	err      error
}

func newSession(g games.Game) *session {
	return &session{game: g}
}

func (s *session) start(ctx context.Context) tea.Cmd {
	s.feedback = ""
	s.err = s.game.Next(ctx)
	return nil
}

func (s *session) repeat() {
	if c, ok := s.game.(*games.Choice); ok {
		c.Repeat()
	}
}

// options are the labels the child picks from
func (s *session) options() []string {
	switch g := s.game.(type) {
	case *games.Choice:
		return cardLabels(g.Options())
	case *games.OddOneOut:
		return cardLabels(g.Options())
	case *games.Sorting:
		out := []string{}
		for _, b := range g.Buckets() {
			out = append(out, b.Icon+" "+b.Name)
		}
		return out
	case *games.Memory:
		out := []string{}
		for _, c := range g.Cards() {
			if c.FaceUp || c.Matched {
				out = append(out, c.Emoji)
			} else {
				out = append(out, "❓")
			}
		}
		return out
	case *games.LetterPop:
		out := []string{}
		for _, b := range g.Bubbles() {
			if b.Popped {
				out = append(out, "·")
			} else {
				out = append(out, b.Letter)
			}
		}
		return out
	}
	return nil
}

// pick applies the option under the cursor
func (s *session) pick(ctx context.Context, i int) tea.Cmd {
	if s.game.State() != games.StateActive {
		return nil
	}
	round := s.game.Round()

	var (
		res games.Result
		err error
	)
	switch g := s.game.(type) {
	case *games.Choice:
		if opts := g.Options(); i < len(opts) {
			res, err = g.Choose(ctx, opts[i].ID)
		}
	case *games.OddOneOut:
		if opts := g.Options(); i < len(opts) {
			res, err = g.Choose(ctx, opts[i].ID)
		}
	case *games.Sorting:
		if buckets := g.Buckets(); i < len(buckets) {
			res, err = g.Choose(ctx, buckets[i].ID)
		}
	case *games.Memory:
		res = g.Flip(i)
		if g.NeedsSettle() {
			delay := games.MemoryMismatchDelay
			if g.PendingMatch() {
				delay = games.MemoryMatchDelay
			}
			return tick(delay, settleMsg{round: round})
		}
	case *games.LetterPop:
		if bubbles := g.Bubbles(); i < len(bubbles) {
			res, err = g.Tap(ctx, bubbles[i].ID)
		}
	}
	s.err = err
	return s.react(res, round)
}

// handle processes the timed follow-ups
func (s *session) handle(ctx context.Context, msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case settleMsg:
		mem, ok := s.game.(*games.Memory)
		if !ok || msg.round != s.game.Round() {
			return nil
		}
		return s.react(mem.Settle(ctx), msg.round)
	case nextRoundMsg:
		if msg.round != s.game.Round() {
			return nil
		}
		return s.start(ctx)
	case clearFeedbackMsg:
		if msg.round == s.game.Round() && s.game.State() == games.StateActive {
			s.feedback = ""
		}
	}
	return nil
}

func (s *session) react(res games.Result, round int) tea.Cmd {
	switch res {
	case games.ResultWin:
		s.feedback = fmt.Sprintf("🎉 Great job! +%d ⭐", games.PointsPerWin)
		return tick(s.winDelay(), nextRoundMsg{round: round})
	case games.ResultMiss:
		s.feedback = "Try again!"
		return tick(games.LetterPopMissDelay, clearFeedbackMsg{round: round})
	case games.ResultHit:
		s.feedback = "Yes!"
	}
	return nil
}

func (s *session) winDelay() time.Duration {
	switch s.game.(type) {
	case *games.Memory:
		return games.MemoryNextRoundDelay
	case *games.LetterPop:
		return games.LetterPopWinDelay
	}
	return games.ChoiceFeedbackDelay
}

func (s *session) prompt() string {
	switch g := s.game.(type) {
	case *games.Choice:
		if p := g.Prompt(); p != "" {
			return "Find: " + p
		}
		return "Listen! Press r to hear it again."
	case *games.OddOneOut:
		return "Which one does not belong?"
	case *games.Sorting:
		c := g.Card()
		return fmt.Sprintf("Where does %s %s go?", c.Emoji, c.Word)
	case *games.Memory:
		return "Find the pairs!"
	case *games.LetterPop:
		c := g.Card()
		spelled := g.Spelled() + strings.Repeat("_", g.Length()-g.Progress())
		return fmt.Sprintf("Spell %s: %s", c.Emoji, spelled)
	}
	return ""
}

func (m model) renderGame() string {
	var s strings.Builder
	if m.play == nil {
		return ""
	}
	s.WriteString(fmt.Sprintf("%s  round %d\n\n", m.play.game.Name(), m.play.game.Round()))
	if m.play.err != nil {
		s.WriteString(errorStyle.Render(friendlyError(m.play.err)))
		s.WriteString("\n\nq to go back")
		return s.String()
	}
	s.WriteString(m.play.prompt() + "\n\n")
	s.WriteString(m.renderList(m.play.options()))
	if m.play.feedback != "" {
		s.WriteString("\n" + successStyle.Render(m.play.feedback) + "\n")
	}
	s.WriteString("\nEnter to pick, q to stop playing")
	return s.String()
}

func cardLabels(cards []catalog.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.Emoji
	}
	return out
}

func tick(d time.Duration, msg tea.Msg) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return msg })
}
