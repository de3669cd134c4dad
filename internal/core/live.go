package core

import (
	"context"

	"github.com/littleexplorer/explorer/internal/live"
)

// LiveChat holds a voice conversation with the companion over t until ctx
// ends or the connection fails. Both sides of the conversation are added
// to the activity feed.
func (a *App) LiveChat(ctx context.Context, t live.Transport, player live.Player, mic <-chan []byte) error {
	s := live.NewSession(player, func(tr live.Transcript) {
		a.Feed.Add(FeedItem{Event: "live_transcript", Text: string(tr.Role) + ": " + tr.Text})
	}, a.log)

	a.log.Info("live chat started", "session", s.ID)
	err := s.Run(ctx, t, mic)
	played, dropped := s.Stats()
	a.log.Info("live chat ended", "session", s.ID, "played", played, "dropped", dropped, "error", err)
	return err
}
