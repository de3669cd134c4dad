package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/littleexplorer/explorer/internal/games"
)

// maxGameSessions caps the open games; the oldest is dropped first.
const maxGameSessions = 32

var (
	errUnknownSession = errors.New("unknown game session")
	errStaleRound     = errors.New("round is over")
)

// gameSession serialises input to one game.
type gameSession struct {
	mu   sync.Mutex
	id   string
	game games.Game
}

type gameTable struct {
	mu    sync.Mutex
	limit int
	order []string
	byID  map[string]*gameSession
}

func newGameTable(limit int) *gameTable {
	return &gameTable{limit: limit, byID: make(map[string]*gameSession)}
}

func (t *gameTable) add(g games.Game) *gameSession {
	s := &gameSession{id: uuid.NewString(), game: g}
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.order) == t.limit {
		delete(t.byID, t.order[0])
		t.order = t.order[1:]
	}
	t.order = append(t.order, s.id)
	t.byID[s.id] = s
	return s
}

func (t *gameTable) get(id string) (*gameSession, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.byID[id]
	return s, ok
}

func (t *gameTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byID)
}

// NewGameRequest is the body of POST /api/games.
type NewGameRequest struct {
	Game string `json:"game"`
}

// MoveRequest is one input to a running game. Round must match the
// current round so late taps from a finished round are rejected.
type MoveRequest struct {
	Round  int    `json:"round"`
	Option string `json:"option,omitempty"`
	Index  int    `json:"index,omitempty"`
}

// GameResponse is a game's state after a request.
type GameResponse struct {
	ID     string `json:"id"`
	Result string `json:"result,omitempty"`
	View   any    `json:"view"`
}

// ListGames handles GET /api/games.
func (h *Handler) ListGames(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, games.Names)
}

// StartGame handles POST /api/games and starts the first round.
func (h *Handler) StartGame(w http.ResponseWriter, r *http.Request) {
	var req NewGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	g, err := h.App.NewGame(req.Game)
	if err != nil {
		h.fail(w, r, "Failed to start game", err)
		return
	}
	if err := g.Next(r.Context()); err != nil {
		h.fail(w, r, "Failed to start game", err)
		return
	}
	s := h.games.add(g)
	respondJSON(w, http.StatusCreated, GameResponse{ID: s.id, View: g.Snapshot()})
}

// GetGame handles GET /api/games/{id}.
func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	h.withGame(w, r, false, func(ctx context.Context, s *gameSession, _ MoveRequest) (games.Result, error) {
		return games.ResultIgnored, nil
	})
}

// NextRound handles POST /api/games/{id}/next.
func (h *Handler) NextRound(w http.ResponseWriter, r *http.Request) {
	h.withGame(w, r, false, func(ctx context.Context, s *gameSession, _ MoveRequest) (games.Result, error) {
		return games.ResultIgnored, s.game.Next(ctx)
	})
}

// Answer handles POST /api/games/{id}/answer for the picking games.
func (h *Handler) Answer(w http.ResponseWriter, r *http.Request) {
	h.withGame(w, r, true, func(ctx context.Context, s *gameSession, m MoveRequest) (games.Result, error) {
		type chooser interface {
			Choose(ctx context.Context, id string) (games.Result, error)
		}
		c, ok := s.game.(chooser)
		if !ok {
			return games.ResultIgnored, games.ErrUnknownOption
		}
		return c.Choose(ctx, m.Option)
	})
}

// Flip handles POST /api/games/{id}/flip for memory.
func (h *Handler) Flip(w http.ResponseWriter, r *http.Request) {
	h.withGame(w, r, true, func(ctx context.Context, s *gameSession, m MoveRequest) (games.Result, error) {
		mem, ok := s.game.(*games.Memory)
		if !ok {
			return games.ResultIgnored, games.ErrUnknownOption
		}
		return mem.Flip(m.Index), nil
	})
}

// Settle handles POST /api/games/{id}/settle for memory, after the
// front-end has shown the flipped pair.
func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	h.withGame(w, r, true, func(ctx context.Context, s *gameSession, m MoveRequest) (games.Result, error) {
		mem, ok := s.game.(*games.Memory)
		if !ok {
			return games.ResultIgnored, games.ErrUnknownOption
		}
		return mem.Settle(ctx), nil
	})
}

// Tap handles POST /api/games/{id}/tap for letter pop.
func (h *Handler) Tap(w http.ResponseWriter, r *http.Request) {
	h.withGame(w, r, true, func(ctx context.Context, s *gameSession, m MoveRequest) (games.Result, error) {
		lp, ok := s.game.(*games.LetterPop)
		if !ok {
			return games.ResultIgnored, games.ErrUnknownOption
		}
		return lp.Tap(ctx, m.Index)
	})
}

// withGame looks up the session, optionally decodes a move and checks its
// round, then runs fn under the session lock.
func (h *Handler) withGame(w http.ResponseWriter, r *http.Request, move bool, fn func(context.Context, *gameSession, MoveRequest) (games.Result, error)) {
	s, ok := h.games.get(r.PathValue("id"))
	if !ok {
		h.fail(w, r, "Game not found", errUnknownSession)
		return
	}

	var m MoveRequest
	if move {
		if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if move && m.Round != s.game.Round() {
		h.fail(w, r, "Move rejected", errStaleRound)
		return
	}
	res, err := fn(r.Context(), s, m)
	if err != nil {
		h.fail(w, r, "Move rejected", err)
		return
	}
	resp := GameResponse{ID: s.id, View: s.game.Snapshot()}
	if move {
		resp.Result = res.String()
	}
	respondJSON(w, http.StatusOK, resp)
}
