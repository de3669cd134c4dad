package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/littleexplorer/explorer/internal/ai"
	"github.com/littleexplorer/explorer/internal/catalog"
	"github.com/littleexplorer/explorer/internal/core"
	"github.com/littleexplorer/explorer/internal/games"
	"github.com/littleexplorer/explorer/internal/garden"
	"github.com/littleexplorer/explorer/internal/logger"
	"github.com/littleexplorer/explorer/internal/parser"
	"github.com/littleexplorer/explorer/internal/rewards"
	"github.com/littleexplorer/explorer/internal/speech"
)

// maxUploadSize bounds sketches and recordings.
const maxUploadSize = 10 << 20

// Handler contains all HTTP handlers.
type Handler struct {
	App   *core.App
	Log   *logger.Logger
	games *gameTable
}

// NewHandler creates the handlers for app.
func NewHandler(app *core.App, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{App: app, Log: log, games: newGameTable(maxGameSessions)}
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// SuccessResponse represents a success response.
type SuccessResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// GrowResponse lists the cards a curriculum request added.
type GrowResponse struct {
	Added []catalog.Card `json:"added"`
	Total int            `json:"total"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse carries the companion's reply.
type ChatResponse struct {
	Reply string `json:"reply"`
}

// SketchResponse reports a redrawn sketch.
type SketchResponse struct {
	Recognised bool   `json:"recognised"`
	Word       string `json:"word,omitempty"`
	Stars      int    `json:"stars,omitempty"`
	ImageURL   string `json:"image_url,omitempty"`
}

// StatsResponse is the balance, shop state and equipped item.
type StatsResponse struct {
	rewards.Stats
	EquippedItem *rewards.ShopItem `json:"equipped_item,omitempty"`
	Discovered   int               `json:"discovered"`
	CachedImages int               `json:"cached_images"`
}

// PlantResponse adds the growth emoji to a plant.
type PlantResponse struct {
	garden.Plant
	Stage string `json:"stage"`
}

// ListCategories handles GET /api/categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.App.Catalog.Categories())
}

// ListCards handles GET /api/categories/{id}/cards.
func (h *Handler) ListCards(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := h.App.Catalog.Category(id); !ok {
		respondError(w, http.StatusNotFound, "Category not found")
		return
	}
	respondJSON(w, http.StatusOK, h.App.Catalog.CardsFor(id))
}

// GrowCategory handles POST /api/categories/{id}/grow.
func (h *Handler) GrowCategory(w http.ResponseWriter, r *http.Request) {
	added, err := h.App.Catalog.GrowCategory(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "Failed to find new words", err)
		return
	}
	respondJSON(w, http.StatusOK, GrowResponse{Added: added, Total: h.App.Catalog.DiscoveredCount()})
}

// UploadWorksheet handles POST /api/categories/{id}/worksheet.
func (h *Handler) UploadWorksheet(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(parser.MaxFileSize); err != nil {
		respondError(w, http.StatusBadRequest, "Failed to parse form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	if header.Size > parser.MaxFileSize {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("File too large (max %d bytes)", parser.MaxFileSize))
		return
	}

	tmpPath, cleanup, err := parser.SaveUpload(file, header.Filename)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid upload: %v", err))
		return
	}
	defer cleanup()

	added, err := h.App.Catalog.ImportWorksheet(r.Context(), r.PathValue("id"), tmpPath)
	if err != nil {
		h.fail(w, r, "Failed to import worksheet", err)
		return
	}
	respondJSON(w, http.StatusOK, GrowResponse{Added: added, Total: h.App.Catalog.DiscoveredCount()})
}

// ListAlphabet handles GET /api/alphabet.
func (h *Handler) ListAlphabet(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.App.Catalog.Alphabet())
}

// GetCard handles GET /api/cards/{id}.
func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	card, err := h.App.Card(r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "Card not found", err)
		return
	}
	respondJSON(w, http.StatusOK, card)
}

// CardImage handles GET /api/cards/{id}/image. When generation fails the
// offline placeholder is served and X-Image-Fallback names the failure.
func (h *Handler) CardImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	img, err := h.App.CardImage(r.Context(), id)
	if err == nil {
		w.Header().Set("X-Image-Source", string(img.Tier))
		respondPNG(w, img.Data)
		return
	}
	if !ai.IsAIError(err) {
		h.fail(w, r, "Failed to load image", err)
		return
	}

	data, perr := h.App.Placeholder(id)
	if perr != nil {
		h.fail(w, r, "Failed to render placeholder", perr)
		return
	}
	w.Header().Set("X-Image-Fallback", ai.KindOf(err).String())
	respondPNG(w, data)
}

// SpeakCard handles POST /api/cards/{id}/speak.
func (h *Handler) SpeakCard(w http.ResponseWriter, r *http.Request) {
	if err := h.App.SpeakCard(r.PathValue("id")); err != nil {
		h.fail(w, r, "Card not found", err)
		return
	}
	respondJSON(w, http.StatusAccepted, SuccessResponse{Message: "Speaking"})
}

// VisitCard handles POST /api/cards/{id}/visit.
func (h *Handler) VisitCard(w http.ResponseWriter, r *http.Request) {
	plant, err := h.App.Visit(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "Failed to water plant", err)
		return
	}
	respondJSON(w, http.StatusOK, PlantResponse{Plant: plant, Stage: garden.Stage(plant.GrowthLevel)})
}

// Pronounce handles POST /api/cards/{id}/pronounce with the recording as
// the request body.
func (h *Handler) Pronounce(w http.ResponseWriter, r *http.Request) {
	audio, ok := readBody(w, r)
	if !ok {
		return
	}
	attempt, err := h.App.CheckPronunciation(r.Context(), r.PathValue("id"), audio)
	if err != nil {
		h.fail(w, r, "Failed to check pronunciation", err)
		return
	}
	respondJSON(w, http.StatusOK, attempt)
}

// Chat handles POST /api/chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	respondJSON(w, http.StatusOK, ChatResponse{Reply: h.App.Chat(r.Context(), req.Message)})
}

// Sketch handles POST /api/sketch with a PNG drawing as the body.
func (h *Handler) Sketch(w http.ResponseWriter, r *http.Request) {
	sketch, ok := readBody(w, r)
	if !ok {
		return
	}
	drawing, err := h.App.SketchMagic(r.Context(), sketch)
	if err != nil {
		h.fail(w, r, "Failed to redraw sketch", err)
		return
	}
	if drawing == nil {
		respondJSON(w, http.StatusOK, SketchResponse{Recognised: false})
		return
	}
	respondJSON(w, http.StatusOK, SketchResponse{
		Recognised: true,
		Word:       drawing.Word,
		Stars:      drawing.Stars,
		ImageURL:   "/api/drawings/" + drawing.ID,
	})
}

// GetDrawing handles GET /api/drawings/{id}.
func (h *Handler) GetDrawing(w http.ResponseWriter, r *http.Request) {
	data, ok := h.App.Drawing(r.Context(), r.PathValue("id"))
	if !ok {
		respondError(w, http.StatusNotFound, "Drawing not found")
		return
	}
	respondPNG(w, data)
}

// GetStats handles GET /api/stats.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Stats:        h.App.Ledger.Stats(),
		Discovered:   h.App.Catalog.DiscoveredCount(),
		CachedImages: h.App.CachedImages(r.Context()),
	}
	if item, ok := h.App.Ledger.Equipped(); ok {
		resp.EquippedItem = &item
	}
	respondJSON(w, http.StatusOK, resp)
}

// ListStickers handles GET /api/stickers.
func (h *Handler) ListStickers(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.App.Ledger.Stickers())
}

// ListShop handles GET /api/shop.
func (h *Handler) ListShop(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.App.Ledger.Shop())
}

// Purchase handles POST /api/shop/{id}/purchase. Owned items toggle.
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	p, err := h.App.Ledger.PurchaseItem(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "Purchase failed", err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// ListGarden handles GET /api/garden.
func (h *Handler) ListGarden(w http.ResponseWriter, r *http.Request) {
	plants := h.App.Garden.Plants()
	resp := make([]PlantResponse, 0, len(plants))
	for _, p := range plants {
		resp = append(resp, PlantResponse{Plant: p, Stage: garden.Stage(p.GrowthLevel)})
	}
	respondJSON(w, http.StatusOK, resp)
}

// Activity handles GET /api/activity.
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.App.Feed.Items())
}

// ExportProgress handles GET /api/progress/export and downloads every
// progress blob as a JSON backup.
func (h *Handler) ExportProgress(w http.ResponseWriter, r *http.Request) {
	entries, err := h.App.Progress(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to export progress", err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="explorer-progress.json"`)
	respondJSON(w, http.StatusOK, entries)
}

// Credentials handles GET /api/credentials.
func (h *Handler) Credentials(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]bool{"missing": h.App.CredentialMissing()})
}

// fail maps err to a status code and logs server-side failures.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.Log.Error(message, "path", r.URL.Path, "request_id", RequestID(r.Context()), "error", err)
	}
	resp := ErrorResponse{Error: fmt.Sprintf("%s: %v", message, err)}
	if ai.IsAIError(err) {
		resp.Kind = ai.KindOf(err).String()
	}
	respondJSON(w, status, resp)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, catalog.ErrUnknownCategory),
		errors.Is(err, catalog.ErrUnknownCard),
		errors.Is(err, rewards.ErrUnknownItem),
		errors.Is(err, rewards.ErrUnknownSticker),
		errors.Is(err, games.ErrUnknownGame),
		errors.Is(err, errUnknownSession):
		return http.StatusNotFound
	case errors.Is(err, rewards.ErrInsufficientStars),
		errors.Is(err, games.ErrNotEnoughCards),
		errors.Is(err, errStaleRound):
		return http.StatusConflict
	case errors.Is(err, games.ErrUnknownOption):
		return http.StatusBadRequest
	case errors.Is(err, speech.ErrUnsupported):
		return http.StatusNotImplemented
	}

	var aiErr *ai.AIError
	if errors.As(err, &aiErr) {
		switch aiErr.Kind {
		case ai.KindMissingCredential:
			return http.StatusServiceUnavailable
		case ai.KindQuotaExceeded:
			return http.StatusTooManyRequests
		case ai.KindContentRejected:
			return http.StatusUnprocessableEntity
		default:
			return http.StatusBadGateway
		}
	}
	return http.StatusInternalServerError
}

// readBody reads a raw upload. Returns false after writing an error.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadSize))
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "Upload too large")
		return nil, false
	}
	if len(data) == 0 {
		respondError(w, http.StatusBadRequest, "Empty body")
		return nil, false
	}
	return data, true
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// respondError sends an error JSON response with the given status code and message.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

func respondPNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
