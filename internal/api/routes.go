package api

import "net/http"

// Routes registers every endpoint and wraps the mux in the middleware
// chain.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/categories", h.ListCategories)
	mux.HandleFunc("GET /api/categories/{id}/cards", h.ListCards)
	mux.HandleFunc("POST /api/categories/{id}/grow", h.GrowCategory)
	mux.HandleFunc("POST /api/categories/{id}/worksheet", h.UploadWorksheet)
	mux.HandleFunc("GET /api/alphabet", h.ListAlphabet)

	mux.HandleFunc("GET /api/cards/{id}", h.GetCard)
	mux.HandleFunc("GET /api/cards/{id}/image", h.CardImage)
	mux.HandleFunc("POST /api/cards/{id}/speak", h.SpeakCard)
	mux.HandleFunc("POST /api/cards/{id}/visit", h.VisitCard)
	mux.HandleFunc("POST /api/cards/{id}/pronounce", h.Pronounce)

	mux.HandleFunc("POST /api/chat", h.Chat)
	mux.HandleFunc("POST /api/sketch", h.Sketch)
	mux.HandleFunc("GET /api/drawings/{id}", h.GetDrawing)

	mux.HandleFunc("GET /api/games", h.ListGames)
	mux.HandleFunc("POST /api/games", h.StartGame)
	mux.HandleFunc("GET /api/games/{id}", h.GetGame)
	mux.HandleFunc("POST /api/games/{id}/next", h.NextRound)
	mux.HandleFunc("POST /api/games/{id}/answer", h.Answer)
	mux.HandleFunc("POST /api/games/{id}/flip", h.Flip)
	mux.HandleFunc("POST /api/games/{id}/settle", h.Settle)
	mux.HandleFunc("POST /api/games/{id}/tap", h.Tap)

	mux.HandleFunc("GET /api/stats", h.GetStats)
	mux.HandleFunc("GET /api/stickers", h.ListStickers)
	mux.HandleFunc("GET /api/shop", h.ListShop)
	mux.HandleFunc("POST /api/shop/{id}/purchase", h.Purchase)
	mux.HandleFunc("GET /api/garden", h.ListGarden)
	mux.HandleFunc("GET /api/activity", h.Activity)
	mux.HandleFunc("GET /api/credentials", h.Credentials)
	mux.HandleFunc("GET /api/progress/export", h.ExportProgress)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	var handler http.Handler = mux
	handler = CorsMiddleware(handler)
	handler = LoggingMiddleware(h.Log)(handler)
	handler = RecoverMiddleware(h.Log)(handler)
	return handler
}
