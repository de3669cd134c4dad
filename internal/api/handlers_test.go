package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/littleexplorer/explorer/internal/ai"
	"github.com/littleexplorer/explorer/internal/catalog"
	"github.com/littleexplorer/explorer/internal/core"
	"github.com/littleexplorer/explorer/internal/db"
	"github.com/littleexplorer/explorer/internal/games"
	"github.com/littleexplorer/explorer/internal/rewards"
)

// MockGateway for testing
type MockGateway struct {
	Words    []ai.WordEntry
	WordsErr error
	ImageErr error
	Reply    string
	Sketch   *ai.SketchResult
}

func (m *MockGateway) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	if m.ImageErr != nil {
		return nil, m.ImageErr
	}
	return []byte("generated-png"), nil
}

func (m *MockGateway) SketchToCartoon(ctx context.Context, png []byte) (*ai.SketchResult, error) {
	return m.Sketch, nil
}

func (m *MockGateway) Chat(ctx context.Context, message string) (string, error) {
	return m.Reply, nil
}

func (m *MockGateway) WordBatch(ctx context.Context, category string, exclude []string) ([]ai.WordEntry, error) {
	return m.Words, m.WordsErr
}

func (m *MockGateway) WordsFromText(ctx context.Context, category, text string, exclude []string) ([]ai.WordEntry, error) {
	return m.Words, m.WordsErr
}

// TestListCategoriesHandler tests GET /api/categories
func TestListCategoriesHandler(t *testing.T) {
	handler, _ := setupTestHandler(t)

	req := httptest.NewRequest("GET", "/api/categories", nil)
	w := httptest.NewRecorder()
	handler.ListCategories(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var cats []catalog.Category
	if err := json.NewDecoder(w.Body).Decode(&cats); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(cats) != 25 {
		t.Errorf("Expected 25 categories, got %d", len(cats))
	}
}

// TestListCardsHandler tests GET /api/categories/{id}/cards
func TestListCardsHandler(t *testing.T) {
	handler, _ := setupTestHandler(t)

	tests := []struct {
		id     string
		status int
	}{
		{"animals", http.StatusOK},
		{"dragons", http.StatusNotFound},
	}
	for _, tc := range tests {
		req := httptest.NewRequest("GET", "/api/categories/"+tc.id+"/cards", nil)
		req.SetPathValue("id", tc.id)
		w := httptest.NewRecorder()
		handler.ListCards(w, req)
		if w.Code != tc.status {
			t.Errorf("%s: expected status %d, got %d", tc.id, tc.status, w.Code)
		}
	}
}

// TestGrowCategoryHandler tests POST /api/categories/{id}/grow
func TestGrowCategoryHandler(t *testing.T) {
	handler, gw := setupTestHandler(t)
	gw.Words = []ai.WordEntry{
		{Word: "Lion", Translation: "x", Emoji: "🦁"},
		{Word: "Zebra", Translation: "x", Emoji: "🦓"},
		{Word: "giraffe", Translation: "x", Emoji: "🦒"},
		{Word: "Hippo", Translation: "x", Emoji: "🦛"},
	}

	req := httptest.NewRequest("POST", "/api/categories/animals/grow", nil)
	req.SetPathValue("id", "animals")
	w := httptest.NewRecorder()
	handler.GrowCategory(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp GrowResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Added) != 2 || resp.Total != 2 {
		t.Fatalf("Expected 2 new words, got %+v", resp)
	}
	if resp.Added[0].Word != "Zebra" || resp.Added[1].Word != "Hippo" {
		t.Errorf("Expected Zebra and Hippo, got %s and %s", resp.Added[0].Word, resp.Added[1].Word)
	}
}

// TestExportProgressHandler tests GET /api/progress/export
func TestExportProgressHandler(t *testing.T) {
	handler, _ := setupTestHandler(t)
	if _, err := handler.App.Ledger.GrantStars(context.Background(), 5); err != nil {
		t.Fatalf("GrantStars failed: %v", err)
	}

	w := httptest.NewRecorder()
	handler.Routes().ServeHTTP(w, httptest.NewRequest("GET", "/api/progress/export", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "attachment") {
		t.Error("Expected an attachment download")
	}

	var entries []db.ProgressEntry
	if err := json.NewDecoder(w.Body).Decode(&entries); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	found := false
	for _, e := range entries {
		if e.Key == "stats" && strings.Contains(string(e.Value), `"stars":5`) {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected the stats blob in the export, got %d entries", len(entries))
	}
}

// TestStatsCountsCachedImages tests GET /api/stats
func TestStatsCountsCachedImages(t *testing.T) {
	handler, _ := setupTestHandler(t)

	req := httptest.NewRequest("GET", "/api/cards/a1/image", nil)
	req.SetPathValue("id", "a1")
	handler.CardImage(httptest.NewRecorder(), req)

	w := httptest.NewRecorder()
	handler.GetStats(w, httptest.NewRequest("GET", "/api/stats", nil))
	var resp StatsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.CachedImages != 1 {
		t.Errorf("Expected 1 cached image, got %d", resp.CachedImages)
	}
}

// TestGrowCategoryErrors tests status codes for typed failures
func TestGrowCategoryErrors(t *testing.T) {
	tests := []struct {
		name     string
		category string
		err      error
		status   int
		kind     string
	}{
		{"unknown category", "dragons", nil, http.StatusNotFound, ""},
		{"quota", "animals", &ai.AIError{Kind: ai.KindQuotaExceeded}, http.StatusTooManyRequests, "quota_exceeded"},
		{"credential", "animals", &ai.AIError{Kind: ai.KindMissingCredential}, http.StatusServiceUnavailable, "missing_credential"},
		{"content", "animals", &ai.AIError{Kind: ai.KindContentRejected}, http.StatusUnprocessableEntity, "content_rejected"},
		{"generic", "animals", &ai.AIError{Kind: ai.KindGeneric}, http.StatusBadGateway, "generic"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler, gw := setupTestHandler(t)
			gw.WordsErr = tc.err

			req := httptest.NewRequest("POST", "/api/categories/"+tc.category+"/grow", nil)
			req.SetPathValue("id", tc.category)
			w := httptest.NewRecorder()
			handler.GrowCategory(w, req)

			if w.Code != tc.status {
				t.Fatalf("Expected status %d, got %d", tc.status, w.Code)
			}
			var resp ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if resp.Kind != tc.kind {
				t.Errorf("Expected kind %q, got %q", tc.kind, resp.Kind)
			}
		})
	}
}

// TestUploadWorksheetRejectsUnsupported tests POST /api/categories/{id}/worksheet
func TestUploadWorksheetRejectsUnsupported(t *testing.T) {
	handler, _ := setupTestHandler(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, _ := writer.CreateFormFile("file", "notes.exe")
	part.Write([]byte("binary"))
	writer.Close()

	req := httptest.NewRequest("POST", "/api/categories/animals/worksheet", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.SetPathValue("id", "animals")
	w := httptest.NewRecorder()
	handler.UploadWorksheet(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

// TestUploadWorksheetNoFile tests a form without a file part
func TestUploadWorksheetNoFile(t *testing.T) {
	handler, _ := setupTestHandler(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	writer.WriteField("note", "nothing here")
	writer.Close()

	req := httptest.NewRequest("POST", "/api/categories/animals/worksheet", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.SetPathValue("id", "animals")
	w := httptest.NewRecorder()
	handler.UploadWorksheet(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

// TestCardImageHandler tests GET /api/cards/{id}/image
func TestCardImageHandler(t *testing.T) {
	handler, gw := setupTestHandler(t)

	req := httptest.NewRequest("GET", "/api/cards/a1/image", nil)
	req.SetPathValue("id", "a1")
	w := httptest.NewRecorder()
	handler.CardImage(w, req)

	if w.Code != http.StatusOK || w.Body.String() != "generated-png" {
		t.Fatalf("Expected generated image, got %d %q", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Image-Source") != "remote" {
		t.Errorf("Expected remote source, got %q", w.Header().Get("X-Image-Source"))
	}

	// A failing generator serves the placeholder for uncached cards
	gw.ImageErr = &ai.AIError{Kind: ai.KindQuotaExceeded}
	req = httptest.NewRequest("GET", "/api/cards/a2/image", nil)
	req.SetPathValue("id", "a2")
	w = httptest.NewRecorder()
	handler.CardImage(w, req)

	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("Expected placeholder PNG, got %d", w.Code)
	}
	if w.Header().Get("X-Image-Fallback") != "quota_exceeded" {
		t.Errorf("Expected fallback header, got %q", w.Header().Get("X-Image-Fallback"))
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("Placeholder is not a PNG")
	}

	req = httptest.NewRequest("GET", "/api/cards/zzz/image", nil)
	req.SetPathValue("id", "zzz")
	w = httptest.NewRecorder()
	handler.CardImage(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

// TestChatHandler tests POST /api/chat
func TestChatHandler(t *testing.T) {
	handler, gw := setupTestHandler(t)
	gw.Reply = "Hello, explorer!"

	req := httptest.NewRequest("POST", "/api/chat", strings.NewReader(`{"message":"hi"}`))
	w := httptest.NewRecorder()
	handler.Chat(w, req)

	var resp ChatResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Reply != "Hello, explorer!" {
		t.Errorf("Unexpected reply %q", resp.Reply)
	}
}

// TestInvalidJSON tests handling of malformed bodies
func TestInvalidJSON(t *testing.T) {
	handler, _ := setupTestHandler(t)

	req := httptest.NewRequest("POST", "/api/chat", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	handler.Chat(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

// TestSketchHandler tests POST /api/sketch and GET /api/drawings/{id}
func TestSketchHandler(t *testing.T) {
	handler, gw := setupTestHandler(t)
	gw.Sketch = &ai.SketchResult{Word: "sun", Image: []byte("sun-png")}

	req := httptest.NewRequest("POST", "/api/sketch", strings.NewReader("sketch bytes"))
	w := httptest.NewRecorder()
	handler.Sketch(w, req)

	var resp SketchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !resp.Recognised || resp.Word != "sun" || resp.Stars != rewards.StarsPerDrawing {
		t.Fatalf("Unexpected response %+v", resp)
	}

	id := strings.TrimPrefix(resp.ImageURL, "/api/drawings/")
	req = httptest.NewRequest("GET", resp.ImageURL, nil)
	req.SetPathValue("id", id)
	w = httptest.NewRecorder()
	handler.GetDrawing(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "sun-png" {
		t.Errorf("Expected drawing, got %d", w.Code)
	}

	req = httptest.NewRequest("POST", "/api/sketch", strings.NewReader(""))
	w = httptest.NewRecorder()
	handler.Sketch(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for empty sketch, got %d", w.Code)
	}
}

// TestPurchaseHandler tests POST /api/shop/{id}/purchase
func TestPurchaseHandler(t *testing.T) {
	handler, _ := setupTestHandler(t)
	ctx := context.Background()

	purchase := func(id string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/api/shop/"+id+"/purchase", nil)
		req.SetPathValue("id", id)
		w := httptest.NewRecorder()
		handler.Purchase(w, req)
		return w
	}

	if w := purchase("item1"); w.Code != http.StatusConflict {
		t.Errorf("Expected status 409 without stars, got %d", w.Code)
	}
	if w := purchase("item99"); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}

	if _, err := handler.App.Ledger.GrantStars(ctx, 20); err != nil {
		t.Fatalf("GrantStars failed: %v", err)
	}
	w := purchase("item1")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var p rewards.Purchase
	if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if p.Action != rewards.ActionBought || p.Stats.Stars != 0 || p.Stats.Equipped != "item1" {
		t.Errorf("Unexpected purchase %+v", p)
	}

	json.NewDecoder(purchase("item1").Body).Decode(&p)
	if p.Action != rewards.ActionUnequipped || p.Stats.Stars != 0 {
		t.Errorf("Expected toggle off, got %+v", p)
	}
}

// TestGameFlow tests a full game over the router
func TestGameFlow(t *testing.T) {
	handler, _ := setupTestHandler(t)
	srv := httptest.NewServer(handler.Routes())
	defer srv.Close()

	post := func(path, body string) *http.Response {
		t.Helper()
		res, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("POST %s failed: %v", path, err)
		}
		return res
	}

	res := post("/api/games", `{"game":"sorting"}`)
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", res.StatusCode)
	}
	var started struct {
		ID   string            `json:"id"`
		View games.SortingView `json:"view"`
	}
	if err := json.NewDecoder(res.Body).Decode(&started); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if started.View.Card == nil || len(started.View.Buckets) != 2 {
		t.Fatalf("Unexpected view %+v", started.View)
	}

	// Stale rounds are rejected
	stale := post("/api/games/"+started.ID+"/answer", `{"round":0,"option":"animals"}`)
	stale.Body.Close()
	if stale.StatusCode != http.StatusConflict {
		t.Errorf("Expected status 409 for a stale round, got %d", stale.StatusCode)
	}

	body := fmt.Sprintf(`{"round":%d,"option":%q}`, started.View.Round, started.View.Card.Category)
	answer := post("/api/games/"+started.ID+"/answer", body)
	defer answer.Body.Close()
	var moved GameResponse
	if err := json.NewDecoder(answer.Body).Decode(&moved); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if moved.Result != "win" {
		t.Errorf("Expected win, got %q", moved.Result)
	}
	if got := handler.App.Ledger.Stats().Stars; got != rewards.StarsPerWin {
		t.Errorf("Expected %d stars, got %d", rewards.StarsPerWin, got)
	}

	wrongGame := post("/api/games/"+started.ID+"/flip", fmt.Sprintf(`{"round":%d,"index":0}`, started.View.Round))
	wrongGame.Body.Close()
	if wrongGame.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400 for a flip in sorting, got %d", wrongGame.StatusCode)
	}

	missing := post("/api/games/nope/next", "")
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", missing.StatusCode)
	}

	unknown := post("/api/games", `{"game":"chess"}`)
	unknown.Body.Close()
	if unknown.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown game, got %d", unknown.StatusCode)
	}
}

// TestGameTableEvictsOldest tests the session cap
func TestGameTableEvictsOldest(t *testing.T) {
	table := newGameTable(2)
	first := table.add(games.NewSorting(games.Deps{}))
	table.add(games.NewSorting(games.Deps{}))
	table.add(games.NewSorting(games.Deps{}))
	if table.len() != 2 {
		t.Errorf("Expected 2 sessions, got %d", table.len())
	}
	if _, ok := table.get(first.id); ok {
		t.Error("Oldest session should be evicted")
	}
}

// TestVisitAndGarden tests POST /api/cards/{id}/visit and GET /api/garden
func TestVisitAndGarden(t *testing.T) {
	handler, _ := setupTestHandler(t)

	req := httptest.NewRequest("POST", "/api/cards/a1/visit", nil)
	req.SetPathValue("id", "a1")
	w := httptest.NewRecorder()
	handler.VisitCard(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ListGarden(w, httptest.NewRequest("GET", "/api/garden", nil))
	var plants []PlantResponse
	if err := json.NewDecoder(w.Body).Decode(&plants); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(plants) != 1 || plants[0].WordID != "a1" || plants[0].Stage != "🌱" {
		t.Errorf("Unexpected garden %+v", plants)
	}
}

// TestPronounceUnsupported tests POST /api/cards/{id}/pronounce without a recognizer
func TestPronounceUnsupported(t *testing.T) {
	handler, _ := setupTestHandler(t)

	req := httptest.NewRequest("POST", "/api/cards/a1/pronounce", strings.NewReader("audio"))
	req.SetPathValue("id", "a1")
	w := httptest.NewRecorder()
	handler.Pronounce(w, req)
	if w.Code != http.StatusNotImplemented {
		t.Errorf("Expected status 501, got %d", w.Code)
	}
}

// TestCORS tests CORS headers
func TestCORS(t *testing.T) {
	handler, _ := setupTestHandler(t)

	req := httptest.NewRequest("OPTIONS", "/api/categories", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	handler.Routes().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200 for OPTIONS, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Expected CORS origin header, got %q", got)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("Expected a request id")
	}
}

// TestRecoverMiddleware tests that panics become 500s
func TestRecoverMiddleware(t *testing.T) {
	handler, _ := setupTestHandler(t)
	panicky := RecoverMiddleware(handler.Log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	panicky.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
}

// TestHealth tests GET /health and the activity feed
func TestHealth(t *testing.T) {
	handler, _ := setupTestHandler(t)
	routes := handler.Routes()

	w := httptest.NewRecorder()
	routes.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Errorf("Unexpected health response %d %q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	routes.ServeHTTP(w, httptest.NewRequest("GET", "/api/activity", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func setupTestHandler(t *testing.T) (*Handler, *MockGateway) {
	t.Helper()
	database, err := db.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	seed, err := catalog.DefaultSeed()
	if err != nil {
		t.Fatalf("Failed to load seed: %v", err)
	}

	gw := &MockGateway{}
	app, err := core.New(context.Background(), core.Options{
		Seed:     seed,
		Store:    database,
		Gateway:  gw,
		RandSeed: 1,
	})
	if err != nil {
		t.Fatalf("Failed to create app: %v", err)
	}
	t.Cleanup(app.Close)

	return NewHandler(app, nil), gw
}
