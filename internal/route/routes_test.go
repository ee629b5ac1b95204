package route

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"detectionsite/internal/config"
	"detectionsite/internal/dto"
	"detectionsite/internal/logger"
	"detectionsite/internal/middleware"
	"detectionsite/internal/repository/sqlite"
	"detectionsite/internal/service"
	"detectionsite/internal/service/ai"
	"detectionsite/internal/service/storage"
	"detectionsite/internal/service/websocket"
)

// ========================================
// Test Setup Helpers
// ========================================

type stubDetector struct {
	detections []ai.Detection
}

func (s *stubDetector) Detect(img image.Image) ([]ai.Detection, error) { return s.detections, nil }
func (s *stubDetector) Close() error                                   { return nil }

func setupRouter(t *testing.T) http.Handler {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{
		Password:       "secret",
		DatabasePath:   filepath.Join(dir, "test.db"),
		MediaDirectory: filepath.Join(dir, "media"),
		LogDirectory:   filepath.Join(dir, "logs"),
		MaxUploadSize:  1 << 20,
	}

	log := logger.NewLogger(cfg)
	t.Cleanup(log.Close)

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	detections := sqlite.NewDetectionRepository(db)
	feeds := service.NewFeedService(sqlite.NewUserRepository(db), sqlite.NewFeedRepository(db),
		detections, storage.NewFileStore(cfg, log), log)

	registry := ai.NewRegistry(true, log)
	det := &stubDetector{detections: []ai.Detection{
		{Label: "dog", Confidence: 0.87, Box: ai.Box{X1: 1, Y1: 2, X2: 10, Y2: 12}},
	}}
	registry.Register(ai.Variant{
		Name:      ai.ModelSSD,
		Threshold: 0.6,
		Style:     ai.SSDStyle,
		Load:      func() (ai.Detector, error) { return det, nil },
	})

	hub := websocket.NewHubService(log)
	pipeline := service.NewPipeline(feeds, detections, registry, hub, log)

	return SetupRoutes(cfg, log, feeds, pipeline, hub)
}

func authCookies(username string) []*http.Cookie {
	return []*http.Cookie{
		{Name: middleware.AuthCookie, Value: "true"},
		{Name: middleware.UsernameCookie, Value: username},
	}
}

func do(t *testing.T, h http.Handler, req *http.Request, username string) *httptest.ResponseRecorder {
	t.Helper()

	if username != "" {
		for _, c := range authCookies(username) {
			req.AddCookie(c)
		}
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func pngBytes(t *testing.T) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 24, 24))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.Set(0, 0, color.Black)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode failed: %v", err)
	}
	return buf.Bytes()
}

func uploadRequest(t *testing.T, name string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", name)
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	part.Write(data)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/feeds", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func upload(t *testing.T, h http.Handler, username, name string, data []byte) dto.FeedInfo {
	t.Helper()

	rec := do(t, h, uploadRequest(t, name, data), username)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Upload returned %d: %s", rec.Code, rec.Body.String())
	}

	var info struct {
		ID           int64  `json:"id"`
		Owner        string `json:"owner"`
		ProcessedURL string `json:"processed_url"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("Invalid upload response: %v", err)
	}
	return dto.FeedInfo{ID: info.ID, Owner: info.Owner, ProcessedURL: info.ProcessedURL}
}

func processRequest(id int64, model string) *http.Request {
	form := url.Values{"model": {model}}
	req := httptest.NewRequest(http.MethodPost, "/api/feeds/"+itoa(id)+"/process", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ========================================
// Route Tests
// ========================================

func TestRoutes_LoginFlow(t *testing.T) {
	h := setupRouter(t)

	form := url.Values{"password": {"wrong"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if rec := do(t, h, req, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for wrong password, got %d", rec.Code)
	}

	form = url.Values{"password": {"secret"}, "username": {"alice"}}
	req = httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := do(t, h, req, "")
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("Expected redirect after login, got %d", rec.Code)
	}

	cookies := map[string]string{}
	for _, c := range rec.Result().Cookies() {
		cookies[c.Name] = c.Value
	}
	if cookies[middleware.AuthCookie] != "true" || cookies[middleware.UsernameCookie] != "alice" {
		t.Errorf("Unexpected cookies %v", cookies)
	}
}

func TestRoutes_RequireAuth(t *testing.T) {
	h := setupRouter(t)

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/api/feeds", nil), "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
}

func TestRoutes_UploadListGet(t *testing.T) {
	h := setupRouter(t)

	feed := upload(t, h, "alice", "dog.png", pngBytes(t))
	if feed.ID == 0 || feed.Owner != "alice" {
		t.Fatalf("Unexpected feed %+v", feed)
	}
	upload(t, h, "bob", "cat.png", pngBytes(t))

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/api/feeds?page=1&limit=10", nil), "alice")
	if rec.Code != http.StatusOK {
		t.Fatalf("List returned %d", rec.Code)
	}
	var list struct {
		Feeds      []json.RawMessage `json:"feeds"`
		Length     int               `json:"length"`
		TotalPages int               `json:"totalPages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("Invalid list response: %v", err)
	}
	if list.Length != 1 || len(list.Feeds) != 1 || list.TotalPages != 1 {
		t.Errorf("Expected only alice's feed, got %s", rec.Body.String())
	}

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/api/feeds/"+itoa(feed.ID)+"/image", nil), "alice")
	if rec.Code != http.StatusOK || !bytes.Equal(rec.Body.Bytes(), pngBytes(t)) {
		t.Errorf("Original image not served: %d", rec.Code)
	}

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/api/feeds/"+itoa(feed.ID)+"/processed", nil), "alice")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 before processing, got %d", rec.Code)
	}
}

func TestRoutes_ListByObject(t *testing.T) {
	h := setupRouter(t)
	processed := upload(t, h, "alice", "dog.png", pngBytes(t))
	upload(t, h, "alice", "other.png", pngBytes(t))
	if rec := do(t, h, processRequest(processed.ID, ai.ModelSSD), "alice"); rec.Code != http.StatusOK {
		t.Fatalf("Process returned %d", rec.Code)
	}

	tests := []struct {
		query        string
		expectLength int
	}{
		{"", 2},
		{"?object=dog", 1},
		{"?object=cat", 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := do(t, h, httptest.NewRequest(http.MethodGet, "/api/feeds"+tt.query, nil), "alice")
			if rec.Code != http.StatusOK {
				t.Fatalf("List returned %d", rec.Code)
			}
			var list struct {
				Feeds []struct {
					ID int64 `json:"id"`
				} `json:"feeds"`
				Length int `json:"length"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
				t.Fatalf("Invalid list response: %v", err)
			}
			if list.Length != tt.expectLength || len(list.Feeds) != tt.expectLength {
				t.Errorf("Expected %d feeds, got %s", tt.expectLength, rec.Body.String())
			}
			if tt.expectLength == 1 && list.Feeds[0].ID != processed.ID {
				t.Errorf("Expected feed %d, got %d", processed.ID, list.Feeds[0].ID)
			}
		})
	}
}

func TestRoutes_UploadErrors(t *testing.T) {
	h := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/feeds", strings.NewReader("no form"))
	req.Header.Set("Content-Type", "text/plain")
	if rec := do(t, h, req, "alice"); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without multipart body, got %d", rec.Code)
	}

	big := bytes.Repeat([]byte("x"), 2<<20)
	if rec := do(t, h, uploadRequest(t, "big.jpg", big), "alice"); rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected 413 for oversized upload, got %d", rec.Code)
	}
}

func TestRoutes_ProcessFeed(t *testing.T) {
	h := setupRouter(t)
	feed := upload(t, h, "alice", "dog.png", pngBytes(t))

	rec := do(t, h, processRequest(feed.ID, ai.ModelSSD), "alice")
	if rec.Code != http.StatusOK {
		t.Fatalf("Process returned %d: %s", rec.Code, rec.Body.String())
	}
	var result dto.ProcessResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("Invalid process response: %v", err)
	}
	if !result.Success || result.Detections != 1 {
		t.Errorf("Unexpected result %+v", result)
	}

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/api/feeds/"+itoa(feed.ID), nil), "alice")
	var info struct {
		Objects    []string `json:"objects"`
		Detections []struct {
			ObjectType string `json:"object_type"`
			Location   string `json:"location"`
		} `json:"detections"`
		ProcessedURL string `json:"processed_url"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("Invalid feed response: %v", err)
	}
	if len(info.Detections) != 1 || info.Detections[0].Location != "1,2,10,12" || info.ProcessedURL == "" {
		t.Errorf("Unexpected feed after processing: %s", rec.Body.String())
	}

	rec = do(t, h, httptest.NewRequest(http.MethodGet, info.ProcessedURL, nil), "alice")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/jpeg" {
		t.Errorf("Processed image not served as JPEG: %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
}

func TestRoutes_ProcessFeed_Outcomes(t *testing.T) {
	h := setupRouter(t)
	good := upload(t, h, "alice", "dog.png", pngBytes(t))
	broken := upload(t, h, "alice", "broken.jpg", []byte("not an image"))

	tests := []struct {
		name          string
		id            int64
		model         string
		expectStatus  int
		expectSuccess bool
	}{
		{"missing feed", 9999, ai.ModelSSD, http.StatusNotFound, false},
		{"undecodable image", broken.ID, ai.ModelSSD, http.StatusUnprocessableEntity, false},
		{"unknown model", good.ID, "model_9", http.StatusOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, processRequest(tt.id, tt.model), "alice")
			if rec.Code != tt.expectStatus {
				t.Errorf("Expected %d, got %d: %s", tt.expectStatus, rec.Code, rec.Body.String())
			}
			var result dto.ProcessResult
			json.Unmarshal(rec.Body.Bytes(), &result)
			if result.Success != tt.expectSuccess {
				t.Errorf("Expected success=%v, got %+v", tt.expectSuccess, result)
			}
		})
	}
}

func TestRoutes_DeleteFeed(t *testing.T) {
	h := setupRouter(t)
	feed := upload(t, h, "alice", "dog.png", pngBytes(t))
	do(t, h, processRequest(feed.ID, ai.ModelSSD), "alice")

	path := "/api/feeds/" + itoa(feed.ID)
	if rec := do(t, h, httptest.NewRequest(http.MethodDelete, path, nil), "alice"); rec.Code != http.StatusNoContent {
		t.Fatalf("Delete returned %d", rec.Code)
	}
	if rec := do(t, h, httptest.NewRequest(http.MethodGet, path, nil), "alice"); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", rec.Code)
	}
	if rec := do(t, h, httptest.NewRequest(http.MethodDelete, path, nil), "alice"); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for second delete, got %d", rec.Code)
	}
}

func TestRoutes_InvalidFeedID(t *testing.T) {
	h := setupRouter(t)

	if rec := do(t, h, httptest.NewRequest(http.MethodGet, "/api/feeds/abc", nil), "alice"); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestRoutes_Models(t *testing.T) {
	h := setupRouter(t)

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/api/models", nil), "alice")
	var body map[string][]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid models response: %v", err)
	}
	if len(body["models"]) != 1 || body["models"][0] != ai.ModelSSD {
		t.Errorf("Unexpected models %v", body)
	}
}

func TestRoutes_Logs(t *testing.T) {
	h := setupRouter(t)

	if rec := do(t, h, httptest.NewRequest(http.MethodGet, "/logs/info", nil), "alice"); rec.Code != http.StatusOK {
		t.Errorf("Expected info log, got %d", rec.Code)
	}
	if rec := do(t, h, httptest.NewRequest(http.MethodGet, "/logs/debug", nil), "alice"); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown level, got %d", rec.Code)
	}
	if rec := do(t, h, httptest.NewRequest(http.MethodGet, "/logs/error/clear", nil), "alice"); rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204 after clearing, got %d", rec.Code)
	}
}
