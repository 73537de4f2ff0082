package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"facecam/internal/config"
	"facecam/internal/dto"
	"facecam/internal/logger"
	"facecam/internal/middleware"
	"facecam/internal/models"
	"facecam/internal/repository/sqlite"
	"facecam/internal/services/gallery"
	"facecam/internal/services/pipeline"
	"facecam/internal/services/recognition"
	hub "facecam/internal/services/websocket"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

type fakeController struct {
	mu        sync.Mutex
	capturing bool
	starts    int
	stops     int
}

func (f *fakeController) StartCapture(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.capturing = true
	f.starts++
}

func (f *fakeController) StopCapture(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.capturing = false
	f.stops++
}

func (f *fakeController) IsCapturing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.capturing
}

func (f *fakeController) Status() dto.CaptureStatus {
	return dto.CaptureStatus{Capturing: f.IsCapturing(), Device: "0", Engine: "fake"}
}

type fakeFrames struct {
	frame pipeline.Frame
	ok    bool
}

func (f fakeFrames) Latest() (pipeline.Frame, bool) { return f.frame, f.ok }

type fakeGallery struct {
	refs []recognition.Reference
	err  error
}

func (f fakeGallery) References() []recognition.Reference { return f.refs }
func (f fakeGallery) ReloadGallery(ctx context.Context) (gallery.Report, error) {
	return gallery.Report{Loaded: len(f.refs)}, f.err
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
}

// ========================================
// Capture Handler Tests
// ========================================

func TestCaptureHandlers_Toggle(t *testing.T) {
	ctrl := &fakeController{}
	log := logger.Discard()

	rec := httptest.NewRecorder()
	StartCaptureHandler(ctrl, log)(rec, httptest.NewRequest(http.MethodPost, "/api/capture/start", nil))

	var status dto.CaptureStatus
	decode(t, rec, &status)
	if !status.Capturing || ctrl.starts != 1 {
		t.Errorf("Expected capture to start, got %+v", status)
	}

	rec = httptest.NewRecorder()
	StopCaptureHandler(ctrl, log)(rec, httptest.NewRequest(http.MethodPost, "/api/capture/stop", nil))
	decode(t, rec, &status)
	if status.Capturing || ctrl.stops != 1 {
		t.Errorf("Expected capture to stop, got %+v", status)
	}

	rec = httptest.NewRecorder()
	CaptureStatusHandler(ctrl, log)(rec, httptest.NewRequest(http.MethodGet, "/api/capture/status", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Unexpected status response %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
}

// ========================================
// Frame Handler Tests
// ========================================

func TestLatestFrameHandler_NoFrame(t *testing.T) {
	rec := httptest.NewRecorder()
	LatestFrameHandler(fakeFrames{})(rec, httptest.NewRequest(http.MethodGet, "/api/frame.jpg", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}
}

func TestLatestFrameHandler_ServesJPEG(t *testing.T) {
	frames := fakeFrames{frame: pipeline.Frame{Seq: 42, JPEG: []byte{0xFF, 0xD8, 0xFF, 0xD9}}, ok: true}

	rec := httptest.NewRecorder()
	LatestFrameHandler(frames)(rec, httptest.NewRequest(http.MethodGet, "/api/frame.jpg", nil))

	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/jpeg" {
		t.Errorf("Unexpected response %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	if rec.Header().Get("X-Frame-Seq") != "42" {
		t.Errorf("Expected sequence header 42, got %s", rec.Header().Get("X-Frame-Seq"))
	}
	if rec.Body.Len() != 4 {
		t.Errorf("Expected 4 bytes, got %d", rec.Body.Len())
	}
}

// ========================================
// Faces Handler Tests
// ========================================

func TestListFacesHandler(t *testing.T) {
	g := fakeGallery{refs: []recognition.Reference{
		{Label: "Biden", Source: "Biden.jpg"},
		{Label: "Obama", Source: "Obama.jpg"},
	}}

	rec := httptest.NewRecorder()
	ListFacesHandler(g, logger.Discard())(rec, httptest.NewRequest(http.MethodGet, "/api/faces", nil))

	var body facesResponse
	decode(t, rec, &body)
	if body.Count != 2 || body.References[1].Label != "Obama" {
		t.Errorf("Unexpected body %+v", body)
	}
}

func TestReloadFacesHandler_Error(t *testing.T) {
	g := fakeGallery{err: errors.New("disk gone")}

	rec := httptest.NewRecorder()
	ReloadFacesHandler(g, logger.Discard())(rec, httptest.NewRequest(http.MethodPost, "/api/faces/reload", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", rec.Code)
	}
}

// ========================================
// Sightings Handler Tests
// ========================================

func TestGetSightingsHandler(t *testing.T) {
	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	sightings := sqlite.NewSightingRepository(db)
	faces := sqlite.NewFaceRepository(db)
	base := time.Date(2025, 6, 15, 10, 0, 0, 0, time.Local)
	for i, label := range []string{"Obama", "Biden", "Obama"} {
		id, _ := sightings.Insert(&models.Sighting{
			Filename:  label + string(rune('a'+i)) + ".jpg",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			FileSize:  10,
		})
		faces.InsertBatch([]models.Face{{SightingID: id, Label: label, Known: true}})
	}

	rec := httptest.NewRecorder()
	GetSightingsHandler(sightings, logger.Discard())(rec, httptest.NewRequest(http.MethodGet, "/api/sightings?label=Obama&limit=1", nil))

	var data dto.SightingsData
	decode(t, rec, &data)
	if data.Length != 2 || data.TotalPages != 2 || len(data.Sightings) != 1 {
		t.Errorf("Unexpected page %+v", data)
	}
}

func TestGetSightingsHandler_NoDatabase(t *testing.T) {
	rec := httptest.NewRecorder()
	GetSightingsHandler(nil, logger.Discard())(rec, httptest.NewRequest(http.MethodGet, "/api/sightings", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", rec.Code)
	}
}

func TestViewSightingHandler_RejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.jpg"), []byte{0xFF, 0xD8}, 0644)
	h := ViewSightingHandler(dir)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/sightings/view?filename=../secret.jpg", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/sightings/view?filename=a.jpg", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

// ========================================
// Log Handler Tests
// ========================================

func TestLogHandlers(t *testing.T) {
	dir := t.TempDir()
	log, err := logger.New(dir, false)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer log.Close()
	log.Warning("camera unplugged")

	r := chi.NewRouter()
	r.Get("/logs/{level}", ShowLogsHandler(dir))
	r.Post("/logs/{level}/clear", ClearLogsHandler(log))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logs/warning", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "camera unplugged") {
		t.Errorf("Expected the warning log, got %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logs/secrets", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for an unknown level, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/logs/warning/clear", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}
	data, _ := os.ReadFile(filepath.Join(dir, logger.WarningFile))
	if len(data) != 0 {
		t.Errorf("Expected an empty log, got %q", data)
	}
}

// ========================================
// Auth Handler Tests
// ========================================

func TestLoginHandler(t *testing.T) {
	cfg := &config.Config{Password: "secret"}
	h := LoginHandler(cfg, logger.Discard())

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("password=wrong"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("password=secret"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	h(rec, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("Expected redirect, got %d", rec.Code)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value != middleware.SessionToken("secret") {
		t.Errorf("Expected a session cookie, got %+v", cookies)
	}
}

func TestLogoutHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	LogoutHandler(rec, httptest.NewRequest(http.MethodGet, "/auth/logout", nil))

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Errorf("Expected the cookie to be deleted, got %+v", cookies)
	}
	if rec.Header().Get("Location") != "/login" {
		t.Errorf("Expected redirect to /login, got %s", rec.Header().Get("Location"))
	}
}

// ========================================
// Websocket Handler Tests
// ========================================

func TestViewWebsocketHandler_ControlMessages(t *testing.T) {
	ctrl := &fakeController{}
	hubService := hub.NewHubService(logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hubService.Run(ctx)

	srv := httptest.NewServer(ViewWebsocketHandler(ctrl, hubService, logger.Discard()))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	conn.WriteJSON(dto.ControlMessage{Action: dto.ActionStart})
	waitFor(t, func() bool { return ctrl.IsCapturing() })

	conn.WriteMessage(websocket.TextMessage, []byte("not json"))
	conn.WriteJSON(dto.ControlMessage{Action: "explode"})
	conn.WriteJSON(dto.ControlMessage{Action: dto.ActionStop})
	waitFor(t, func() bool { return !ctrl.IsCapturing() })

	hubService.BroadcastFrame([]byte(`{"type":"frame"}`))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil || string(msg) != `{"type":"frame"}` {
		t.Errorf("Expected the broadcast frame, got %q, %v", msg, err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("Condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// ========================================
// Helper Function Tests
// ========================================

func TestAtoiDefault(t *testing.T) {
	tests := []struct {
		input    string
		def      int
		expected int
	}{
		{"10", 5, 10},
		{"1", 0, 1},
		{"", 24, 24},
		{"abc", 3, 3},
		{"0", 7, 7},
		{"-4", 7, 7},
	}

	for _, tt := range tests {
		if got := atoiDefault(tt.input, tt.def); got != tt.expected {
			t.Errorf("atoiDefault(%q, %d) = %d, expected %d", tt.input, tt.def, got, tt.expected)
		}
	}
}

func TestGetSightingsHandler_Offset(t *testing.T) {
	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	sightings := sqlite.NewSightingRepository(db)
	base := time.Date(2025, 6, 15, 10, 0, 0, 0, time.Local)
	for i := 0; i < 5; i++ {
		sightings.Insert(&models.Sighting{
			Filename:  string(rune('a'+i)) + ".jpg",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
	}

	rec := httptest.NewRecorder()
	GetSightingsHandler(sightings, logger.Discard())(rec, httptest.NewRequest(http.MethodGet, "/api/sightings?limit=2&offset=2", nil))

	var data dto.SightingsData
	decode(t, rec, &data)
	if data.CurrentPage != 2 || len(data.Sightings) != 2 {
		t.Fatalf("Unexpected page %+v", data)
	}
	// newest first: e, d | c, b | a
	if data.Sightings[0].Name != "c.jpg" {
		t.Errorf("Expected c.jpg first on page 2, got %s", data.Sightings[0].Name)
	}
}
