package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"escpos-service/internal/config"
	"escpos-service/internal/handler"
	"escpos-service/internal/middleware"
	"escpos-service/internal/repository"
	"escpos-service/internal/service"
)

func setupRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := zaptest.NewLogger(t)
	cfg := &config.Config{
		Decoder:  config.DecoderConfig{CodePage: "cp437", BarcodeNULMaxMode: 6},
		Jobs:     config.JobsConfig{MaxJobs: 10},
		Security: config.SecurityConfig{AllowedOrigins: []string{"http://renderer.local"}, MaxImportBytes: 4096},
		App:      config.AppConfig{Name: "escpos-service", Version: "test", Environment: "test"},
	}

	svc := service.NewJobService(repository.NewMemoryJobRepository(logger), cfg, nil, logger)
	ws := handler.NewWebSocketHandler(svc, handler.NewEventBus(logger), cfg.Security.AllowedOrigins, logger)
	return NewRouter(cfg, logger, nil, nil, svc, ws).SetupRouter()
}

func TestRouter_HealthAndRequestID(t *testing.T) {
	router := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get(middleware.RequestIDHeader); got != "req-42" {
		t.Errorf("request id = %q, want echo", got)
	}

	var health handler.HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := health.Checks["storage"]; !ok {
		t.Errorf("checks = %v, want storage", health.Checks)
	}
	if _, ok := health.Checks["websocket"]; !ok {
		t.Errorf("checks = %v, want websocket", health.Checks)
	}
}

func TestRouter_JobsAPI(t *testing.T) {
	router := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs?label=x", strings.NewReader("\x1b@\x82\n"))
	req.Header.Set("Content-Type", "application/octet-stream")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("import status = %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data struct {
			ID       string `json:"id"`
			CodePage string `json:"code_page"`
		} `json:"data"`
		RequestID string `json:"request_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.CodePage != "cp437" {
		t.Errorf("code_page = %q", resp.Data.CodePage)
	}
	if resp.RequestID == "" {
		t.Error("expected generated request id in body")
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+resp.Data.ID+"/listing?format=text", nil))
	if !strings.Contains(w.Body.String(), "TXT  é") {
		t.Errorf("listing = %q", w.Body.String())
	}
}

func TestRouter_CORSAndDocs(t *testing.T) {
	router := setupRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/jobs", nil)
	req.Header.Set("Origin", "http://renderer.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://renderer.local" {
		t.Errorf("allow origin = %q", got)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/docs", nil))
	if w.Code != http.StatusMovedPermanently || w.Header().Get("Location") != "/swagger/index.html" {
		t.Errorf("docs redirect = %d %q", w.Code, w.Header().Get("Location"))
	}
}
