package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"escpos-service/internal/config"
	"escpos-service/internal/model"
	"escpos-service/internal/repository"
	"escpos-service/internal/service"
)

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Page    *struct {
		Total int `json:"total"`
	} `json:"page"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func testConfig() *config.Config {
	return &config.Config{
		Decoder: config.DecoderConfig{CodePage: "utf8", BarcodeNULMaxMode: 6},
		Jobs:    config.JobsConfig{MaxJobs: 25, IgnoreNoise: true, NoiseMaxBytes: 32},
		Security: config.SecurityConfig{
			AllowedOrigins: []string{"*"},
			MaxImportBytes: 1024,
		},
		App: config.AppConfig{Name: "escpos-service", Version: "test", Environment: "test"},
	}
}

func setupJobRouter(t *testing.T) (*gin.Engine, *service.JobService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zaptest.NewLogger(t)
	cfg := testConfig()
	svc := service.NewJobService(repository.NewMemoryJobRepository(logger), cfg, nil, logger)

	router := gin.New()
	NewJobHandler(svc, cfg.Security.MaxImportBytes, logger).RegisterRoutes(router.Group("/api/v1"))
	NewHealthHandler(nil, nil, svc, nil, cfg, logger).RegisterRoutes(router)
	return router, svc
}

func perform(t *testing.T, router http.Handler, method, path string, body []byte, contentType string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp apiResponse
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v (%s)", err, w.Body.String())
		}
	}
	return w, resp
}

func importJob(t *testing.T, router http.Handler, payload string) model.PrintJob {
	t.Helper()
	w, resp := perform(t, router, http.MethodPost, "/api/v1/jobs?label=test.bin", []byte(payload), "application/octet-stream")
	if w.Code != http.StatusCreated {
		t.Fatalf("import status = %d: %s", w.Code, w.Body.String())
	}
	var job model.PrintJob
	if err := json.Unmarshal(resp.Data, &job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	return job
}

func TestJobHandler_ImportAndGet(t *testing.T) {
	router, _ := setupJobRouter(t)

	job := importJob(t, router, "\x1b@Hello\n")
	if job.Label != "test.bin" || job.SourceType != model.SourceTypeImport || job.SizeBytes != 8 {
		t.Errorf("job = %+v", job)
	}

	w, resp := perform(t, router, http.MethodGet, "/api/v1/jobs/"+job.ID.String(), nil, "")
	if w.Code != http.StatusOK || !resp.Success {
		t.Fatalf("get status = %d", w.Code)
	}

	w, resp = perform(t, router, http.MethodGet, "/api/v1/jobs", nil, "")
	if w.Code != http.StatusOK || resp.Page == nil || resp.Page.Total != 1 {
		t.Errorf("list status = %d page = %+v", w.Code, resp.Page)
	}
}

func TestJobHandler_ImportMultipart(t *testing.T) {
	router, _ := setupJobRouter(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "receipt.prn")
	part.Write([]byte("Total 4.50\n"))
	mw.Close()

	w, resp := perform(t, router, http.MethodPost, "/api/v1/jobs", body.Bytes(), mw.FormDataContentType())
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var job model.PrintJob
	json.Unmarshal(resp.Data, &job)
	if job.Label != "receipt.prn" {
		t.Errorf("label = %q, want file name", job.Label)
	}
}

func TestJobHandler_ImportErrors(t *testing.T) {
	router, _ := setupJobRouter(t)

	w, resp := perform(t, router, http.MethodPost, "/api/v1/jobs", nil, "application/octet-stream")
	if w.Code != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != "BAD_REQUEST" {
		t.Errorf("empty import status = %d, error = %+v", w.Code, resp.Error)
	}

	w, _ = perform(t, router, http.MethodPost, "/api/v1/jobs", bytes.Repeat([]byte("A"), 2048), "application/octet-stream")
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized import status = %d, want 413", w.Code)
	}
}

func TestJobHandler_NotFoundAndBadID(t *testing.T) {
	router, _ := setupJobRouter(t)

	w, resp := perform(t, router, http.MethodGet, "/api/v1/jobs/"+uuid.New().String(), nil, "")
	if w.Code != http.StatusNotFound || resp.Error.Code != "NOT_FOUND" {
		t.Errorf("missing job status = %d", w.Code)
	}

	w, _ = perform(t, router, http.MethodGet, "/api/v1/jobs/not-a-uuid/commands", nil, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d", w.Code)
	}

	w, _ = perform(t, router, http.MethodDelete, "/api/v1/jobs/"+uuid.New().String(), nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("delete missing status = %d", w.Code)
	}
}

func TestJobHandler_CommandsListingHexRaw(t *testing.T) {
	router, _ := setupJobRouter(t)
	job := importJob(t, router, "ab\x1bE\x01cd\n")
	base := "/api/v1/jobs/" + job.ID.String()

	w, resp := perform(t, router, http.MethodGet, base+"/commands", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("commands status = %d", w.Code)
	}
	var views []model.CommandView
	if err := json.Unmarshal(resp.Data, &views); err != nil {
		t.Fatalf("decode commands: %v", err)
	}
	if len(views) != 4 || views[1].Type != "bold_set" || !views[2].State.Bold {
		t.Errorf("views = %+v", views)
	}

	w, _ = perform(t, router, http.MethodGet, base+"/listing?format=text", nil, "")
	want := "0000: TXT  ab\n0001: CTL  ESC E (BOLD=true)\n0002: TXT  cd\n0003: CTL  LF\n"
	if w.Body.String() != want {
		t.Errorf("listing = %q, want %q", w.Body.String(), want)
	}

	w, _ = perform(t, router, http.MethodGet, base+"/hex", nil, "")
	if w.Body.String() != "0000: 61 62 1b 45 01 63 64 0a \n" {
		t.Errorf("hex = %q", w.Body.String())
	}

	w, _ = perform(t, router, http.MethodGet, base+"/raw", nil, "")
	if w.Body.String() != "ab\x1bE\x01cd\n" || w.Header().Get("Content-Type") != "application/octet-stream" {
		t.Errorf("raw = %q (%s)", w.Body.String(), w.Header().Get("Content-Type"))
	}
}

func TestJobHandler_Barcode(t *testing.T) {
	router, _ := setupJobRouter(t)
	job := importJob(t, router, "\x1dk\x49\x07{BHello"+"Z")
	base := "/api/v1/jobs/" + job.ID.String() + "/commands/"

	w, resp := perform(t, router, http.MethodGet, base+"0/barcode", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("barcode status = %d: %s", w.Code, w.Body.String())
	}
	var view model.BarcodeView
	if err := json.Unmarshal(resp.Data, &view); err != nil {
		t.Fatalf("decode barcode: %v", err)
	}
	if view.Symbology != "code128" || view.Text != "Hello" || view.Modules != 90 {
		t.Errorf("view = %+v", view)
	}

	tests := []struct {
		path string
		code int
	}{
		{"1/barcode", http.StatusBadRequest},
		{"7/barcode", http.StatusNotFound},
		{"x/barcode", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if w, _ := perform(t, router, http.MethodGet, base+tt.path, nil, ""); w.Code != tt.code {
			t.Errorf("%s status = %d, want %d", tt.path, w.Code, tt.code)
		}
	}
}

func TestJobHandler_Reparse(t *testing.T) {
	router, svc := setupJobRouter(t)
	job := importJob(t, router, "\x82\n")

	w, _ := perform(t, router, http.MethodPost, "/api/v1/jobs/reparse", nil, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing code page status = %d", w.Code)
	}
	w, _ = perform(t, router, http.MethodPost, "/api/v1/jobs/reparse?codepage=ebcdic", nil, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown code page status = %d", w.Code)
	}

	w, _ = perform(t, router, http.MethodPost, "/api/v1/jobs/reparse?codepage=cp850", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("reparse status = %d", w.Code)
	}
	if svc.CodePage().String() != "cp850" {
		t.Errorf("code page = %s", svc.CodePage())
	}

	w, resp := perform(t, router, http.MethodPost, "/api/v1/jobs/"+job.ID.String()+"/reparse?codepage=cp437", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("job reparse status = %d", w.Code)
	}
	var updated model.PrintJob
	json.Unmarshal(resp.Data, &updated)
	if updated.CodePage != "cp437" {
		t.Errorf("code page = %q", updated.CodePage)
	}
}

func TestJobHandler_DeleteAndClear(t *testing.T) {
	router, _ := setupJobRouter(t)
	a := importJob(t, router, "a")
	importJob(t, router, "b")

	if w, _ := perform(t, router, http.MethodDelete, "/api/v1/jobs/"+a.ID.String(), nil, ""); w.Code != http.StatusOK {
		t.Errorf("delete status = %d", w.Code)
	}
	w, resp := perform(t, router, http.MethodDelete, "/api/v1/jobs", nil, "")
	if w.Code != http.StatusOK || !strings.Contains(string(resp.Data), `"deleted":1`) {
		t.Errorf("clear = %d %s", w.Code, resp.Data)
	}
}

func TestJobHandler_ListFilters(t *testing.T) {
	router, _ := setupJobRouter(t)
	importJob(t, router, "a")

	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	_, resp := perform(t, router, http.MethodGet, "/api/v1/jobs?since="+future, nil, "")
	if resp.Page == nil || resp.Page.Total != 0 {
		t.Errorf("since filter page = %+v", resp.Page)
	}
	_, resp = perform(t, router, http.MethodGet, "/api/v1/jobs?source_type=tcp", nil, "")
	if resp.Page == nil || resp.Page.Total != 0 {
		t.Errorf("source filter page = %+v", resp.Page)
	}

	for _, query := range []string{"since=yesterday", "limit=-1", "offset=x"} {
		if w, _ := perform(t, router, http.MethodGet, "/api/v1/jobs?"+query, nil, ""); w.Code != http.StatusBadRequest {
			t.Errorf("%s status = %d, want 400", query, w.Code)
		}
	}
}

func TestHealthHandler_MemoryStorage(t *testing.T) {
	router, _ := setupJobRouter(t)

	w, _ := perform(t, router, http.MethodGet, "/health", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d", w.Code)
	}
	var health HealthResponse
	json.Unmarshal(w.Body.Bytes(), &health)
	if health.Status != "healthy" || health.Checks["storage"].Status != "healthy" {
		t.Errorf("health = %+v", health)
	}

	if w, _ := perform(t, router, http.MethodGet, "/health/db", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("db health status = %d, want 404", w.Code)
	}
	if w, _ := perform(t, router, http.MethodGet, "/ready", nil, ""); w.Code != http.StatusOK {
		t.Errorf("ready status = %d", w.Code)
	}
	if w, _ := perform(t, router, http.MethodGet, "/live", nil, ""); w.Code != http.StatusOK {
		t.Errorf("live status = %d", w.Code)
	}
}
