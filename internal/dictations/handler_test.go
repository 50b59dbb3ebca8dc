package dictations

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"scribe-backend/internal/shared/storage/object/local"
)

func setupHandler(t *testing.T, llmResp string, adminPassword string) (*gin.Engine, *Service, *MemoryRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := NewMemoryRepo()
	svc := &Service{
		Repo:  repo,
		Store: local.New(t.TempDir()),
		LLM:   staticLLM{resp: llmResp},
		Queue: &captureQueue{},
	}
	h := NewHandler(svc, adminPassword)

	r := gin.New()
	h.RegisterRoutes(r.Group("/api/v1"))
	return r, svc, repo
}

func multipartBody(t *testing.T, fields map[string]string, fileField, fileName, contentType, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	hdr := make(map[string][]string)
	hdr["Content-Disposition"] = []string{`form-data; name="` + fileField + `"; filename="` + fileName + `"`}
	hdr["Content-Type"] = []string{contentType}
	part, err := w.CreatePart(hdr)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return body
}

func TestSubmitDictationAccepted(t *testing.T) {
	r, _, repo := setupHandler(t, "summary", "")

	body, contentType := multipartBody(t,
		map[string]string{"scope": "room-1", "displayName": "ward round"},
		"files", "take.webm", "audio/webm", "audio-bytes")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/dictations", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body=%s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	id, _ := resp["id"].(string)
	if id == "" {
		t.Fatalf("missing id in response: %v", resp)
	}
	if resp["status"] != StatusUploaded {
		t.Fatalf("status = %v, want %q", resp["status"], StatusUploaded)
	}
	if _, err := repo.GetByID(context.Background(), "room-1", id); err != nil {
		t.Fatalf("record not created: %v", err)
	}
}

func TestSubmitDictationAcceptsNameField(t *testing.T) {
	r, _, repo := setupHandler(t, "summary", "")

	body, contentType := multipartBody(t,
		map[string]string{"scope": "room-1", "name": "ward round"},
		"files", "take.webm", "audio/webm", "audio-bytes")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/dictations", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body=%s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	id, _ := resp["id"].(string)
	got, err := repo.GetByID(context.Background(), "room-1", id)
	if err != nil {
		t.Fatalf("record not created: %v", err)
	}
	if got.DisplayName != "ward round" {
		t.Fatalf("displayName = %q, want %q", got.DisplayName, "ward round")
	}
}

func TestSubmitDictationRejectsShortPassword(t *testing.T) {
	r, _, _ := setupHandler(t, "summary", "")

	body, contentType := multipartBody(t,
		map[string]string{"scope": "room-1", "password": "abc"},
		"files", "take.webm", "audio/webm", "audio-bytes")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/dictations", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestGetDictationStatusAndResult(t *testing.T) {
	r, svc, _ := setupHandler(t, "done summary\n--TRANSCRIPTION--\ntext", "")

	d := submitAudio(t, svc, "room-1", "")
	svc.Process(context.Background(), "room-1", d.ID)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dictations/"+d.ID+"?scope=room-1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	if resp["status"] != StatusCompleted {
		t.Fatalf("status = %v", resp["status"])
	}
	if resp["summary"] != "done summary" {
		t.Fatalf("summary = %v", resp["summary"])
	}
	if resp["transcript"] != "text" {
		t.Fatalf("transcript = %v", resp["transcript"])
	}
}

func TestGetDictationNotFound(t *testing.T) {
	r, _, _ := setupHandler(t, "summary", "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dictations/unknown?scope=room-1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestGetDictationWrongPassword(t *testing.T) {
	r, svc, _ := setupHandler(t, "summary", "")

	d := submitAudio(t, svc, "room-1", "s3cret")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dictations/"+d.ID+"?scope=room-1&password=wrong", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestGetDictationPollLimited(t *testing.T) {
	r, svc, _ := setupHandler(t, "summary", "")

	d := submitAudio(t, svc, "room-1", "")

	url := "/api/v1/dictations/" + d.ID + "?scope=room-1"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, url, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("first poll status = %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, url, nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second poll status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After header")
	}
}

func TestSaveCorrectionEndpoint(t *testing.T) {
	r, svc, repo := setupHandler(t, "summary", "")

	d := submitAudio(t, svc, "room-1", "s3cret")

	payload := `{"scope":"room-1","correctedSummary":"fixed"}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/dictations/"+d.ID+"/correction", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}
	got, _ := repo.GetByID(context.Background(), "room-1", d.ID)
	if got.CorrectedSummary != "fixed" {
		t.Fatalf("correctedSummary = %q", got.CorrectedSummary)
	}
}

func TestListDictationsEndpoint(t *testing.T) {
	r, svc, _ := setupHandler(t, "summary", "")

	submitAudio(t, svc, "room-1", "")
	submitAudio(t, svc, "room-1", "s3cret")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dictations?scope=room-1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	resp := decodeBody(t, w)
	items, ok := resp["items"].([]any)
	if !ok || len(items) != 2 {
		t.Fatalf("items = %v", resp["items"])
	}
}

func TestDeleteDictationEndpoint(t *testing.T) {
	r, svc, repo := setupHandler(t, "summary", "")

	d := submitAudio(t, svc, "room-1", "s3cret")

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/dictations/"+d.ID+"?scope=room-1&password=s3cret", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204, body=%s", w.Code, w.Body.String())
	}
	if _, err := repo.GetByID(context.Background(), "room-1", d.ID); err == nil {
		t.Fatalf("record still present after delete")
	}
}

func TestAdminCleanupEndpoint(t *testing.T) {
	r, svc, repo := setupHandler(t, "summary", "admin-pass")
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	stale := submitAudio(t, svc, "room-1", "")
	rec, _ := repo.GetByID(context.Background(), "room-1", stale.ID)
	rec.CreatedAt = base.Add(-48 * time.Hour)
	if err := repo.Overwrite(context.Background(), rec); err != nil {
		t.Fatalf("age record: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/cleanup", strings.NewReader(`{"password":"wrong"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/admin/cleanup", strings.NewReader(`{"password":"admin-pass"}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	if resp["removed"] != float64(1) {
		t.Fatalf("removed = %v, want 1", resp["removed"])
	}
}
