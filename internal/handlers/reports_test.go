package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"dpia-ai/internal/storage"
)

type stubReports map[string]*storage.ReportRecord

func (s stubReports) GetByJob(_ context.Context, jobID string) (*storage.ReportRecord, error) {
	if rec, ok := s[jobID]; ok {
		return rec, nil
	}
	return nil, storage.ErrNotFound
}

const storedBody = `{"Description":{"Nature":"We store **emails**.","Empty":""},"Risks":{"Assessment":"| Risk | Severity |\n|---|---|\n| Leak | High |"}}`

func reportsRouter(h *ReportsHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/reports/{jobID}", h.Get)
	return r
}

func newStubReports() stubReports {
	return stubReports{
		"job-1": {
			ID:          "rep-1",
			JobID:       "job-1",
			OwnerID:     "1",
			ContainerID: "7",
			Title:       "Loyalty <DPIA>",
			Body:        storedBody,
			CreatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	}
}

func TestReportsHandler_GetJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/reports/job-1", nil)
	w := httptest.NewRecorder()
	reportsRouter(NewReportsHandler(newStubReports())).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Get() status = %v, want %v", w.Code, http.StatusOK)
	}
	var resp ReportResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.JobID != "job-1" || resp.Title != "Loyalty <DPIA>" {
		t.Errorf("Get() response = %+v", resp)
	}
	var got, want any
	_ = json.Unmarshal(resp.Report, &got)
	_ = json.Unmarshal([]byte(storedBody), &want)
	gotJSON, _ := json.Marshal(got)
	wantJSON, _ := json.Marshal(want)
	if string(gotJSON) != string(wantJSON) {
		t.Errorf("Get() report = %s, want %s", resp.Report, storedBody)
	}
}

func TestReportsHandler_GetHTML(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/reports/job-1?format=html", nil)
	w := httptest.NewRecorder()
	reportsRouter(NewReportsHandler(newStubReports())).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Get() status = %v, want %v", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := w.Body.String()
	for _, want := range []string{
		"<title>Loyalty &lt;DPIA&gt;</title>",
		"<strong>emails</strong>",
		"<table>",
		`id="description"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("rendered page missing %q", want)
		}
	}
	if strings.Index(body, "Description") > strings.Index(body, "Risks") {
		t.Error("steps rendered out of order")
	}
	if strings.Contains(body, ">Empty<") {
		t.Error("skipped section rendered")
	}
}

func TestReportsHandler_NotFound(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/reports/missing", nil)
	w := httptest.NewRecorder()
	reportsRouter(NewReportsHandler(newStubReports())).ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Get() status = %v, want %v", w.Code, http.StatusNotFound)
	}
}

type failingReports struct{}

func (failingReports) GetByJob(context.Context, string) (*storage.ReportRecord, error) {
	return nil, errors.New("database is locked")
}

func TestReportsHandler_StoreFailure(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/reports/job-1", nil)
	w := httptest.NewRecorder()
	reportsRouter(NewReportsHandler(failingReports{})).ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Get() status = %v, want %v", w.Code, http.StatusInternalServerError)
	}
	if strings.Contains(w.Body.String(), "locked") {
		t.Error("internal error detail leaked to client")
	}
}
