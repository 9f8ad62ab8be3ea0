package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthHandler_ServeHTTP(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		checks     map[string]Check
		wantStatus int
		wantState  string
		wantIssues []string
	}{
		{
			name:       "all healthy",
			checks:     map[string]Check{"database": ok, "vector_store": ok},
			wantStatus: http.StatusOK,
			wantState:  "healthy",
		},
		{
			name:       "vector store down",
			checks:     map[string]Check{"database": ok, "vector_store": down},
			wantStatus: http.StatusServiceUnavailable,
			wantState:  "unhealthy",
			wantIssues: []string{"vector_store_unavailable"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
			w := httptest.NewRecorder()
			NewHealthHandler(tt.checks).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("ServeHTTP() status = %v, want %v", w.Code, tt.wantStatus)
			}
			var resp HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp.Status != tt.wantState {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantState)
			}
			if len(resp.Issues) != len(tt.wantIssues) || (len(tt.wantIssues) > 0 && resp.Issues[0] != tt.wantIssues[0]) {
				t.Errorf("issues = %v, want %v", resp.Issues, tt.wantIssues)
			}
			if len(resp.Checks) != len(tt.checks) {
				t.Errorf("checks = %v", resp.Checks)
			}
		})
	}
}
