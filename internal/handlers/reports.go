package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"dpia-ai/internal/contextutil"
	"dpia-ai/internal/report"
	"dpia-ai/internal/service"
	"dpia-ai/internal/storage"
)

// ReportReader loads stored reports.
type ReportReader interface {
	GetByJob(ctx context.Context, jobID string) (*storage.ReportRecord, error)
}

// ReportsHandler serves stored reports as JSON or rendered HTML.
type ReportsHandler struct {
	reports  ReportReader
	markdown goldmark.Markdown
	page     *template.Template
}

// ReportResponse is a stored report.
//
// swagger:model ReportResponse
type ReportResponse struct {
	ID          string          `json:"id"`
	JobID       string          `json:"job_id"`
	OwnerID     string          `json:"owner_id"`
	ContainerID string          `json:"container_id"`
	Title       string          `json:"title"`
	CreatedAt   time.Time       `json:"created_at"`
	Report      json.RawMessage `json:"report"`
}

type reportPageData struct {
	Title   string
	Created string
	Content template.HTML
}

var reportPage = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Title}}</title>
  <style>
    body {
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif;
      margin: 0 auto;
      padding: 2rem;
      max-width: 900px;
      line-height: 1.6;
      color: #1f2937;
    }
    header {
      border-bottom: 1px solid #d1d5db;
      margin-bottom: 2rem;
    }
    h2 {
      color: #1e3a8a;
      margin-top: 2.5rem;
    }
    h3 {
      color: #374151;
    }
    table {
      border-collapse: collapse;
      width: 100%;
    }
    th, td {
      border: 1px solid #d1d5db;
      padding: 0.4rem 0.6rem;
      text-align: left;
    }
    .meta {
      color: #6b7280;
      font-size: 0.9rem;
    }
  </style>
</head>
<body>
  <header>
    <h1>{{.Title}}</h1>
    <p class="meta">Generated {{.Created}}</p>
  </header>
  <article>{{.Content}}</article>
</body>
</html>`))

// NewReportsHandler creates a new ReportsHandler.
func NewReportsHandler(reports ReportReader) *ReportsHandler {
	return &ReportsHandler{
		reports: reports,
		markdown: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				extension.Typographer,
			),
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
		),
		page: reportPage,
	}
}

// Get returns the report produced by a job. With format=html the report is
// rendered as a standalone page; section text is treated as Markdown.
//
// swagger:route GET /api/reports/{jobID} getReport
func (h *ReportsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	jobID := strings.TrimSpace(chi.URLParam(r, "jobID"))

	rec, err := h.reports.GetByJob(ctx, jobID)
	if errors.Is(err, storage.ErrNotFound) {
		err = service.Classify(service.ErrNotFound, fmt.Errorf("report for job %s: %w", jobID, err))
	}
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to load report")
		return
	}

	if r.URL.Query().Get("format") != "html" {
		writeJSON(ctx, w, http.StatusOK, ReportResponse{
			ID:          rec.ID,
			JobID:       rec.JobID,
			OwnerID:     rec.OwnerID,
			ContainerID: rec.ContainerID,
			Title:       rec.Title,
			CreatedAt:   rec.CreatedAt,
			Report:      json.RawMessage(rec.Body),
		})
		return
	}

	page, err := h.render(rec)
	if err != nil {
		logger.ErrorContext(ctx, "failed to render report", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to render report")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

func (h *ReportsHandler) render(rec *storage.ReportRecord) ([]byte, error) {
	var rep report.GeneratedReport
	if err := json.Unmarshal([]byte(rec.Body), &rep); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}

	var body bytes.Buffer
	if err := h.markdown.Convert([]byte(reportMarkdown(&rep)), &body); err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}

	title := rec.Title
	if title == "" {
		title = "DPIA report"
	}
	var out bytes.Buffer
	err := h.page.Execute(&out, reportPageData{
		Title:   title,
		Created: rec.CreatedAt.Format("2006-01-02 15:04 MST"),
		Content: template.HTML(body.String()),
	})
	if err != nil {
		return nil, fmt.Errorf("execute template: %w", err)
	}
	return out.Bytes(), nil
}

// reportMarkdown lays the report out as one heading per step and section,
// in template order. Skipped sections are left out.
func reportMarkdown(rep *report.GeneratedReport) string {
	var b strings.Builder
	for _, step := range rep.Steps {
		fmt.Fprintf(&b, "## %s\n\n", step.Key)
		for _, sec := range step.Sections {
			if strings.TrimSpace(sec.Text) == "" {
				continue
			}
			fmt.Fprintf(&b, "### %s\n\n%s\n\n", sec.Key, strings.TrimSpace(sec.Text))
		}
	}
	return b.String()
}
