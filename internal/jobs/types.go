package jobs

import (
	"encoding/json"
	"time"

	"dpia-ai/internal/storage"
)

// Kind is the type of work a job runs.
type Kind string

const (
	KindChatTurn  Kind = "chatTurn"
	KindReportRun Kind = "reportRun"
)

// State is the lifecycle state of a job. Terminal states never change.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

// ReportPayload is the payload of a reportRun job.
type ReportPayload struct {
	Scope storage.Scope `json:"scope"`
	Title string        `json:"title"`
	// Template is the report template, see report.LoadTemplate.
	Template json.RawMessage `json:"template"`
}

// ChatResult is the result of a chatTurn job.
type ChatResult struct {
	Answer string `json:"answer"`
}

// Snapshot is the observable state of a job.
type Snapshot struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	State     State           `json:"state"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func snapshotFromRecord(rec *storage.JobRecord) Snapshot {
	snap := Snapshot{
		ID:        rec.ID,
		Kind:      Kind(rec.Kind),
		State:     State(rec.State),
		Error:     rec.Error,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	if rec.Result != "" {
		snap.Result = json.RawMessage(rec.Result)
	}
	return snap
}
