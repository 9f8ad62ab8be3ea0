package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a record is not found.
var ErrNotFound = errors.New("record not found")

// Chat-session scope values. A chat session is not tied to a project.
const (
	ChatContainerID = "0"
	UsageChat       = "chat"
	UsageReport     = "report"
)

// Scope is the isolation boundary for ingested content and retrieval.
type Scope struct {
	OwnerID     string `json:"owner_id"`
	ContainerID string `json:"container_id"`
	Usage       string `json:"usage"`
}

// ChatScope returns the chat-session scope of an owner.
func ChatScope(ownerID string) Scope {
	return Scope{OwnerID: ownerID, ContainerID: ChatContainerID, Usage: UsageChat}
}

// Validate reports whether every part of the scope is set.
func (s Scope) Validate() error {
	if s.OwnerID == "" || s.ContainerID == "" || s.Usage == "" {
		return errors.New("scope requires owner_id, container_id and usage")
	}
	return nil
}

// Filters returns the scope as exact-match metadata filters.
func (s Scope) Filters() map[string]any {
	return map[string]any{
		"owner_id":     s.OwnerID,
		"container_id": s.ContainerID,
		"usage":        s.Usage,
	}
}

// BlockType is the kind of extracted content a block holds.
type BlockType string

const (
	BlockText  BlockType = "text"
	BlockTable BlockType = "table"
	BlockImage BlockType = "image"
)

// Block is one atomic unit of extracted document content.
type Block struct {
	ID           string
	Type         BlockType
	Content      string
	Scope        Scope
	DocumentName string
	Position     int // order within the document
	CreatedAt    time.Time
}

// JobRecord is the persisted form of a generation job.
type JobRecord struct {
	ID        string
	Kind      string
	State     string
	Payload   string // JSON
	Result    string // JSON, set when succeeded
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ReportRecord is a completed report.
type ReportRecord struct {
	ID          string
	JobID       string
	OwnerID     string
	ContainerID string
	Title       string
	Body        string // JSON
	CreatedAt   time.Time
}
