package requests

import (
	"strings"
	"time"

	"github.com/wolfman30/missedcall-flow/internal/catalog"
)

// Record statuses. New records are untouched by the business; pending ones
// are acknowledged but not yet resolved.
const (
	StatusNew     = "new"
	StatusPending = "pending"
)

// Record is the customer request captured at the end of a conversation.
type Record struct {
	ID          string              `json:"id"`
	SessionID   string              `json:"session_id"`
	CallerID    string              `json:"caller_id"`
	BusinessRef string              `json:"business_ref"`
	Category    catalog.CategoryKey `json:"category"`
	Payload     string              `json:"payload"`
	Priority    string              `json:"priority,omitempty"`
	Status      string              `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
}

// CreateRecordRequest carries the fields needed to persist a Record.
type CreateRecordRequest struct {
	SessionID   string
	CallerID    string
	BusinessRef string
	Category    catalog.CategoryKey
	Payload     string
	Priority    string
}

// Validate validates the create record request
func (r *CreateRecordRequest) Validate() error {
	if strings.TrimSpace(r.SessionID) == "" {
		return ErrMissingSession
	}
	if strings.TrimSpace(r.CallerID) == "" {
		return ErrMissingCaller
	}
	return nil
}

// ListFilter bounds a listing.
type ListFilter struct {
	Limit  int
	Offset int
	Status string
}

func (f ListFilter) normalized() ListFilter {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
