package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/missedcall-flow/internal/catalog"
	"github.com/wolfman30/missedcall-flow/internal/messaging"
)

// ErrNoActiveSession is returned by Advance when the caller has no open session.
var ErrNoActiveSession = errors.New("sessions: no active session")

// Session is the in-flight conversation for one caller.
type Session struct {
	ID          string              `json:"id"`
	CallerID    string              `json:"caller_id"`
	Category    catalog.CategoryKey `json:"category"`
	BusinessRef string              `json:"business_ref"`
	Stage       catalog.Stage       `json:"stage"`
	Selection   string              `json:"selection,omitempty"`
	OpenedAt    time.Time           `json:"opened_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// Store keeps at most one session per caller. Implementations must make every
// method atomic per caller and visible to all subsequent calls.
type Store interface {
	// Open replaces any session for callerID with a fresh one at the intro stage.
	Open(ctx context.Context, callerID, businessRef string, category catalog.CategoryKey) (*Session, error)
	// Get returns nil, nil when no session exists.
	Get(ctx context.Context, callerID string) (*Session, error)
	// Advance moves the session forward to next, recording the reply selection.
	// It never lowers the stage; a repeat returns the session unchanged.
	Advance(ctx context.Context, callerID string, next catalog.Stage, selection string) (*Session, error)
	// Close deletes the session. Closing an absent session is not an error.
	Close(ctx context.Context, callerID string) error
	// CloseSession deletes the caller's session only while its id is still
	// sessionID, so a completion never removes a session re-opened by a newer
	// missed call.
	CloseSession(ctx context.Context, callerID, sessionID string) error
}

func callerKey(callerID string) (string, error) {
	key := messaging.NormalizeE164(callerID)
	if key == "" {
		return "", fmt.Errorf("sessions: invalid caller id %q", callerID)
	}
	return key, nil
}

func validateOpen(category catalog.CategoryKey) error {
	if category == "" {
		return errors.New("sessions: category required")
	}
	return nil
}

func validateStage(next catalog.Stage) error {
	if !next.Valid() {
		return fmt.Errorf("sessions: invalid stage %q", next)
	}
	return nil
}

// advanced applies a monotone advance to a copy of s and reports whether it changed.
func advanced(s Session, next catalog.Stage, selection string, now time.Time) (Session, bool) {
	if next.Rank() <= s.Stage.Rank() {
		return s, false
	}
	s.Stage = next
	s.Selection = selection
	s.UpdatedAt = now
	return s, true
}
