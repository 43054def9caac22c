package conversation

import (
	"fmt"
	"strings"

	"github.com/wolfman30/missedcall-flow/internal/catalog"
)

// IntroTextPolicy decides what a plain-text reply does at the intro stage,
// where the caller was offered quick-reply buttons.
type IntroTextPolicy string

const (
	// IntroTextAdvance treats the text as the caller's selection and advances.
	IntroTextAdvance IntroTextPolicy = "advance"
	// IntroTextIgnore waits for a button press.
	IntroTextIgnore IntroTextPolicy = "ignore"
)

// ParseIntroTextPolicy accepts "advance" or "ignore"; empty means advance.
func ParseIntroTextPolicy(v string) (IntroTextPolicy, error) {
	switch p := IntroTextPolicy(strings.ToLower(strings.TrimSpace(v))); p {
	case "":
		return IntroTextAdvance, nil
	case IntroTextAdvance, IntroTextIgnore:
		return p, nil
	default:
		return "", fmt.Errorf("conversation: unknown intro text policy %q", v)
	}
}

// Config holds per-instance behavior switches.
type Config struct {
	IntroTextPolicy IntroTextPolicy
	// BatchConcurrency bounds how many callers of one webhook batch are
	// processed at once. Zero means 8.
	BatchConcurrency int
}

func (c Config) withDefaults() (Config, error) {
	policy, err := ParseIntroTextPolicy(string(c.IntroTextPolicy))
	if err != nil {
		return c, err
	}
	c.IntroTextPolicy = policy
	if c.BatchConcurrency <= 0 {
		c.BatchConcurrency = 8
	}
	return c, nil
}

// MissedCall is the trigger raised when a business misses a call.
type MissedCall struct {
	CallerID      string
	BusinessRef   string
	CategoryLabel string
}

// InboundReply is one caller message. QuickReply holds the pressed button
// label, if any. MessageID is the gateway's id and is used for deduplication.
type InboundReply struct {
	MessageID  string
	From       string
	Text       string
	QuickReply string
}

// Action names what the orchestrator did with a trigger.
type Action string

const (
	ActionIntroSent          Action = "intro_sent"
	ActionAdvanced           Action = "advanced"
	ActionCompleted          Action = "completed"
	ActionIgnoredNoSession   Action = "ignored_no_session"
	ActionIgnoredDuplicate   Action = "ignored_duplicate"
	ActionIgnoredTextAtIntro Action = "ignored_text_at_intro"
	ActionIgnoredEmpty       Action = "ignored_empty_reply"
)

// Ignored reports whether the trigger produced no message and no state change.
func (a Action) Ignored() bool {
	return strings.HasPrefix(string(a), "ignored_")
}

// Outcome reports the transition applied for one trigger.
type Outcome struct {
	Action    Action              `json:"action"`
	CallerID  string              `json:"caller_id"`
	Category  catalog.CategoryKey `json:"category,omitempty"`
	SessionID string              `json:"session_id,omitempty"`
	From      catalog.Stage       `json:"from,omitempty"`
	To        catalog.Stage       `json:"to,omitempty"`
	Template  string              `json:"template,omitempty"`
	RecordID  string              `json:"record_id,omitempty"`
}

// ReplyResult pairs a batch item with its outcome or error.
type ReplyResult struct {
	Reply   InboundReply
	Outcome *Outcome
	Err     error
}
