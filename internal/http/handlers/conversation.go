package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/wolfman30/missedcall-flow/internal/catalog"
	"github.com/wolfman30/missedcall-flow/internal/category"
	"github.com/wolfman30/missedcall-flow/internal/conversation"
	"github.com/wolfman30/missedcall-flow/internal/messaging"
	"github.com/wolfman30/missedcall-flow/pkg/logging"
)

const webhookTokenHeader = "X-Webhook-Token"

// Conversation is the orchestrator surface the HTTP layer drives.
type Conversation interface {
	HandleMissedCall(ctx context.Context, call conversation.MissedCall) (*conversation.Outcome, error)
	HandleInboundBatch(ctx context.Context, replies []conversation.InboundReply) []conversation.ReplyResult
}

// ConversationHandler exposes the missed-call trigger and the inbound
// WhatsApp webhook.
type ConversationHandler struct {
	conv         Conversation
	webhookToken string
	logger       *logging.Logger
}

// NewConversationHandler builds the handler. An empty webhookToken leaves
// the inbound webhook unauthenticated.
func NewConversationHandler(conv Conversation, webhookToken string, logger *logging.Logger) *ConversationHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ConversationHandler{
		conv:         conv,
		webhookToken: strings.TrimSpace(webhookToken),
		logger:       logger,
	}
}

type missedCallRequest struct {
	PhoneNumber string `json:"phone_number"`
	BusinessID  string `json:"business_id"`
	Profession  string `json:"profession"`
}

type missedCallResponse struct {
	Status      string              `json:"status"`
	Profession  string              `json:"profession"`
	PhoneNumber string              `json:"phone_number"`
	Category    catalog.CategoryKey `json:"category"`
	SessionID   string              `json:"session_id"`
	Template    string              `json:"template"`
}

// MissedCall handles POST /missed-call.
func (h *ConversationHandler) MissedCall(w http.ResponseWriter, r *http.Request) {
	var req missedCallRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	phone := messaging.NormalizeE164(req.PhoneNumber)
	if phone == "" || strings.TrimSpace(req.Profession) == "" {
		writeJSONError(w, http.StatusBadRequest, "Missing phone_number or profession in request")
		return
	}

	out, err := h.conv.HandleMissedCall(r.Context(), conversation.MissedCall{
		CallerID:      phone,
		BusinessRef:   strings.TrimSpace(req.BusinessID),
		CategoryLabel: req.Profession,
	})
	if err != nil {
		status := statusForError(err)
		h.logger.Error("missed call failed",
			"caller", phone,
			"business_ref", req.BusinessID,
			"profession", req.Profession,
			"status", status,
			"error", err,
		)
		writeJSONError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, missedCallResponse{
		Status:      string(out.Action),
		Profession:  req.Profession,
		PhoneNumber: out.CallerID,
		Category:    out.Category,
		SessionID:   out.SessionID,
		Template:    out.Template,
	})
}

type inboundItemResult struct {
	MessageID string `json:"message_id,omitempty"`
	From      string `json:"from"`
	Action    string `json:"action,omitempty"`
	Error     string `json:"error,omitempty"`
}

// InfobipInbound handles POST /webhooks/infobip/whatsapp. Items that were
// processed or ignored answer 200; a dispatch failure answers 502 and any
// other failure 500, so the gateway redelivers the batch. Redelivered items
// that already went through are dropped as duplicates.
func (h *ConversationHandler) InfobipInbound(w http.ResponseWriter, r *http.Request) {
	if !h.authorizedWebhook(r) {
		writeJSONError(w, http.StatusUnauthorized, "invalid webhook token")
		return
	}
	msgs, err := messaging.ParseInfobipInbound(r.Body)
	if err != nil {
		if errors.Is(err, messaging.ErrEmptyWebhook) {
			writeJSON(w, http.StatusOK, map[string]any{"results": []inboundItemResult{}})
			return
		}
		writeJSONError(w, http.StatusBadRequest, "invalid webhook payload")
		return
	}

	replies := make([]conversation.InboundReply, 0, len(msgs))
	for _, m := range msgs {
		replies = append(replies, conversation.InboundReply{
			MessageID:  m.MessageID,
			From:       m.From,
			Text:       m.Text,
			QuickReply: m.QuickReply,
		})
	}

	status := http.StatusOK
	items := make([]inboundItemResult, 0, len(replies))
	for _, res := range h.conv.HandleInboundBatch(r.Context(), replies) {
		item := inboundItemResult{MessageID: res.Reply.MessageID, From: res.Reply.From}
		switch {
		case res.Err == nil:
			item.Action = string(res.Outcome.Action)
		case errors.Is(res.Err, conversation.ErrInvalidTrigger):
			item.Action = "rejected"
			item.Error = res.Err.Error()
		default:
			item.Error = res.Err.Error()
			if s := statusForError(res.Err); s > status {
				status = s
			}
			h.logger.Error("inbound reply failed", "caller", res.Reply.From, "message_id", res.Reply.MessageID, "error", res.Err)
		}
		items = append(items, item)
	}
	writeJSON(w, status, map[string]any{"results": items})
}

func (h *ConversationHandler) authorizedWebhook(r *http.Request) bool {
	if h.webhookToken == "" {
		return true
	}
	token := strings.TrimSpace(r.Header.Get(webhookTokenHeader))
	if token == "" {
		token = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.webhookToken)) == 1
}

// statusForError maps orchestrator failures onto HTTP statuses. Dispatch
// failures become 502 so the calling platform retries.
func statusForError(err error) int {
	var failure *messaging.DispatchFailure
	switch {
	case errors.As(err, &failure):
		return http.StatusBadGateway
	case errors.Is(err, category.ErrUnknownCategory),
		errors.Is(err, conversation.ErrInvalidTrigger),
		errors.Is(err, messaging.ErrInvalidMessage):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// HealthCheck returns a simple health check response.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
