package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// InboundMessage is one WhatsApp message received through the gateway webhook.
type InboundMessage struct {
	MessageID  string
	From       string
	To         string
	Text       string
	QuickReply string
	ReceivedAt time.Time
}

type infobipInbound struct {
	Results []struct {
		From       string `json:"from"`
		To         string `json:"to"`
		MessageID  string `json:"messageId"`
		ReceivedAt string `json:"receivedAt"`
		Message    struct {
			Type    string `json:"type"`
			Text    string `json:"text"`
			Payload string `json:"payload"`
			ID      string `json:"id"`
			Title   string `json:"title"`
		} `json:"message"`
	} `json:"results"`
}

// ErrEmptyWebhook is returned for a webhook body with no results.
var ErrEmptyWebhook = errors.New("messaging: webhook has no results")

// ParseInfobipInbound decodes Infobip's inbound WhatsApp webhook batch. Quick
// reply button presses are reported in QuickReply; plain text in Text. Other
// message types (media, location) are returned with both empty.
func ParseInfobipInbound(r io.Reader) ([]InboundMessage, error) {
	var payload infobipInbound
	if err := json.NewDecoder(io.LimitReader(r, 1<<20)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("messaging: decode inbound webhook: %w", err)
	}
	if len(payload.Results) == 0 {
		return nil, ErrEmptyWebhook
	}
	out := make([]InboundMessage, 0, len(payload.Results))
	for _, res := range payload.Results {
		msg := InboundMessage{
			MessageID: strings.TrimSpace(res.MessageID),
			From:      NormalizeE164(res.From),
			To:        NormalizeE164(res.To),
		}
		if ts, err := time.Parse("2006-01-02T15:04:05.000-0700", res.ReceivedAt); err == nil {
			msg.ReceivedAt = ts.UTC()
		}
		switch strings.ToUpper(res.Message.Type) {
		case "TEXT":
			msg.Text = strings.TrimSpace(res.Message.Text)
		case "BUTTON":
			msg.QuickReply = firstNonEmpty(res.Message.Text, res.Message.Payload)
		case "INTERACTIVE_BUTTON_REPLY":
			msg.QuickReply = firstNonEmpty(res.Message.Title, res.Message.ID)
		}
		out = append(out, msg)
	}
	return out, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
