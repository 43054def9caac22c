package infobipclient

import (
	"errors"
	"strings"
)

// TemplateMessage describes one outbound WhatsApp template send.
type TemplateMessage struct {
	From         string
	To           string
	TemplateName string
	Language     string
	Placeholders []string
	// QuickReplies are attached as QUICK_REPLY button parameters, in order.
	QuickReplies []string
}

func (m TemplateMessage) validate() error {
	if strings.TrimSpace(m.From) == "" || strings.TrimSpace(m.To) == "" {
		return errors.New("infobipclient: from and to numbers required")
	}
	if strings.TrimSpace(m.TemplateName) == "" {
		return errors.New("infobipclient: template name required")
	}
	if strings.TrimSpace(m.Language) == "" {
		return errors.New("infobipclient: language required")
	}
	return nil
}

type templateRequest struct {
	Messages []templateEnvelope `json:"messages"`
}

type templateEnvelope struct {
	From    string          `json:"from"`
	To      string          `json:"to"`
	Content templateContent `json:"content"`
}

type templateContent struct {
	TemplateName string       `json:"templateName"`
	TemplateData templateData `json:"templateData"`
	Language     string       `json:"language"`
}

type templateData struct {
	Body    templateBody     `json:"body"`
	Buttons []templateButton `json:"buttons,omitempty"`
}

type templateBody struct {
	Placeholders []string `json:"placeholders"`
}

type templateButton struct {
	Type      string `json:"type"`
	Parameter string `json:"parameter"`
}

func buildTemplateRequest(m TemplateMessage) templateRequest {
	placeholders := m.Placeholders
	if placeholders == nil {
		placeholders = []string{}
	}
	data := templateData{Body: templateBody{Placeholders: placeholders}}
	for _, label := range m.QuickReplies {
		data.Buttons = append(data.Buttons, templateButton{Type: "QUICK_REPLY", Parameter: label})
	}
	return templateRequest{Messages: []templateEnvelope{{
		From: m.From,
		To:   m.To,
		Content: templateContent{
			TemplateName: m.TemplateName,
			TemplateData: data,
			Language:     m.Language,
		},
	}}}
}

// SendResult mirrors the first entry of Infobip's send response.
type SendResult struct {
	BulkID       string `json:"bulkId,omitempty"`
	To           string `json:"to"`
	MessageCount int    `json:"messageCount"`
	MessageID    string `json:"messageId"`
	Status       Status `json:"status"`
}

// Status is Infobip's delivery status block.
type Status struct {
	GroupID     int    `json:"groupId"`
	GroupName   string `json:"groupName"`
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type sendResponse struct {
	BulkID   string       `json:"bulkId"`
	Messages []SendResult `json:"messages"`
}
