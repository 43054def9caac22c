package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/wolfman30/missedcall-flow/pkg/logging"
)

const (
	defaultFromName = "Propušteni poziv"
	// mailCategory tags every request notification at the provider so
	// bounces and opens can be filtered per product.
	mailCategory = "missed_call_request"
)

// EmailSender delivers a single request notification. SendGrid and SES
// implement it.
type EmailSender interface {
	Send(ctx context.Context, msg Email) error
}

// Email is one notification addressed to one business inbox.
type Email struct {
	To      string
	ToName  string
	ReplyTo string // business primary inbox when it differs from To
	Subject string
	Text    string
	HTML    string

	RecordID string
	Category string
}

// SendGridSender sends notifications through the SendGrid v3 mail API.
type SendGridSender struct {
	client    sendGridAPI
	fromEmail string
	fromName  string
	logger    *logging.Logger
}

type sendGridAPI interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridConfig holds configuration for SendGrid.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// NewSendGridSender returns nil when no API key is configured.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	return newSendGridSenderWithAPI(sendgrid.NewSendClient(cfg.APIKey), cfg, logger)
}

func newSendGridSenderWithAPI(client sendGridAPI, cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	return &SendGridSender{
		client:    client,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger,
	}
}

// Send posts one message. Any non-2xx status is reported as ErrDeliveryFailed
// so the outbox retries it.
func (s *SendGridSender) Send(ctx context.Context, msg Email) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}

	response, err := s.client.SendWithContext(ctx, s.buildMail(msg))
	if err != nil {
		s.logger.Error("sendgrid send failed", "error", err, "to", msg.To, "record_id", msg.RecordID)
		return fmt.Errorf("%w: sendgrid: %w", ErrDeliveryFailed, err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		s.logger.Error("sendgrid returned error status", "status", response.StatusCode, "body", response.Body, "to", msg.To, "record_id", msg.RecordID)
		return fmt.Errorf("%w: sendgrid returned status %d", ErrDeliveryFailed, response.StatusCode)
	}

	s.logger.Info("email sent via sendgrid",
		"to", msg.To,
		"record_id", msg.RecordID,
		"status", response.StatusCode,
		"message_id", firstHeader(response.Headers, "X-Message-Id"),
	)
	return nil
}

func (s *SendGridSender) buildMail(msg Email) *mail.SGMailV3 {
	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(s.fromName, s.fromEmail))
	m.Subject = msg.Subject

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail(msg.ToName, msg.To))
	if msg.RecordID != "" {
		p.SetCustomArg("record_id", msg.RecordID)
	}
	m.AddPersonalizations(p)

	// SendGrid requires text/plain ahead of text/html.
	text := msg.Text
	if text == "" {
		text = msg.Subject
	}
	m.AddContent(mail.NewContent("text/plain", text))
	if msg.HTML != "" {
		m.AddContent(mail.NewContent("text/html", msg.HTML))
	}

	if msg.ReplyTo != "" {
		m.SetReplyTo(mail.NewEmail(msg.ToName, msg.ReplyTo))
	}
	categories := []string{mailCategory}
	if msg.Category != "" {
		categories = append(categories, msg.Category)
	}
	m.AddCategories(categories...)
	return m
}

func firstHeader(headers map[string][]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) && len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

// StubEmailSender logs instead of sending. Used when no provider is configured.
type StubEmailSender struct {
	logger *logging.Logger
}

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(ctx context.Context, msg Email) error {
	s.logger.Info("stub email sender: would send email", "to", msg.To, "subject", msg.Subject, "record_id", msg.RecordID)
	return nil
}
