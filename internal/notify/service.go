package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/wolfman30/missedcall-flow/internal/business"
	"github.com/wolfman30/missedcall-flow/internal/requests"
	"github.com/wolfman30/missedcall-flow/pkg/logging"
)

// ErrDeliveryFailed wraps provider-side send failures.
var ErrDeliveryFailed = errors.New("notify: delivery failed")

// Service e-mails businesses about captured customer requests.
type Service struct {
	email      EmailSender
	businesses business.Lookup
	location   *time.Location
	logger     *logging.Logger
}

// NewService creates a notification service. A nil email sender or business
// lookup turns notifications into no-ops.
func NewService(email EmailSender, businesses business.Lookup, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	loc, err := time.LoadLocation("Europe/Zagreb")
	if err != nil {
		loc = time.UTC
	}
	return &Service{
		email:      email,
		businesses: businesses,
		location:   loc,
		logger:     logger,
	}
}

// NotifyNewRequest sends the record to every notify address of its business.
// Every address is attempted; failures are joined into the returned error.
func (s *Service) NotifyNewRequest(ctx context.Context, rec *requests.Record) error {
	if s == nil || s.email == nil || s.businesses == nil || rec == nil {
		return nil
	}

	b, err := findBusiness(ctx, s.businesses, rec, s.logger)
	if err != nil || b == nil {
		return err
	}
	recipients := Recipients(b)
	if len(recipients) == 0 {
		s.logger.Debug("notify: business has no notify emails", "business_ref", rec.BusinessRef)
		return nil
	}

	var errs []error
	for _, recipient := range recipients {
		if err := s.email.Send(ctx, s.requestEmail(b, rec, recipient)); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d of %d notification(s) failed: %w", len(errs), len(recipients), errors.Join(errs...))
	}
	s.logger.Info("request notification sent", "business_ref", rec.BusinessRef, "record_id", rec.ID, "recipients", len(recipients))
	return nil
}

// NotifyRecipient sends the record to a single address. The outbox delivers
// one entry per address through it, so a retry never reaches an inbox that
// already got the e-mail.
func (s *Service) NotifyRecipient(ctx context.Context, rec *requests.Record, recipient string) error {
	recipient = strings.TrimSpace(recipient)
	if s == nil || s.email == nil || s.businesses == nil || rec == nil || recipient == "" {
		return nil
	}
	b, err := findBusiness(ctx, s.businesses, rec, s.logger)
	if err != nil || b == nil {
		return err
	}
	return s.email.Send(ctx, s.requestEmail(b, rec, recipient))
}

// Recipients returns the business notify addresses trimmed and without
// case-insensitive duplicates, in their configured order.
func Recipients(b *business.Business) []string {
	if b == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(b.NotifyEmails))
	out := make([]string, 0, len(b.NotifyEmails))
	for _, addr := range b.NotifyEmails {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		key := strings.ToLower(addr)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, addr)
	}
	return out
}

// findBusiness returns nil, nil for an unknown business so callers skip it.
func findBusiness(ctx context.Context, lookup business.Lookup, rec *requests.Record, logger *logging.Logger) (*business.Business, error) {
	b, err := lookup.Get(ctx, rec.BusinessRef)
	if err != nil {
		if errors.Is(err, business.ErrBusinessNotFound) {
			logger.Warn("notify: business not found, skipping", "business_ref", rec.BusinessRef, "record_id", rec.ID)
			return nil, nil
		}
		return nil, fmt.Errorf("notify: get business: %w", err)
	}
	return b, nil
}

func (s *Service) requestEmail(b *business.Business, rec *requests.Record, recipient string) Email {
	received := rec.CreatedAt
	if received.IsZero() {
		received = time.Now()
	}
	when := received.In(s.location).Format("02.01.2006. 15:04")

	subject := fmt.Sprintf("Novi zahtjev od %s", rec.CallerID)
	if rec.Priority != "" {
		subject = fmt.Sprintf("Novi zahtjev (%s) od %s", rec.Priority, rec.CallerID)
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Propušteni poziv je pretvoren u zahtjev.\n\n")
	fmt.Fprintf(&body, "Broj: %s\n", rec.CallerID)
	if rec.Priority != "" {
		fmt.Fprintf(&body, "Odabir: %s\n", rec.Priority)
	}
	fmt.Fprintf(&body, "Poruka: %s\n", rec.Payload)
	fmt.Fprintf(&body, "Primljeno: %s\n\n%s", when, b.Name)

	htmlBody := fmt.Sprintf(`<p>Propušteni poziv je pretvoren u zahtjev.</p>
<p><strong>Broj:</strong> %s<br>%s<strong>Poruka:</strong> %s<br><strong>Primljeno:</strong> %s</p>
<p>%s</p>`,
		html.EscapeString(rec.CallerID),
		priorityHTML(rec.Priority),
		html.EscapeString(rec.Payload),
		html.EscapeString(when),
		html.EscapeString(b.Name),
	)

	msg := Email{
		To:       recipient,
		ToName:   b.Name,
		Subject:  subject,
		Text:     body.String(),
		HTML:     htmlBody,
		RecordID: rec.ID,
		Category: string(rec.Category),
	}
	// Replies from secondary inboxes go to the business primary address
	// rather than the no-reply sender.
	if all := Recipients(b); len(all) > 0 && !strings.EqualFold(all[0], recipient) {
		msg.ReplyTo = all[0]
	}
	return msg
}

func priorityHTML(priority string) string {
	if priority == "" {
		return ""
	}
	return fmt.Sprintf("<strong>Odabir:</strong> %s<br>", html.EscapeString(priority))
}
