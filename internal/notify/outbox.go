package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/wolfman30/missedcall-flow/internal/business"
	"github.com/wolfman30/missedcall-flow/internal/events"
	"github.com/wolfman30/missedcall-flow/internal/requests"
	"github.com/wolfman30/missedcall-flow/pkg/logging"
)

// EventRequestNotice is the outbox type for one e-mail owed to one address.
const EventRequestNotice = "request.notice.v1"

// RequestNotice is the outbox payload of EventRequestNotice.
type RequestNotice struct {
	Record    requests.Record `json:"record"`
	Recipient string          `json:"recipient"`
}

type outboxWriter interface {
	Insert(ctx context.Context, aggregate string, eventType string, payload any) (uuid.UUID, error)
}

// OutboxNotifier queues one outbox entry per notify address; a Deliverer
// hands them to Service.Handle and retries each address on its own.
type OutboxNotifier struct {
	outbox     outboxWriter
	businesses business.Lookup
	logger     *logging.Logger
}

func NewOutboxNotifier(outbox *events.OutboxStore, businesses business.Lookup, logger *logging.Logger) *OutboxNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &OutboxNotifier{outbox: outbox, businesses: businesses, logger: logger}
}

func (n *OutboxNotifier) NotifyNewRequest(ctx context.Context, rec *requests.Record) error {
	if n == nil || n.outbox == nil || n.businesses == nil || rec == nil {
		return nil
	}
	b, err := findBusiness(ctx, n.businesses, rec, n.logger)
	if err != nil || b == nil {
		return err
	}

	var errs []error
	queued := 0
	for _, recipient := range Recipients(b) {
		notice := RequestNotice{Record: *rec, Recipient: recipient}
		if _, err := n.outbox.Insert(ctx, rec.BusinessRef, EventRequestNotice, notice); err != nil {
			errs = append(errs, fmt.Errorf("queue %s: %w", recipient, err))
			continue
		}
		queued++
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: request %s queued for %d address(es): %w", rec.ID, queued, errors.Join(errs...))
	}
	n.logger.Debug("request notifications queued", "record_id", rec.ID, "recipients", queued)
	return nil
}

// Handle delivers an outbox entry queued by OutboxNotifier. Unknown types are skipped.
func (s *Service) Handle(ctx context.Context, entry events.OutboxEntry) error {
	if entry.Type != EventRequestNotice {
		s.logger.Warn("notify: skipping unknown outbox event", "type", entry.Type, "event_id", entry.ID)
		return nil
	}
	var notice RequestNotice
	if err := json.Unmarshal(entry.Payload, &notice); err != nil {
		s.logger.Error("notify: undecodable outbox payload", "event_id", entry.ID, "error", err)
		return nil
	}
	if notice.Recipient == "" {
		s.logger.Warn("notify: outbox notice without recipient", "event_id", entry.ID, "record_id", notice.Record.ID)
		return nil
	}
	return s.NotifyRecipient(ctx, &notice.Record, notice.Recipient)
}
