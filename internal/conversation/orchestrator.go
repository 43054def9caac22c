package conversation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/missedcall-flow/internal/business"
	"github.com/wolfman30/missedcall-flow/internal/catalog"
	"github.com/wolfman30/missedcall-flow/internal/events"
	"github.com/wolfman30/missedcall-flow/internal/messaging"
	"github.com/wolfman30/missedcall-flow/internal/observability/metrics"
	"github.com/wolfman30/missedcall-flow/internal/requests"
	"github.com/wolfman30/missedcall-flow/internal/sessions"
	"github.com/wolfman30/missedcall-flow/pkg/logging"
)

// inboundProvider scopes claimed reply keys in the processed-event store.
const inboundProvider = "whatsapp_inbound"

var (
	// ErrInvalidTrigger is returned for a trigger that is missing its caller
	// or category label. The HTTP layer rejects these before calling in.
	ErrInvalidTrigger = errors.New("conversation: invalid trigger")
)

// CategoryResolver maps a human profession label to a category key.
type CategoryResolver interface {
	Resolve(label string) (catalog.CategoryKey, error)
}

// TemplateRegistry is the read-only (category, stage) -> template table.
type TemplateRegistry interface {
	Lookup(category catalog.CategoryKey, stage catalog.Stage) (catalog.Template, error)
	Next(category catalog.CategoryKey, current catalog.Stage) (catalog.Stage, bool, error)
}

// TemplateSender submits one template message to a caller.
type TemplateSender interface {
	Send(ctx context.Context, callerID string, tmpl catalog.Template, placeholders []string) (messaging.Result, error)
}

// RequestNotifier tells the business about a captured request.
type RequestNotifier interface {
	NotifyNewRequest(ctx context.Context, rec *requests.Record) error
}

// Deps are the collaborators of an Orchestrator. Businesses, Notifier,
// Deduper and Metrics are optional.
type Deps struct {
	Resolver   CategoryResolver
	Templates  TemplateRegistry
	Sessions   sessions.Store
	Sender     TemplateSender
	Records    requests.Repository
	Businesses business.Lookup
	Notifier   RequestNotifier
	Deduper    events.Deduper
	Metrics    *metrics.ConversationMetrics
	Logger     *logging.Logger
}

// Orchestrator drives the missed-call conversation state machine. It keeps no
// per-caller state of its own; the session store is the only source of truth.
type Orchestrator struct {
	resolver   CategoryResolver
	templates  TemplateRegistry
	sessions   sessions.Store
	sender     TemplateSender
	records    requests.Repository
	businesses business.Lookup
	notifier   RequestNotifier
	deduper    events.Deduper
	metrics    *metrics.ConversationMetrics
	logger     *logging.Logger
	tracer     trace.Tracer
	cfg        Config
}

// New validates deps and cfg and builds an orchestrator.
func New(deps Deps, cfg Config) (*Orchestrator, error) {
	switch {
	case deps.Resolver == nil:
		return nil, errors.New("conversation: category resolver required")
	case deps.Templates == nil:
		return nil, errors.New("conversation: template registry required")
	case deps.Sessions == nil:
		return nil, errors.New("conversation: session store required")
	case deps.Sender == nil:
		return nil, errors.New("conversation: template sender required")
	case deps.Records == nil:
		return nil, errors.New("conversation: request repository required")
	}
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Orchestrator{
		resolver:   deps.Resolver,
		templates:  deps.Templates,
		sessions:   deps.Sessions,
		sender:     deps.Sender,
		records:    deps.Records,
		businesses: deps.Businesses,
		notifier:   deps.Notifier,
		deduper:    deps.Deduper,
		metrics:    deps.Metrics,
		logger:     logger,
		tracer:     otel.Tracer("missedcall.internal.conversation"),
		cfg:        cfg,
	}, nil
}

// HandleMissedCall starts (or restarts) the flow for the caller at the intro
// stage. Category and template resolution happen before any side effect; the
// session is replaced only after the intro was accepted by the gateway.
func (o *Orchestrator) HandleMissedCall(ctx context.Context, call MissedCall) (*Outcome, error) {
	ctx, span := o.tracer.Start(ctx, "conversation.missed_call")
	defer span.End()

	out, err := o.handleMissedCall(ctx, call)
	o.finish(span, "missed_call", out, err)
	return out, err
}

func (o *Orchestrator) handleMissedCall(ctx context.Context, call MissedCall) (*Outcome, error) {
	callerID := messaging.NormalizeE164(call.CallerID)
	if callerID == "" {
		return nil, fmt.Errorf("%w: caller phone required", ErrInvalidTrigger)
	}
	if strings.TrimSpace(call.CategoryLabel) == "" {
		return nil, fmt.Errorf("%w: category label required", ErrInvalidTrigger)
	}

	category, err := o.resolver.Resolve(call.CategoryLabel)
	if err != nil {
		return nil, err
	}
	tmpl, err := o.templates.Lookup(category, catalog.StageIntro)
	if err != nil {
		return nil, err
	}
	values, err := o.placeholders(ctx, tmpl, placeholderSource{
		callerID:    callerID,
		businessRef: call.BusinessRef,
		category:    category,
	})
	if err != nil {
		return nil, err
	}

	sent, err := o.sender.Send(ctx, callerID, tmpl, values)
	if err != nil {
		return nil, err
	}
	sess, err := o.sessions.Open(ctx, callerID, call.BusinessRef, category)
	if err != nil {
		return nil, fmt.Errorf("conversation: open session: %w", err)
	}

	o.metrics.ObserveTransition("", string(catalog.StageIntro))
	o.logger.Info("missed call conversation started",
		"caller", callerID,
		"business_ref", call.BusinessRef,
		"category", category,
		"session_id", sess.ID,
		"message_id", sent.MessageID,
	)
	return &Outcome{
		Action:    ActionIntroSent,
		CallerID:  callerID,
		Category:  category,
		To:        catalog.StageIntro,
		Template:  tmpl.Name,
		SessionID: sess.ID,
	}, nil
}

// HandleInboundReply applies one caller reply to the caller's session. Replies
// without a session, duplicates and replies that carry nothing actionable
// are acknowledged as ignored outcomes, never as errors.
func (o *Orchestrator) HandleInboundReply(ctx context.Context, reply InboundReply) (*Outcome, error) {
	ctx, span := o.tracer.Start(ctx, "conversation.inbound_reply")
	defer span.End()

	callerID := messaging.NormalizeE164(reply.From)
	if callerID == "" {
		err := fmt.Errorf("%w: reply sender required", ErrInvalidTrigger)
		o.finish(span, "inbound_reply", nil, err)
		return nil, err
	}

	out, err := o.handleInboundReply(ctx, callerID, reply)
	o.finish(span, "inbound_reply", out, err)
	return out, err
}

func (o *Orchestrator) handleInboundReply(ctx context.Context, callerID string, reply InboundReply) (*Outcome, error) {
	text := strings.TrimSpace(reply.Text)
	selection := strings.TrimSpace(reply.QuickReply)

	sess, err := o.sessions.Get(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("conversation: load session: %w", err)
	}
	if sess == nil {
		o.logger.Debug("reply without active session discarded", "caller", callerID)
		return &Outcome{Action: ActionIgnoredNoSession, CallerID: callerID}, nil
	}
	base := Outcome{
		CallerID:  callerID,
		Category:  sess.Category,
		From:      sess.Stage,
		SessionID: sess.ID,
	}

	if o.deduper != nil {
		eventKey := replyEventKey(sess, reply)
		claimed, err := o.deduper.Claim(ctx, inboundProvider, eventKey)
		if err != nil {
			return nil, fmt.Errorf("conversation: claim reply: %w", err)
		}
		if !claimed {
			base.Action = ActionIgnoredDuplicate
			return &base, nil
		}
		out, err := o.applyReply(ctx, sess, base, text, selection)
		if err != nil {
			if relErr := o.deduper.Release(ctx, inboundProvider, eventKey); relErr != nil {
				o.logger.Warn("failed to release reply claim", "caller", callerID, "error", relErr)
			}
		}
		return out, err
	}
	return o.applyReply(ctx, sess, base, text, selection)
}

func (o *Orchestrator) applyReply(ctx context.Context, sess *sessions.Session, base Outcome, text, selection string) (*Outcome, error) {
	if text == "" && selection == "" {
		base.Action = ActionIgnoredEmpty
		return &base, nil
	}

	if sess.Stage == catalog.StageIntro && selection == "" {
		if o.cfg.IntroTextPolicy == IntroTextIgnore {
			base.Action = ActionIgnoredTextAtIntro
			return &base, nil
		}
		// The free text stands in for the button the caller did not press.
		selection = text
	}

	next, last, err := o.templates.Next(sess.Category, sess.Stage)
	if err != nil {
		return nil, err
	}
	if last {
		return o.complete(ctx, sess, base, next, text, selection)
	}
	return o.advance(ctx, sess, base, next, selection)
}

func (o *Orchestrator) advance(ctx context.Context, sess *sessions.Session, base Outcome, next catalog.Stage, selection string) (*Outcome, error) {
	tmpl, err := o.templates.Lookup(sess.Category, next)
	if err != nil {
		return nil, err
	}
	values, err := o.placeholders(ctx, tmpl, placeholderSource{
		callerID:    sess.CallerID,
		businessRef: sess.BusinessRef,
		category:    sess.Category,
		selection:   selection,
	})
	if err != nil {
		return nil, err
	}

	if _, err := o.sender.Send(ctx, sess.CallerID, tmpl, values); err != nil {
		return nil, err
	}
	updated, err := o.sessions.Advance(ctx, sess.CallerID, next, selection)
	if err != nil {
		if errors.Is(err, sessions.ErrNoActiveSession) {
			o.logger.Warn("session closed while advancing", "caller", sess.CallerID, "session_id", sess.ID)
			base.Action = ActionIgnoredNoSession
			return &base, nil
		}
		return nil, fmt.Errorf("conversation: advance session: %w", err)
	}

	o.metrics.ObserveTransition(string(sess.Stage), string(updated.Stage))
	o.logger.Info("conversation advanced",
		"caller", sess.CallerID,
		"category", sess.Category,
		"from", sess.Stage,
		"stage", updated.Stage,
		"selection", selection,
	)
	base.Action = ActionAdvanced
	base.To = next
	base.Template = tmpl.Name
	return &base, nil
}

// complete persists the request, confirms it to the caller and closes the
// session. The record is keyed by session id so a retry after a failed
// confirmation reuses it.
func (o *Orchestrator) complete(ctx context.Context, sess *sessions.Session, base Outcome, final catalog.Stage, text, selection string) (*Outcome, error) {
	payload := text
	if payload == "" {
		if sess.Stage != catalog.StageIntro {
			// A late button press at details carries no request text.
			base.Action = ActionIgnoredEmpty
			return &base, nil
		}
		payload = selection
	}
	priority := sess.Selection
	if sess.Stage == catalog.StageIntro {
		priority = selection
	}

	tmpl, err := o.templates.Lookup(sess.Category, final)
	if err != nil {
		return nil, err
	}
	values, err := o.placeholders(ctx, tmpl, placeholderSource{
		callerID:    sess.CallerID,
		businessRef: sess.BusinessRef,
		category:    sess.Category,
		selection:   priority,
		payload:     payload,
	})
	if err != nil {
		return nil, err
	}

	rec, created, err := o.records.Create(ctx, &requests.CreateRecordRequest{
		SessionID:   sess.ID,
		CallerID:    sess.CallerID,
		BusinessRef: sess.BusinessRef,
		Category:    sess.Category,
		Payload:     payload,
		Priority:    priority,
	})
	if err != nil {
		return nil, fmt.Errorf("conversation: persist request: %w", err)
	}
	if created {
		o.metrics.ObserveRecord(string(sess.Category))
	}

	if _, err := o.sender.Send(ctx, sess.CallerID, tmpl, values); err != nil {
		return nil, err
	}
	if err := o.sessions.CloseSession(ctx, sess.CallerID, sess.ID); err != nil {
		return nil, fmt.Errorf("conversation: close session: %w", err)
	}
	o.metrics.ObserveTransition(string(sess.Stage), string(final))

	if o.notifier != nil {
		if err := o.notifier.NotifyNewRequest(ctx, rec); err != nil {
			o.logger.Error("request notification failed", "record_id", rec.ID, "business_ref", rec.BusinessRef, "error", err)
		}
	}

	o.logger.Info("conversation completed",
		"caller", sess.CallerID,
		"category", sess.Category,
		"business_ref", sess.BusinessRef,
		"record_id", rec.ID,
		"new_record", created,
	)
	base.Action = ActionCompleted
	base.To = final
	base.Template = tmpl.Name
	base.RecordID = rec.ID
	return &base, nil
}

func (o *Orchestrator) finish(span trace.Span, kind string, out *Outcome, err error) {
	outcome := "error"
	switch {
	case err != nil:
		var failure *messaging.DispatchFailure
		if errors.As(err, &failure) {
			outcome = "dispatch_failed"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	case out != nil:
		outcome = string(out.Action)
		span.SetAttributes(
			attribute.String("missedcall.action", outcome),
			attribute.String("missedcall.category", string(out.Category)),
		)
	}
	o.metrics.ObserveTrigger(kind, outcome)
}

// replyEventKey identifies a delivery. The gateway message id is used when
// present; otherwise the reply content, scoped to the session, stands in for
// it. The stage is left out so a redelivery after the session has advanced
// still maps to the key claimed by the first delivery.
func replyEventKey(sess *sessions.Session, reply InboundReply) string {
	if id := strings.TrimSpace(reply.MessageID); id != "" {
		return id
	}
	parts := []string{sess.ID, strings.TrimSpace(reply.Text), strings.TrimSpace(reply.QuickReply)}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return "sha256:" + hex.EncodeToString(sum[:])
}
