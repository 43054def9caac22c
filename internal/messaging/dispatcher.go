package messaging

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/missedcall-flow/internal/catalog"
	"github.com/wolfman30/missedcall-flow/internal/messaging/infobipclient"
	"github.com/wolfman30/missedcall-flow/internal/observability/metrics"
	"github.com/wolfman30/missedcall-flow/pkg/logging"
)

var dispatchTracer = otel.Tracer("missedcall.internal.messaging.dispatcher")

// Gateway is the messaging gateway the dispatcher submits templates to.
type Gateway interface {
	SendTemplate(ctx context.Context, msg infobipclient.TemplateMessage) (*infobipclient.SendResult, error)
}

var (
	// ErrInvalidMessage is returned before any gateway call when the send is malformed.
	ErrInvalidMessage = errors.New("messaging: invalid message")
)

// DispatchFailure is returned when the gateway rejected the send or did not
// answer in time. HTTPStatus is 0 when no response was received.
type DispatchFailure struct {
	HTTPStatus int
	Body       string
	Timeout    bool
	Err        error
}

func (e *DispatchFailure) Error() string {
	switch {
	case e.Timeout:
		return "messaging: dispatch timed out"
	case e.HTTPStatus != 0:
		return fmt.Sprintf("messaging: dispatch rejected (status=%d): %s", e.HTTPStatus, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("messaging: dispatch failed: %v", e.Err)
	default:
		return "messaging: dispatch failed"
	}
}

func (e *DispatchFailure) Unwrap() error { return e.Err }

// Result describes an accepted send.
type Result struct {
	To        string
	Template  string
	MessageID string
	Status    string
}

// DispatcherConfig holds the sender identity and send bounds.
type DispatcherConfig struct {
	Sender   string
	Language string
	Timeout  time.Duration
}

// Dispatcher turns a resolved template into a gateway send.
type Dispatcher struct {
	gateway  Gateway
	sender   string
	language string
	timeout  time.Duration
	metrics  *metrics.ConversationMetrics
	logger   *logging.Logger
}

// NewDispatcher builds a dispatcher. metrics may be nil.
func NewDispatcher(gateway Gateway, cfg DispatcherConfig, m *metrics.ConversationMetrics, logger *logging.Logger) (*Dispatcher, error) {
	if gateway == nil {
		return nil, errors.New("messaging: gateway required")
	}
	if strings.TrimSpace(cfg.Sender) == "" {
		return nil, errors.New("messaging: sender number required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	language := strings.TrimSpace(cfg.Language)
	if language == "" {
		language = "hr"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		gateway:  gateway,
		sender:   strings.TrimPrefix(strings.TrimSpace(cfg.Sender), "+"),
		language: language,
		timeout:  timeout,
		metrics:  m,
		logger:   logger,
	}, nil
}

// Send submits tmpl to callerID with the ordered placeholder values. The call
// is bounded by the configured timeout; any gateway failure is a *DispatchFailure.
func (d *Dispatcher) Send(ctx context.Context, callerID string, tmpl catalog.Template, placeholders []string) (Result, error) {
	to := NormalizeE164(callerID)
	if to == "" {
		return Result{}, fmt.Errorf("%w: recipient %q", ErrInvalidMessage, callerID)
	}
	if strings.TrimSpace(tmpl.Name) == "" {
		return Result{}, fmt.Errorf("%w: template name required", ErrInvalidMessage)
	}
	if len(placeholders) != len(tmpl.Placeholders) {
		return Result{}, fmt.Errorf("%w: template %s expects %d placeholders, got %d",
			ErrInvalidMessage, tmpl.Name, len(tmpl.Placeholders), len(placeholders))
	}

	ctx, span := dispatchTracer.Start(ctx, "messaging.dispatch.send", trace.WithAttributes(
		attribute.String("missedcall.template", tmpl.Name),
		attribute.String("missedcall.to", to),
	))
	defer span.End()

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	res, err := d.gateway.SendTemplate(sendCtx, infobipclient.TemplateMessage{
		From:         d.sender,
		To:           to,
		TemplateName: tmpl.Name,
		Language:     d.language,
		Placeholders: placeholders,
		QuickReplies: tmpl.Buttons,
	})
	elapsed := time.Since(start).Seconds()
	if err != nil {
		failure := toDispatchFailure(sendCtx, err)
		status := "failed"
		if failure.Timeout {
			status = "timeout"
		}
		d.metrics.ObserveDispatch(tmpl.Name, status, elapsed)
		span.RecordError(failure)
		span.SetStatus(codes.Error, status)
		d.logger.Error("template dispatch failed",
			"to", to,
			"template", tmpl.Name,
			"http_status", failure.HTTPStatus,
			"timeout", failure.Timeout,
			"error", err,
		)
		return Result{}, failure
	}

	d.metrics.ObserveDispatch(tmpl.Name, "sent", elapsed)
	out := Result{To: to, Template: tmpl.Name}
	if res != nil {
		out.MessageID = res.MessageID
		out.Status = res.Status.GroupName
	}
	span.SetAttributes(attribute.String("missedcall.message_id", out.MessageID))
	d.logger.Info("template dispatched",
		"to", to,
		"template", tmpl.Name,
		"message_id", out.MessageID,
		"status", out.Status,
	)
	return out, nil
}

func toDispatchFailure(ctx context.Context, err error) *DispatchFailure {
	var existing *DispatchFailure
	if errors.As(err, &existing) {
		return existing
	}
	var apiErr *infobipclient.APIError
	if errors.As(err, &apiErr) {
		return &DispatchFailure{HTTPStatus: apiErr.StatusCode, Body: apiErr.Body, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &DispatchFailure{Timeout: true, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &DispatchFailure{Timeout: true, Err: err}
	}
	return &DispatchFailure{Err: err}
}
