package bootstrap

import (
	"fmt"
	"strings"

	appconfig "github.com/wolfman30/missedcall-flow/internal/config"
	"github.com/wolfman30/missedcall-flow/internal/messaging"
	"github.com/wolfman30/missedcall-flow/internal/messaging/infobipclient"
	"github.com/wolfman30/missedcall-flow/internal/observability/metrics"
	"github.com/wolfman30/missedcall-flow/pkg/logging"
)

// BuildDispatcher creates the Infobip client and wraps it in a template dispatcher.
func BuildDispatcher(cfg *appconfig.Config, m *metrics.ConversationMetrics, logger *logging.Logger) (*messaging.Dispatcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(cfg.InfobipWhatsAppNumber) == "" {
		return nil, fmt.Errorf("bootstrap: INFOBIP_WHATSAPP_NUMBER is required")
	}

	client, err := infobipclient.New(infobipclient.Config{
		BaseURL: cfg.InfobipBaseURL,
		APIKey:  cfg.InfobipAPIKey,
		Timeout: cfg.DispatchTimeout,
		Logger:  logger.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: infobip client: %w", err)
	}

	dispatcher, err := messaging.NewDispatcher(client, messaging.DispatcherConfig{
		Sender:   cfg.InfobipWhatsAppNumber,
		Language: cfg.TemplateLanguage,
		Timeout:  cfg.DispatchTimeout,
	}, m, logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: dispatcher: %w", err)
	}
	logger.Info("infobip dispatcher configured", "sender", cfg.InfobipWhatsAppNumber, "language", cfg.TemplateLanguage)
	return dispatcher, nil
}
