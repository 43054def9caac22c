package bootstrap

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/wolfman30/missedcall-flow/internal/config"
	"github.com/wolfman30/missedcall-flow/internal/notify"
	"github.com/wolfman30/missedcall-flow/pkg/logging"
)

// AWSConfigLoader loads SDK configuration on demand so AWS is only touched
// when SES is actually selected.
type AWSConfigLoader func(ctx context.Context) (aws.Config, error)

// BuildEmailSender selects the notification provider. "auto" prefers SendGrid,
// then SES, then the logging stub. The returned string names the provider.
func BuildEmailSender(ctx context.Context, cfg *appconfig.Config, loadAWS AWSConfigLoader, logger *logging.Logger) (notify.EmailSender, string) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return notify.NewStubEmailSender(logger), "stub"
	}
	if ctx == nil {
		ctx = context.Background()
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.EmailProvider))
	if provider == "" || provider == "auto" {
		switch {
		case strings.TrimSpace(cfg.SendGridAPIKey) != "":
			provider = "sendgrid"
		case strings.TrimSpace(cfg.SESFromEmail) != "":
			provider = "ses"
		default:
			provider = "stub"
		}
	}

	switch provider {
	case "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
		if sender != nil {
			return sender, provider
		}
		logger.Warn("sendgrid selected but SENDGRID_API_KEY is empty; using stub email sender")
	case "ses":
		if strings.TrimSpace(cfg.SESFromEmail) == "" || loadAWS == nil {
			logger.Warn("ses selected but SES_FROM_EMAIL is empty; using stub email sender")
			break
		}
		awsCfg, err := loadAWS(ctx)
		if err != nil {
			logger.Warn("failed to load AWS config for SES; using stub email sender", "error", err)
			break
		}
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger), provider
	case "stub", "none":
	default:
		logger.Warn("unknown email provider; using stub email sender", "provider", provider)
	}
	return notify.NewStubEmailSender(logger), "stub"
}
