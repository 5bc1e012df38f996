package bootstrap

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/poddon/concierge/internal/config"
	"github.com/poddon/concierge/internal/events"
	"github.com/poddon/concierge/internal/notify"
	"github.com/poddon/concierge/pkg/logging"
)

// BuildEmailSender prefers SendGrid, then SES. It returns nil when neither
// is configured, which leaves operator notifications chat-only.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) notify.EmailSender {
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		logger.Info("operator email via sendgrid")
		return sg
	}
	if awsCfg == nil || cfg.SESFromEmail == "" {
		return nil
	}
	if ses := notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
		FromEmail: cfg.SESFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); ses != nil {
		logger.Info("operator email via ses")
		return ses
	}
	return nil
}

// BuildEventPublisher connects to RabbitMQ when RABBITMQ_URL is set. A
// broker that cannot be reached degrades to the no-op publisher. The
// returned close func is never nil.
func BuildEventPublisher(cfg *appconfig.Config, logger *logging.Logger) (events.Publisher, func()) {
	if cfg.RabbitMQURL == "" {
		return events.NoopPublisher{}, func() {}
	}
	pub, err := events.DialAMQP(cfg.RabbitMQURL, cfg.EventsExchange, logger)
	if err != nil {
		logger.Warn("event broker unavailable, domain events disabled", "error", err)
		return events.NoopPublisher{}, func() {}
	}
	logger.Info("domain events via rabbitmq", "exchange", cfg.EventsExchange)
	return pub, func() {
		if err := pub.Close(); err != nil {
			logger.Warn("failed to close event publisher", "error", err)
		}
	}
}
