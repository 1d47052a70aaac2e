package mailer

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-account-lifecycle/config"
	"github.com/oksasatya/go-account-lifecycle/pkg/helpers"
)

// Mail drivers accepted in MAIL_DRIVER.
const (
	DriverSMTP    = "smtp"
	DriverMailgun = "mailgun"
	DriverQueue   = "queue"
	DriverLog     = "log"
)

// NewTransport builds the transport selected by cfg.MailDriver. It returns a
// nil transport, not an error, when sending is disabled or credentials are
// missing. The returned cleanup func is never nil.
func NewTransport(cfg *config.Config, logger *logrus.Logger) (Transport, func(), error) {
	noop := func() {}
	if !cfg.MailSendEnabled {
		helpers.LogInfo(logger, "mail sending disabled", nil)
		return nil, noop, nil
	}

	switch cfg.MailDriver {
	case DriverSMTP, "":
		t, err := smtpFromConfig(cfg)
		if errors.Is(err, ErrTransportUnavailable) {
			warn(logger, "SMTP credentials not configured; email will not be sent")
			return nil, noop, nil
		}
		return t, noop, err
	case DriverMailgun:
		t, err := NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunSender)
		if err != nil {
			warn(logger, "Mailgun not configured; email will not be sent")
			return nil, noop, nil
		}
		return t, noop, nil
	case DriverQueue:
		q, err := helpers.DialRabbitQueue(cfg.RabbitMQURL, cfg.RabbitMQEmailQueue)
		if err != nil {
			return nil, noop, fmt.Errorf("dial email queue: %w", err)
		}
		return NewQueue(q), q.Close, nil
	case DriverLog:
		return NewLogTransport(logger), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown MAIL_DRIVER %q", cfg.MailDriver)
	}
}

// NewDeliveryTransport picks the transport the email worker delivers queued
// jobs with: Mailgun when configured, SMTP otherwise.
func NewDeliveryTransport(cfg *config.Config) (Transport, error) {
	if cfg.MailgunDomain != "" {
		mg, err := NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunSender)
		if err != nil {
			return nil, err
		}
		return mg, nil
	}
	return smtpFromConfig(cfg)
}

func smtpFromConfig(cfg *config.Config) (Transport, error) {
	if !cfg.SMTPConfigured() {
		return nil, ErrTransportUnavailable
	}
	s, err := NewSMTP(SMTPConfig{
		Host:               cfg.SMTPHost,
		Port:               cfg.SMTPPort,
		Username:           cfg.SMTPUsername,
		Password:           cfg.SMTPPassword,
		FromName:           cfg.MailFromName,
		FromEmail:          cfg.MailFromEmail,
		Timeout:            cfg.SMTPTimeout,
		InsecureSkipVerify: cfg.SMTPInsecureSkipVerify,
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func warn(logger *logrus.Logger, msg string) {
	if logger != nil {
		logger.Warn(msg)
	}
}
