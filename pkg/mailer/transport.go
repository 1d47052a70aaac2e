package mailer

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

// ErrTransportUnavailable is returned when mail sending is disabled or no
// transport could be configured.
var ErrTransportUnavailable = errors.New("mail transport unavailable")

// Message is a rendered email ready for delivery.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Transport delivers a rendered message.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// LogTransport writes messages to the logger instead of sending them.
type LogTransport struct {
	Logger *logrus.Logger
}

func NewLogTransport(logger *logrus.Logger) *LogTransport {
	return &LogTransport{Logger: logger}
}

func (t *LogTransport) Send(_ context.Context, msg Message) error {
	if t.Logger != nil {
		t.Logger.WithFields(logrus.Fields{
			"to":      msg.To,
			"subject": msg.Subject,
		}).Info("email (log transport)")
		t.Logger.Debug(msg.Text)
	}
	return nil
}
