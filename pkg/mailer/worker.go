package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Worker delivers queued EmailJobs through a Transport. Failed jobs are
// dropped, never requeued.
type Worker struct {
	Transport Transport
	Logger    *logrus.Logger
	Timeout   time.Duration
}

func NewWorker(t Transport, logger *logrus.Logger) *Worker {
	return &Worker{Transport: t, Logger: logger, Timeout: 15 * time.Second}
}

// Handle decodes one job body and sends it.
func (w *Worker) Handle(ctx context.Context, body []byte) error {
	var job EmailJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("decode job: %w", err)
	}
	msg, err := job.Message()
	if err != nil {
		return err
	}
	if w.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.Timeout)
		defer cancel()
	}
	if err := w.Transport.Send(ctx, msg); err != nil {
		return fmt.Errorf("send to %s: %w", msg.To, err)
	}
	return nil
}

// Run consumes deliveries until the channel closes or ctx is done.
func (w *Worker) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			if err := w.Handle(ctx, d.Body); err != nil {
				if w.Logger != nil {
					w.Logger.WithError(err).WithField("delivery_tag", d.DeliveryTag).Warn("email job failed")
				}
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}
