package mailer

import (
	"context"
	"fmt"
)

// Publisher is the subset of helpers.RabbitQueue used to enqueue jobs.
type Publisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// Queue hands messages to the email worker through RabbitMQ.
type Queue struct {
	pub Publisher
}

func NewQueue(pub Publisher) *Queue {
	return &Queue{pub: pub}
}

func (q *Queue) Send(ctx context.Context, msg Message) error {
	if err := q.pub.PublishJSON(ctx, NewEmailJob(msg)); err != nil {
		return fmt.Errorf("enqueue email: %w", err)
	}
	return nil
}
