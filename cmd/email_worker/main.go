package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/oksasatya/go-account-lifecycle/config"
	"github.com/oksasatya/go-account-lifecycle/pkg/helpers"
	"github.com/oksasatya/go-account-lifecycle/pkg/mailer"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-email-worker", cfg.Env)

	if !cfg.MailSendEnabled {
		logger.Info("MAIL_SEND_ENABLED=false; email worker disabled")
		return
	}

	transport, err := mailer.NewDeliveryTransport(cfg)
	if err != nil {
		log.Fatalf("mail transport: %v", err)
	}

	q, err := helpers.DialRabbitQueue(cfg.RabbitMQURL, cfg.RabbitMQEmailQueue)
	if err != nil {
		log.Fatalf("amqp: %v", err)
	}
	defer q.Close()

	// prefetch for fair dispatch
	deliveries, err := q.Consume(16)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker := mailer.NewWorker(transport, logger)
	if cfg.SMTPTimeout > 0 {
		worker.Timeout = cfg.SMTPTimeout + 5*time.Second
	}
	done := make(chan struct{})
	go func() {
		worker.Run(ctx, deliveries)
		close(done)
	}()

	logger.Infof("email worker listening on queue=%s", cfg.RabbitMQEmailQueue)
	<-ctx.Done()
	logger.Info("shutting down...")
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
}
