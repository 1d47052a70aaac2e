package application

import (
	"context"
	"expvar"
	"sync"

	"github.com/sirupsen/logrus"
)

//go:generate mockgen -destination=mocks/notifier_mock.go -package=mocks github.com/oksasatya/go-account-lifecycle/internal/application Notifier

// Notifier sends the account lifecycle emails.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, email, name, token string) error
	SendPasswordResetEmail(ctx context.Context, email, name, token string) error
	SendWelcomeEmail(ctx context.Context, email, name string) error
	SendPasswordChangedEmail(ctx context.Context, email, name string) error
}

// Notification kinds, also used as expvar counter prefixes.
const (
	NotifyVerification    = "verification"
	NotifyPasswordReset   = "password_reset"
	NotifyWelcome         = "welcome"
	NotifyPasswordChanged = "password_changed"
)

var notificationStats = expvar.NewMap("notifications")

func countNotification(kind string, err error) {
	if err != nil {
		notificationStats.Add(kind+"_failed", 1)
		return
	}
	notificationStats.Add(kind+"_sent", 1)
}

// BestEffort runs notifications whose failure must not fail the caller.
// Failures are logged and counted, never retried.
type BestEffort struct {
	Logger *logrus.Logger
	Async  bool

	wg sync.WaitGroup
}

func NewBestEffort(logger *logrus.Logger, async bool) *BestEffort {
	return &BestEffort{Logger: logger, Async: async}
}

// Go runs send for kind. In async mode it runs detached from ctx cancellation.
func (b *BestEffort) Go(ctx context.Context, kind, userID string, send func(context.Context) error) {
	if b == nil {
		return
	}
	run := func(ctx context.Context) {
		err := send(ctx)
		countNotification(kind, err)
		if err != nil && b.Logger != nil {
			b.Logger.WithError(err).WithFields(logrus.Fields{
				"kind":    kind,
				"user_id": userID,
			}).Warn("best-effort notification failed")
		}
	}
	if !b.Async {
		run(ctx)
		return
	}
	detached := context.WithoutCancel(ctx)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		run(detached)
	}()
}

// Wait blocks until in-flight async notifications finish.
func (b *BestEffort) Wait() {
	if b == nil {
		return
	}
	b.wg.Wait()
}
