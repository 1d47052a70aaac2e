package mailer

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/oksasatya/go-account-lifecycle/pkg/mailer/templates"
)

// AccountNotifier renders the account lifecycle emails and hands them to a
// Transport. A nil Transport makes every send fail with ErrTransportUnavailable.
type AccountNotifier struct {
	Transport   Transport
	Brand       templates.Brand
	FrontendURL string
	VerifyTTL   time.Duration
	ResetTTL    time.Duration
	Now         func() time.Time
}

func NewAccountNotifier(t Transport, brand templates.Brand, frontendURL string, verifyTTL, resetTTL time.Duration) *AccountNotifier {
	return &AccountNotifier{
		Transport:   t,
		Brand:       brand,
		FrontendURL: frontendURL,
		VerifyTTL:   verifyTTL,
		ResetTTL:    resetTTL,
		Now:         time.Now,
	}
}

// link builds <FrontendURL>/<page>?token=<token>.
func (n *AccountNotifier) link(page, token string) string {
	base := strings.TrimRight(n.FrontendURL, "/")
	if base == "" {
		base = "http://localhost:3000"
	}
	return base + "/" + page + "?token=" + url.QueryEscape(token)
}

func (n *AccountNotifier) SendVerificationEmail(ctx context.Context, email, name, token string) error {
	data := templates.NewVerifyEmailData(n.Brand, name, email, n.link("verify-email", token), n.VerifyTTL)
	return n.send(ctx, templates.VerifyEmail, email, data)
}

func (n *AccountNotifier) SendPasswordResetEmail(ctx context.Context, email, name, token string) error {
	data := templates.NewPasswordResetData(n.Brand, name, email, n.link("reset-password", token), n.ResetTTL)
	return n.send(ctx, templates.PasswordReset, email, data)
}

func (n *AccountNotifier) SendWelcomeEmail(ctx context.Context, email, name string) error {
	return n.send(ctx, templates.Welcome, email, templates.NewWelcomeData(n.Brand, name, email))
}

func (n *AccountNotifier) SendPasswordChangedEmail(ctx context.Context, email, name string) error {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	return n.send(ctx, templates.PasswordChanged, email, templates.NewPasswordChangedData(n.Brand, name, email, now()))
}

func (n *AccountNotifier) send(ctx context.Context, tmpl, to string, data templates.EmailData) error {
	if n.Transport == nil {
		return ErrTransportUnavailable
	}
	subject, text, html, err := templates.Render(tmpl, data)
	if err != nil {
		return fmt.Errorf("render %s: %w", tmpl, err)
	}
	return n.Transport.Send(ctx, Message{To: to, Subject: subject, Text: text, HTML: html})
}
