package templates

import (
	"fmt"
	"time"
)

// Brand carries the sender identity rendered in every email.
type Brand struct {
	AppName     string
	CompanyName string
	SupportURL  string
}

// Option pattern
type Option func(*EmailData)

func WithTime(t time.Time) Option {
	return func(d *EmailData) { d.Time = t.UTC().Format("02 January 2006, 15:04") }
}
func WithVerifyURL(url string) Option { return func(d *EmailData) { d.VerifyURL = url } }
func WithResetURL(url string) Option  { return func(d *EmailData) { d.ResetURL = url } }

// WithExpiresIn renders the validity window of a link, e.g. "24 hours".
func WithExpiresIn(dur time.Duration) Option {
	return func(d *EmailData) { d.ExpiresIn = humanDuration(dur) }
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute:
		return plural(int(d/time.Minute), "minute")
	default:
		return plural(int(d/time.Second), "second")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// NewBaseEmailData fills the common fields from brand, then applies opts.
func NewBaseEmailData(brand Brand, typ, name, email string, opts ...Option) EmailData {
	d := EmailData{
		Name:        name,
		Email:       email,
		Type:        typ,
		CompanyName: brand.CompanyName,
		AppName:     brand.AppName,
		SupportURL:  brand.SupportURL,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

func NewVerifyEmailData(brand Brand, name, email, verifyURL string, ttl time.Duration) EmailData {
	return NewBaseEmailData(brand, VerifyEmail, name, email, WithVerifyURL(verifyURL), WithExpiresIn(ttl))
}

func NewPasswordResetData(brand Brand, name, email, resetURL string, ttl time.Duration) EmailData {
	return NewBaseEmailData(brand, PasswordReset, name, email, WithResetURL(resetURL), WithExpiresIn(ttl))
}

func NewWelcomeData(brand Brand, name, email string) EmailData {
	return NewBaseEmailData(brand, Welcome, name, email)
}

func NewPasswordChangedData(brand Brand, name, email string, at time.Time) EmailData {
	return NewBaseEmailData(brand, PasswordChanged, name, email, WithTime(at))
}
