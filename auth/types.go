package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Logger is the logging surface used across the package
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetSessionTTL() time.Duration
	GetVerificationTokenTTL() time.Duration
	GetOTPTTL() time.Duration
	GetBlacklistPrefix() string
	GetOTPPrefix() string
}

// PrincipalStore loads principals and their capability sub-records
type PrincipalStore interface {
	FindUser(ctx context.Context, id uuid.UUID) (*User, error)
	FindAttendeeByUser(ctx context.Context, userID uuid.UUID) (*Attendee, error)
	FindHostByUser(ctx context.Context, userID uuid.UUID) (*Host, error)
}

// Mailer delivers templated messages
type Mailer interface {
	Send(ctx context.Context, to, template string, params map[string]any) error
}

// Mail templates sent by the account flows
const (
	TemplateWelcomeOTP      = "welcome_otp"
	TemplateWelcomeVerified = "welcome_verified"
	TemplateResendOTP       = "resend_otp"
)

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

type noopMailer struct{}

func (noopMailer) Send(context.Context, string, string, map[string]any) error {
	return nil
}
