package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-here/metrics"
)

const (
	otpMin = 100000
	otpMax = 999999
)

// GenerateOTP returns a random six digit code
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpMax-otpMin+1))
	if err != nil {
		return "", internal(err, "failed to generate OTP")
	}
	return fmt.Sprintf("%06d", n.Int64()+otpMin), nil
}

// IssueOTP stores a fresh code for email, replacing any previous one, and
// returns it.
func (s *Service) IssueOTP(ctx context.Context, email string) (string, error) {
	code, err := s.otpCode()
	if err != nil {
		return "", err
	}

	if err := s.store.Set(ctx, OTPKey(s.otpPrefix, email), code, s.otpTTL); err != nil {
		return "", internal(err, "failed to store OTP")
	}

	metrics.OTPsIssued.Inc()
	return code, nil
}

// ResendOTP issues and mails a new code. Unknown emails succeed silently.
func (s *Service) ResendOTP(ctx context.Context, email string) error {
	user, err := s.repos.Users().GetByIdentifier(ctx, strings.TrimSpace(email))
	if err != nil {
		if IsNotFound(err) {
			s.logger.Debug("resend OTP requested for unknown email")
			return nil
		}
		return internal(err, "failed to load user")
	}

	code, err := s.IssueOTP(ctx, user.Email)
	if err != nil {
		return err
	}

	return s.send(ctx, user.Email, TemplateResendOTP, map[string]any{
		"username": user.Username,
		"otp":      code,
		"expires":  int(s.otpTTL.Minutes()),
	})
}

// VerifyOTP consumes the stored code for email and returns an otp scoped
// token valid for the verification TTL. The code is only removed when it
// matches.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) (string, error) {
	key := OTPKey(s.otpPrefix, email)

	stored, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return "", ErrInvalidOTP
		}
		return "", internal(err, "failed to read OTP")
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(strings.TrimSpace(code))) != 1 {
		return "", ErrInvalidOTP
	}

	deleted, err := s.store.Delete(ctx, key)
	if err != nil {
		return "", internal(err, "failed to consume OTP")
	}
	if !deleted {
		return "", ErrInvalidOTP
	}

	user, err := s.repos.Users().GetByIdentifier(ctx, email)
	if err != nil {
		if IsNotFound(err) {
			return "", ErrInvalidOTP
		}
		return "", internal(err, "failed to load user")
	}

	token, err := s.issue(user.ID.String(), ScopeOTP, s.verificationTokenTTL)
	if err != nil {
		return "", err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType:  ActivityEventOTPVerified,
		UserID:     user.ID.String(),
		OccurredAt: s.now(),
	})

	return token, nil
}

func (s *Service) send(ctx context.Context, to, template string, params map[string]any) error {
	if err := s.mailer.Send(ctx, to, template, params); err != nil {
		return internal(err, "failed to send message")
	}
	return nil
}
