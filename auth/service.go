package auth

import (
	"time"
)

const (
	DefaultBlacklistPrefix      = "blacklist:"
	DefaultOTPPrefix            = "otp:"
	DefaultSessionTTL           = 24 * time.Hour
	DefaultVerificationTokenTTL = 10 * time.Minute
	DefaultOTPTTL               = 10 * time.Minute
)

// Service implements the account and session flows on top of the token
// service, the credential store and the user repositories.
type Service struct {
	tokens   *TokenService
	store    CredentialStore
	repos    RepositoryManager
	mailer   Mailer
	activity ActivitySink
	logger   Logger
	now      func() time.Time
	otpCode  func() (string, error)

	blacklistPrefix      string
	otpPrefix            string
	sessionTTL           time.Duration
	verificationTokenTTL time.Duration
	otpTTL               time.Duration
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

func WithLogger(logger Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMailer(mailer Mailer) ServiceOption {
	return func(s *Service) {
		if mailer != nil {
			s.mailer = mailer
		}
	}
}

func WithActivitySink(sink ActivitySink) ServiceOption {
	return func(s *Service) {
		s.activity = normalizeActivitySink(sink)
	}
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithOTPGenerator replaces the random one-time code source
func WithOTPGenerator(gen func() (string, error)) ServiceOption {
	return func(s *Service) {
		if gen != nil {
			s.otpCode = gen
		}
	}
}

// NewService creates a Service. cfg may be nil, defaults apply to every
// unset value.
func NewService(cfg Config, tokens *TokenService, store CredentialStore, repos RepositoryManager, opts ...ServiceOption) *Service {
	s := &Service{
		tokens:               tokens,
		store:                store,
		repos:                repos,
		mailer:               noopMailer{},
		activity:             noopActivitySink{},
		logger:               defLogger{},
		now:                  time.Now,
		otpCode:              GenerateOTP,
		blacklistPrefix:      DefaultBlacklistPrefix,
		otpPrefix:            DefaultOTPPrefix,
		sessionTTL:           DefaultSessionTTL,
		verificationTokenTTL: DefaultVerificationTokenTTL,
		otpTTL:               DefaultOTPTTL,
	}

	if cfg != nil {
		if v := cfg.GetBlacklistPrefix(); v != "" {
			s.blacklistPrefix = v
		}
		if v := cfg.GetOTPPrefix(); v != "" {
			s.otpPrefix = v
		}
		if v := cfg.GetSessionTTL(); v > 0 {
			s.sessionTTL = v
		}
		if v := cfg.GetVerificationTokenTTL(); v > 0 {
			s.verificationTokenTTL = v
		}
		if v := cfg.GetOTPTTL(); v > 0 {
			s.otpTTL = v
		}
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// SessionTTL is the lifetime of session tokens
func (s *Service) SessionTTL() time.Duration {
	return s.sessionTTL
}
