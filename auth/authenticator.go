package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-here/metrics"
)

// Session is a freshly issued session token for a user
type Session struct {
	User      *User
	Token     string
	Scope     string
	ExpiresAt time.Time
}

// Login checks identifier (username or email) and password and issues an
// access scoped session token. Unknown users, wrong passwords and disabled
// accounts all fail with ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, identifier, password string) (*Session, error) {
	user, err := s.repos.Users().GetByIdentifier(ctx, identifier)
	if err != nil {
		if IsNotFound(err) {
			s.loginFailed(ctx, "", "unknown identifier")
			return nil, ErrInvalidCredentials
		}
		return nil, internal(err, "failed to load user")
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			s.loginFailed(ctx, user.ID.String(), "password mismatch")
		}
		return nil, err
	}

	if !user.IsActive {
		s.loginFailed(ctx, user.ID.String(), "account disabled")
		return nil, ErrInvalidCredentials
	}

	session, err := s.issueSession(user, ScopeAccess)
	if err != nil {
		return nil, err
	}

	if err := s.repos.Users().TrackSuccessfulLogin(ctx, user.ID); err != nil {
		s.logger.Error("failed to track login for %s: %v", user.ID, err)
	}

	metrics.LoginAttempts.WithLabelValues("ok").Inc()
	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType:  ActivityEventLoginSuccess,
		UserID:     user.ID.String(),
		OccurredAt: s.now(),
	})

	return session, nil
}

func (s *Service) loginFailed(ctx context.Context, userID, reason string) {
	metrics.LoginAttempts.WithLabelValues("rejected").Inc()
	s.logger.Debug("login rejected: %s", reason)
	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType:  ActivityEventLoginFailure,
		UserID:     userID,
		Metadata:   map[string]any{"reason": reason},
		OccurredAt: s.now(),
	})
}

func (s *Service) issueSession(user *User, scope string) (*Session, error) {
	token, err := s.issue(user.ID.String(), scope, s.sessionTTL)
	if err != nil {
		return nil, err
	}
	return &Session{
		User:      user,
		Token:     token,
		Scope:     scope,
		ExpiresAt: s.now().Add(s.sessionTTL),
	}, nil
}

func (s *Service) issue(subject, scope string, ttl time.Duration) (string, error) {
	token, err := s.tokens.Issue(subject, scope, ttl)
	if err != nil {
		return "", err
	}
	metrics.TokensIssued.WithLabelValues(scope).Inc()
	return token, nil
}
