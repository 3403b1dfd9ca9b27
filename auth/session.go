package auth

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-here/metrics"
)

// ScopeSwitch is the result of a successful scope switch
type ScopeSwitch struct {
	Token     string
	Scope     string
	PrevScope string
}

// Logout revokes the principal's token. The entry outlives the token by
// using the full session lifetime as TTL.
func (s *Service) Logout(ctx context.Context, p *Principal) error {
	if err := s.revoke(ctx, p, "logout"); err != nil {
		return err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType:  ActivityEventLogout,
		UserID:     p.User.ID.String(),
		OccurredAt: s.now(),
	})
	return nil
}

// SwitchScope revokes the presented session token and issues one for the
// complementary scope. target may be empty to pick the default pairing:
// attendee to host, host to attendee, access to host.
func (s *Service) SwitchScope(ctx context.Context, p *Principal, target string) (*ScopeSwitch, error) {
	current := p.Scope()
	target = strings.ToLower(strings.TrimSpace(target))
	if target == "" {
		target = complementaryScope(current)
	}

	if target == "" || target == current || !containsScope(SessionScopes, target) {
		return nil, invalidScope(current, target)
	}

	eligible, err := s.hasCapability(ctx, p, target)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, invalidScope(current, target)
	}

	written, err := s.store.SetNX(ctx, BlacklistKey(s.blacklistPrefix, p.Token), "switch", s.revocationTTL(p))
	if err != nil {
		return nil, internal(err, "failed to revoke token")
	}
	if !written {
		return nil, ErrTokenRevoked
	}
	metrics.TokensRevoked.WithLabelValues("switch").Inc()

	token, err := s.issue(p.User.ID.String(), target, s.sessionTTL)
	if err != nil {
		return nil, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType:  ActivityEventScopeSwitched,
		UserID:     p.User.ID.String(),
		Metadata:   map[string]any{"from": current, "to": target},
		OccurredAt: s.now(),
	})

	return &ScopeSwitch{Token: token, Scope: target, PrevScope: current}, nil
}

func complementaryScope(scope string) string {
	switch scope {
	case ScopeAttendee:
		return ScopeHost
	case ScopeHost:
		return ScopeAttendee
	case ScopeAccess:
		return ScopeHost
	}
	return ""
}

func (s *Service) hasCapability(ctx context.Context, p *Principal, scope string) (bool, error) {
	var err error
	switch scope {
	case ScopeHost:
		_, err = s.repos.Hosts().GetByIdentifier(ctx, p.User.ID.String())
	case ScopeAttendee:
		_, err = s.repos.Attendees().GetByIdentifier(ctx, p.User.ID.String())
	}
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, internal(err, "failed to load capability record")
	}
	return true, nil
}

func (s *Service) revoke(ctx context.Context, p *Principal, reason string) error {
	if err := s.store.Set(ctx, BlacklistKey(s.blacklistPrefix, p.Token), reason, s.revocationTTL(p)); err != nil {
		return internal(err, "failed to revoke token")
	}
	metrics.TokensRevoked.WithLabelValues(reason).Inc()
	return nil
}

func (s *Service) revocationTTL(p *Principal) time.Duration {
	ttl := s.sessionTTL
	if p.Claims != nil && p.Claims.Lifetime() > ttl {
		ttl = p.Claims.Lifetime()
	}
	return ttl
}
