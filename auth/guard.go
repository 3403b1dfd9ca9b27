package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-here/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const minRevocationTTL = time.Second

var tracer = otel.Tracer("github.com/goliatone/go-here/auth")

// Guard turns a raw bearer token into a Principal for a Requirement
type Guard struct {
	tokens          *TokenService
	store           CredentialStore
	principals      PrincipalStore
	blacklistPrefix string
	singleUse       []string
	now             func() time.Time
	logger          Logger
}

// GuardOption configures a Guard
type GuardOption func(*Guard)

func WithGuardLogger(logger Logger) GuardOption {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func WithGuardClock(now func() time.Time) GuardOption {
	return func(g *Guard) {
		if now != nil {
			g.now = now
		}
	}
}

// WithBlacklistPrefix sets the credential store key prefix for revoked tokens
func WithBlacklistPrefix(prefix string) GuardOption {
	return func(g *Guard) {
		g.blacklistPrefix = prefix
	}
}

// WithSingleUseScopes replaces the scopes whose tokens are consumed on first use
func WithSingleUseScopes(scopes ...string) GuardOption {
	return func(g *Guard) {
		g.singleUse = append([]string(nil), scopes...)
	}
}

// NewGuard creates a Guard. By default otp tokens are single use.
func NewGuard(tokens *TokenService, store CredentialStore, principals PrincipalStore, opts ...GuardOption) *Guard {
	g := &Guard{
		tokens:          tokens,
		store:           store,
		principals:      principals,
		blacklistPrefix: DefaultBlacklistPrefix,
		singleUse:       []string{ScopeOTP},
		now:             time.Now,
		logger:          defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Authorize runs the pipeline, stopping at the first failure:
// revocation, decode, scope, subject, principal load, disabled,
// verified, and finally single use consumption.
func (g *Guard) Authorize(ctx context.Context, raw string, req Requirement) (principal *Principal, err error) {
	ctx, span := tracer.Start(ctx, "auth.Authorize", trace.WithAttributes(
		attribute.String("principal.kind", req.Kind.String()),
	))
	defer func() {
		metrics.GuardDecisions.WithLabelValues(req.Kind.String(), metrics.Outcome(err)).Inc()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "authorization failed")
		}
		span.End()
	}()

	if raw == "" {
		return nil, ErrUnauthenticated
	}

	revoked, err := g.store.Exists(ctx, BlacklistKey(g.blacklistPrefix, raw))
	if err != nil {
		return nil, internal(err, "failed to check token revocation")
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	claims, err := g.tokens.Decode(raw)
	if err != nil {
		return nil, withDetail(ErrUnauthenticated, "", map[string]any{
			"reason": textCode(err),
		})
	}

	if len(req.Scopes) > 0 && !containsScope(req.Scopes, claims.Scope) {
		return nil, scopeMismatch(req.Scopes, claims.Scope)
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, withDetail(ErrUnauthenticated, "", map[string]any{
			"reason": "invalid subject",
		})
	}

	principal = &Principal{Kind: req.Kind, Claims: claims, Token: raw}

	if principal.User, err = g.principals.FindUser(ctx, userID); err != nil {
		return nil, g.lookupFailure(err, "user")
	}

	switch req.Kind {
	case PrincipalAttendee:
		if principal.Attendee, err = g.principals.FindAttendeeByUser(ctx, userID); err != nil {
			return nil, g.lookupFailure(err, "attendee")
		}
	case PrincipalHost:
		if principal.Host, err = g.principals.FindHostByUser(ctx, userID); err != nil {
			return nil, g.lookupFailure(err, "host")
		}
	}

	if !principal.User.IsActive && !req.AllowDisabled {
		return nil, ErrAccountDisabled
	}

	if req.RequireVerified && !principal.User.Verified {
		return nil, ErrAccountUnverified
	}

	if containsScope(g.singleUse, claims.Scope) {
		if err := g.consume(ctx, raw, claims); err != nil {
			return nil, err
		}
	}

	span.SetAttributes(attribute.String("token.scope", claims.Scope))
	return principal, nil
}

// consume writes the revocation entry for a single use token. Losing a
// concurrent race to another request counts as a replay.
func (g *Guard) consume(ctx context.Context, raw string, claims *Claims) error {
	ttl := claims.Remaining(g.now())
	if ttl < minRevocationTTL {
		ttl = minRevocationTTL
	}

	written, err := g.store.SetNX(ctx, BlacklistKey(g.blacklistPrefix, raw), claims.Scope, ttl)
	if err != nil {
		return internal(err, "failed to consume single use token")
	}
	if !written {
		return ErrTokenRevoked
	}

	metrics.TokensRevoked.WithLabelValues("single_use").Inc()
	return nil
}

func (g *Guard) lookupFailure(err error, record string) error {
	if IsNotFound(err) {
		g.logger.Debug("guard: %s record not found", record)
		return ErrPrincipalNotFound
	}
	return internal(err, "failed to load principal")
}

func textCode(err error) string {
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode
	}
	return ""
}
