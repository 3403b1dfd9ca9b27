package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-here/auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardResolvesPrincipals(t *testing.T) {
	h := newHarness(t)
	user, token := h.session(t, "ana")

	p := h.authorize(t, token, auth.SessionUser())
	assert.Equal(t, auth.PrincipalUser, p.Kind)
	assert.Equal(t, user.ID, p.User.ID)
	assert.Equal(t, auth.ScopeAccess, p.Scope())
	assert.Nil(t, p.Attendee)
	assert.Nil(t, p.Host)

	p = h.authorize(t, token, auth.SessionAttendee())
	require.NotNil(t, p.Attendee)
	assert.Equal(t, user.ID, p.Attendee.UserID)
	assert.Nil(t, p.Host)

	p = h.authorize(t, token, auth.SessionHost())
	require.NotNil(t, p.Host)
	assert.Equal(t, user.ID, p.Host.UserID)
	assert.Nil(t, p.Attendee)
}

func TestGuardRejections(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user, token := h.session(t, "ana")

	t.Run("missing token", func(t *testing.T) {
		_, err := h.guard.Authorize(ctx, "", auth.SessionUser())
		assert.ErrorIs(t, err, auth.ErrUnauthenticated)
	})

	t.Run("malformed token", func(t *testing.T) {
		_, err := h.guard.Authorize(ctx, "abc.def.ghi", auth.SessionUser())
		assert.ErrorIs(t, err, auth.ErrUnauthenticated)
	})

	t.Run("scope mismatch", func(t *testing.T) {
		hostToken, err := h.tokens.Issue(user.ID.String(), auth.ScopeHost, time.Hour)
		require.NoError(t, err)

		_, err = h.guard.Authorize(ctx, hostToken, auth.SessionAttendee())
		assert.ErrorIs(t, err, auth.ErrScopeMismatch)

		_, err = h.guard.Authorize(ctx, token, auth.ScopedUser(auth.ScopeOTP))
		assert.ErrorIs(t, err, auth.ErrScopeMismatch)
	})

	t.Run("unknown subject", func(t *testing.T) {
		ghost, err := h.tokens.Issue(uuid.NewString(), auth.ScopeAccess, time.Hour)
		require.NoError(t, err)

		_, err = h.guard.Authorize(ctx, ghost, auth.SessionUser())
		assert.ErrorIs(t, err, auth.ErrPrincipalNotFound)
	})

	t.Run("non uuid subject", func(t *testing.T) {
		odd, err := h.tokens.Issue("ana", auth.ScopeAccess, time.Hour)
		require.NoError(t, err)

		_, err = h.guard.Authorize(ctx, odd, auth.SessionUser())
		assert.ErrorIs(t, err, auth.ErrUnauthenticated)
	})

	t.Run("expired", func(t *testing.T) {
		short, err := h.tokens.Issue(user.ID.String(), auth.ScopeAccess, time.Minute)
		require.NoError(t, err)

		h.clock.Advance(2 * time.Minute)
		_, err = h.guard.Authorize(ctx, short, auth.SessionUser())
		assert.ErrorIs(t, err, auth.ErrUnauthenticated)
	})

	t.Run("revoked", func(t *testing.T) {
		require.NoError(t, h.store.Set(ctx, auth.BlacklistKey(auth.DefaultBlacklistPrefix, token), "logout", time.Hour))

		_, err := h.guard.Authorize(ctx, token, auth.SessionUser())
		assert.ErrorIs(t, err, auth.ErrTokenRevoked)
	})
}

func TestGuardDisabledAndUnverified(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	local := h.signup(t, "bea", auth.SignupLocal)
	localToken, err := h.tokens.Issue(local.ID.String(), auth.ScopeAccess, time.Hour)
	require.NoError(t, err)

	h.authorize(t, localToken, auth.SessionUser())
	_, err = h.guard.Authorize(ctx, localToken, auth.SessionUser().Verified())
	assert.ErrorIs(t, err, auth.ErrAccountUnverified)

	user, token := h.session(t, "ana")
	require.NoError(t, h.repos.Users().SetActive(ctx, user.ID, false))

	_, err = h.guard.Authorize(ctx, token, auth.SessionUser())
	assert.ErrorIs(t, err, auth.ErrAccountDisabled)

	req := auth.SessionUser()
	req.AllowDisabled = true
	p := h.authorize(t, token, req)
	assert.False(t, p.User.IsActive)
}

func TestGuardConsumesOTPTokensOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := h.signup(t, "bea", auth.SignupLocal)

	otp, err := h.tokens.Issue(user.ID.String(), auth.ScopeOTP, 10*time.Minute)
	require.NoError(t, err)

	h.authorize(t, otp, auth.ScopedUser(auth.ScopeOTP))

	_, err = h.guard.Authorize(ctx, otp, auth.ScopedUser(auth.ScopeOTP))
	assert.ErrorIs(t, err, auth.ErrTokenRevoked)

	assert.Greater(t, h.store.TTL(auth.BlacklistKey(auth.DefaultBlacklistPrefix, otp)), 9*time.Minute)
}

func TestGuardOTPRaceHasOneWinner(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := h.signup(t, "bea", auth.SignupLocal)

	otp, err := h.tokens.Issue(user.ID.String(), auth.ScopeOTP, 10*time.Minute)
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.guard.Authorize(ctx, otp, auth.ScopedUser(auth.ScopeOTP)); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestGuardCustomSingleUseScopes(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user, _ := h.session(t, "ana")

	guard := auth.NewGuard(h.tokens, h.store, auth.NewPrincipalStore(h.repos),
		auth.WithSingleUseScopes(auth.ScopeVerifyAccount),
		auth.WithBlacklistPrefix("revoked:"),
		auth.WithGuardLogger(nopLogger{}),
	)

	token, err := h.tokens.Issue(user.ID.String(), auth.ScopeVerifyAccount, time.Minute)
	require.NoError(t, err)

	_, err = guard.Authorize(ctx, token, auth.ScopedUser(auth.ScopeVerifyAccount))
	require.NoError(t, err)

	ok, err := h.store.Exists(ctx, auth.BlacklistKey("revoked:", token))
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = guard.Authorize(ctx, token, auth.ScopedUser(auth.ScopeVerifyAccount))
	assert.ErrorIs(t, err, auth.ErrTokenRevoked)
}
