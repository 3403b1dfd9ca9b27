package jwtware_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-here/auth"
	"github.com/goliatone/go-here/middleware/jwtware"
)

type mockAuthorizer struct {
	mock.Mock
}

func (m *mockAuthorizer) Authorize(ctx context.Context, raw string, req auth.Requirement) (*auth.Principal, error) {
	args := m.Called(raw, req)
	p, _ := args.Get(0).(*auth.Principal)
	return p, args.Error(1)
}

func newContext(header string) *router.MockContext {
	ctx := router.NewMockContext()
	ctx.HeadersM["Authorization"] = header
	ctx.On("GetString", "Authorization", "").Return(header)
	ctx.On("Context").Return(context.Background())
	ctx.On("SetContext", mock.Anything).Return()
	ctx.On("Locals", auth.DefaultPrincipalKey, mock.Anything).Return(nil)
	return ctx
}

func TestGuardMiddlewareStoresPrincipal(t *testing.T) {
	principal := &auth.Principal{
		Kind: auth.PrincipalAttendee,
		User: &auth.User{ID: uuid.New()},
	}

	authorizer := &mockAuthorizer{}
	authorizer.On("Authorize", "token-123", auth.SessionAttendee()).Return(principal, nil)

	var errs []error
	mw := jwtware.New(jwtware.Config{
		Authorizer:  authorizer,
		Requirement: auth.SessionAttendee(),
		ErrorHandler: func(ctx router.Context, err error) error {
			errs = append(errs, err)
			return err
		},
	})

	called := false
	handler := mw(func(ctx router.Context) error {
		called = true
		return nil
	})

	ctx := newContext("Bearer token-123")
	require.NoError(t, handler(ctx))
	assert.True(t, called)
	assert.Empty(t, errs)
	assert.Same(t, principal, ctx.LocalsMock[auth.DefaultPrincipalKey])
	authorizer.AssertExpectations(t)
}

func TestGuardMiddlewareRejectsMissingBearer(t *testing.T) {
	cases := []string{"", "Bearer", "Bearer ", "Basic abc", "Bearertoken"}

	for _, header := range cases {
		t.Run(header, func(t *testing.T) {
			authorizer := &mockAuthorizer{}

			var captured error
			mw := jwtware.New(jwtware.Config{
				Authorizer:  authorizer,
				Requirement: auth.SessionUser(),
				ErrorHandler: func(ctx router.Context, err error) error {
					captured = err
					return err
				},
			})

			called := false
			err := mw(func(ctx router.Context) error {
				called = true
				return nil
			})(newContext(header))

			assert.Error(t, err)
			assert.False(t, called)
			assert.ErrorIs(t, captured, auth.ErrUnauthenticated)
			authorizer.AssertNotCalled(t, "Authorize", mock.Anything, mock.Anything)
		})
	}
}

func TestGuardMiddlewarePropagatesGuardErrors(t *testing.T) {
	authorizer := &mockAuthorizer{}
	authorizer.On("Authorize", "revoked", auth.SessionHost()).Return(nil, auth.ErrTokenRevoked)

	var captured error
	mw := jwtware.New(jwtware.Config{
		Authorizer:  authorizer,
		Requirement: auth.SessionHost(),
		ErrorHandler: func(ctx router.Context, err error) error {
			captured = err
			return nil
		},
	})

	called := false
	err := mw(func(ctx router.Context) error {
		called = true
		return nil
	})(newContext("bearer revoked"))

	require.NoError(t, err)
	assert.False(t, called)
	assert.ErrorIs(t, captured, auth.ErrTokenRevoked)
}

func TestGuardMiddlewareFilterSkips(t *testing.T) {
	authorizer := &mockAuthorizer{}
	mw := jwtware.New(jwtware.Config{
		Authorizer: authorizer,
		Filter:     func(router.Context) bool { return true },
	})

	called := false
	err := mw(func(ctx router.Context) error {
		called = true
		return nil
	})(router.NewMockContext())

	require.NoError(t, err)
	assert.True(t, called)
	authorizer.AssertNotCalled(t, "Authorize", mock.Anything, mock.Anything)
}

func TestGuardMiddlewareRequiresAuthorizer(t *testing.T) {
	assert.Panics(t, func() {
		jwtware.New(jwtware.Config{})
	})
}

func TestGetExtractors(t *testing.T) {
	assert.Len(t, jwtware.GetExtractors("header:Authorization,query:token,cookie:jwt"), 3)
	assert.Len(t, jwtware.GetExtractors("header:Authorization,bogus"), 1)
}
