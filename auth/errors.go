package auth

import (
	"fmt"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeUnauthenticated    = "UNAUTHENTICATED"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeTokenMalformed     = "TOKEN_MALFORMED"
	TextCodeInvalidSignature   = "TOKEN_INVALID_SIGNATURE"
	TextCodeTokenRevoked       = "TOKEN_REVOKED"
	TextCodeScopeMismatch      = "SCOPE_MISMATCH"
	TextCodePrincipalNotFound  = "PRINCIPAL_NOT_FOUND"
	TextCodeAccountDisabled    = "ACCOUNT_DISABLED"
	TextCodeAccountUnverified  = "ACCOUNT_UNVERIFIED"
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeInvalidScope       = "INVALID_SCOPE"
	TextCodeInvalidOTP         = "INVALID_OTP"
	TextCodeAccountExists      = "ACCOUNT_EXISTS"
	TextCodeCredentialMissing  = "CREDENTIAL_NOT_FOUND"
	TextCodeEmptyPassword      = "EMPTY_PASSWORD"
	TextCodeRecordNotFound     = "RECORD_NOT_FOUND"
)

// ErrUnauthenticated is returned for missing or unusable credentials
var ErrUnauthenticated = errors.New("authentication required", errors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired is returned by the token service once exp has passed
var ErrTokenExpired = errors.New("token expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned when a token cannot be parsed
var ErrTokenMalformed = errors.New("token malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidSignature is returned when the token signature does not verify
var ErrInvalidSignature = errors.New("token signature invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidSignature).
	WithCode(errors.CodeUnauthorized)

// ErrTokenRevoked is returned for blacklisted or consumed tokens
var ErrTokenRevoked = errors.New("token has been revoked", errors.CategoryAuth).
	WithTextCode(TextCodeTokenRevoked).
	WithCode(errors.CodeUnauthorized)

// ErrScopeMismatch is returned when a valid token carries the wrong scope
var ErrScopeMismatch = errors.New("invalid token scope", errors.CategoryAuth).
	WithTextCode(TextCodeScopeMismatch).
	WithCode(errors.CodeUnauthorized)

// ErrPrincipalNotFound does not say which record was missing.
var ErrPrincipalNotFound = errors.New("authentication required", errors.CategoryAuth).
	WithTextCode(TextCodePrincipalNotFound).
	WithCode(errors.CodeUnauthorized)

var ErrAccountDisabled = errors.New("account is disabled", errors.CategoryAuthz).
	WithTextCode(TextCodeAccountDisabled).
	WithCode(errors.CodeForbidden)

var ErrAccountUnverified = errors.New("account is not verified", errors.CategoryAuthz).
	WithTextCode(TextCodeAccountUnverified).
	WithCode(errors.CodeForbidden)

// ErrInvalidCredentials covers unknown users, wrong passwords and disabled accounts
var ErrInvalidCredentials = errors.New("invalid credentials", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidScope is returned when a scope switch has no valid target
var ErrInvalidScope = errors.New("no alternate scope available", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidScope).
	WithCode(errors.CodeBadRequest)

var ErrInvalidOTP = errors.New("invalid or expired OTP", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidOTP).
	WithCode(errors.CodeBadRequest)

// ErrAccountExists is returned on signup when username or email are taken
var ErrAccountExists = errors.New("username or email already registered", errors.CategoryConflict).
	WithTextCode(TextCodeAccountExists).
	WithCode(errors.CodeConflict)

// ErrCredentialNotFound is returned by credential stores on missing keys
var ErrCredentialNotFound = errors.New("credential not found", errors.CategoryNotFound).
	WithTextCode(TextCodeCredentialMissing).
	WithCode(errors.CodeNotFound)

var ErrEmptyPassword = errors.New("password can not be empty", errors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(errors.CodeBadRequest)

// ErrRecordNotFound is returned by the repositories for missing rows
var ErrRecordNotFound = errors.New("record not found", errors.CategoryNotFound).
	WithTextCode(TextCodeRecordNotFound).
	WithCode(errors.CodeNotFound)

// NewRecordNotFound returns ErrRecordNotFound carrying the lookup keys
func NewRecordNotFound(meta map[string]any) error {
	return withDetail(ErrRecordNotFound, "", meta)
}

func withDetail(base *errors.Error, message string, meta map[string]any) error {
	clone := base.Clone()
	if clone == nil {
		return base
	}
	if message != "" {
		clone.Message = message
	}
	clone.Source = base
	if len(meta) == 0 {
		return clone
	}
	return clone.WithMetadata(meta)
}

func scopeMismatch(expected []string, got string) error {
	return withDetail(ErrScopeMismatch, "", map[string]any{
		"expected": expected,
		"scope":    got,
	})
}

func invalidScope(from, to string) error {
	msg := fmt.Sprintf("can not switch scope from %q", from)
	if to != "" {
		msg = fmt.Sprintf("can not switch scope from %q to %q", from, to)
	}
	return withDetail(ErrInvalidScope, msg, map[string]any{
		"from": from,
		"to":   to,
	})
}

func internal(err error, msg string) error {
	return errors.Wrap(err, errors.CategoryInternal, msg)
}
