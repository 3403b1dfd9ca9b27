package api

import (
	"context"
	"net/http"
	"time"

	"github.com/goliatone/go-router"
)

func (c *Controller) Login(ctx router.Context) error {
	payload := new(LoginRequest)
	if err := c.bind(ctx, payload); err != nil {
		return err
	}

	session, err := c.accounts.Login(ctx.Context(), payload.Identifier, payload.Password)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"id":           session.User.ID,
		"username":     session.User.Username,
		"email":        session.User.Email,
		"access_token": session.Token,
		"token_type":   "Bearer",
		"expires_at":   session.ExpiresAt,
	})
}

func (c *Controller) Logout(ctx router.Context) error {
	p, err := c.principal(ctx)
	if err != nil {
		return err
	}

	if err := c.accounts.Logout(ctx.Context(), p); err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"message": "Successfully logged out",
	})
}

func (c *Controller) VerifyOTP(ctx router.Context) error {
	payload := new(VerifyOTPRequest)
	if err := c.bind(ctx, payload); err != nil {
		return err
	}

	token, err := c.accounts.VerifyOTP(ctx.Context(), payload.Email, payload.OTP)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"message": "OTP verified",
		"token":   token,
	})
}

// ResendOTP answers the same way whether or not the email is registered
func (c *Controller) ResendOTP(ctx router.Context) error {
	payload := new(EmailRequest)
	if err := c.bind(ctx, payload); err != nil {
		return err
	}

	if err := c.accounts.ResendOTP(ctx.Context(), payload.Email); err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"message": "If the email is registered a new OTP has been sent",
	})
}

func (c *Controller) VerifyAccount(ctx router.Context) error {
	p, err := c.principal(ctx)
	if err != nil {
		return err
	}

	if err := c.accounts.VerifyAccount(ctx.Context(), p); err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"message": "Account verified",
	})
}

func (c *Controller) ActivateAccount(ctx router.Context) error {
	p, err := c.principal(ctx)
	if err != nil {
		return err
	}

	if err := c.accounts.ActivateAccount(ctx.Context(), p); err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"message": "Account activated",
	})
}

func (c *Controller) Signup(ctx router.Context) error {
	payload := new(SignupRequest)
	if err := c.bind(ctx, payload); err != nil {
		return err
	}

	user, err := c.accounts.Signup(ctx.Context(), payload.input())
	if err != nil {
		return err
	}

	message := "Account created, check your email for the verification code"
	if user.Verified {
		message = "Account created"
	}

	return ctx.JSON(http.StatusCreated, map[string]any{
		"id":          user.ID,
		"username":    user.Username,
		"email":       user.Email,
		"is_verified": user.Verified,
		"message":     message,
	})
}

// Health probes every registered dependency with a short timeout
func (c *Controller) Health(ctx router.Context) error {
	probe, cancel := context.WithTimeout(ctx.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := map[string]string{}
	for name, check := range c.checks {
		if err := check(probe); err != nil {
			c.logger.Warn("health check %s failed: %v", name, err)
			checks[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	body := map[string]any{"status": "ok", "checks": checks}
	if status != http.StatusOK {
		body["status"] = "unavailable"
	}

	return ctx.JSON(status, body)
}

func (c *Controller) Me(ctx router.Context) error {
	p, err := c.principal(ctx)
	if err != nil {
		return err
	}

	profile, err := c.accounts.Profile(ctx.Context(), p.User.ID)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"user":     profile.User,
		"attendee": profile.Attendee,
		"host":     profile.Host,
		"scope":    p.Scope(),
	})
}

func (c *Controller) DeleteAccount(ctx router.Context) error {
	p, err := c.principal(ctx)
	if err != nil {
		return err
	}

	if err := c.accounts.DeactivateAccount(ctx.Context(), p); err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"message": "Account deactivated",
	})
}

func (c *Controller) UpdateProfile(ctx router.Context) error {
	p, err := c.principal(ctx)
	if err != nil {
		return err
	}

	payload := new(ProfileRequest)
	if err := c.bind(ctx, payload); err != nil {
		return err
	}
	c.debug("update profile", payload)

	user, err := c.accounts.UpdateProfile(ctx.Context(), p, payload.patch())
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, user)
}

func (c *Controller) SwitchScope(ctx router.Context) error {
	p, err := c.principal(ctx)
	if err != nil {
		return err
	}

	payload := new(SwitchScopeRequest)
	if err := c.bindOptional(ctx, payload); err != nil {
		return err
	}

	switched, err := c.accounts.SwitchScope(ctx.Context(), p, payload.TargetScope)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"new_access_token": switched.Token,
		"new_scope":        switched.Scope,
		"message":          "Switched scope from " + switched.PrevScope + " to " + switched.Scope,
	})
}
