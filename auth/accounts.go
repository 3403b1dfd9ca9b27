package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SignupInput is the data needed to create an account
type SignupInput struct {
	Username    string
	Email       string
	Password    string
	FirstName   string
	LastName    string
	AccountType AccountType
	SignupType  SignupType
}

// Profile is a user with both capability records
type Profile struct {
	User     *User
	Attendee *Attendee
	Host     *Host
}

// Signup creates the user together with its attendee and host records.
// Social signups are created verified; local signups are mailed a one-time
// code.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during signup")
	default:
		return s.signup(ctx, in)
	}
}

func (s *Service) signup(ctx context.Context, in SignupInput) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	social := IsSocialSignup(in.SignupType)

	password := in.Password
	if password == "" && social {
		password = uuid.NewString()
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &User{
		Username:     strings.TrimSpace(in.Username),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		PasswordHash: hash,
		AccountType:  in.AccountType,
		SignupType:   strings.ToLower(in.SignupType),
		IsActive:     true,
		Verified:     social,
	}
	if id, err := hashid.NewUUID(user.Email); err == nil {
		user.ID = id
	}

	err = s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		created, err := s.repos.Users().RegisterTx(ctx, tx, user)
		if err != nil {
			return err
		}
		user = created

		if _, err := s.repos.Attendees().CreateTx(ctx, tx, &Attendee{ID: uuid.New(), UserID: user.ID}); err != nil {
			return err
		}
		if _, err := s.repos.Hosts().CreateTx(ctx, tx, &Host{ID: uuid.New(), UserID: user.ID}); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		if goerrors.Is(err, ErrAccountExists) {
			return nil, ErrAccountExists
		}
		return nil, internal(err, "signup transaction failed")
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType:  ActivityEventAccountCreated,
		UserID:     user.ID.String(),
		Metadata:   map[string]any{"signup_type": user.SignupType},
		OccurredAt: s.now(),
	})

	if err := s.welcome(ctx, user); err != nil {
		s.logger.Error("failed to send welcome message to %s: %v", user.ID, err)
	}

	return user, nil
}

func (s *Service) welcome(ctx context.Context, user *User) error {
	if user.Verified {
		return s.send(ctx, user.Email, TemplateWelcomeVerified, map[string]any{
			"username": user.Username,
		})
	}

	code, err := s.IssueOTP(ctx, user.Email)
	if err != nil {
		return err
	}

	return s.send(ctx, user.Email, TemplateWelcomeOTP, map[string]any{
		"username": user.Username,
		"otp":      code,
		"expires":  int(s.otpTTL.Minutes()),
	})
}

// Profile loads the user with its capability records
func (s *Service) Profile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	user, err := s.repos.Users().GetByID(ctx, userID.String())
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrPrincipalNotFound
		}
		return nil, internal(err, "failed to load user")
	}

	profile := &Profile{User: user}

	if profile.Attendee, err = s.repos.Attendees().GetByIdentifier(ctx, userID.String()); err != nil && !IsNotFound(err) {
		return nil, internal(err, "failed to load attendee")
	}
	if profile.Host, err = s.repos.Hosts().GetByIdentifier(ctx, userID.String()); err != nil && !IsNotFound(err) {
		return nil, internal(err, "failed to load host")
	}

	return profile, nil
}

// UpdateProfile applies patch to the principal's user record
func (s *Service) UpdateProfile(ctx context.Context, p *Principal, patch ProfilePatch) (*User, error) {
	user, err := s.repos.Users().UpdateProfile(ctx, p.User.ID, patch)
	if err != nil {
		if goerrors.Is(err, ErrAccountExists) {
			return nil, ErrAccountExists
		}
		return nil, internal(err, "failed to update profile")
	}
	return user, nil
}

// VerifyAccount marks the principal verified. p comes from a consumed otp token.
func (s *Service) VerifyAccount(ctx context.Context, p *Principal) error {
	if err := s.repos.Users().SetVerified(ctx, p.User.ID, true); err != nil {
		return internal(err, "failed to verify account")
	}
	p.User.Verified = true

	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType:  ActivityEventAccountVerified,
		UserID:     p.User.ID.String(),
		OccurredAt: s.now(),
	})
	return nil
}

// ActivateAccount re-enables a disabled account. p comes from a consumed otp token.
func (s *Service) ActivateAccount(ctx context.Context, p *Principal) error {
	if err := s.repos.Users().SetActive(ctx, p.User.ID, true); err != nil {
		return internal(err, "failed to activate account")
	}
	p.User.IsActive = true

	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType:  ActivityEventAccountActivated,
		UserID:     p.User.ID.String(),
		OccurredAt: s.now(),
	})
	return nil
}

// DeactivateAccount disables the account and revokes the presented token
func (s *Service) DeactivateAccount(ctx context.Context, p *Principal) error {
	if err := s.repos.Users().SetActive(ctx, p.User.ID, false); err != nil {
		return internal(err, "failed to deactivate account")
	}
	p.User.IsActive = false

	if err := s.revoke(ctx, p, "deactivate"); err != nil {
		return err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType:  ActivityEventAccountDeactivated,
		UserID:     p.User.ID.String(),
		OccurredAt: s.now(),
	})
	return nil
}
