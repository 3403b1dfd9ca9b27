package api

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-here/auth"
)

// LoginRequest payload, identifier is a username or an email
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, validation.Required, validation.Length(3, 100)),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
	)
}

type EmailRequest struct {
	Email string `json:"email"`
}

func (r EmailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

func (r VerifyOTPRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.OTP, validation.Required, validation.Length(6, 6), is.Digit),
	)
}

// SignupRequest payload
type SignupRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	AccountType string `json:"account_type"`
	SignupType  string `json:"signup_type"`
}

func (r SignupRequest) Validate() error {
	password := []validation.Rule{validation.Length(8, 100)}
	if !auth.IsSocialSignup(r.SignupType) {
		password = append(password, validation.Required)
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(3, 50), is.PrintableASCII),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, password...),
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.AccountType, validation.In(auth.AccountTypeAttendee, auth.AccountTypeHost)),
		validation.Field(&r.SignupType, validation.In(auth.SignupLocal, auth.SignupGoogle, auth.SignupFacebook, auth.SignupApple)),
	)
}

func (r SignupRequest) input() auth.SignupInput {
	in := auth.SignupInput{
		Username:    r.Username,
		Email:       r.Email,
		Password:    r.Password,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		AccountType: r.AccountType,
		SignupType:  strings.ToLower(r.SignupType),
	}
	if in.AccountType == "" {
		in.AccountType = auth.AccountTypeAttendee
	}
	if in.SignupType == "" {
		in.SignupType = auth.SignupLocal
	}
	return in
}

// ProfileRequest only changes the fields that are present
type ProfileRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Username  *string `json:"username"`
}

func (r ProfileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.NilOrNotEmpty, validation.Length(1, 100)),
		validation.Field(&r.LastName, validation.NilOrNotEmpty, validation.Length(1, 100)),
		validation.Field(&r.Username, validation.NilOrNotEmpty, validation.Length(3, 50)),
	)
}

func (r ProfileRequest) patch() auth.ProfilePatch {
	return auth.ProfilePatch{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Username:  r.Username,
	}
}

type SwitchScopeRequest struct {
	TargetScope string `json:"target_scope"`
}

func (r SwitchScopeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.TargetScope, validation.Length(0, 32)),
	)
}

// CheckInRequest payload, coordinates are required when verifying location
type CheckInRequest struct {
	VerifyLocation bool     `json:"verify_location"`
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
}

func (r CheckInRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Latitude, validation.Min(-90.0), validation.Max(90.0)),
		validation.Field(&r.Longitude, validation.Min(-180.0), validation.Max(180.0)),
	)
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

func (r CancelRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Reason, validation.Length(0, 500)),
	)
}
