package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountType is the capability the user signed up with
type AccountType = string

const (
	AccountTypeAttendee AccountType = "attendee"
	AccountTypeHost     AccountType = "host"
)

// SignupType records how an account was created
type SignupType = string

const (
	SignupLocal    SignupType = "local"
	SignupGoogle   SignupType = "google"
	SignupFacebook SignupType = "facebook"
	SignupApple    SignupType = "apple"
)

// IsSocialSignup reports whether the signup came from an identity provider
// that already verified the email address.
func IsSocialSignup(t SignupType) bool {
	switch strings.ToLower(t) {
	case SignupGoogle, SignupFacebook, SignupApple:
		return true
	}
	return false
}

// User is the principal record
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID   `bun:"id,pk,nullzero,type:uuid" json:"id"`
	Username      string      `bun:"username,notnull,unique" json:"username"`
	Email         string      `bun:"email,notnull,unique" json:"email"`
	FirstName     string      `bun:"first_name,notnull" json:"first_name"`
	LastName      string      `bun:"last_name,notnull" json:"last_name"`
	PasswordHash  string      `bun:"password_hash" json:"-"`
	AccountType   AccountType `bun:"account_type,notnull" json:"account_type"`
	SignupType    SignupType  `bun:"signup_type,notnull" json:"signup_type"`
	IsActive      bool        `bun:"is_active,notnull" json:"is_active"`
	Verified      bool        `bun:"is_verified,notnull" json:"is_verified"`
	LoggedInAt    *time.Time  `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	CreatedAt     *time.Time  `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time  `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Attendee is the attendee capability sub-record of a user
type Attendee struct {
	bun.BaseModel      `bun:"table:attendees,alias:att"`
	ID                 uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id"`
	UserID             uuid.UUID  `bun:"user_id,notnull,unique,type:uuid" json:"user_id"`
	PreferredEventType string     `bun:"preferred_event_type" json:"preferred_event_type,omitempty"`
	User               *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	CreatedAt          *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Host is the host capability sub-record of a user
type Host struct {
	bun.BaseModel       `bun:"table:hosts,alias:hst"`
	ID                  uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id"`
	UserID              uuid.UUID  `bun:"user_id,notnull,unique,type:uuid" json:"user_id"`
	OrganizationName    string     `bun:"organization_name" json:"organization_name,omitempty"`
	OrganizationWebsite string     `bun:"organization_website" json:"organization_website,omitempty"`
	CreatedAt           *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}
