package auth

// PrincipalKind discriminates the capability a principal was resolved for
type PrincipalKind int

const (
	PrincipalUser PrincipalKind = iota
	PrincipalAttendee
	PrincipalHost
)

func (k PrincipalKind) String() string {
	switch k {
	case PrincipalAttendee:
		return "attendee"
	case PrincipalHost:
		return "host"
	default:
		return "user"
	}
}

// Principal is the authenticated identity for one request. Attendee is set
// only for PrincipalAttendee and Host only for PrincipalHost.
type Principal struct {
	Kind     PrincipalKind
	User     *User
	Attendee *Attendee
	Host     *Host
	Claims   *Claims
	Token    string
}

// Verified reports the user's verified flag
func (p *Principal) Verified() bool {
	return p != nil && p.User != nil && p.User.Verified
}

// Scope is the scope of the presented token
func (p *Principal) Scope() string {
	if p == nil || p.Claims == nil {
		return ""
	}
	return p.Claims.Scope
}

// Requirement describes what a handler expects from the caller
type Requirement struct {
	Kind PrincipalKind
	// Scopes lists the accepted token scopes. Empty accepts any scope.
	Scopes          []string
	RequireVerified bool
	AllowDisabled   bool
}

// Verified returns a copy that also requires a verified principal
func (r Requirement) Verified() Requirement {
	r.RequireVerified = true
	return r
}

// SessionUser accepts any session token
func SessionUser() Requirement {
	return Requirement{Kind: PrincipalUser, Scopes: SessionScopes}
}

// SessionAttendee accepts access or attendee tokens and loads the attendee record
func SessionAttendee() Requirement {
	return Requirement{Kind: PrincipalAttendee, Scopes: []string{ScopeAccess, ScopeAttendee}}
}

// SessionHost accepts access or host tokens and loads the host record
func SessionHost() Requirement {
	return Requirement{Kind: PrincipalHost, Scopes: []string{ScopeAccess, ScopeHost}}
}

// ScopedUser accepts only tokens carrying exactly scope
func ScopedUser(scope string) Requirement {
	return Requirement{Kind: PrincipalUser, Scopes: []string{scope}}
}
