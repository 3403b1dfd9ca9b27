package attendance

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// EventStatus is the lifecycle state of an event
type EventStatus = string

const (
	EventScheduled EventStatus = "scheduled"
	EventOngoing   EventStatus = "ongoing"
	EventCompleted EventStatus = "completed"
	EventCancelled EventStatus = "cancelled"
)

// Status is the state of one attendance record
type Status = string

const (
	StatusRegistered Status = "registered"
	StatusCheckedIn  Status = "checked_in"
	StatusNoShow     Status = "no_show"
)

// Profile names how long after start a check-in counts as on time
type Profile = string

const (
	ProfileQuick     Profile = "quick"
	ProfileStandard  Profile = "standard"
	ProfileExtended  Profile = "extended"
	ProfileUnlimited Profile = "unlimited"
)

// Profiles lists every supported attendance profile
var Profiles = []Profile{ProfileQuick, ProfileStandard, ProfileExtended, ProfileUnlimited}

// ProfileWindow returns the on-time window for p. Unlimited has no bound.
// Unknown or empty profiles behave as standard.
func ProfileWindow(p Profile) (time.Duration, bool) {
	switch strings.ToLower(p) {
	case ProfileQuick:
		return 15 * time.Minute, true
	case ProfileExtended:
		return 60 * time.Minute, true
	case ProfileUnlimited:
		return 0, false
	default:
		return 30 * time.Minute, true
	}
}

const (
	EventTypePhysical = "physical"

	VisibilityPublic  = "public"
	VisibilityPrivate = "private"

	// DefaultGeofenceRadius is used when an event has no radius, in meters
	DefaultGeofenceRadius = 100.0
)

// Event is an in-person event owned by a host
type Event struct {
	bun.BaseModel     `bun:"table:events,alias:evt"`
	ID                uuid.UUID   `bun:"id,pk,nullzero,type:uuid" json:"id"`
	HostID            uuid.UUID   `bun:"host_id,notnull,type:uuid" json:"host_id"`
	Title             string      `bun:"title,notnull" json:"title"`
	Description       string      `bun:"description,notnull" json:"description"`
	Category          string      `bun:"category,notnull" json:"category"`
	Visibility        string      `bun:"visibility,notnull" json:"visibility"`
	EventType         string      `bun:"event_type,notnull" json:"event_type"`
	Status            EventStatus `bun:"status,notnull" json:"status"`
	Latitude          float64     `bun:"latitude,notnull" json:"latitude"`
	Longitude         float64     `bun:"longitude,notnull" json:"longitude"`
	GeofenceRadius    *float64    `bun:"geofence_radius" json:"geofence_radius,omitempty"`
	AttendanceProfile Profile     `bun:"attendance_profile,notnull" json:"attendance_profile"`
	StartTime         time.Time   `bun:"start_time,notnull" json:"start_time"`
	EndTime           time.Time   `bun:"end_time,notnull" json:"end_time"`
	CancelReason      string      `bun:"cancel_reason,nullzero" json:"cancel_reason,omitempty"`
	CreatedAt         *time.Time  `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt         *time.Time  `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Geofence is the check-in radius in meters
func (e *Event) Geofence() float64 {
	if e.GeofenceRadius == nil || *e.GeofenceRadius <= 0 {
		return DefaultGeofenceRadius
	}
	return *e.GeofenceRadius
}

// WindowEnd is start plus the profile window, false for unlimited events
func (e *Event) WindowEnd() (time.Time, bool) {
	window, bounded := ProfileWindow(e.AttendanceProfile)
	if !bounded {
		return time.Time{}, false
	}
	return e.StartTime.Add(window), true
}

// IsClosed reports whether the event reached a terminal status
func (e *Event) IsClosed() bool {
	return e.Status == EventCancelled || e.Status == EventCompleted
}

// Attendance links an attendee to an event. UpdatedAt doubles as the
// check-in time once Status is checked in.
type Attendance struct {
	bun.BaseModel `bun:"table:attendances,alias:atn"`
	ID            uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id"`
	EventID       uuid.UUID `bun:"event_id,notnull,type:uuid" json:"event_id"`
	AttendeeID    uuid.UUID `bun:"attendee_id,notnull,type:uuid" json:"attendee_id"`
	Status        Status    `bun:"status,notnull" json:"status"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// CheckedInAt returns the check-in time, nil unless checked in
func (a *Attendance) CheckedInAt() *time.Time {
	if a.Status != StatusCheckedIn {
		return nil
	}
	t := a.UpdatedAt
	return &t
}
