package attendance

import (
	"context"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
)

// EventInput holds the host editable fields of an event
type EventInput struct {
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	Category          string    `json:"category"`
	Visibility        string    `json:"visibility"`
	Latitude          float64   `json:"latitude"`
	Longitude         float64   `json:"longitude"`
	GeofenceRadius    *float64  `json:"geofence_radius,omitempty"`
	AttendanceProfile Profile   `json:"attendance_profile,omitempty"`
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
}

func (i EventInput) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.Title, validation.Required, validation.Length(3, 200)),
		validation.Field(&i.Description, validation.Length(0, 2000)),
		validation.Field(&i.Category, validation.Length(0, 100)),
		validation.Field(&i.Visibility, validation.In(VisibilityPublic, VisibilityPrivate)),
		validation.Field(&i.Latitude, validation.Min(-90.0), validation.Max(90.0)),
		validation.Field(&i.Longitude, validation.Min(-180.0), validation.Max(180.0)),
		validation.Field(&i.GeofenceRadius, validation.Min(10.0), validation.Max(10000.0)),
		validation.Field(&i.AttendanceProfile, validation.In(profileValues()...)),
		validation.Field(&i.StartTime, validation.Required),
		validation.Field(&i.EndTime, validation.Required, validation.By(after(i.StartTime))),
	)
}

func profileValues() []interface{} {
	out := make([]interface{}, 0, len(Profiles))
	for _, p := range Profiles {
		out = append(out, p)
	}
	return out
}

func after(start time.Time) validation.RuleFunc {
	return func(value interface{}) error {
		end, ok := value.(time.Time)
		if !ok || start.IsZero() {
			return nil
		}
		if !end.After(start) {
			return errors.New("must be after start_time")
		}
		return nil
	}
}

func (i EventInput) apply(event *Event) {
	event.Title = strings.TrimSpace(i.Title)
	event.Description = strings.TrimSpace(i.Description)
	event.Category = strings.TrimSpace(i.Category)
	event.Visibility = i.Visibility
	if event.Visibility == "" {
		event.Visibility = VisibilityPublic
	}
	event.Latitude = i.Latitude
	event.Longitude = i.Longitude
	event.GeofenceRadius = i.GeofenceRadius
	event.AttendanceProfile = strings.ToLower(i.AttendanceProfile)
	if event.AttendanceProfile == "" {
		event.AttendanceProfile = ProfileStandard
	}
	event.StartTime = i.StartTime
	event.EndTime = i.EndTime
}

// CreateEvent stores a new scheduled physical event owned by hostID
func (e *Engine) CreateEvent(ctx context.Context, hostID uuid.UUID, in EventInput) (*Event, error) {
	if err := in.Validate(); err != nil {
		return nil, invalidEvent(err)
	}

	ctx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	now := e.now()
	event := &Event{
		ID:        uuid.New(),
		HostID:    hostID,
		EventType: EventTypePhysical,
		Status:    EventScheduled,
		CreatedAt: &now,
		UpdatedAt: &now,
	}
	in.apply(event)

	created, err := e.repos.Events().Create(ctx, event)
	if err != nil {
		return nil, internal(err, "failed to create event")
	}

	e.logger.Info("host %s created event %s", hostID, created.ID)

	return created, nil
}

func (e *Engine) GetEvent(ctx context.Context, id uuid.UUID) (*Event, error) {
	ctx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()
	return e.event(ctx, id)
}

func (e *Engine) ListEvents(ctx context.Context, filter EventFilter) ([]*Event, int, error) {
	ctx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	records, total, err := e.repos.Events().ListFiltered(ctx, filter)
	if err != nil {
		return nil, 0, internal(err, "failed to list events")
	}
	return records, total, nil
}

// UpdateEvent replaces the editable fields. Closed events are immutable.
func (e *Engine) UpdateEvent(ctx context.Context, hostID, id uuid.UUID, in EventInput) (*Event, error) {
	if err := in.Validate(); err != nil {
		return nil, invalidEvent(err)
	}

	ctx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	event, err := e.ownedEvent(ctx, hostID, id)
	if err != nil {
		return nil, err
	}

	if event.IsClosed() {
		return nil, detail(ErrInvalidEventState, map[string]any{
			"event_id": id.String(),
			"status":   event.Status,
		})
	}

	in.apply(event)
	now := e.now()
	event.UpdatedAt = &now

	ok, err := e.repos.Events().UpdateDetails(ctx, event)
	if err != nil {
		return nil, internal(err, "failed to update event")
	}
	if !ok {
		return nil, ErrInvalidEventState
	}

	return event, nil
}

// CancelEvent moves a scheduled or ongoing event to cancelled
func (e *Engine) CancelEvent(ctx context.Context, hostID, id uuid.UUID, reason string) (*Event, error) {
	ctx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	event, err := e.ownedEvent(ctx, hostID, id)
	if err != nil {
		return nil, err
	}

	if event.IsClosed() {
		return nil, detail(ErrInvalidEventState, map[string]any{
			"event_id": id.String(),
			"status":   event.Status,
		})
	}

	res, err := e.machine.Transition(ctx, HostActor(hostID), event, EventCancelled,
		WithTransitionReason(strings.TrimSpace(reason)),
	)
	if err != nil {
		return nil, err
	}
	return res.Event, nil
}

func (e *Engine) StartEvent(ctx context.Context, hostID, id uuid.UUID) (*Event, error) {
	ctx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	event, err := e.ownedEvent(ctx, hostID, id)
	if err != nil {
		return nil, err
	}

	res, err := e.machine.Transition(ctx, HostActor(hostID), event, EventOngoing)
	if err != nil {
		return nil, err
	}
	return res.Event, nil
}

// CompleteEvent closes the event and marks registered attendees as no-show
func (e *Engine) CompleteEvent(ctx context.Context, hostID, id uuid.UUID) (*TransitionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	event, err := e.ownedEvent(ctx, hostID, id)
	if err != nil {
		return nil, err
	}

	return e.machine.Transition(ctx, HostActor(hostID), event, EventCompleted)
}

func (e *Engine) ownedEvent(ctx context.Context, hostID, id uuid.UUID) (*Event, error) {
	event, err := e.event(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.HostID != hostID {
		return nil, ErrNotEventHost
	}
	return event, nil
}
