package attendance

import (
	"context"
	"strconv"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-here/auth"
	"github.com/goliatone/go-here/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/goliatone/go-here/attendance")

// OperationTimeout bounds every engine call
const OperationTimeout = 10 * time.Second

// Engine implements RSVP, check-in, the host summary and the event
// lifecycle operations.
type Engine struct {
	repos   RepositoryManager
	machine StateMachine
	logger  Logger
	now     func() time.Time
}

type EngineOption func(*Engine)

func WithEngineLogger(logger Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func NewEngine(repos RepositoryManager, opts ...EngineOption) *Engine {
	e := &Engine{
		repos:  repos,
		logger: defLogger{},
		now:    time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}

	e.machine = NewStateMachine(repos,
		WithStateMachineClock(e.now),
		WithStateMachineLogger(e.logger),
	)

	return e
}

// StateMachine exposes the lifecycle used by the engine
func (e *Engine) StateMachine() StateMachine {
	return e.machine
}

// CheckInInput carries the attendee's check-in request
type CheckInInput struct {
	EventID        uuid.UUID
	AttendeeID     uuid.UUID
	VerifyLocation bool
	Latitude       *float64
	Longitude      *float64
}

// CheckInResult is the updated record plus the evaluation flags
type CheckInResult struct {
	Record           *Attendance
	LocationVerified bool
	IsLate           bool
	Distance         *float64
}

// AttendeeSummary is one row of the host view
type AttendeeSummary struct {
	AttendeeID  uuid.UUID  `json:"attendee_id"`
	UserID      uuid.UUID  `json:"user_id,omitempty"`
	Username    string     `json:"username,omitempty"`
	FirstName   string     `json:"first_name,omitempty"`
	LastName    string     `json:"last_name,omitempty"`
	Status      Status     `json:"status"`
	RSVPAt      time.Time  `json:"rsvp_at"`
	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
	IsLate      bool       `json:"is_late"`
}

// Summary is the attendance overview for one event
type Summary struct {
	EventID    uuid.UUID         `json:"event_id"`
	EventTitle string            `json:"event_title"`
	Status     EventStatus       `json:"event_status"`
	TotalRSVPs int               `json:"total_rsvps"`
	CheckedIn  int               `json:"checked_in"`
	NoShows    int               `json:"no_shows"`
	Late       int               `json:"late_arrivals"`
	Attendees  []AttendeeSummary `json:"attendees"`
}

// RSVP registers attendeeID for eventID
func (e *Engine) RSVP(ctx context.Context, eventID, attendeeID uuid.UUID) (record *Attendance, err error) {
	ctx, span := e.span(ctx, "attendance.RSVP", eventID, attendeeID)
	defer func() {
		endSpan(span, err)
		metrics.RSVPs.WithLabelValues(metrics.Outcome(err)).Inc()
	}()

	ctx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	event, err := e.event(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if event.IsClosed() {
		return nil, detail(ErrInvalidEventState, map[string]any{
			"event_id": eventID.String(),
			"status":   event.Status,
		})
	}

	if _, err := e.repos.Attendances().Find(ctx, eventID, attendeeID); err == nil {
		return nil, ErrAlreadyRegistered
	} else if !auth.IsNotFound(err) {
		return nil, internal(err, "failed to look up attendance")
	}

	now := e.now()
	record, err = e.repos.Attendances().Insert(ctx, &Attendance{
		EventID:    eventID,
		AttendeeID: attendeeID,
		Status:     StatusRegistered,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		if goerrors.Is(err, ErrAlreadyRegistered) {
			return nil, err
		}
		return nil, internal(err, "failed to store attendance")
	}

	e.logger.Debug("attendee %s registered for event %s", attendeeID, eventID)

	return record, nil
}

// CheckIn marks the attendee's RSVP as checked in. Preconditions are
// evaluated in order: event, RSVP, duplicate or no-show, start time, window,
// location. The event status is not consulted.
func (e *Engine) CheckIn(ctx context.Context, in CheckInInput) (result *CheckInResult, err error) {
	ctx, span := e.span(ctx, "attendance.CheckIn", in.EventID, in.AttendeeID)
	defer func() {
		late := false
		if result != nil {
			late = result.IsLate
		}
		endSpan(span, err)
		metrics.CheckIns.WithLabelValues(metrics.Outcome(err), strconv.FormatBool(late)).Inc()
	}()

	ctx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	event, err := e.event(ctx, in.EventID)
	if err != nil {
		return nil, err
	}

	record, err := e.repos.Attendances().Find(ctx, in.EventID, in.AttendeeID)
	if err != nil {
		if auth.IsNotFound(err) {
			return nil, ErrNoRSVP
		}
		return nil, internal(err, "failed to look up attendance")
	}

	if record.Status == StatusCheckedIn {
		return nil, ErrAlreadyCheckedIn
	}

	// no-show is only written once the event completed
	if record.Status == StatusNoShow {
		return nil, ErrWindowClosed
	}

	now := e.now()
	if now.Before(event.StartTime) {
		return nil, detail(ErrEventNotStarted, map[string]any{
			"start_time": event.StartTime,
		})
	}

	isLate, err := evaluateWindow(event, now)
	if err != nil {
		return nil, err
	}

	result = &CheckInResult{IsLate: isLate}

	if in.VerifyLocation {
		if in.Latitude == nil || in.Longitude == nil {
			return nil, ErrMissingCoordinates
		}
		distance := Distance(*in.Latitude, *in.Longitude, event.Latitude, event.Longitude)
		limit := event.Geofence()
		if distance > limit {
			return nil, tooFar(distance, limit)
		}
		metrics.CheckInDistance.Observe(distance)
		result.LocationVerified = true
		result.Distance = &distance
	}

	updated, err := e.repos.Attendances().MarkCheckedIn(ctx, record.ID, now)
	if err != nil {
		return nil, internal(err, "failed to update attendance")
	}
	if !updated {
		return nil, ErrAlreadyCheckedIn
	}

	record.Status = StatusCheckedIn
	record.UpdatedAt = now
	result.Record = record

	span.SetAttributes(
		attribute.Bool("checkin.late", result.IsLate),
		attribute.Bool("checkin.location_verified", result.LocationVerified),
	)

	return result, nil
}

// evaluateWindow applies the attendance profile. Past the window the
// check-in is late unless the event was already completed.
func evaluateWindow(event *Event, now time.Time) (bool, error) {
	if windowEnd, bounded := event.WindowEnd(); bounded {
		if !now.After(windowEnd) {
			return false, nil
		}
		if event.Status == EventCompleted {
			return false, detail(ErrWindowClosed, map[string]any{
				"window_end": windowEnd,
			})
		}
		return true, nil
	}

	if !now.After(event.EndTime) {
		return false, nil
	}
	if event.Status == EventCompleted {
		return false, detail(ErrEventEnded, map[string]any{
			"end_time": event.EndTime,
		})
	}
	return true, nil
}

// Summarize builds the host view of an event's attendance
func (e *Engine) Summarize(ctx context.Context, eventID, hostID uuid.UUID) (summary *Summary, err error) {
	ctx, span := tracer.Start(ctx, "attendance.Summarize", trace.WithAttributes(
		attribute.String("event.id", eventID.String()),
		attribute.String("host.id", hostID.String()),
	))
	defer func() { endSpan(span, err) }()

	ctx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	event, err := e.event(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if event.HostID != hostID {
		return nil, ErrNotEventHost
	}

	records, err := e.repos.Attendances().ListByEvent(ctx, eventID)
	if err != nil {
		return nil, internal(err, "failed to list attendance")
	}

	ids := make([]uuid.UUID, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.AttendeeID)
	}

	attendees, err := e.repos.Attendances().Attendees(ctx, ids)
	if err != nil {
		return nil, internal(err, "failed to load attendees")
	}

	windowEnd, bounded := event.WindowEnd()

	summary = &Summary{
		EventID:    event.ID,
		EventTitle: event.Title,
		Status:     event.Status,
		TotalRSVPs: len(records),
		Attendees:  make([]AttendeeSummary, 0, len(records)),
	}

	for _, r := range records {
		row := AttendeeSummary{
			AttendeeID:  r.AttendeeID,
			Status:      r.Status,
			RSVPAt:      r.CreatedAt,
			CheckedInAt: r.CheckedInAt(),
		}

		switch r.Status {
		case StatusCheckedIn:
			summary.CheckedIn++
			if bounded && r.UpdatedAt.After(windowEnd) {
				row.IsLate = true
				summary.Late++
			}
		case StatusNoShow:
			summary.NoShows++
		}

		if a, ok := attendees[r.AttendeeID]; ok && a.User != nil {
			row.UserID = a.UserID
			row.Username = a.User.Username
			row.FirstName = a.User.FirstName
			row.LastName = a.User.LastName
		}

		summary.Attendees = append(summary.Attendees, row)
	}

	return summary, nil
}

func (e *Engine) event(ctx context.Context, id uuid.UUID) (*Event, error) {
	event, err := e.repos.Events().GetByID(ctx, id.String())
	if err != nil {
		if auth.IsNotFound(err) {
			return nil, ErrEventNotFound
		}
		return nil, internal(err, "failed to load event")
	}
	return event, nil
}

func (e *Engine) span(ctx context.Context, name string, eventID, attendeeID uuid.UUID) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("event.id", eventID.String()),
		attribute.String("attendee.id", attendeeID.String()),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
