package attendance

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
)

const (
	TextCodeEventNotFound      = "EVENT_NOT_FOUND"
	TextCodeInvalidEventState  = "INVALID_EVENT_STATE"
	TextCodeAlreadyRegistered  = "ALREADY_REGISTERED"
	TextCodeNoRSVP             = "NO_RSVP"
	TextCodeAlreadyCheckedIn   = "ALREADY_CHECKED_IN"
	TextCodeNotStarted         = "EVENT_NOT_STARTED"
	TextCodeWindowClosed       = "ATTENDANCE_WINDOW_CLOSED"
	TextCodeEventEnded         = "EVENT_ENDED"
	TextCodeMissingCoordinates = "MISSING_COORDINATES"
	TextCodeTooFar             = "TOO_FAR"
	TextCodeNotEventHost       = "NOT_EVENT_HOST"
	TextCodeInvalidTransition  = "INVALID_EVENT_TRANSITION"
	TextCodeTerminalState      = "TERMINAL_EVENT_STATE"
	TextCodeUnsupportedType    = "UNSUPPORTED_EVENT_TYPE"
	TextCodeInvalidEvent       = "INVALID_EVENT"
)

var ErrEventNotFound = errors.New("event not found", errors.CategoryNotFound).
	WithTextCode(TextCodeEventNotFound).
	WithCode(errors.CodeNotFound)

// ErrInvalidEventState is returned for RSVPs and edits on cancelled or completed events
var ErrInvalidEventState = errors.New("event does not accept this operation in its current state", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidEventState).
	WithCode(errors.CodeBadRequest)

var ErrAlreadyRegistered = errors.New("already registered for this event", errors.CategoryBadInput).
	WithTextCode(TextCodeAlreadyRegistered).
	WithCode(errors.CodeBadRequest)

var ErrNoRSVP = errors.New("no RSVP found, please RSVP first", errors.CategoryNotFound).
	WithTextCode(TextCodeNoRSVP).
	WithCode(errors.CodeNotFound)

var ErrAlreadyCheckedIn = errors.New("already checked in for this event", errors.CategoryBadInput).
	WithTextCode(TextCodeAlreadyCheckedIn).
	WithCode(errors.CodeBadRequest)

var ErrEventNotStarted = errors.New("event has not started yet", errors.CategoryBadInput).
	WithTextCode(TextCodeNotStarted).
	WithCode(errors.CodeBadRequest)

var ErrWindowClosed = errors.New("attendance window has closed", errors.CategoryBadInput).
	WithTextCode(TextCodeWindowClosed).
	WithCode(errors.CodeBadRequest)

var ErrEventEnded = errors.New("event has ended and been closed", errors.CategoryBadInput).
	WithTextCode(TextCodeEventEnded).
	WithCode(errors.CodeBadRequest)

var ErrMissingCoordinates = errors.New("latitude and longitude are required for location verification", errors.CategoryBadInput).
	WithTextCode(TextCodeMissingCoordinates).
	WithCode(errors.CodeBadRequest)

// ErrTooFar carries distance and limit in its message and metadata
var ErrTooFar = errors.New("too far from the event location", errors.CategoryBadInput).
	WithTextCode(TextCodeTooFar).
	WithCode(errors.CodeBadRequest)

// ErrNotEventHost is returned when a host touches another host's event
var ErrNotEventHost = errors.New("unauthorized: you are not the host of this event", errors.CategoryAuth).
	WithTextCode(TextCodeNotEventHost).
	WithCode(errors.CodeUnauthorized)

var ErrInvalidTransition = errors.New("invalid event state transition", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidTransition).
	WithCode(errors.CodeBadRequest)

// ErrTerminalState is returned when leaving cancelled or completed
var ErrTerminalState = errors.New("event state is terminal", errors.CategoryBadInput).
	WithTextCode(TextCodeTerminalState).
	WithCode(errors.CodeBadRequest)

var ErrUnsupportedEventType = errors.New("only physical events are supported", errors.CategoryBadInput).
	WithTextCode(TextCodeUnsupportedType).
	WithCode(errors.CodeBadRequest)

var ErrInvalidEvent = errors.New("invalid event payload", errors.CategoryValidation).
	WithTextCode(TextCodeInvalidEvent).
	WithCode(errors.CodeBadRequest)

func tooFar(distance, limit float64) error {
	clone := ErrTooFar.Clone()
	if clone == nil {
		return ErrTooFar
	}
	clone.Message = fmt.Sprintf("you are too far from the event location (%.0fm away, max: %.0fm)", distance, limit)
	clone.Source = ErrTooFar
	return clone.WithMetadata(map[string]any{
		"distance_meters": distance,
		"limit_meters":    limit,
	})
}

func transitionError(base *errors.Error, from, to EventStatus) error {
	clone := base.Clone()
	if clone == nil {
		return base
	}
	clone.Message = fmt.Sprintf("%s: %s -> %s", base.Message, from, to)
	clone.Source = base
	return clone.WithMetadata(map[string]any{
		"from": from,
		"to":   to,
	})
}

// detail attaches metadata to a copy of base
func detail(base *errors.Error, meta map[string]any) error {
	clone := base.Clone()
	if clone == nil {
		return base
	}
	clone.Source = base
	return clone.WithMetadata(meta)
}

func internal(err error, msg string) error {
	return errors.Wrap(err, errors.CategoryInternal, msg)
}

// invalidEvent turns ozzo field errors into ErrInvalidEvent with a
// field -> message map in its metadata
func invalidEvent(err error) error {
	fields := map[string]string{}
	if verrs, ok := err.(validation.Errors); ok {
		for field, ferr := range verrs {
			if ferr != nil {
				fields[field] = ferr.Error()
			}
		}
	} else {
		fields["event"] = err.Error()
	}

	clone := ErrInvalidEvent.Clone()
	if clone == nil {
		return ErrInvalidEvent
	}
	clone.Source = ErrInvalidEvent
	return clone.WithMetadata(map[string]any{"fields": fields})
}
