package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/goliatone/go-here/attendance"
	"github.com/goliatone/go-here/auth"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// eventType rejects every event type but physical
func eventType(ctx router.Context) error {
	if !strings.EqualFold(ctx.Param("event_type"), attendance.EventTypePhysical) {
		return attendance.ErrUnsupportedEventType
	}
	return nil
}

func eventID(ctx router.Context) (uuid.UUID, error) {
	if err := eventType(ctx); err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return uuid.Nil, invalidField(map[string]string{"id": "must be a valid UUID"})
	}
	return id, nil
}

func (c *Controller) host(ctx router.Context) (*auth.Host, error) {
	p, err := c.principal(ctx)
	if err != nil {
		return nil, err
	}
	if p.Host == nil {
		return nil, auth.ErrPrincipalNotFound
	}
	return p.Host, nil
}

func (c *Controller) attendee(ctx router.Context) (*auth.Attendee, error) {
	p, err := c.principal(ctx)
	if err != nil {
		return nil, err
	}
	if p.Attendee == nil {
		return nil, auth.ErrPrincipalNotFound
	}
	return p.Attendee, nil
}

func (c *Controller) CreateEvent(ctx router.Context) error {
	if err := eventType(ctx); err != nil {
		return err
	}

	host, err := c.host(ctx)
	if err != nil {
		return err
	}

	payload := new(attendance.EventInput)
	if err := ctx.Bind(payload); err != nil {
		return invalidPayload(err)
	}
	c.debug("create event", payload)

	event, err := c.engine.CreateEvent(ctx.Context(), host.ID, *payload)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusCreated, event)
}

func (c *Controller) ListEvents(ctx router.Context) error {
	if err := eventType(ctx); err != nil {
		return err
	}

	filter := attendance.EventFilter{
		Status: strings.ToLower(ctx.Query("status", "")),
	}

	fields := map[string]string{}
	if raw := ctx.Query("host_id", ""); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			fields["host_id"] = "must be a valid UUID"
		}
		filter.HostID = id
	}
	if raw := ctx.Query("limit", ""); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			fields["limit"] = "must be a positive number"
		}
		filter.Limit = n
	}
	if raw := ctx.Query("offset", ""); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			fields["offset"] = "must be a positive number"
		}
		filter.Offset = n
	}
	if len(fields) > 0 {
		return invalidField(fields)
	}

	filter = filter.Normalized()
	events, total, err := c.engine.ListEvents(ctx.Context(), filter)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"events": events,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

func (c *Controller) GetEvent(ctx router.Context) error {
	id, err := eventID(ctx)
	if err != nil {
		return err
	}

	event, err := c.engine.GetEvent(ctx.Context(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, event)
}

func (c *Controller) UpdateEvent(ctx router.Context) error {
	id, err := eventID(ctx)
	if err != nil {
		return err
	}

	host, err := c.host(ctx)
	if err != nil {
		return err
	}

	payload := new(attendance.EventInput)
	if err := ctx.Bind(payload); err != nil {
		return invalidPayload(err)
	}
	c.debug("update event", payload)

	event, err := c.engine.UpdateEvent(ctx.Context(), host.ID, id, *payload)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, event)
}

func (c *Controller) CancelEvent(ctx router.Context) error {
	id, err := eventID(ctx)
	if err != nil {
		return err
	}

	host, err := c.host(ctx)
	if err != nil {
		return err
	}

	payload := new(CancelRequest)
	if err := c.bindOptional(ctx, payload); err != nil {
		return err
	}

	event, err := c.engine.CancelEvent(ctx.Context(), host.ID, id, payload.Reason)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, event)
}

func (c *Controller) StartEvent(ctx router.Context) error {
	id, err := eventID(ctx)
	if err != nil {
		return err
	}

	host, err := c.host(ctx)
	if err != nil {
		return err
	}

	event, err := c.engine.StartEvent(ctx.Context(), host.ID, id)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, event)
}

func (c *Controller) CompleteEvent(ctx router.Context) error {
	id, err := eventID(ctx)
	if err != nil {
		return err
	}

	host, err := c.host(ctx)
	if err != nil {
		return err
	}

	result, err := c.engine.CompleteEvent(ctx.Context(), host.ID, id)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"event":    result.Event,
		"no_shows": result.NoShows,
	})
}

func (c *Controller) RSVP(ctx router.Context) error {
	id, err := eventID(ctx)
	if err != nil {
		return err
	}

	attendee, err := c.attendee(ctx)
	if err != nil {
		return err
	}

	record, err := c.engine.RSVP(ctx.Context(), id, attendee.ID)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"message":    "RSVP successful",
		"attendance": record,
	})
}

func (c *Controller) CheckIn(ctx router.Context) error {
	id, err := eventID(ctx)
	if err != nil {
		return err
	}

	attendee, err := c.attendee(ctx)
	if err != nil {
		return err
	}

	payload := new(CheckInRequest)
	if err := c.bindOptional(ctx, payload); err != nil {
		return err
	}

	result, err := c.engine.CheckIn(ctx.Context(), attendance.CheckInInput{
		EventID:        id,
		AttendeeID:     attendee.ID,
		VerifyLocation: payload.VerifyLocation,
		Latitude:       payload.Latitude,
		Longitude:      payload.Longitude,
	})
	if err != nil {
		return err
	}

	message := "Checked in"
	if result.IsLate {
		message = "Checked in late"
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"message":           message,
		"attendance":        result.Record,
		"location_verified": result.LocationVerified,
		"is_late":           result.IsLate,
		"distance_meters":   result.Distance,
	})
}

func (c *Controller) Summary(ctx router.Context) error {
	id, err := eventID(ctx)
	if err != nil {
		return err
	}

	host, err := c.host(ctx)
	if err != nil {
		return err
	}

	summary, err := c.engine.Summarize(ctx.Context(), id, host.ID)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, summary)
}
