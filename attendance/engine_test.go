package attendance_test

import (
	"context"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-here/attendance"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRSVP(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a registered record", func(t *testing.T) {
		f := newFixture(t)
		event := f.createEvent(t, attendance.ProfileStandard)

		record, err := f.engine.RSVP(ctx, event.ID, f.guest.Attendee.ID)
		require.NoError(t, err)
		assert.Equal(t, attendance.StatusRegistered, record.Status)
		assert.Equal(t, event.ID, record.EventID)
		assert.True(t, record.CreatedAt.Equal(f.clock.Now()))
	})

	t.Run("second rsvp fails already registered", func(t *testing.T) {
		f := newFixture(t)
		event := f.createEvent(t, attendance.ProfileStandard)
		f.rsvp(t, event.ID)

		_, err := f.engine.RSVP(ctx, event.ID, f.guest.Attendee.ID)
		assert.ErrorIs(t, err, attendance.ErrAlreadyRegistered)
	})

	t.Run("unknown event", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.engine.RSVP(ctx, uuid.New(), f.guest.Attendee.ID)
		assert.ErrorIs(t, err, attendance.ErrEventNotFound)
	})

	t.Run("closed events reject rsvp", func(t *testing.T) {
		for _, status := range []attendance.EventStatus{attendance.EventCancelled, attendance.EventCompleted} {
			f := newFixture(t)
			event := f.createEvent(t, attendance.ProfileStandard)
			f.forceStatus(t, event.ID, status)

			_, err := f.engine.RSVP(ctx, event.ID, f.guest.Attendee.ID)
			assert.ErrorIs(t, err, attendance.ErrInvalidEventState, status)
		}
	})

	t.Run("concurrent rsvps leave one record", func(t *testing.T) {
		f := newFixture(t)
		event := f.createEvent(t, attendance.ProfileStandard)

		var wg sync.WaitGroup
		errs := make([]error, 8)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = f.engine.RSVP(ctx, event.ID, f.guest.Attendee.ID)
			}(i)
		}
		wg.Wait()

		ok := 0
		for _, err := range errs {
			if err == nil {
				ok++
				continue
			}
			assert.ErrorIs(t, err, attendance.ErrAlreadyRegistered)
		}
		assert.Equal(t, 1, ok)

		records, err := f.repos.Attendances().ListByEvent(ctx, event.ID)
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})
}

func TestCheckInPreconditionOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown event", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.engine.CheckIn(ctx, attendance.CheckInInput{EventID: uuid.New(), AttendeeID: f.guest.Attendee.ID})
		assert.ErrorIs(t, err, attendance.ErrEventNotFound)
	})

	t.Run("requires a prior rsvp", func(t *testing.T) {
		f := newFixture(t)
		event := f.createEvent(t, attendance.ProfileStandard)
		f.clock.Set(baseTime.Add(time.Minute))

		_, err := f.engine.CheckIn(ctx, attendance.CheckInInput{EventID: event.ID, AttendeeID: f.guest.Attendee.ID})
		assert.ErrorIs(t, err, attendance.ErrNoRSVP)
	})

	t.Run("not started", func(t *testing.T) {
		f := newFixture(t)
		event := f.createEvent(t, attendance.ProfileStandard)
		f.rsvp(t, event.ID)

		_, err := f.engine.CheckIn(ctx, attendance.CheckInInput{EventID: event.ID, AttendeeID: f.guest.Attendee.ID})
		assert.ErrorIs(t, err, attendance.ErrEventNotStarted)
	})

	t.Run("missing coordinates", func(t *testing.T) {
		f := newFixture(t)
		event := f.createEvent(t, attendance.ProfileStandard)
		f.rsvp(t, event.ID)
		f.clock.Set(baseTime.Add(time.Minute))

		_, err := f.engine.CheckIn(ctx, attendance.CheckInInput{
			EventID:        event.ID,
			AttendeeID:     f.guest.Attendee.ID,
			VerifyLocation: true,
			Latitude:       float(0),
		})
		assert.ErrorIs(t, err, attendance.ErrMissingCoordinates)
	})

	t.Run("no-show is closed before location", func(t *testing.T) {
		f := newFixture(t)
		event := f.createEvent(t, attendance.ProfileStandard)
		f.rsvp(t, event.ID)
		f.clock.Set(baseTime.Add(time.Minute))

		marked, err := f.repos.Attendances().MarkNoShowsTx(ctx, f.db, event.ID, f.clock.Now())
		require.NoError(t, err)
		require.EqualValues(t, 1, marked)

		_, err = f.engine.CheckIn(ctx, attendance.CheckInInput{
			EventID:        event.ID,
			AttendeeID:     f.guest.Attendee.ID,
			VerifyLocation: true,
			Latitude:       float(45),
			Longitude:      float(45),
		})
		assert.ErrorIs(t, err, attendance.ErrWindowClosed)
	})
}

func TestCheckInIgnoresEventStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	event := f.createEvent(t, attendance.ProfileStandard)
	f.rsvp(t, event.ID)
	f.forceStatus(t, event.ID, attendance.EventCancelled)
	f.clock.Set(baseTime.Add(10 * time.Minute))

	res, err := f.engine.CheckIn(ctx, attendance.CheckInInput{EventID: event.ID, AttendeeID: f.guest.Attendee.ID})
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusCheckedIn, res.Record.Status)
	assert.False(t, res.IsLate)
}

func TestCheckInOnlyOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	event := f.createEvent(t, attendance.ProfileStandard)
	f.rsvp(t, event.ID)
	f.clock.Set(baseTime.Add(5 * time.Minute))

	in := attendance.CheckInInput{EventID: event.ID, AttendeeID: f.guest.Attendee.ID}

	res, err := f.engine.CheckIn(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusCheckedIn, res.Record.Status)
	assert.False(t, res.IsLate)
	assert.False(t, res.LocationVerified)

	_, err = f.engine.CheckIn(ctx, in)
	assert.ErrorIs(t, err, attendance.ErrAlreadyCheckedIn)
}

func TestCheckInGeofence(t *testing.T) {
	ctx := context.Background()

	t.Run("at the event location", func(t *testing.T) {
		f := newFixture(t)
		event := f.createEvent(t, attendance.ProfileStandard)
		f.rsvp(t, event.ID)
		f.clock.Set(baseTime.Add(time.Minute))

		res, err := f.engine.CheckIn(ctx, attendance.CheckInInput{
			EventID:        event.ID,
			AttendeeID:     f.guest.Attendee.ID,
			VerifyLocation: true,
			Latitude:       float(0),
			Longitude:      float(0),
		})
		require.NoError(t, err)
		assert.True(t, res.LocationVerified)
	})

	t.Run("200km away", func(t *testing.T) {
		f := newFixture(t)
		event := f.createEvent(t, attendance.ProfileStandard)
		f.rsvp(t, event.ID)
		f.clock.Set(baseTime.Add(time.Minute))

		// roughly 200km north of (0,0)
		_, err := f.engine.CheckIn(ctx, attendance.CheckInInput{
			EventID:        event.ID,
			AttendeeID:     f.guest.Attendee.ID,
			VerifyLocation: true,
			Latitude:       float(1.8),
			Longitude:      float(0),
		})
		require.ErrorIs(t, err, attendance.ErrTooFar)

		var richErr *goerrors.Error
		require.True(t, goerrors.As(err, &richErr))
		assert.Contains(t, richErr.Message, "max: 100m")
		assert.Greater(t, richErr.Metadata["distance_meters"], 190000.0)

		record, err := f.repos.Attendances().Find(ctx, event.ID, f.guest.Attendee.ID)
		require.NoError(t, err)
		assert.Equal(t, attendance.StatusRegistered, record.Status)
	})
}

func TestCheckInWindow(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name     string
		profile  attendance.Profile
		offset   time.Duration
		status   attendance.EventStatus
		wantLate bool
		wantErr  error
	}{
		{name: "quick on time", profile: attendance.ProfileQuick, offset: 10 * time.Minute},
		{name: "quick late while open", profile: attendance.ProfileQuick, offset: 20 * time.Minute, wantLate: true},
		{name: "quick late and ongoing", profile: attendance.ProfileQuick, offset: 20 * time.Minute, status: attendance.EventOngoing, wantLate: true},
		{name: "quick window closed", profile: attendance.ProfileQuick, offset: 20 * time.Minute, status: attendance.EventCompleted, wantErr: attendance.ErrWindowClosed},
		{name: "standard edge is on time", profile: attendance.ProfileStandard, offset: 30 * time.Minute},
		{name: "extended on time", profile: attendance.ProfileExtended, offset: 59 * time.Minute},
		{name: "unlimited before end", profile: attendance.ProfileUnlimited, offset: 90 * time.Minute},
		{name: "unlimited after end", profile: attendance.ProfileUnlimited, offset: 3 * time.Hour, wantLate: true},
		{name: "unlimited ended", profile: attendance.ProfileUnlimited, offset: 3 * time.Hour, status: attendance.EventCompleted, wantErr: attendance.ErrEventEnded},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			event := f.createEvent(t, tc.profile)
			f.rsvp(t, event.ID)
			if tc.status != "" {
				f.forceStatus(t, event.ID, tc.status)
			}
			f.clock.Set(baseTime.Add(tc.offset))

			res, err := f.engine.CheckIn(ctx, attendance.CheckInInput{EventID: event.ID, AttendeeID: f.guest.Attendee.ID})
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantLate, res.IsLate)
		})
	}
}

func TestSummarize(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	late := seedAccount(t, f.db, "late")
	absent := seedAccount(t, f.db, "absent")

	event := f.createEvent(t, attendance.ProfileQuick)
	f.rsvp(t, event.ID)
	_, err := f.engine.RSVP(ctx, event.ID, late.Attendee.ID)
	require.NoError(t, err)
	_, err = f.engine.RSVP(ctx, event.ID, absent.Attendee.ID)
	require.NoError(t, err)

	f.clock.Set(baseTime.Add(5 * time.Minute))
	_, err = f.engine.CheckIn(ctx, attendance.CheckInInput{EventID: event.ID, AttendeeID: f.guest.Attendee.ID})
	require.NoError(t, err)

	f.clock.Set(baseTime.Add(25 * time.Minute))
	res, err := f.engine.CheckIn(ctx, attendance.CheckInInput{EventID: event.ID, AttendeeID: late.Attendee.ID})
	require.NoError(t, err)
	assert.True(t, res.IsLate)

	f.clock.Set(baseTime.Add(3 * time.Hour))
	_, err = f.engine.CompleteEvent(ctx, f.host.Host.ID, event.ID)
	require.NoError(t, err)

	summary, err := f.engine.Summarize(ctx, event.ID, f.host.Host.ID)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalRSVPs)
	assert.Equal(t, 2, summary.CheckedIn)
	assert.Equal(t, 1, summary.NoShows)
	assert.Equal(t, 1, summary.Late)
	assert.Equal(t, attendance.EventCompleted, summary.Status)
	require.Len(t, summary.Attendees, 3)

	rows := map[uuid.UUID]attendance.AttendeeSummary{}
	for _, row := range summary.Attendees {
		rows[row.AttendeeID] = row
	}
	assert.Equal(t, "late", rows[late.Attendee.ID].Username)
	assert.True(t, rows[late.Attendee.ID].IsLate)
	assert.NotNil(t, rows[late.Attendee.ID].CheckedInAt)
	assert.Nil(t, rows[absent.Attendee.ID].CheckedInAt)
	assert.Equal(t, attendance.StatusNoShow, rows[absent.Attendee.ID].Status)

	t.Run("other hosts are rejected", func(t *testing.T) {
		_, err := f.engine.Summarize(ctx, event.ID, f.guest.Host.ID)
		assert.ErrorIs(t, err, attendance.ErrNotEventHost)
	})

	t.Run("unknown event", func(t *testing.T) {
		_, err := f.engine.Summarize(ctx, uuid.New(), f.host.Host.ID)
		assert.ErrorIs(t, err, attendance.ErrEventNotFound)
	})
}
