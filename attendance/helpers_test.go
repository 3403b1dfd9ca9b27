package attendance_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	here "github.com/goliatone/go-here"
	"github.com/goliatone/go-here/attendance"
	"github.com/goliatone/go-here/auth"
	"github.com/goliatone/go-here/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *clock {
	return &clock{now: t}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

var baseTime = time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

func setupDB(t *testing.T) *bun.DB {
	t.Helper()
	ctx := context.Background()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := persistence.Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = persistence.Migrate(ctx, db, here.GetMigrationsFS(), persistence.DialectSQLite)
	require.NoError(t, err)

	return db
}

type account struct {
	User     *auth.User
	Attendee *auth.Attendee
	Host     *auth.Host
}

func seedAccount(t *testing.T, db *bun.DB, username string) account {
	t.Helper()
	ctx := context.Background()

	user := &auth.User{
		ID:          uuid.New(),
		Username:    username,
		Email:       username + "@example.com",
		FirstName:   "First " + username,
		LastName:    "Last",
		AccountType: auth.AccountTypeAttendee,
		SignupType:  auth.SignupLocal,
		IsActive:    true,
		Verified:    true,
	}
	_, err := db.NewInsert().Model(user).Exec(ctx)
	require.NoError(t, err)

	attendee := &auth.Attendee{ID: uuid.New(), UserID: user.ID}
	_, err = db.NewInsert().Model(attendee).Exec(ctx)
	require.NoError(t, err)

	host := &auth.Host{ID: uuid.New(), UserID: user.ID}
	_, err = db.NewInsert().Model(host).Exec(ctx)
	require.NoError(t, err)

	return account{User: user, Attendee: attendee, Host: host}
}

type fixture struct {
	db     *bun.DB
	repos  attendance.RepositoryManager
	engine *attendance.Engine
	clock  *clock
	host   account
	guest  account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := setupDB(t)
	repos := attendance.NewRepositoryManager(db)
	clk := newClock(baseTime.Add(-time.Hour))

	return &fixture{
		db:    db,
		repos: repos,
		engine: attendance.NewEngine(repos,
			attendance.WithEngineClock(clk.Now),
			attendance.WithEngineLogger(nopLogger{}),
		),
		clock: clk,
		host:  seedAccount(t, db, "host"),
		guest: seedAccount(t, db, "guest"),
	}
}

func float(v float64) *float64 {
	return &v
}

func eventInput(profile attendance.Profile) attendance.EventInput {
	return attendance.EventInput{
		Title:             "Community meetup",
		Description:       "Monthly gathering",
		Category:          "social",
		Visibility:        attendance.VisibilityPublic,
		Latitude:          0,
		Longitude:         0,
		GeofenceRadius:    float(100),
		AttendanceProfile: profile,
		StartTime:         baseTime,
		EndTime:           baseTime.Add(2 * time.Hour),
	}
}

func (f *fixture) createEvent(t *testing.T, profile attendance.Profile) *attendance.Event {
	t.Helper()
	event, err := f.engine.CreateEvent(context.Background(), f.host.Host.ID, eventInput(profile))
	require.NoError(t, err)
	return event
}

func (f *fixture) rsvp(t *testing.T, eventID uuid.UUID) *attendance.Attendance {
	t.Helper()
	record, err := f.engine.RSVP(context.Background(), eventID, f.guest.Attendee.ID)
	require.NoError(t, err)
	return record
}

// forceStatus writes an event status directly, bypassing the lifecycle
func (f *fixture) forceStatus(t *testing.T, eventID uuid.UUID, status attendance.EventStatus) {
	t.Helper()
	_, err := f.db.NewUpdate().
		Model((*attendance.Event)(nil)).
		Set("status = ?", status).
		Where("id = ?", eventID).
		Exec(context.Background())
	require.NoError(t, err)
}
