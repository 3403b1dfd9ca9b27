package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	here "github.com/goliatone/go-here"
	"github.com/goliatone/go-here/api"
	"github.com/goliatone/go-here/attendance"
	"github.com/goliatone/go-here/auth"
	"github.com/goliatone/go-here/persistence"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	auth.PasswordHashCost = bcrypt.MinCost
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type sentMail struct {
	To       string
	Template string
	Params   map[string]any
}

type captureMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *captureMailer) Send(_ context.Context, to, template string, params map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Template: template, Params: params})
	return nil
}

func (m *captureMailer) last(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	return m.sent[len(m.sent)-1]
}

var baseTime = time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

type engineClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *engineClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *engineClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	ctrl     *api.Controller
	accounts *auth.Service
	guard    *auth.Guard
	engine   *attendance.Engine
	users    auth.RepositoryManager
	mailer   *captureMailer
	clock    *engineClock
}

func newFixture(t *testing.T, opts ...api.ControllerOption) *fixture {
	t.Helper()
	ctx := context.Background()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := persistence.Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = persistence.Migrate(ctx, db, here.GetMigrationsFS(), persistence.DialectSQLite)
	require.NoError(t, err)

	users := auth.NewRepositoryManager(db)
	store := auth.NewMemoryStore(nil)
	tokens := auth.NewTokenService([]byte("api-test-signing-key"),
		auth.WithTokenIssuer("go-here-test"),
		auth.WithTokenLogger(nopLogger{}),
	)
	mailer := &captureMailer{}

	accounts := auth.NewService(nil, tokens, store, users,
		auth.WithMailer(mailer),
		auth.WithLogger(nopLogger{}),
	)
	guard := auth.NewGuard(tokens, store, auth.NewPrincipalStore(users),
		auth.WithGuardLogger(nopLogger{}),
	)

	clk := &engineClock{now: baseTime.Add(-time.Hour)}
	engine := attendance.NewEngine(attendance.NewRepositoryManager(db),
		attendance.WithEngineClock(clk.Now),
		attendance.WithEngineLogger(nopLogger{}),
	)

	opts = append([]api.ControllerOption{api.WithLogger(nopLogger{})}, opts...)

	return &fixture{
		ctrl:     api.NewController(accounts, guard, engine, opts...),
		accounts: accounts,
		guard:    guard,
		engine:   engine,
		users:    users,
		mailer:   mailer,
		clock:    clk,
	}
}

// signup creates a verified account and returns its session principal for req
func (f *fixture) signup(t *testing.T, username string, req auth.Requirement) *auth.Principal {
	t.Helper()
	ctx := context.Background()

	_, err := f.accounts.Signup(ctx, auth.SignupInput{
		Username:    username,
		Email:       username + "@example.com",
		Password:    "correct-horse",
		FirstName:   "First",
		LastName:    "Last",
		AccountType: auth.AccountTypeAttendee,
		SignupType:  auth.SignupGoogle,
	})
	require.NoError(t, err)

	session, err := f.accounts.Login(ctx, username, "correct-horse")
	require.NoError(t, err)

	p, err := f.guard.Authorize(ctx, session.Token, req)
	require.NoError(t, err)
	return p
}

func newContext() *router.MockContext {
	ctx := router.NewMockContext()
	ctx.On("Context").Return(context.Background())
	return ctx
}

// withBody makes Bind decode body into the handler payload
func withBody(ctx *router.MockContext, body any) *router.MockContext {
	raw, err := json.Marshal(body)
	if err != nil {
		panic(err)
	}
	ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
		if err := json.Unmarshal(raw, args.Get(0)); err != nil {
			panic(err)
		}
	}).Return(nil)
	return ctx
}

func withPrincipal(ctx *router.MockContext, p *auth.Principal) *router.MockContext {
	ctx.LocalsMock[auth.DefaultPrincipalKey] = p
	return ctx
}

// expectJSON captures the JSON body written with status
func expectJSON(ctx *router.MockContext, status int) *any {
	var out any
	ctx.On("JSON", status, mock.Anything).Run(func(args mock.Arguments) {
		out = args.Get(1)
	}).Return(nil)
	return &out
}

func eventBody() map[string]any {
	return map[string]any{
		"title":              "Community meetup",
		"description":        "Monthly gathering",
		"category":           "social",
		"visibility":         "public",
		"latitude":           0,
		"longitude":          0,
		"geofence_radius":    100,
		"attendance_profile": "standard",
		"start_time":         baseTime,
		"end_time":           baseTime.Add(2 * time.Hour),
	}
}
