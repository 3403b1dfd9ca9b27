package auth_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	here "github.com/goliatone/go-here"
	"github.com/goliatone/go-here/auth"
	"github.com/goliatone/go-here/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	auth.PasswordHashCost = bcrypt.MinCost
}

var testKey = []byte("auth-test-signing-key")

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

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

func (m *captureMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *captureMailer) last(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	return m.sent[len(m.sent)-1]
}

type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) types() []auth.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

type harness struct {
	service  *auth.Service
	guard    *auth.Guard
	tokens   *auth.TokenService
	store    *auth.MemoryStore
	repos    auth.RepositoryManager
	mailer   *captureMailer
	activity *recordingSink
	clock    *clock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := persistence.Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = persistence.Migrate(ctx, db, here.GetMigrationsFS(), persistence.DialectSQLite)
	require.NoError(t, err)

	clk := &clock{now: time.Now().UTC().Truncate(time.Second)}
	repos := auth.NewRepositoryManager(db)
	store := auth.NewMemoryStore(clk.Now)
	tokens := auth.NewTokenService(testKey,
		auth.WithTokenIssuer("go-here-test"),
		auth.WithTokenClock(clk.Now),
		auth.WithTokenLogger(nopLogger{}),
	)
	mailer := &captureMailer{}
	activity := &recordingSink{}

	return &harness{
		service: auth.NewService(nil, tokens, store, repos,
			auth.WithMailer(mailer),
			auth.WithActivitySink(activity),
			auth.WithClock(clk.Now),
			auth.WithLogger(nopLogger{}),
		),
		guard: auth.NewGuard(tokens, store, auth.NewPrincipalStore(repos),
			auth.WithGuardClock(clk.Now),
			auth.WithGuardLogger(nopLogger{}),
		),
		tokens:   tokens,
		store:    store,
		repos:    repos,
		mailer:   mailer,
		activity: activity,
		clock:    clk,
	}
}

func (h *harness) signup(t *testing.T, username string, signupType auth.SignupType) *auth.User {
	t.Helper()
	user, err := h.service.Signup(context.Background(), auth.SignupInput{
		Username:    username,
		Email:       username + "@example.com",
		Password:    "correct-horse",
		FirstName:   "First",
		LastName:    "Last",
		AccountType: auth.AccountTypeAttendee,
		SignupType:  signupType,
	})
	require.NoError(t, err)
	return user
}

// session signs up a verified user and returns the login token
func (h *harness) session(t *testing.T, username string) (*auth.User, string) {
	t.Helper()
	user := h.signup(t, username, auth.SignupGoogle)
	s, err := h.service.Login(context.Background(), username, "correct-horse")
	require.NoError(t, err)
	return user, s.Token
}

func (h *harness) authorize(t *testing.T, token string, req auth.Requirement) *auth.Principal {
	t.Helper()
	p, err := h.guard.Authorize(context.Background(), token, req)
	require.NoError(t, err)
	return p
}
