package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/goliatone/go-here/attendance"
	"github.com/goliatone/go-here/auth"
	"github.com/goliatone/go-here/metrics"
	"github.com/goliatone/go-here/middleware/jwtware"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RouteRegistrar captures the router methods used by the controller
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Put(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// Controller exposes the account, session and event operations over HTTP.
// Handlers return domain errors; routes registered through RegisterRoutes
// turn them into JSON responses.
type Controller struct {
	Debug        bool
	accounts     *auth.Service
	authorizer   jwtware.Authorizer
	engine       *attendance.Engine
	checks       map[string]HealthCheck
	logger       Logger
	errorHandler router.ErrorHandler
	contextKey   string
	now          func() time.Time
}

type ControllerOption func(*Controller)

func WithLogger(logger Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHealthCheck adds a dependency probed by the health endpoint
func WithHealthCheck(name string, check HealthCheck) ControllerOption {
	return func(c *Controller) {
		if check != nil {
			c.checks[name] = check
		}
	}
}

func WithErrorHandler(handler router.ErrorHandler) ControllerOption {
	return func(c *Controller) {
		if handler != nil {
			c.errorHandler = handler
		}
	}
}

func WithDebug(debug bool) ControllerOption {
	return func(c *Controller) {
		c.Debug = debug
	}
}

func NewController(accounts *auth.Service, authorizer jwtware.Authorizer, engine *attendance.Engine, opts ...ControllerOption) *Controller {
	c := &Controller{
		accounts:   accounts,
		authorizer: authorizer,
		engine:     engine,
		checks:     map[string]HealthCheck{},
		logger:     defLogger{},
		contextKey: auth.DefaultPrincipalKey,
		now:        time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if c.errorHandler == nil {
		c.errorHandler = ErrorHandler(c.logger)
	}

	if c.accounts == nil {
		panic("Missing auth.Service in api controller...")
	}

	if c.authorizer == nil {
		panic("Missing Authorizer in api controller...")
	}

	if c.engine == nil {
		panic("Missing attendance.Engine in api controller...")
	}

	return c
}

// RegisterRoutes mounts every route on app
func (c *Controller) RegisterRoutes(app RouteRegistrar) {
	session := c.guard(auth.SessionUser())
	attendee := c.guard(auth.SessionAttendee())
	host := c.guard(auth.SessionHost())
	otp := c.guard(auth.ScopedUser(auth.ScopeOTP))

	reactivate := auth.ScopedUser(auth.ScopeOTP)
	reactivate.AllowDisabled = true

	app.Post("/auth/login", c.handle("auth.login", c.Login)).SetName("auth.login")
	app.Post("/auth/logout", c.handle("auth.logout", c.Logout), session).SetName("auth.logout")
	app.Post("/auth/verify-otp", c.handle("auth.verify_otp", c.VerifyOTP)).SetName("auth.verify_otp")
	app.Post("/auth/resend-otp", c.handle("auth.resend_otp", c.ResendOTP)).SetName("auth.resend_otp")
	app.Post("/auth/verify-account", c.handle("auth.verify_account", c.VerifyAccount), otp).SetName("auth.verify_account")
	app.Post("/auth/activate-account", c.handle("auth.activate_account", c.ActivateAccount), c.guard(reactivate)).SetName("auth.activate_account")

	app.Post("/users/signup", c.handle("users.signup", c.Signup)).SetName("users.signup")
	app.Get("/users/health", c.handle("users.health", c.Health)).SetName("users.health")
	app.Get("/users/me", c.handle("users.me", c.Me), session).SetName("users.me")
	app.Delete("/users/me", c.handle("users.delete", c.DeleteAccount), session).SetName("users.delete")
	app.Put("/users/profile", c.handle("users.profile", c.UpdateProfile), session).SetName("users.profile")
	app.Post("/users/switch-scope", c.handle("users.switch_scope", c.SwitchScope), session).SetName("users.switch_scope")

	events := "/api/events/:event_type"
	app.Post(events, c.handle("events.create", c.CreateEvent), host).SetName("events.create")
	app.Get(events, c.handle("events.list", c.ListEvents), session).SetName("events.list")
	app.Get(events+"/:id", c.handle("events.get", c.GetEvent), session).SetName("events.get")
	app.Put(events+"/:id", c.handle("events.update", c.UpdateEvent), host).SetName("events.update")
	app.Post(events+"/:id/cancel", c.handle("events.cancel", c.CancelEvent), host).SetName("events.cancel")
	app.Post(events+"/:id/start", c.handle("events.start", c.StartEvent), host).SetName("events.start")
	app.Post(events+"/:id/complete", c.handle("events.complete", c.CompleteEvent), host).SetName("events.complete")
	app.Post(events+"/:id/rsvp", c.handle("events.rsvp", c.RSVP), attendee).SetName("events.rsvp")
	app.Post(events+"/:id/attendance", c.handle("events.check_in", c.CheckIn), attendee).SetName("events.check_in")
	app.Get(events+"/:id/attendance", c.handle("events.summary", c.Summary), host).SetName("events.summary")
}

func (c *Controller) guard(req auth.Requirement) router.MiddlewareFunc {
	return jwtware.New(jwtware.Config{
		Authorizer:   c.authorizer,
		Requirement:  req,
		ContextKey:   c.contextKey,
		ErrorHandler: c.errorHandler,
	})
}

// handle writes handler errors through the error handler and records latency
func (c *Controller) handle(route string, handler router.HandlerFunc) router.HandlerFunc {
	return func(ctx router.Context) error {
		start := c.now()
		status := http.StatusOK

		err := handler(ctx)
		if err != nil {
			status, _ = ErrorResponse(err)
			err = c.errorHandler(ctx, err)
		}

		metrics.HTTPRequestDuration.
			WithLabelValues(route, strconv.Itoa(status)).
			Observe(float64(c.now().Sub(start).Microseconds()) / 1000)

		return err
	}
}

func (c *Controller) principal(ctx router.Context) (*auth.Principal, error) {
	p, ok := auth.GetRouterPrincipal(ctx, c.contextKey)
	if !ok {
		return nil, auth.ErrUnauthenticated
	}
	return p, nil
}

type validatable interface {
	Validate() error
}

func (c *Controller) bind(ctx router.Context, payload validatable) error {
	if err := ctx.Bind(payload); err != nil {
		return invalidPayload(err)
	}
	return c.validate(payload)
}

// bindOptional accepts an empty body and keeps payload's zero values
func (c *Controller) bindOptional(ctx router.Context, payload validatable) error {
	if err := ctx.Bind(payload); err != nil {
		if len(ctx.Body()) > 0 {
			return invalidPayload(err)
		}
	}
	return c.validate(payload)
}

func (c *Controller) validate(payload validatable) error {
	if err := payload.Validate(); err != nil {
		return invalidPayload(err)
	}
	return nil
}

func (c *Controller) debug(label string, payload any) {
	if !c.Debug {
		return
	}
	c.logger.Debug("%s: %s", label, print.MaybePrettyJSON(payload))
}
