package attendance

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	DefaultSweepInterval = time.Minute
	DefaultSweepTimeout  = 30 * time.Second
)

// SweepReport counts what one sweep changed
type SweepReport struct {
	Started   int
	Completed int
	NoShows   int64
	Failed    int
}

// Sweeper closes the event lifecycle on time. Scheduled events past their
// start become ongoing, open events past end plus grace become completed
// and their remaining registrations no-shows.
type Sweeper struct {
	engine   *Engine
	interval time.Duration
	grace    time.Duration
	timeout  time.Duration
	logger   Logger
}

type SweeperOption func(*Sweeper)

func WithSweepInterval(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithCloseGrace delays automatic completion past the event end time
func WithCloseGrace(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if d >= 0 {
			s.grace = d
		}
	}
}

func WithSweepTimeout(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithSweeperLogger(logger Logger) SweeperOption {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewSweeper(engine *Engine, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		engine:   engine,
		interval: DefaultSweepInterval,
		timeout:  DefaultSweepTimeout,
		logger:   engine.logger,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Run sweeps once immediately and then on every tick until ctx is done
func (s *Sweeper) Run(ctx context.Context) {
	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped: %v", ctx.Err())
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	report, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Error("sweep failed: %v", err)
		return
	}

	if report.Started > 0 || report.Completed > 0 || report.Failed > 0 {
		s.logger.Info("sweep: started=%d completed=%d no_shows=%d failed=%d",
			report.Started, report.Completed, report.NoShows, report.Failed)
	}
}

// Sweep applies the time based transitions to every open event
func (s *Sweeper) Sweep(ctx context.Context) (SweepReport, error) {
	report := SweepReport{}

	events, err := s.engine.repos.Events().ListActive(ctx)
	if err != nil {
		return report, internal(err, "failed to list open events")
	}

	machine := s.engine.machine
	actor := SystemActor()

	for _, event := range events {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		now := s.engine.now()

		var target EventStatus
		switch {
		case !now.Before(event.EndTime.Add(s.grace)):
			target = EventCompleted
		case event.Status == EventScheduled && !now.Before(event.StartTime):
			target = EventOngoing
		default:
			continue
		}

		res, err := machine.Transition(ctx, actor, event, target)
		if err != nil {
			if goerrors.Is(err, ErrInvalidTransition) || goerrors.Is(err, ErrTerminalState) {
				// a host moved it between list and update
				s.logger.Debug("sweep skipped event %s: %v", event.ID, err)
				continue
			}
			report.Failed++
			s.logger.Warn("sweep failed for event %s: %v", event.ID, err)
			continue
		}

		switch target {
		case EventCompleted:
			report.Completed++
			report.NoShows += res.NoShows
		case EventOngoing:
			report.Started++
		}
	}

	return report, nil
}
