package attendance

import (
	"context"
	"time"

	"github.com/goliatone/go-here/metrics"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Actor identifies who triggered a transition. The sweeper acts as the
// system actor and skips the ownership check.
type Actor struct {
	HostID uuid.UUID
	System bool
}

func HostActor(hostID uuid.UUID) Actor {
	return Actor{HostID: hostID}
}

func SystemActor() Actor {
	return Actor{System: true}
}

func (a Actor) String() string {
	if a.System {
		return "system"
	}
	return "host:" + a.HostID.String()
}

// TransitionContext is passed into hooks
type TransitionContext struct {
	Actor  Actor
	Event  *Event
	From   EventStatus
	To     EventStatus
	Reason string
	At     time.Time
}

// TransitionHook runs inside the transition transaction. Returning an
// error rolls the status change back.
type TransitionHook func(ctx context.Context, tx bun.IDB, tc TransitionContext) error

// TransitionResult reports what a transition changed
type TransitionResult struct {
	Event   *Event
	From    EventStatus
	To      EventStatus
	NoShows int64
}

type TransitionOption func(*transitionOptions)

type transitionOptions struct {
	reason      string
	beforeHooks []TransitionHook
	afterHooks  []TransitionHook
}

// WithTransitionReason is stored as the cancel reason when cancelling
func WithTransitionReason(reason string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.reason = reason
	}
}

func WithBeforeTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.beforeHooks = append(opts.beforeHooks, h)
		}
	}
}

func WithAfterTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.afterHooks = append(opts.afterHooks, h)
		}
	}
}

// StateMachine drives the event lifecycle
type StateMachine interface {
	Transition(ctx context.Context, actor Actor, event *Event, target EventStatus, opts ...TransitionOption) (*TransitionResult, error)
	CanTransition(from, to EventStatus) bool
}

type StateMachineOption func(*eventStateMachine)

func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *eventStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *eventStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// NewStateMachine returns the event lifecycle backed by repos. Entering
// completed marks every still registered attendance record as no-show in
// the same transaction.
func NewStateMachine(repos RepositoryManager, opts ...StateMachineOption) StateMachine {
	sm := &eventStateMachine{
		repos: repos,
		transitions: map[EventStatus]map[EventStatus]struct{}{
			EventScheduled: {
				EventOngoing:   {},
				EventCancelled: {},
				EventCompleted: {},
			},
			EventOngoing: {
				EventCompleted: {},
				EventCancelled: {},
			},
		},
		now:    time.Now,
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

type eventStateMachine struct {
	repos       RepositoryManager
	transitions map[EventStatus]map[EventStatus]struct{}
	now         func() time.Time
	logger      Logger
}

func (sm *eventStateMachine) Transition(ctx context.Context, actor Actor, event *Event, target EventStatus, opts ...TransitionOption) (*TransitionResult, error) {
	if event == nil {
		return nil, ErrEventNotFound
	}

	if !actor.System && actor.HostID != event.HostID {
		return nil, ErrNotEventHost
	}

	from := event.Status
	if event.IsClosed() {
		return nil, transitionError(ErrTerminalState, from, target)
	}

	if !sm.CanTransition(from, target) {
		return nil, transitionError(ErrInvalidTransition, from, target)
	}

	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	now := sm.now()
	tc := TransitionContext{
		Actor:  actor,
		Event:  event,
		From:   from,
		To:     target,
		Reason: options.reason,
		At:     now,
	}
	result := &TransitionResult{Event: event, From: from, To: target}

	err := sm.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := runHooks(ctx, tx, options.beforeHooks, tc); err != nil {
			return err
		}

		reason := ""
		if target == EventCancelled {
			reason = options.reason
		}

		ok, err := sm.repos.Events().TransitionStatusTx(ctx, tx, event.ID, from, target, reason, now)
		if err != nil {
			return internal(err, "failed to update event status")
		}
		if !ok {
			// someone else moved the event first
			return transitionError(ErrInvalidTransition, from, target)
		}

		if target == EventCompleted {
			n, err := sm.repos.Attendances().MarkNoShowsTx(ctx, tx, event.ID, now)
			if err != nil {
				return internal(err, "failed to mark no-shows")
			}
			result.NoShows = n
		}

		return runHooks(ctx, tx, options.afterHooks, tc)
	})
	if err != nil {
		return nil, err
	}

	event.Status = target
	event.UpdatedAt = &now
	if target == EventCancelled && options.reason != "" {
		event.CancelReason = options.reason
	}

	metrics.EventTransitions.WithLabelValues("event_" + target).Inc()
	if result.NoShows > 0 {
		metrics.EventTransitions.WithLabelValues("no_show").Add(float64(result.NoShows))
	}

	sm.logger.Info("event %s: %s -> %s by %s", event.ID, from, target, actor)

	return result, nil
}

func (sm *eventStateMachine) CanTransition(from, to EventStatus) bool {
	if allowed, ok := sm.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

func runHooks(ctx context.Context, tx bun.IDB, hooks []TransitionHook, tc TransitionContext) error {
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, tx, tc); err != nil {
			return err
		}
	}
	return nil
}
