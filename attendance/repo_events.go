package attendance

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// EventFilter narrows ListEvents
type EventFilter struct {
	Status EventStatus
	HostID uuid.UUID
	Limit  int
	Offset int
}

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Normalized applies the default and maximum page size
func (f EventFilter) Normalized() EventFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Events is the event repository
type Events interface {
	repository.Repository[*Event]
	ListFiltered(ctx context.Context, filter EventFilter) ([]*Event, int, error)
	ListActive(ctx context.Context) ([]*Event, error)
	// UpdateDetails writes the host editable columns of an open event and
	// reports false when the event is no longer scheduled or ongoing.
	UpdateDetails(ctx context.Context, event *Event) (bool, error)
	// TransitionStatusTx moves an event from one status to another and
	// reports false when the stored status was no longer from.
	TransitionStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, from, to EventStatus, reason string, at time.Time) (bool, error)
}

type events struct {
	repository.Repository[*Event]
	db *bun.DB
}

var _ Events = (*events)(nil)

func NewEventsRepository(db *bun.DB) Events {
	repo := repository.NewRepository[*Event](db, repository.ModelHandlers[*Event]{
		NewRecord: func() *Event { return &Event{} },
		GetID: func(e *Event) uuid.UUID {
			if e == nil {
				return uuid.Nil
			}
			return e.ID
		},
		SetID: func(e *Event, id uuid.UUID) {
			if e != nil {
				e.ID = id
			}
		},
		GetIdentifier: func() string {
			return "id"
		},
	})

	return &events{Repository: repo, db: db}
}

func (r *events) ListFiltered(ctx context.Context, filter EventFilter) ([]*Event, int, error) {
	filter = filter.Normalized()

	records := []*Event{}
	q := r.db.NewSelect().Model(&records)

	if filter.Status != "" {
		q = q.Where("?TableAlias.status = ?", filter.Status)
	}
	if filter.HostID != uuid.Nil {
		q = q.Where("?TableAlias.host_id = ?", filter.HostID)
	}

	total, err := q.
		OrderExpr("?TableAlias.start_time ASC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

func (r *events) ListActive(ctx context.Context) ([]*Event, error) {
	records := []*Event{}
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.status IN (?)", bun.In([]EventStatus{EventScheduled, EventOngoing})).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *events) UpdateDetails(ctx context.Context, event *Event) (bool, error) {
	res, err := r.db.NewUpdate().
		Model(event).
		Column(
			"title", "description", "category", "visibility",
			"latitude", "longitude", "geofence_radius", "attendance_profile",
			"start_time", "end_time", "updated_at",
		).
		WherePK().
		Where("status IN (?)", bun.In([]EventStatus{EventScheduled, EventOngoing})).
		Exec(ctx)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *events) TransitionStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, from, to EventStatus, reason string, at time.Time) (bool, error) {
	q := tx.NewUpdate().
		Model((*Event)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("status = ?", from)

	if reason != "" {
		q = q.Set("cancel_reason = ?", reason)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
