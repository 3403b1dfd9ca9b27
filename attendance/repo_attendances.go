package attendance

import (
	"context"
	"time"

	"github.com/goliatone/go-here/auth"
	"github.com/goliatone/go-here/persistence"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Attendances is the attendance record repository
type Attendances interface {
	repository.Repository[*Attendance]
	Find(ctx context.Context, eventID, attendeeID uuid.UUID) (*Attendance, error)
	// Insert maps unique (event, attendee) violations to ErrAlreadyRegistered.
	Insert(ctx context.Context, record *Attendance) (*Attendance, error)
	// MarkCheckedIn only updates registered records and reports whether it did.
	MarkCheckedIn(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*Attendance, error)
	MarkNoShowsTx(ctx context.Context, tx bun.IDB, eventID uuid.UUID, at time.Time) (int64, error)
	Attendees(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*auth.Attendee, error)
}

type attendances struct {
	repository.Repository[*Attendance]
	db *bun.DB
}

var _ Attendances = (*attendances)(nil)

func NewAttendancesRepository(db *bun.DB) Attendances {
	repo := repository.NewRepository[*Attendance](db, repository.ModelHandlers[*Attendance]{
		NewRecord: func() *Attendance { return &Attendance{} },
		GetID: func(a *Attendance) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Attendance, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "id"
		},
	})

	return &attendances{Repository: repo, db: db}
}

func (r *attendances) Find(ctx context.Context, eventID, attendeeID uuid.UUID) (*Attendance, error) {
	record := &Attendance{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.event_id = ?", eventID).
		Where("?TableAlias.attendee_id = ?", attendeeID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, auth.NewRecordNotFound(map[string]any{
				"event_id":    eventID.String(),
				"attendee_id": attendeeID.String(),
			})
		}
		return nil, err
	}
	return record, nil
}

func (r *attendances) Insert(ctx context.Context, record *Attendance) (*Attendance, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if _, err := r.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if persistence.IsUniqueViolation(err) {
			return nil, ErrAlreadyRegistered
		}
		return nil, err
	}
	return record, nil
}

func (r *attendances) MarkCheckedIn(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res, err := r.db.NewUpdate().
		Model((*Attendance)(nil)).
		Set("status = ?", StatusCheckedIn).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("status = ?", StatusRegistered).
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

func (r *attendances) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*Attendance, error) {
	records := []*Attendance{}
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.event_id = ?", eventID).
		OrderExpr("?TableAlias.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *attendances) MarkNoShowsTx(ctx context.Context, tx bun.IDB, eventID uuid.UUID, at time.Time) (int64, error) {
	res, err := tx.NewUpdate().
		Model((*Attendance)(nil)).
		Set("status = ?", StatusNoShow).
		Set("updated_at = ?", at).
		Where("event_id = ?", eventID).
		Where("status = ?", StatusRegistered).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Attendees loads attendee records with their users, keyed by attendee id
func (r *attendances) Attendees(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*auth.Attendee, error) {
	out := make(map[uuid.UUID]*auth.Attendee, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	records := []*auth.Attendee{}
	err := r.db.NewSelect().
		Model(&records).
		Relation("User").
		Where("?TableAlias.id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	for _, a := range records {
		out[a.ID] = a
	}
	return out, nil
}
