package attendance

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/uptrace/bun"
)

// RepositoryManager exposes the event and attendance repositories
type RepositoryManager interface {
	Validate() error
	MustValidate()
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
	Events() Events
	Attendances() Attendances
}

type mngr struct {
	db          *bun.DB
	events      Events
	attendances Attendances
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:          db,
		events:      NewEventsRepository(db),
		attendances: NewAttendancesRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.events == nil {
		return errors.New("repository events should be initialized")
	}

	if m.attendances == nil {
		return errors.New("repository attendances should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Events() Events {
	return m.events
}

func (m mngr) Attendances() Attendances {
	return m.attendances
}
