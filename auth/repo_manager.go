package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	Validate() error
	MustValidate()
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
	Users() Users
	Attendees() repository.Repository[*Attendee]
	Hosts() repository.Repository[*Host]
}

func NewAttendeesRepository(db *bun.DB) repository.Repository[*Attendee] {
	return repository.NewRepository[*Attendee](db, repository.ModelHandlers[*Attendee]{
		NewRecord: func() *Attendee { return &Attendee{} },
		GetID: func(record *Attendee) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *Attendee, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "user_id"
		},
	})
}

func NewHostsRepository(db *bun.DB) repository.Repository[*Host] {
	return repository.NewRepository[*Host](db, repository.ModelHandlers[*Host]{
		NewRecord: func() *Host { return &Host{} },
		GetID: func(record *Host) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *Host, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "user_id"
		},
	})
}

type mngr struct {
	db        *bun.DB
	users     Users
	attendees repository.Repository[*Attendee]
	hosts     repository.Repository[*Host]
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:        db,
		users:     NewUsersRepository(db),
		attendees: NewAttendeesRepository(db),
		hosts:     NewHostsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.attendees == nil {
		return errors.New("repository attendees should be initialized")
	}

	if m.hosts == nil {
		return errors.New("repository hosts should be initialized")
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

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Attendees() repository.Repository[*Attendee] {
	return m.attendees
}

func (m mngr) Hosts() repository.Repository[*Host] {
	return m.hosts
}

// NewPrincipalStore resolves principals through the repositories
func NewPrincipalStore(repos RepositoryManager) PrincipalStore {
	return principalStore{repos: repos}
}

type principalStore struct {
	repos RepositoryManager
}

func (p principalStore) FindUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return p.repos.Users().GetByID(ctx, id.String())
}

func (p principalStore) FindAttendeeByUser(ctx context.Context, userID uuid.UUID) (*Attendee, error) {
	return p.repos.Attendees().GetByIdentifier(ctx, userID.String())
}

func (p principalStore) FindHostByUser(ctx context.Context, userID uuid.UUID) (*Host, error) {
	return p.repos.Hosts().GetByIdentifier(ctx, userID.String())
}
