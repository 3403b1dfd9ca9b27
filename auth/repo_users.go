package auth

import (
	"context"
	"database/sql"
	"fmt"
	"net/mail"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-here/persistence"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the user repository
type Users interface {
	repository.Repository[*User]
	GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error)
	GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	SetVerified(ctx context.Context, id uuid.UUID, verified bool) error
	UpdateProfile(ctx context.Context, id uuid.UUID, patch ProfilePatch) (*User, error)
	TrackSuccessfulLogin(ctx context.Context, id uuid.UUID) error
}

// ProfilePatch holds the optional profile fields a user may change
type ProfilePatch struct {
	FirstName *string
	LastName  *string
	Username  *string
}

type users struct {
	repository.Repository[*User]
	db  *bun.DB
	now func() time.Time
}

var _ Users = (*users)(nil)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
}

func (a *users) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier, criteria...)
}

// GetByIdentifierTx looks the user up by id, email or username, in that order.
func (a *users) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	for _, opt := range resolveUserIdentifier(identifier) {
		record := &User{}
		q := tx.NewSelect().Model(record)

		for _, c := range criteria {
			q.Apply(c)
		}

		err := q.
			Where(fmt.Sprintf("?TableAlias.%s = ?", opt.column), opt.value).
			Limit(1).
			Scan(ctx)

		if err != nil {
			if repository.IsRecordNotFound(err) {
				continue
			}
			return nil, err
		}

		return record, nil
	}

	return nil, NewRecordNotFound(map[string]any{
		"identifier": identifier,
	})
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	prepareUserDefaults(user)
	created, err := a.Repository.CreateTx(ctx, tx, user)
	if err != nil {
		if persistence.IsUniqueViolation(err) {
			return nil, ErrAccountExists
		}
		return nil, err
	}
	return created, nil
}

func (a *users) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return a.setFlag(ctx, "is_active", id, active)
}

func (a *users) SetVerified(ctx context.Context, id uuid.UUID, verified bool) error {
	return a.setFlag(ctx, "is_verified", id, verified)
}

func (a *users) setFlag(ctx context.Context, column string, id uuid.UUID, value bool) error {
	res, err := a.db.NewUpdate().
		Model((*User)(nil)).
		Set("? = ?", bun.Ident(column), value).
		Set("updated_at = ?", a.now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectAffected(res, id)
}

func (a *users) UpdateProfile(ctx context.Context, id uuid.UUID, patch ProfilePatch) (*User, error) {
	q := a.db.NewUpdate().
		Model((*User)(nil)).
		Set("updated_at = ?", a.now()).
		Where("id = ?", id)

	if patch.FirstName != nil {
		q = q.Set("first_name = ?", strings.TrimSpace(*patch.FirstName))
	}
	if patch.LastName != nil {
		q = q.Set("last_name = ?", strings.TrimSpace(*patch.LastName))
	}
	if patch.Username != nil {
		q = q.Set("username = ?", strings.TrimSpace(*patch.Username))
	}

	res, err := q.Exec(ctx)
	if err != nil {
		if persistence.IsUniqueViolation(err) {
			return nil, ErrAccountExists
		}
		return nil, err
	}
	if err := expectAffected(res, id); err != nil {
		return nil, err
	}

	return a.GetByID(ctx, id.String())
}

func (a *users) TrackSuccessfulLogin(ctx context.Context, id uuid.UUID) error {
	_, err := a.db.NewUpdate().
		Model((*User)(nil)).
		Set("loggedin_at = ?", a.now()).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func expectAffected(res sql.Result, id uuid.UUID) error {
	if res == nil {
		return nil
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return NewRecordNotFound(map[string]any{
			"id": id.String(),
		})
	}
	return nil
}

// IsNotFound reports missing records from any storage layer
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	return repository.IsRecordNotFound(err) ||
		goerrors.Is(err, sql.ErrNoRows) ||
		goerrors.Is(err, ErrRecordNotFound)
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	record.Email = strings.ToLower(strings.TrimSpace(record.Email))
	record.Username = strings.TrimSpace(record.Username)

	if record.AccountType == "" {
		record.AccountType = AccountTypeAttendee
	}

	if record.SignupType == "" {
		record.SignupType = SignupLocal
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

type identifierOption struct {
	column string
	value  string
}

func resolveUserIdentifier(identifier string) []identifierOption {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return nil
	}

	options := make([]identifierOption, 0, 3)

	if _, err := uuid.Parse(trimmed); err == nil {
		options = append(options, identifierOption{column: "id", value: trimmed})
	}

	if _, err := mail.ParseAddress(trimmed); err == nil {
		options = append(options, identifierOption{column: "email", value: strings.ToLower(trimmed)})
	}

	return append(options, identifierOption{column: "username", value: trimmed})
}
