package auth

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
)

// CredentialStore persists accounts. Every call is bounded by the store timeout
// and failures come back as go-errors values: ErrAccountNotFound when no row
// matches, ErrConstraintViolation on a unique violation and
// ErrStoreUnavailable for everything else.
type CredentialStore interface {
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	Create(ctx context.Context, record *Account) (*Account, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role UserRole) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdateProfile(ctx context.Context, id uuid.UUID, update ProfileUpdate) (*Account, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*Account, error)
	List(ctx context.Context, opts ListOptions) ([]*Account, int, error)
}

type accounts struct {
	repository.Repository[*Account]
	db      *bun.DB
	timeout time.Duration
	now     func() time.Time
}

var _ CredentialStore = (*accounts)(nil)

// AccountsOption configures the bun backed store
type AccountsOption func(*accounts)

// WithStoreTimeout bounds each store call, DefaultStoreTimeout when unset
func WithStoreTimeout(d time.Duration) AccountsOption {
	return func(a *accounts) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithStoreClock injects the clock used for timestamps
func WithStoreClock(now func() time.Time) AccountsOption {
	return func(a *accounts) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAccountsRepository returns a CredentialStore backed by db
func NewAccountsRepository(db *bun.DB, opts ...AccountsOption) CredentialStore {
	base := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(record *Account) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *Account, id uuid.UUID) {
			if record != nil {
				record.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	repo := &accounts{
		Repository: base,
		db:         db,
		timeout:    DefaultStoreTimeout,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo
}

func (a *accounts) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.timeout)
}

func (a *accounts) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *accounts) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	record, err := a.Repository.GetByIdentifierTx(ctx, tx, strings.TrimSpace(email))
	if err != nil {
		return nil, translateStoreError(err, "get_by_email")
	}
	return record, nil
}

func (a *accounts) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	record, err := a.Repository.GetByID(ctx, id.String())
	if err != nil {
		return nil, translateStoreError(err, "get_by_id")
	}
	return record, nil
}

func (a *accounts) Create(ctx context.Context, record *Account) (*Account, error) {
	return a.CreateTx(ctx, a.db, record)
}

func (a *accounts) CreateTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error) {
	if record == nil {
		return nil, wrapError(ErrValidationFailed, nil).WithMetadata(map[string]any{"operation": "create"})
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	a.prepareAccountDefaults(record)

	created, err := a.Repository.CreateTx(ctx, tx, record)
	if err != nil {
		return nil, translateStoreError(err, "create")
	}
	return created, nil
}

func (a *accounts) UpdateRole(ctx context.Context, id uuid.UUID, role UserRole) error {
	if !role.IsValid() {
		return wrapError(ErrValidationFailed, nil).WithMetadata(map[string]any{"field": "role"})
	}
	return a.updateColumns(ctx, "update_role", id, map[string]any{"role": role})
}

func (a *accounts) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.updateColumns(ctx, "update_password", id, map[string]any{"password_hash": passwordHash})
}

func (a *accounts) TouchLastLogin(ctx context.Context, id uuid.UUID) error {
	return a.updateColumns(ctx, "touch_last_login", id, map[string]any{"last_login_at": a.now()})
}

func (a *accounts) SetActive(ctx context.Context, id uuid.UUID, active bool) (*Account, error) {
	if err := a.updateColumns(ctx, "set_active", id, map[string]any{"is_active": active}); err != nil {
		return nil, err
	}
	return a.GetByID(ctx, id)
}

func (a *accounts) UpdateProfile(ctx context.Context, id uuid.UUID, update ProfileUpdate) (*Account, error) {
	columns := map[string]any{}
	set := func(column string, value *string) {
		if value != nil {
			columns[column] = *value
		}
	}
	set("name", update.Name)
	set("phone", update.Phone)
	set("address", update.Address)
	set("city", update.City)
	set("country", update.Country)
	set("postal_code", update.PostalCode)

	if len(columns) > 0 {
		if err := a.updateColumns(ctx, "update_profile", id, columns); err != nil {
			return nil, err
		}
	}
	return a.GetByID(ctx, id)
}

func (a *accounts) List(ctx context.Context, opts ListOptions) ([]*Account, int, error) {
	opts = opts.normalize()

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	records, total, err := a.Repository.List(ctx, listCriteria(opts)...)
	if err != nil {
		return nil, 0, translateStoreError(err, "list")
	}

	return records, total, nil
}

func listCriteria(opts ListOptions) []repository.SelectCriteria {
	criteria := []repository.SelectCriteria{}

	if opts.Role != "" {
		role := opts.Role
		criteria = append(criteria, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.role = ?", role)
		})
	}

	if search := strings.ToLower(strings.TrimSpace(opts.Search)); search != "" {
		pattern := "%" + search + "%"
		criteria = append(criteria, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.
					Where("LOWER(?TableAlias.name) LIKE ?", pattern).
					WhereOr("LOWER(?TableAlias.email) LIKE ?", pattern)
			})
		})
	}

	return append(criteria, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			OrderExpr("?TableAlias.created_at DESC").
			Limit(opts.Limit).
			Offset(opts.offset())
	})
}

func (a *accounts) updateColumns(ctx context.Context, operation string, id uuid.UUID, columns map[string]any) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	q := a.db.NewUpdate().
		Model((*Account)(nil)).
		Set("updated_at = ?", a.now())

	for column, value := range columns {
		q = q.Set("? = ?", bun.Ident(column), value)
	}

	res, err := q.Where("id = ?", id).Exec(ctx)
	if err != nil {
		return translateStoreError(err, operation)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return wrapError(ErrAccountNotFound, nil).WithMetadata(map[string]any{
			"operation": operation,
			"id":        id.String(),
		})
	}

	return nil
}

func (a *accounts) prepareAccountDefaults(record *Account) {
	record.Email = strings.TrimSpace(record.Email)
	record.Name = strings.TrimSpace(record.Name)

	if record.Role == "" {
		record.Role = RoleCustomer
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	now := a.now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
}

// storeSentinels pass through translateStoreError untouched
var storeSentinels = []*goerrors.Error{
	ErrAccountNotFound,
	ErrConstraintViolation,
	ErrStoreUnavailable,
	ErrValidationFailed,
}

// translateStoreError maps driver and repository failures onto the package errors
func translateStoreError(err error, operation string) error {
	if err == nil {
		return nil
	}

	for _, sentinel := range storeSentinels {
		if goerrors.Is(err, sentinel) {
			return err
		}
	}

	meta := map[string]any{"operation": operation}

	if goerrors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
		return wrapError(ErrAccountNotFound, err).WithMetadata(meta)
	}

	if isUniqueViolation(err) {
		return wrapError(ErrConstraintViolation, err).WithMetadata(meta)
	}

	return wrapError(ErrStoreUnavailable, fmt.Errorf("%s: %w", operation, err)).WithMetadata(meta)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if goerrors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
