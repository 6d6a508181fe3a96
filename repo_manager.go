package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	CreateSchema(ctx context.Context) error
	Accounts() CredentialStore
}

type mngr struct {
	db       *bun.DB
	accounts CredentialStore
}

// NewRepositoryManager wires the bun backed stores around db
func NewRepositoryManager(db *bun.DB, opts ...AccountsOption) RepositoryManager {
	return &mngr{
		db:       db,
		accounts: NewAccountsRepository(db, opts...),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("database should be initialized")
	}

	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
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

// CreateSchema creates the users table and its indexes when missing
func (m mngr) CreateSchema(ctx context.Context) error {
	if _, err := m.db.NewCreateTable().
		Model((*Account)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return translateStoreError(err, "create_schema")
	}

	if _, err := m.db.NewCreateIndex().
		Model((*Account)(nil)).
		Index("users_role_idx").
		Column("role").
		IfNotExists().
		Exec(ctx); err != nil {
		return translateStoreError(err, "create_schema")
	}

	return nil
}

func (m mngr) Accounts() CredentialStore {
	return m.accounts
}
