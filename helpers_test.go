package auth_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	auth "github.com/es-parfumerie/go-auth"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"
)

const (
	testSigningKey = "a-very-long-test-signing-key-0123456789"
	testAdminEmail = "admin@esparfumerie.com"
)

func testOptions() auth.Options {
	return auth.Options{
		SigningKey:   testSigningKey,
		Issuer:       "es-parfumerie-test",
		AdminEmail:   testAdminEmail,
		PasswordCost: bcrypt.MinCost,
		HashWorkers:  4,
	}
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "auth.db")
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func newTestRepo(t *testing.T) auth.RepositoryManager {
	t.Helper()

	repo := auth.NewRepositoryManager(newTestDB(t))
	require.NoError(t, repo.Validate())
	require.NoError(t, repo.CreateSchema(context.Background()))
	return repo
}

func newTestAuther(t *testing.T, opts auth.Options) (*auth.Auther, auth.RepositoryManager, *capturingSink) {
	t.Helper()

	repo := newTestRepo(t)
	sink := &capturingSink{}
	auther := auth.NewAuthenticator(repo, opts).
		WithLogger(auth.NopLogger{}).
		WithActivitySink(sink)
	return auther, repo, sink
}

type capturingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (c *capturingSink) Record(_ context.Context, evt auth.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) Types() []auth.ActivityEventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(c.events))
	for _, evt := range c.events {
		out = append(out, evt.EventType)
	}
	return out
}

func (c *capturingSink) Count(eventType auth.ActivityEventType) int {
	n := 0
	for _, t := range c.Types() {
		if t == eventType {
			n++
		}
	}
	return n
}

func strPtr(s string) *string {
	return &s
}
