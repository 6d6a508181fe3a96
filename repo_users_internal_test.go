package auth

import (
	"database/sql"
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateStoreError(t *testing.T) {
	assert.NoError(t, translateStoreError(nil, "noop"))

	notFound := translateStoreError(repository.NewRecordNotFound(), "get_by_id")
	assert.ErrorIs(t, notFound, ErrAccountNotFound)
	assert.Equal(t, TextCodeAccountNotFound, TextCodeOf(notFound))

	var richErr *goerrors.Error
	require.True(t, goerrors.As(notFound, &richErr))
	assert.Equal(t, "get_by_id", richErr.Metadata["operation"])

	assert.ErrorIs(t, translateStoreError(sql.ErrNoRows, "get_by_email"), ErrAccountNotFound)

	unique := translateStoreError(errors.New("UNIQUE constraint failed: users.email"), "create")
	assert.ErrorIs(t, unique, ErrConstraintViolation)

	down := translateStoreError(errors.New("dial tcp: connection refused"), "list")
	assert.ErrorIs(t, down, ErrStoreUnavailable)
	assert.Contains(t, down.Error(), "list: dial tcp")

	passthrough := wrapError(ErrAccountNotFound, nil)
	assert.Same(t, passthrough, translateStoreError(passthrough, "update_role"))
}
