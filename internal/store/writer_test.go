package store

import (
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldwatch/aegis/internal/apperr"
)

func TestIsTransientPgError(t *testing.T) {
	cases := []struct {
		code      string
		transient bool
	}{
		{"40001", true},  // serialization_failure
		{"53300", true},  // too_many_connections
		{"23505", false}, // unique_violation
		{"23514", false}, // check_violation
	}
	for _, c := range cases {
		err := &pgconn.PgError{Code: c.code}
		assert.Equal(t, c.transient, isTransientPgError(err), "code %s", c.code)
	}
}

func TestIsTransientPgError_NonPgError(t *testing.T) {
	require.True(t, isTransientPgError(assertErr{}))
}

func TestClassifyPgError(t *testing.T) {
	transient := classifyPgError("kits", &pgconn.PgError{Code: "40001"})
	require.True(t, apperr.IsTransient(transient))

	data := classifyPgError("kits", &pgconn.PgError{Code: "23505"})
	require.False(t, apperr.IsTransient(data))
	require.True(t, apperr.Is(data, apperr.CategoryData))
}

func TestNullableStr(t *testing.T) {
	assert.Nil(t, nullableStr(""))
	assert.Equal(t, "x", nullableStr("x"))
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
