package apperr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{UserError("httpapi", errors.New("bad")), http.StatusBadRequest},
		{NotFoundError("registry", errors.New("missing")), http.StatusNotFound},
		{DataError("store", errors.New("malformed")), http.StatusUnprocessableEntity},
		{Transient("store", errors.New("timeout")), http.StatusServiceUnavailable},
		{ConfigError("config", errors.New("bad config")), http.StatusInternalServerError},
		{errors.New("unclassified"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.status, HTTPStatus(c.err))
	}
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(Transient("store", errors.New("x"))))
	assert.False(t, IsTransient(DataError("store", errors.New("x"))))
}

func TestDetailHidesInternalsForUnclassified(t *testing.T) {
	assert.Equal(t, "internal error", Detail(errors.New("stack trace leak")))
	assert.Equal(t, "bad", Detail(UserError("httpapi", errors.New("bad"))))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	wrapped := Transient("store", cause)
	assert.ErrorIs(t, wrapped, cause)
}
