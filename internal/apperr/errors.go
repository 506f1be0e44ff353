// Package apperr defines the typed error taxonomy used across Aegis
// components, in the same spirit as the teacher's domain CrawlError: a
// small wrapper type per category, unwrappable with errors.As, so callers
// can branch on category without string matching.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Category classifies an error for retry policy and HTTP status mapping.
type Category string

const (
	CategoryTransient Category = "transient"
	CategoryData      Category = "data"
	CategoryConfig    Category = "config"
	CategoryUser      Category = "user"
	CategoryNotFound  Category = "not_found"
	CategoryConflict  Category = "conflict"
)

// Error wraps an underlying cause with a category and a component tag
// (e.g. "store", "httpcollector", "query").
type Error struct {
	Category  Category
	Component string
	Err       error
}

func (e *Error) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("%s: %s: %v", e.Component, e.Category, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Category, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(cat Category, component string, err error) *Error {
	return &Error{Category: cat, Component: component, Err: err}
}

// Transient wraps a retryable error (network timeout, connection reset, DB
// pool exhaustion) — callers should back off and retry.
func Transient(component string, err error) *Error { return newErr(CategoryTransient, component, err) }

// DataError wraps a malformed-payload or constraint-violation error that is
// not retryable and should be counted as a rejected record, not a fatal one.
func DataError(component string, err error) *Error { return newErr(CategoryData, component, err) }

// ConfigError wraps a startup/reload configuration problem.
func ConfigError(component string, err error) *Error { return newErr(CategoryConfig, component, err) }

// UserError wraps a bad request from an HTTP caller (invalid query params,
// malformed admin payload).
func UserError(component string, err error) *Error { return newErr(CategoryUser, component, err) }

// NotFoundError wraps a lookup miss (unknown kit ID, unknown drone ID).
func NotFoundError(component string, err error) *Error { return newErr(CategoryNotFound, component, err) }

// ConflictError wraps a duplicate-resource error (admin kit creation
// against an ID that already exists).
func ConflictError(component string, err error) *Error { return newErr(CategoryConflict, component, err) }

// Is reports whether err (or anything it wraps) carries the given category.
func Is(err error, cat Category) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Category == cat
	}
	return false
}

// IsTransient is a convenience check used by retry loops.
func IsTransient(err error) bool { return Is(err, CategoryTransient) }

// HTTPStatus maps an error's category to the status code the read API
// middleware should respond with. Unrecognized errors map to 500.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Category {
	case CategoryUser:
		return http.StatusBadRequest
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryConflict:
		return http.StatusConflict
	case CategoryConfig:
		return http.StatusInternalServerError
	case CategoryData:
		return http.StatusUnprocessableEntity
	case CategoryTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Detail extracts the caller-facing message for the HTTP error envelope. For
// unrecognized errors it returns a generic message to avoid leaking internals.
func Detail(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Err.Error()
	}
	return "internal error"
}
