package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrDuplicateCard       = errors.New("a card with the same last four digits is already saved")
)

// ValidationError reports a malformed field. It is never auto-corrected.
type ValidationError struct {
	Field string
	Msg   string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

// FieldErrors aggregates validation failures keyed by field name.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+f[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records msg for field unless the field already has a message.
func (f FieldErrors) Add(field, msg string) {
	if _, ok := f[field]; !ok {
		f[field] = msg
	}
}

// AddError folds err into f when it is a ValidationError; other errors are
// recorded under "_".
func (f FieldErrors) AddError(err error) {
	var ve ValidationError
	if errors.As(err, &ve) {
		f.Add(ve.Field, ve.Msg)
		return
	}
	f.Add("_", err.Error())
}

// OrNil returns nil for an empty set so callers can return it directly.
func (f FieldErrors) OrNil() error {
	if len(f) == 0 {
		return nil
	}
	return f
}

type NotFoundError struct {
	Entity string
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func IsValidation(err error) bool {
	var ve ValidationError
	var fe FieldErrors
	return errors.As(err, &ve) || errors.As(err, &fe) || errors.Is(err, ErrDuplicateCard)
}

func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

func IsUpstreamUnavailable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable)
}
