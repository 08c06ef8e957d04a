package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a referenced record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned for integrity violations: duplicate membership
	// pairs or deletes of records that are still referenced
	ErrConflict = errors.New("conflict")
)

// ValidationErrors collects user-correctable failures keyed by field name
type ValidationErrors map[string][]string

// Add records msg against field
func (v ValidationErrors) Add(field, msg string) {
	v[field] = append(v[field], msg)
}

// Merge copies every message of other into v
func (v ValidationErrors) Merge(other ValidationErrors) {
	for field, msgs := range other {
		for _, msg := range msgs {
			v.Add(field, msg)
		}
	}
}

// Err returns v as an error, or nil when nothing was recorded
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+" "+strings.Join(v[field], ", "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// translateError maps storage errors onto the package sentinels
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, gorm.ErrDuplicatedKey), errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}
