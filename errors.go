package main

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidConfiguration       = errors.New("invalid configuration")
	ErrSchemaInitializationFailed = errors.New("schema initialization failed")
	ErrMigrationFailed            = errors.New("migration failed")
)

// SchemaError reports a failed schema operation together with the table and
// column it was working on. Kind is one of the package sentinels.
type SchemaError struct {
	Kind   error
	Step   string
	Table  string
	Column string
	Err    error
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Step != "" {
		fmt.Fprintf(&b, ": %s", e.Step)
	}
	if e.Table != "" {
		target := e.Table
		if e.Column != "" {
			target += "." + e.Column
		}
		fmt.Fprintf(&b, " (%s)", target)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *SchemaError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func initError(step, table string, err error) error {
	return &SchemaError{Kind: ErrSchemaInitializationFailed, Step: step, Table: table, Err: err}
}

func migrationError(step MigrationStep, desc string, err error) error {
	return &SchemaError{
		Kind:   ErrMigrationFailed,
		Step:   fmt.Sprintf("%s: %s", step.Kind, desc),
		Table:  step.Table,
		Column: step.Column.Name,
		Err:    err,
	}
}

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}
