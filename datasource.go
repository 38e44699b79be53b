package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrDataSourceNotFound is returned when no data source has the given id.
var ErrDataSourceNotFound = errors.New("data source not found")

// dataSourceColumns is the column order used by every data_sources read and
// insert.
var dataSourceColumns = []string{
	"id", "name", "db_type", "connection_string", "is_enabled", "is_default",
	"status", "last_tested_at", "created_at", "updated_at",
}

// DataSourceStore manages the registered data sources and keeps at most one
// of them marked as the default.
type DataSourceStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// NewDataSourceStore returns a store over the application database.
func NewDataSourceStore(db *sql.DB, d Dialect) *DataSourceStore {
	return &DataSourceStore{db: db, dialect: d, now: func() time.Time { return time.Now().UTC() }}
}

func (s *DataSourceStore) q(name string) string { return s.dialect.QuoteIdentifier(name) }

// Create registers a new, non-default data source and returns it with its
// generated id.
func (s *DataSourceStore) Create(ctx context.Context, name string, kind BackendKind, connStr string) (*DataSourceRecord, error) {
	if strings.TrimSpace(name) == "" {
		return nil, configError("data source name is empty")
	}
	if err := requireConnString(kind, connStr); err != nil {
		return nil, err
	}
	now := s.now()
	rec := &DataSourceRecord{
		ID:               uuid.NewString(),
		Name:             name,
		Kind:             kind,
		ConnectionString: connStr,
		Enabled:          true,
		Status:           StatusUnknown,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	err := execSQL(ctx, s.db, "insert data source", s.dialect.BuildInsert(tableDataSources, dataSourceColumns),
		rec.ID, rec.Name, string(rec.Kind), rec.ConnectionString, boolInt(rec.Enabled), boolInt(rec.IsDefault),
		rec.Status, nil, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Get returns one data source.
func (s *DataSourceStore) Get(ctx context.Context, id string) (*DataSourceRecord, error) {
	query := s.selectColumns() + " WHERE " + s.q("id") + " = " + s.dialect.ParameterToken(1)
	rec, err := scanDataSource(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrDataSourceNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get data source %s: %w\nSQL: %s", id, err, query)
	}
	return rec, nil
}

// List returns every data source, default first, then by name.
func (s *DataSourceStore) List(ctx context.Context) ([]DataSourceRecord, error) {
	query := s.selectColumns() + " ORDER BY " + s.q("is_default") + " DESC, " + s.q("name")
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list data sources: %w\nSQL: %s", err, query)
	}
	defer rows.Close()

	var out []DataSourceRecord
	for rows.Next() {
		rec, err := scanDataSource(rows)
		if err != nil {
			return nil, fmt.Errorf("list data sources: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list data sources: %w", err)
	}
	return out, nil
}

// Default returns the current default data source, or nil if none is marked.
func (s *DataSourceStore) Default(ctx context.Context) (*DataSourceRecord, error) {
	query := s.selectColumns() + " WHERE " + s.q("is_default") + " = " + s.dialect.ParameterToken(1)
	rows, err := s.db.QueryContext(ctx, query, int64(1))
	if err != nil {
		return nil, fmt.Errorf("get default data source: %w\nSQL: %s", err, query)
	}
	defer rows.Close()

	var found []*DataSourceRecord
	for rows.Next() {
		rec, err := scanDataSource(rows)
		if err != nil {
			return nil, fmt.Errorf("get default data source: %w", err)
		}
		found = append(found, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get default data source: %w", err)
	}
	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%d data sources are marked default", len(found))
	}
}

// PromoteToDefault makes id the only default data source. Clearing the old
// default and setting the new one commit together, so readers never see zero
// or two defaults. It reports false, leaving the previous default in place,
// when id does not exist.
func (s *DataSourceStore) PromoteToDefault(ctx context.Context, id string) (bool, error) {
	d := s.dialect
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: d.TxIsolation()})
	if err != nil {
		return false, fmt.Errorf("promote %s: begin: %w", id, err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now()
	clearSQL := fmt.Sprintf("UPDATE %s SET %s = %s, %s = %s WHERE %s = %s",
		s.q(tableDataSources), s.q("is_default"), d.ParameterToken(1),
		s.q("updated_at"), d.ParameterToken(2), s.q("is_default"), d.ParameterToken(3))
	if err := execSQL(ctx, tx, "clear default", clearSQL, int64(0), now, int64(1)); err != nil {
		return false, fmt.Errorf("promote %s: %w", id, err)
	}

	set := fmt.Sprintf("UPDATE %s SET %s = %s, %s = %s WHERE %s = %s",
		s.q(tableDataSources), s.q("is_default"), d.ParameterToken(1),
		s.q("updated_at"), d.ParameterToken(2), s.q("id"), d.ParameterToken(3))
	res, err := tx.ExecContext(ctx, set, int64(1), now, id)
	if err != nil {
		return false, fmt.Errorf("promote %s: set default: %w\nSQL: %s", id, err, set)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("promote %s: rows affected: %w", id, err)
	}
	if n == 0 {
		return false, nil
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("promote %s: commit: %w", id, err)
	}
	log.Printf("data source %s is now the default", id)
	return true, nil
}

// ClearDefault unmarks id if it is the default. Single-row update, no
// transaction. It reports false when id was not the default.
func (s *DataSourceStore) ClearDefault(ctx context.Context, id string) (bool, error) {
	d := s.dialect
	query := fmt.Sprintf("UPDATE %s SET %s = %s, %s = %s WHERE %s = %s AND %s = %s",
		s.q(tableDataSources), s.q("is_default"), d.ParameterToken(1),
		s.q("updated_at"), d.ParameterToken(2), s.q("id"), d.ParameterToken(3),
		s.q("is_default"), d.ParameterToken(4))
	res, err := s.db.ExecContext(ctx, query, int64(0), s.now(), id, int64(1))
	if err != nil {
		return false, fmt.Errorf("clear default %s: %w\nSQL: %s", id, err, query)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("clear default %s: %w", id, err)
	}
	return n > 0, nil
}

// SetEnabled toggles whether a data source may be used.
func (s *DataSourceStore) SetEnabled(ctx context.Context, id string, enabled bool) error {
	d := s.dialect
	query := fmt.Sprintf("UPDATE %s SET %s = %s, %s = %s WHERE %s = %s",
		s.q(tableDataSources), s.q("is_enabled"), d.ParameterToken(1),
		s.q("updated_at"), d.ParameterToken(2), s.q("id"), d.ParameterToken(3))
	return s.updateOne(ctx, "set enabled", query, id, boolInt(enabled), s.now(), id)
}

// RecordTestResult stores the outcome of a connection test.
func (s *DataSourceStore) RecordTestResult(ctx context.Context, id string, testErr error) error {
	status := StatusConnected
	if testErr != nil {
		status = StatusFailed
	}
	d := s.dialect
	now := s.now()
	query := fmt.Sprintf("UPDATE %s SET %s = %s, %s = %s, %s = %s WHERE %s = %s",
		s.q(tableDataSources), s.q("status"), d.ParameterToken(1),
		s.q("last_tested_at"), d.ParameterToken(2), s.q("updated_at"), d.ParameterToken(3),
		s.q("id"), d.ParameterToken(4))
	return s.updateOne(ctx, "record test result", query, id, status, now, now, id)
}

// Delete removes a data source. Rows referencing it keep their history with
// the reference nulled.
func (s *DataSourceStore) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
		s.q(tableDataSources), s.q("id"), s.dialect.ParameterToken(1))
	return s.updateOne(ctx, "delete", query, id, id)
}

// TestConnection opens the data source with its backend's factory, pings it
// and records the outcome. The returned error is the connection failure, if
// any.
func (s *DataSourceStore) TestConnection(ctx context.Context, id string, timeout time.Duration) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	testErr := pingDataSource(ctx, rec, timeout)
	if err := s.RecordTestResult(ctx, id, testErr); err != nil {
		return err
	}
	return testErr
}

func pingDataSource(ctx context.Context, rec *DataSourceRecord, timeout time.Duration) error {
	_, factory, err := newBackend(rec.Kind)
	if err != nil {
		return err
	}
	db, err := factory.CreateConnection(rec.ConnectionString)
	if err != nil {
		return err
	}
	defer db.Close()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", rec.Name, err)
	}
	return nil
}

func (s *DataSourceStore) updateOne(ctx context.Context, desc, query, id string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s %s: %w\nSQL: %s", desc, id, err, query)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s: %w", desc, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrDataSourceNotFound, id)
	}
	return nil
}

func (s *DataSourceStore) selectColumns() string {
	cols := make([]string, len(dataSourceColumns))
	for i, c := range dataSourceColumns {
		cols[i] = s.q(c)
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), s.q(tableDataSources))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDataSource(row rowScanner) (*DataSourceRecord, error) {
	var (
		rec            DataSourceRecord
		kind           string
		enabled, isDef int64
		lastTested     sql.NullTime
	)
	if err := row.Scan(&rec.ID, &rec.Name, &kind, &rec.ConnectionString, &enabled, &isDef,
		&rec.Status, &lastTested, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Kind = BackendKind(kind)
	rec.Enabled = enabled != 0
	rec.IsDefault = isDef != 0
	if lastTested.Valid {
		t := lastTested.Time
		rec.LastTestedAt = &t
	}
	return &rec, nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
