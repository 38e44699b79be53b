package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// sqlExecutor is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type sqlExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// txBeginner is an executor that can also open transactions (*sql.DB, *sql.Conn).
type txBeginner interface {
	sqlExecutor
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// execSQL runs a single statement and attaches the SQL text to any error.
func execSQL(ctx context.Context, exec sqlExecutor, desc, query string, args ...any) error {
	slog.Debug("exec", "step", desc, "sql", query)
	if _, err := exec.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w\nSQL: %s", desc, err, query)
	}
	return nil
}

// queryCount runs a scalar COUNT-style query.
func queryCount(ctx context.Context, exec sqlExecutor, query string, args ...any) (int64, error) {
	var n int64
	if err := exec.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w\nSQL: %s", err, query)
	}
	return n, nil
}

func tableExists(ctx context.Context, exec sqlExecutor, d Dialect, table string) (bool, error) {
	n, err := queryCount(ctx, exec, d.BuildTableExistsCheck(table))
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", table, err)
	}
	return n > 0, nil
}

// liveColumn is a column as reported by the backend catalog.
type liveColumn struct {
	Name     string
	Declared string
}

// liveColumns returns the table's columns in ordinal order. A missing table
// yields an empty slice.
func liveColumns(ctx context.Context, exec sqlExecutor, d Dialect, table string) ([]liveColumn, error) {
	query := d.BuildColumnsQuery(table)
	rows, err := exec.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("introspect columns for %s: %w\nSQL: %s", table, err, query)
	}
	defer rows.Close()

	var cols []liveColumn
	for rows.Next() {
		var name string
		var declared sql.NullString
		if err := rows.Scan(&name, &declared); err != nil {
			return nil, fmt.Errorf("introspect columns for %s: %w", table, err)
		}
		cols = append(cols, liveColumn{Name: name, Declared: declared.String})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("introspect columns for %s: %w", table, err)
	}
	return cols, nil
}

func findLiveColumn(cols []liveColumn, name string) (liveColumn, bool) {
	for _, c := range cols {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return liveColumn{}, false
}

// selectWhere builds "SELECT <what> FROM t WHERE c1 = ? AND c2 = ?" with the
// dialect's placeholders numbered from 1.
func selectWhere(d Dialect, what, table string, cols []string) string {
	conds := make([]string, len(cols))
	for i, c := range cols {
		conds[i] = fmt.Sprintf("%s = %s", d.QuoteIdentifier(c), d.ParameterToken(i+1))
	}
	q := fmt.Sprintf("SELECT %s FROM %s", what, d.QuoteIdentifier(table))
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	return q
}

// clearTable removes every row of a catalog table. Referenced tables are
// deleted row by row so ON DELETE rules fire; leaves are truncated.
func clearTable(ctx context.Context, exec sqlExecutor, d Dialect, catalog []TableSpec, table string) error {
	return execSQL(ctx, exec, "clear "+table, d.BuildDeleteAll(table, isReferenced(catalog, table)))
}
