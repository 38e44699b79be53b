package main

import (
	"database/sql"
	"fmt"
)

type sqliteDialect struct{}

func (sqliteDialect) Kind() BackendKind { return BackendSQLite }
func (sqliteDialect) Name() string      { return "SQLite" }

func (sqliteDialect) QuoteIdentifier(name string) string { return quoteWith(name, `"`, `"`) }

func (sqliteDialect) ParameterToken(int) string { return "?" }

func (sqliteDialect) MapType(t NeutralType) string {
	switch t.Kind {
	case TypeInteger:
		return "INTEGER"
	case TypeDecimal:
		p, s := t.decimalDims()
		return fmt.Sprintf("DECIMAL(%d,%d)", p, s)
	case TypeDate:
		return "DATE"
	case TypeDateTime:
		return "DATETIME"
	case TypeVarChar:
		if t.Length > 0 {
			return fmt.Sprintf("VARCHAR(%d)", t.Length)
		}
	}
	return "TEXT"
}

func (d sqliteDialect) BuildCreateTable(t TableSpec) string {
	return createTableSQL(d, t, func(col string) string {
		return col + " INTEGER PRIMARY KEY AUTOINCREMENT"
	})
}

func (d sqliteDialect) BuildInsert(table string, columns []string) string {
	return insertSQL(d, table, columns)
}

// SQLite has no TRUNCATE; an unqualified DELETE uses the truncate optimization.
// SQLite has no TRUNCATE.
func (d sqliteDialect) BuildDeleteAll(table string, _ bool) string {
	return "DELETE FROM " + d.QuoteIdentifier(table)
}

func (sqliteDialect) BuildTableExistsCheck(table string) string {
	return "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = " + quoteLiteral(table)
}

func (d sqliteDialect) BuildAddColumn(table string, col ColumnSpec) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", d.QuoteIdentifier(table), columnDef(d, col))
}

func (sqliteDialect) BuildColumnsQuery(table string) string {
	return "SELECT name, type FROM pragma_table_info(" + quoteLiteral(table) + ") ORDER BY cid"
}

func (d sqliteDialect) BuildDropTable(table string) string {
	return "DROP TABLE " + d.QuoteIdentifier(table)
}

func (d sqliteDialect) BuildRenameTable(from, to string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME TO %s", d.QuoteIdentifier(from), d.QuoteIdentifier(to))
}

func (d sqliteDialect) BuildCountRows(table string) string {
	return "SELECT COUNT(*) FROM " + d.QuoteIdentifier(table)
}

func (sqliteDialect) BuildIdentityInsert(string, bool) string  { return "" }
func (sqliteDialect) BuildResetIdentity(string, string) string { return "" }
func (sqliteDialect) EnableForeignKeys() string                { return "PRAGMA foreign_keys = ON" }
func (sqliteDialect) TransactionalDDL() bool                   { return true }
func (sqliteDialect) TxIsolation() sql.IsolationLevel          { return sql.LevelDefault }
