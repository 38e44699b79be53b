package main

import (
	"database/sql"
	"fmt"
)

type postgresDialect struct{}

func (postgresDialect) Kind() BackendKind { return BackendPostgres }
func (postgresDialect) Name() string      { return "PostgreSQL" }

// QuoteIdentifier always quotes, which also preserves case; catalog names are
// lowercase so they match unquoted references too.
func (postgresDialect) QuoteIdentifier(name string) string { return quoteWith(name, `"`, `"`) }

func (postgresDialect) ParameterToken(position int) string { return fmt.Sprintf("$%d", position) }

func (postgresDialect) MapType(t NeutralType) string {
	switch t.Kind {
	case TypeInteger:
		return "INTEGER"
	case TypeDecimal:
		p, s := t.decimalDims()
		return fmt.Sprintf("NUMERIC(%d,%d)", p, s)
	case TypeDate:
		return "DATE"
	case TypeDateTime:
		return "TIMESTAMP"
	case TypeVarChar:
		if t.Length > 0 {
			return fmt.Sprintf("VARCHAR(%d)", t.Length)
		}
	}
	return "TEXT"
}

func (d postgresDialect) BuildCreateTable(t TableSpec) string {
	return createTableSQL(d, t, func(col string) string {
		return col + " INTEGER GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY"
	})
}

func (d postgresDialect) BuildInsert(table string, columns []string) string {
	return insertSQL(d, table, columns)
}

func (d postgresDialect) BuildDeleteAll(table string, referenced bool) string {
	if referenced {
		return "DELETE FROM " + d.QuoteIdentifier(table)
	}
	return "TRUNCATE TABLE " + d.QuoteIdentifier(table)
}

func (postgresDialect) BuildTableExistsCheck(table string) string {
	return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = " + quoteLiteral(table)
}

func (d postgresDialect) BuildAddColumn(table string, col ColumnSpec) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", d.QuoteIdentifier(table), columnDef(d, col))
}

func (postgresDialect) BuildColumnsQuery(table string) string {
	return "SELECT column_name::text, data_type::text FROM information_schema.columns" +
		" WHERE table_schema = current_schema() AND table_name = " + quoteLiteral(table) +
		" ORDER BY ordinal_position"
}

func (d postgresDialect) BuildDropTable(table string) string {
	return "DROP TABLE " + d.QuoteIdentifier(table)
}

func (d postgresDialect) BuildRenameTable(from, to string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME TO %s", d.QuoteIdentifier(from), d.QuoteIdentifier(to))
}

func (d postgresDialect) BuildCountRows(table string) string {
	return "SELECT COUNT(*) FROM " + d.QuoteIdentifier(table)
}

func (postgresDialect) BuildIdentityInsert(string, bool) string { return "" }

// Explicit keys do not advance an identity sequence.
func (d postgresDialect) BuildResetIdentity(table, column string) string {
	return fmt.Sprintf("SELECT setval(pg_get_serial_sequence(%s, %s), COALESCE(MAX(%s), 0) + 1, false) FROM %s",
		quoteLiteral(d.QuoteIdentifier(table)), quoteLiteral(column), d.QuoteIdentifier(column), d.QuoteIdentifier(table))
}

func (postgresDialect) EnableForeignKeys() string       { return "" }
func (postgresDialect) TransactionalDDL() bool          { return true }
func (postgresDialect) TxIsolation() sql.IsolationLevel { return sql.LevelReadCommitted }
