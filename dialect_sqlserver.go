package main

import (
	"database/sql"
	"fmt"
)

// nvarcharMax is the widest bounded NVARCHAR; anything wider becomes MAX.
const nvarcharMax = 4000

type sqlserverDialect struct{}

func (sqlserverDialect) Kind() BackendKind { return BackendSQLServer }
func (sqlserverDialect) Name() string      { return "SQL Server" }

func (sqlserverDialect) QuoteIdentifier(name string) string { return quoteWith(name, "[", "]") }

func (sqlserverDialect) ParameterToken(position int) string { return fmt.Sprintf("@p%d", position) }

func (sqlserverDialect) MapType(t NeutralType) string {
	switch t.Kind {
	case TypeInteger:
		return "INT"
	case TypeDecimal:
		p, s := t.decimalDims()
		return fmt.Sprintf("DECIMAL(%d,%d)", p, s)
	case TypeDate:
		return "DATE"
	case TypeDateTime:
		return "DATETIME2"
	case TypeVarChar:
		if t.Length > 0 && t.Length <= nvarcharMax {
			return fmt.Sprintf("NVARCHAR(%d)", t.Length)
		}
	}
	return "NVARCHAR(MAX)"
}

func (d sqlserverDialect) BuildCreateTable(t TableSpec) string {
	return createTableSQL(d, t, func(col string) string {
		return col + " INT IDENTITY(1,1) PRIMARY KEY"
	})
}

func (d sqlserverDialect) BuildInsert(table string, columns []string) string {
	return insertSQL(d, table, columns)
}

func (d sqlserverDialect) BuildDeleteAll(table string, referenced bool) string {
	if referenced {
		return "DELETE FROM " + d.QuoteIdentifier(table)
	}
	return "TRUNCATE TABLE " + d.QuoteIdentifier(table)
}

func (sqlserverDialect) BuildTableExistsCheck(table string) string {
	return "SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = SCHEMA_NAME() AND TABLE_NAME = N" + quoteLiteral(table)
}

func (d sqlserverDialect) BuildAddColumn(table string, col ColumnSpec) string {
	return fmt.Sprintf("ALTER TABLE %s ADD %s", d.QuoteIdentifier(table), columnDef(d, col))
}

func (sqlserverDialect) BuildColumnsQuery(table string) string {
	return "SELECT COLUMN_NAME, DATA_TYPE + CASE WHEN CHARACTER_MAXIMUM_LENGTH = -1 THEN '(max)' ELSE '' END" +
		" FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_SCHEMA = SCHEMA_NAME() AND TABLE_NAME = N" + quoteLiteral(table) +
		" ORDER BY ORDINAL_POSITION"
}

func (d sqlserverDialect) BuildDropTable(table string) string {
	return "DROP TABLE " + d.QuoteIdentifier(table)
}

// sp_rename takes plain names, not bracketed identifiers.
func (sqlserverDialect) BuildRenameTable(from, to string) string {
	return fmt.Sprintf("EXEC sp_rename N%s, N%s", quoteLiteral(from), quoteLiteral(to))
}

func (d sqlserverDialect) BuildCountRows(table string) string {
	return "SELECT COUNT(*) FROM " + d.QuoteIdentifier(table)
}

func (d sqlserverDialect) BuildIdentityInsert(table string, on bool) string {
	state := "OFF"
	if on {
		state = "ON"
	}
	return fmt.Sprintf("SET IDENTITY_INSERT %s %s", d.QuoteIdentifier(table), state)
}

func (sqlserverDialect) BuildResetIdentity(string, string) string { return "" }
func (sqlserverDialect) EnableForeignKeys() string                { return "" }
func (sqlserverDialect) TransactionalDDL() bool                   { return true }
func (sqlserverDialect) TxIsolation() sql.IsolationLevel          { return sql.LevelReadCommitted }
