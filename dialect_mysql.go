package main

import (
	"database/sql"
	"fmt"
)

type mysqlDialect struct{}

func (mysqlDialect) Kind() BackendKind { return BackendMySQL }
func (mysqlDialect) Name() string      { return "MySQL" }

func (mysqlDialect) QuoteIdentifier(name string) string { return quoteWith(name, "`", "`") }

func (mysqlDialect) ParameterToken(int) string { return "?" }

func (mysqlDialect) MapType(t NeutralType) string {
	switch t.Kind {
	case TypeInteger:
		return "INT"
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
	return "LONGTEXT"
}

func (d mysqlDialect) BuildCreateTable(t TableSpec) string {
	return createTableSQL(d, t, func(col string) string {
		return col + " INT NOT NULL AUTO_INCREMENT PRIMARY KEY"
	})
}

func (d mysqlDialect) BuildInsert(table string, columns []string) string {
	return insertSQL(d, table, columns)
}

func (d mysqlDialect) BuildDeleteAll(table string, referenced bool) string {
	if referenced {
		return "DELETE FROM " + d.QuoteIdentifier(table)
	}
	return "TRUNCATE TABLE " + d.QuoteIdentifier(table)
}

func (mysqlDialect) BuildTableExistsCheck(table string) string {
	return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = " + quoteLiteral(table)
}

func (d mysqlDialect) BuildAddColumn(table string, col ColumnSpec) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", d.QuoteIdentifier(table), columnDef(d, col))
}

func (mysqlDialect) BuildColumnsQuery(table string) string {
	return "SELECT column_name, column_type FROM information_schema.columns" +
		" WHERE table_schema = DATABASE() AND table_name = " + quoteLiteral(table) +
		" ORDER BY ordinal_position"
}

func (d mysqlDialect) BuildDropTable(table string) string {
	return "DROP TABLE " + d.QuoteIdentifier(table)
}

func (d mysqlDialect) BuildRenameTable(from, to string) string {
	return fmt.Sprintf("RENAME TABLE %s TO %s", d.QuoteIdentifier(from), d.QuoteIdentifier(to))
}

func (d mysqlDialect) BuildCountRows(table string) string {
	return "SELECT COUNT(*) FROM " + d.QuoteIdentifier(table)
}

func (mysqlDialect) BuildIdentityInsert(string, bool) string  { return "" }
func (mysqlDialect) BuildResetIdentity(string, string) string { return "" }
func (mysqlDialect) EnableForeignKeys() string                { return "" }

// DDL statements commit implicitly in MySQL.
func (mysqlDialect) TransactionalDDL() bool          { return false }
func (mysqlDialect) TxIsolation() sql.IsolationLevel { return sql.LevelReadCommitted }
