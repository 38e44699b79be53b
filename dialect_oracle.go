package main

import (
	"database/sql"
	"fmt"
)

// varchar2Max is the widest VARCHAR2 under the default MAX_STRING_SIZE.
const varchar2Max = 4000

type oracleDialect struct{}

func (oracleDialect) Kind() BackendKind { return BackendOracle }
func (oracleDialect) Name() string      { return "Oracle" }

// QuoteIdentifier preserves case: "users" and USERS are different tables.
// Catalog queries below compare against the same lowercase names.
func (oracleDialect) QuoteIdentifier(name string) string { return quoteWith(name, `"`, `"`) }

func (oracleDialect) ParameterToken(position int) string { return fmt.Sprintf(":%d", position) }

func (oracleDialect) MapType(t NeutralType) string {
	switch t.Kind {
	case TypeInteger:
		return "NUMBER(10)"
	case TypeDecimal:
		p, s := t.decimalDims()
		return fmt.Sprintf("NUMBER(%d,%d)", p, s)
	case TypeDate:
		return "DATE"
	case TypeDateTime:
		return "TIMESTAMP"
	case TypeVarChar:
		if t.Length > 0 && t.Length <= varchar2Max {
			return fmt.Sprintf("VARCHAR2(%d CHAR)", t.Length)
		}
	}
	return "CLOB"
}

func (d oracleDialect) BuildCreateTable(t TableSpec) string {
	return createTableSQL(d, t, func(col string) string {
		return col + " NUMBER(10) GENERATED BY DEFAULT ON NULL AS IDENTITY PRIMARY KEY"
	})
}

func (d oracleDialect) BuildInsert(table string, columns []string) string {
	return insertSQL(d, table, columns)
}

func (d oracleDialect) BuildDeleteAll(table string, referenced bool) string {
	if referenced {
		return "DELETE FROM " + d.QuoteIdentifier(table)
	}
	return "TRUNCATE TABLE " + d.QuoteIdentifier(table)
}

func (oracleDialect) BuildTableExistsCheck(table string) string {
	return "SELECT COUNT(*) FROM USER_TABLES WHERE TABLE_NAME = " + quoteLiteral(table)
}

func (d oracleDialect) BuildAddColumn(table string, col ColumnSpec) string {
	return fmt.Sprintf("ALTER TABLE %s ADD (%s)", d.QuoteIdentifier(table), columnDef(d, col))
}

// NUMBER is reported with its precision and scale so integers and decimals
// can be told apart.
func (oracleDialect) BuildColumnsQuery(table string) string {
	return "SELECT COLUMN_NAME, DATA_TYPE || CASE WHEN DATA_TYPE = 'NUMBER' THEN" +
		" '(' || NVL(DATA_PRECISION, 38) || ',' || NVL(DATA_SCALE, 0) || ')' END" +
		" FROM USER_TAB_COLUMNS WHERE TABLE_NAME = " + quoteLiteral(table) +
		" ORDER BY COLUMN_ID"
}

func (d oracleDialect) BuildDropTable(table string) string {
	return "DROP TABLE " + d.QuoteIdentifier(table)
}

func (d oracleDialect) BuildRenameTable(from, to string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME TO %s", d.QuoteIdentifier(from), d.QuoteIdentifier(to))
}

func (d oracleDialect) BuildCountRows(table string) string {
	return "SELECT COUNT(*) FROM " + d.QuoteIdentifier(table)
}

func (oracleDialect) BuildIdentityInsert(string, bool) string { return "" }

func (d oracleDialect) BuildResetIdentity(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s MODIFY (%s GENERATED BY DEFAULT ON NULL AS IDENTITY (START WITH LIMIT VALUE))",
		d.QuoteIdentifier(table), d.QuoteIdentifier(column))
}

func (oracleDialect) EnableForeignKeys() string { return "" }

// Oracle commits implicitly around every DDL statement.
func (oracleDialect) TransactionalDDL() bool          { return false }
func (oracleDialect) TxIsolation() sql.IsolationLevel { return sql.LevelReadCommitted }
