package main

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// BackendKind tags one of the supported relational backends.
type BackendKind string

const (
	BackendSQLite    BackendKind = "sqlite"
	BackendMySQL     BackendKind = "mysql"
	BackendPostgres  BackendKind = "postgres"
	BackendSQLServer BackendKind = "sqlserver"
	BackendOracle    BackendKind = "oracle"
)

var backendKinds = []BackendKind{BackendSQLite, BackendMySQL, BackendPostgres, BackendSQLServer, BackendOracle}

// parseBackendKind resolves a configured backend tag, accepting common aliases.
func parseBackendKind(s string) (BackendKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sqlite", "sqlite3":
		return BackendSQLite, nil
	case "mysql", "mariadb":
		return BackendMySQL, nil
	case "postgres", "postgresql", "pg":
		return BackendPostgres, nil
	case "sqlserver", "mssql":
		return BackendSQLServer, nil
	case "oracle":
		return BackendOracle, nil
	default:
		return "", configError("unsupported backend %q (must be sqlite, mysql, postgres, sqlserver or oracle)", s)
	}
}

// Dialect translates neutral schema requests into backend-native SQL text.
// Implementations are pure: no I/O, same output for the same input.
type Dialect interface {
	// Kind returns the backend tag this dialect targets.
	Kind() BackendKind

	// Name returns a human-readable backend name ("SQLite", "MySQL", ...).
	Name() string

	// QuoteIdentifier wraps a raw identifier in the backend's quoting syntax.
	QuoteIdentifier(name string) string

	// ParameterToken renders the bind placeholder for the given 1-based position.
	ParameterToken(position int) string

	// MapType returns the native column type. Unknown kinds fall back to the
	// backend's widest text type.
	MapType(t NeutralType) string

	// BuildCreateTable emits a single CREATE TABLE statement. Foreign keys are
	// not included; see withForeignKeys.
	BuildCreateTable(t TableSpec) string

	// BuildInsert emits a parameterized INSERT with columns and placeholders in
	// matching order.
	BuildInsert(table string, columns []string) string

	// BuildDeleteAll emits the fastest statement that leaves the table empty.
	// Backends refuse TRUNCATE on a table that a foreign key references, so
	// referenced tables get a plain DELETE.
	BuildDeleteAll(table string, referenced bool) string

	// BuildTableExistsCheck emits a scalar query returning a nonzero count iff
	// the table exists.
	BuildTableExistsCheck(table string) string

	// BuildAddColumn emits ALTER TABLE ... ADD for one column.
	BuildAddColumn(table string, col ColumnSpec) string

	// BuildColumnsQuery emits a query returning (name, declared type) rows for
	// every column of the table.
	BuildColumnsQuery(table string) string

	BuildDropTable(table string) string
	BuildRenameTable(from, to string) string
	BuildCountRows(table string) string

	// BuildIdentityInsert toggles explicit inserts into an identity column.
	// Empty when the backend accepts explicit keys without it.
	BuildIdentityInsert(table string, on bool) string

	// BuildResetIdentity realigns the generator of an auto-increment column
	// with the rows present. Empty when the backend tracks it itself.
	BuildResetIdentity(table, column string) string

	// EnableForeignKeys returns the statement that turns on FK enforcement for
	// the current connection, or "" if the backend always enforces them.
	EnableForeignKeys() string

	// TransactionalDDL reports whether DDL can be rolled back.
	TransactionalDDL() bool

	// TxIsolation is the isolation level used for invariant transactions.
	TxIsolation() sql.IsolationLevel
}

// newDialect returns the Dialect for a backend.
func newDialect(kind BackendKind) (Dialect, error) {
	switch kind {
	case BackendSQLite:
		return sqliteDialect{}, nil
	case BackendMySQL:
		return mysqlDialect{}, nil
	case BackendPostgres:
		return postgresDialect{}, nil
	case BackendSQLServer:
		return sqlserverDialect{}, nil
	case BackendOracle:
		return oracleDialect{}, nil
	default:
		return nil, configError("unsupported backend %q", kind)
	}
}

// columnDef renders "<name> <type> [DEFAULT x] [NOT NULL]". DEFAULT precedes
// NOT NULL because Oracle rejects the other order.
func columnDef(d Dialect, col ColumnSpec) string {
	var b strings.Builder
	b.WriteString(d.QuoteIdentifier(col.Name))
	b.WriteByte(' ')
	b.WriteString(d.MapType(col.Type))
	if col.Default != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(col.Default)
	}
	if !col.Nullable {
		b.WriteString(" NOT NULL")
	}
	return b.String()
}

// createTableSQL is the shared CREATE TABLE layout. autoKey renders the
// dialect's auto-increment key column definition.
func createTableSQL(d Dialect, t TableSpec, autoKey func(quotedCol string) string) string {
	var lines []string
	if t.PrimaryKey != nil && t.PrimaryKey.Strategy == KeyAutoIncrement {
		lines = append(lines, autoKey(d.QuoteIdentifier(t.PrimaryKey.Column)))
	}
	for _, col := range t.Columns {
		lines = append(lines, columnDef(d, col))
	}
	if t.PrimaryKey != nil && t.PrimaryKey.Strategy == KeyExternal {
		lines = append(lines, fmt.Sprintf("PRIMARY KEY (%s)", d.QuoteIdentifier(t.PrimaryKey.Column)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", d.QuoteIdentifier(t.Name))
	for i, l := range lines {
		b.WriteString("  ")
		b.WriteString(l)
		if i < len(lines)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString(")")
	return b.String()
}

// withForeignKeys splices FOREIGN KEY clauses into a CREATE TABLE statement
// produced by createTableSQL. Constraints are left unnamed so a shadow copy
// of the table never collides with the original's constraint names.
func withForeignKeys(d Dialect, ddl string, fks []ForeignKeySpec) string {
	if len(fks) == 0 {
		return ddl
	}
	end := strings.LastIndex(ddl, "\n)")
	if end < 0 {
		return ddl
	}
	var b strings.Builder
	b.WriteString(ddl[:end])
	for _, fk := range fks {
		fmt.Fprintf(&b, ",\n  FOREIGN KEY (%s) REFERENCES %s (%s)%s",
			d.QuoteIdentifier(fk.Column), d.QuoteIdentifier(fk.RefTable), d.QuoteIdentifier(fk.RefColumn),
			fk.OnDelete.clause())
	}
	b.WriteString(ddl[end:])
	return b.String()
}

func insertSQL(d Dialect, table string, columns []string) string {
	cols := make([]string, len(columns))
	params := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = d.QuoteIdentifier(c)
		params[i] = d.ParameterToken(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.QuoteIdentifier(table), strings.Join(cols, ", "), strings.Join(params, ", "))
}

// quoteLiteral renders a SQL string literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// quoteWith wraps name in open/close and doubles any embedded close character.
func quoteWith(name, lq, rq string) string {
	return lq + strings.ReplaceAll(name, rq, rq+rq) + rq
}

// classifyNativeType maps a declared type reported by a backend catalog back
// to its neutral kind. VarChar and Text are distinguished but compare equal
// through TypeKind.textual.
func classifyNativeType(declared string) TypeKind {
	t := strings.ToLower(strings.TrimSpace(declared))
	switch {
	case t == "":
		return TypeUnknown
	case strings.Contains(t, "(max)"), strings.Contains(t, "text"), strings.Contains(t, "clob"):
		return TypeText
	case strings.Contains(t, "char"):
		return TypeVarChar
	case strings.HasPrefix(t, "number"):
		if _, scale, ok := parseTypeDims(t); ok && scale == 0 {
			return TypeInteger
		}
		return TypeDecimal
	case strings.Contains(t, "int"):
		return TypeInteger
	case strings.HasPrefix(t, "decimal"), strings.HasPrefix(t, "numeric"), strings.HasPrefix(t, "real"),
		strings.HasPrefix(t, "double"), strings.HasPrefix(t, "float"), strings.HasSuffix(t, "money"):
		return TypeDecimal
	case strings.HasPrefix(t, "timestamp"), strings.HasPrefix(t, "datetime"):
		return TypeDateTime
	case t == "date":
		return TypeDate
	default:
		return TypeUnknown
	}
}

// sameTypeFamily reports whether a live column of kind live satisfies a
// declared neutral type without a retype.
func sameTypeFamily(live TypeKind, want NeutralType) bool {
	if want.Kind.textual() || want.Kind == TypeUnknown {
		return live.textual()
	}
	return live == want.Kind
}

// parseTypeDims extracts "(p)" or "(p,s)" from a declared type.
func parseTypeDims(t string) (precision, scale int, ok bool) {
	lp := strings.IndexByte(t, '(')
	rp := strings.LastIndexByte(t, ')')
	if lp < 0 || rp < lp {
		return 0, 0, false
	}
	parts := strings.Split(t[lp+1:rp], ",")
	p, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, false
	}
	if len(parts) > 1 {
		s, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return 0, 0, false
		}
		return p, s, true
	}
	return p, 0, true
}
