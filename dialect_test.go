package main

import (
	"database/sql"
	"strings"
	"testing"
)

func allDialects(t *testing.T) []Dialect {
	t.Helper()
	var out []Dialect
	for _, k := range backendKinds {
		d, err := newDialect(k)
		if err != nil {
			t.Fatalf("newDialect(%s) error: %v", k, err)
		}
		out = append(out, d)
	}
	return out
}

func TestParseBackendKind(t *testing.T) {
	tests := []struct {
		in   string
		want BackendKind
	}{
		{"sqlite", BackendSQLite},
		{"SQLite3", BackendSQLite},
		{"mariadb", BackendMySQL},
		{" postgresql ", BackendPostgres},
		{"pg", BackendPostgres},
		{"mssql", BackendSQLServer},
		{"sqlserver", BackendSQLServer},
		{"oracle", BackendOracle},
	}
	for _, tt := range tests {
		got, err := parseBackendKind(tt.in)
		if err != nil {
			t.Errorf("parseBackendKind(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseBackendKind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if _, err := parseBackendKind("db2"); err == nil {
		t.Error("expected error for unsupported backend")
	}
}

func TestNewDialect_Unsupported(t *testing.T) {
	if _, err := newDialect("db2"); err == nil {
		t.Fatal("expected error for unsupported backend")
	}
}

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		kind BackendKind
		in   string
		want string
	}{
		{BackendSQLite, "order", `"order"`},
		{BackendSQLite, `we"ird`, `"we""ird"`},
		{BackendMySQL, "order", "`order`"},
		{BackendMySQL, "my`table", "`my``table`"},
		{BackendPostgres, "user", `"user"`},
		{BackendSQLServer, "select", "[select]"},
		{BackendSQLServer, "a]b", "[a]]b]"},
		{BackendOracle, "level", `"level"`},
	}
	for _, tt := range tests {
		d, _ := newDialect(tt.kind)
		if got := d.QuoteIdentifier(tt.in); got != tt.want {
			t.Errorf("%s QuoteIdentifier(%q) = %q, want %q", tt.kind, tt.in, got, tt.want)
		}
	}
}

func TestParameterToken(t *testing.T) {
	tests := []struct {
		kind BackendKind
		pos  int
		want string
	}{
		{BackendSQLite, 1, "?"},
		{BackendSQLite, 7, "?"},
		{BackendMySQL, 3, "?"},
		{BackendPostgres, 1, "$1"},
		{BackendPostgres, 12, "$12"},
		{BackendSQLServer, 2, "@p2"},
		{BackendOracle, 3, ":3"},
	}
	for _, tt := range tests {
		d, _ := newDialect(tt.kind)
		if got := d.ParameterToken(tt.pos); got != tt.want {
			t.Errorf("%s ParameterToken(%d) = %q, want %q", tt.kind, tt.pos, got, tt.want)
		}
	}
}

func TestMapType(t *testing.T) {
	tests := []struct {
		kind BackendKind
		typ  NeutralType
		want string
	}{
		{BackendSQLite, Integer(), "INTEGER"},
		{BackendSQLite, VarChar(50), "VARCHAR(50)"},
		{BackendSQLite, Text(), "TEXT"},
		{BackendMySQL, Integer(), "INT"},
		{BackendMySQL, VarChar(255), "VARCHAR(255)"},
		{BackendMySQL, Text(), "LONGTEXT"},
		{BackendMySQL, Decimal(0, 0), "DECIMAL(18,4)"},
		{BackendPostgres, DateTime(), "TIMESTAMP"},
		{BackendPostgres, Decimal(18, 2), "NUMERIC(18,2)"},
		{BackendPostgres, Date(), "DATE"},
		{BackendSQLServer, VarChar(100), "NVARCHAR(100)"},
		{BackendSQLServer, VarChar(8000), "NVARCHAR(MAX)"},
		{BackendSQLServer, DateTime(), "DATETIME2"},
		{BackendOracle, VarChar(36), "VARCHAR2(36 CHAR)"},
		{BackendOracle, Integer(), "NUMBER(10)"},
		{BackendOracle, Text(), "CLOB"},
	}
	for _, tt := range tests {
		d, _ := newDialect(tt.kind)
		if got := d.MapType(tt.typ); got != tt.want {
			t.Errorf("%s MapType(%s) = %q, want %q", tt.kind, tt.typ, got, tt.want)
		}
	}
}

func TestMapType_UnknownFallsBackToWidestText(t *testing.T) {
	want := map[BackendKind]string{
		BackendSQLite:    "TEXT",
		BackendMySQL:     "LONGTEXT",
		BackendPostgres:  "TEXT",
		BackendSQLServer: "NVARCHAR(MAX)",
		BackendOracle:    "CLOB",
	}
	for _, d := range allDialects(t) {
		for _, typ := range []NeutralType{{Kind: TypeUnknown}, {Kind: TypeKind(99)}, VarChar(0)} {
			if got := d.MapType(typ); got != want[d.Kind()] {
				t.Errorf("%s MapType(%v) = %q, want %q", d.Kind(), typ, got, want[d.Kind()])
			}
		}
	}
}

func TestBuildCreateTable_AutoKeyAndColumns(t *testing.T) {
	spec := TableSpec{
		Name:       "order",
		PrimaryKey: &PrimaryKeySpec{Column: "id", Strategy: KeyAutoIncrement},
		Columns: []ColumnSpec{
			{Name: "name", Type: VarChar(100)},
			{Name: "note", Type: Text(), Nullable: true},
			{Name: "status", Type: VarChar(20), Default: "'New'"},
		},
	}
	wantKey := map[BackendKind]string{
		BackendSQLite:    `"id" INTEGER PRIMARY KEY AUTOINCREMENT`,
		BackendMySQL:     "`id` INT NOT NULL AUTO_INCREMENT PRIMARY KEY",
		BackendPostgres:  `"id" INTEGER GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY`,
		BackendSQLServer: "[id] INT IDENTITY(1,1) PRIMARY KEY",
		BackendOracle:    `"id" NUMBER(10) GENERATED BY DEFAULT ON NULL AS IDENTITY PRIMARY KEY`,
	}
	for _, d := range allDialects(t) {
		ddl := d.BuildCreateTable(spec)
		if !strings.HasPrefix(ddl, "CREATE TABLE "+d.QuoteIdentifier("order")+" (") {
			t.Errorf("%s: DDL should start with quoted table name, got:\n%s", d.Kind(), ddl)
		}
		if !strings.Contains(ddl, wantKey[d.Kind()]) {
			t.Errorf("%s: DDL missing auto key %q, got:\n%s", d.Kind(), wantKey[d.Kind()], ddl)
		}
		if want := d.QuoteIdentifier("name") + " " + d.MapType(VarChar(100)) + " NOT NULL"; !strings.Contains(ddl, want) {
			t.Errorf("%s: DDL missing %q, got:\n%s", d.Kind(), want, ddl)
		}
		if strings.Contains(ddl, d.QuoteIdentifier("note")+" "+d.MapType(Text())+" NOT NULL") {
			t.Errorf("%s: nullable column should not have NOT NULL", d.Kind())
		}
		if want := "DEFAULT 'New' NOT NULL"; !strings.Contains(ddl, want) {
			t.Errorf("%s: DEFAULT must precede NOT NULL, got:\n%s", d.Kind(), ddl)
		}
		if strings.Count(ddl, "CREATE TABLE") != 1 {
			t.Errorf("%s: expected a single statement", d.Kind())
		}
	}
}

func TestBuildCreateTable_ExternalKey(t *testing.T) {
	spec := TableSpec{
		Name:       "data_sources",
		PrimaryKey: &PrimaryKeySpec{Column: "id", Strategy: KeyExternal},
		Columns:    []ColumnSpec{uuidColumn("id", false), {Name: "name", Type: VarChar(100)}},
	}
	for _, d := range allDialects(t) {
		ddl := d.BuildCreateTable(spec)
		if want := "PRIMARY KEY (" + d.QuoteIdentifier("id") + ")"; !strings.HasSuffix(ddl, want+"\n)") {
			t.Errorf("%s: expected trailing %q, got:\n%s", d.Kind(), want, ddl)
		}
		if strings.Contains(ddl, "IDENTITY") || strings.Contains(ddl, "AUTO") {
			t.Errorf("%s: external key must not be generated, got:\n%s", d.Kind(), ddl)
		}
	}
}

func TestWithForeignKeys(t *testing.T) {
	d := postgresDialect{}
	spec := TableSpec{
		Name:       "users",
		PrimaryKey: autoID(),
		Columns:    []ColumnSpec{{Name: "role_id", Type: Integer(), Nullable: true}},
		ForeignKeys: []ForeignKeySpec{
			{Column: "role_id", RefTable: "roles", RefColumn: "id", OnDelete: OnDeleteSetNull},
		},
	}
	ddl := generateCreateTable(d, spec)
	want := `FOREIGN KEY ("role_id") REFERENCES "roles" ("id") ON DELETE SET NULL` + "\n)"
	if !strings.HasSuffix(ddl, want) {
		t.Errorf("generateCreateTable() =\n%s\nwant suffix:\n%s", ddl, want)
	}
	if strings.Contains(ddl, "CONSTRAINT") {
		t.Error("foreign keys should be unnamed")
	}

	plain := d.BuildCreateTable(spec)
	if got := withForeignKeys(d, plain, nil); got != plain {
		t.Error("withForeignKeys with no keys should return the DDL unchanged")
	}
}

func TestBuildInsert(t *testing.T) {
	tests := []struct {
		kind BackendKind
		want string
	}{
		{BackendSQLite, `INSERT INTO "t" ("a", "b") VALUES (?, ?)`},
		{BackendMySQL, "INSERT INTO `t` (`a`, `b`) VALUES (?, ?)"},
		{BackendPostgres, `INSERT INTO "t" ("a", "b") VALUES ($1, $2)`},
		{BackendSQLServer, "INSERT INTO [t] ([a], [b]) VALUES (@p1, @p2)"},
		{BackendOracle, `INSERT INTO "t" ("a", "b") VALUES (:1, :2)`},
	}
	for _, tt := range tests {
		d, _ := newDialect(tt.kind)
		if got := d.BuildInsert("t", []string{"a", "b"}); got != tt.want {
			t.Errorf("%s BuildInsert() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestBuildDeleteAll(t *testing.T) {
	tests := []struct {
		kind             BackendKind
		leaf, referenced string
	}{
		{BackendSQLite, `DELETE FROM "t"`, `DELETE FROM "t"`},
		{BackendMySQL, "TRUNCATE TABLE `t`", "DELETE FROM `t`"},
		{BackendPostgres, `TRUNCATE TABLE "t"`, `DELETE FROM "t"`},
		{BackendSQLServer, `TRUNCATE TABLE [t]`, `DELETE FROM [t]`},
		{BackendOracle, `TRUNCATE TABLE "t"`, `DELETE FROM "t"`},
	}
	for _, tt := range tests {
		d, _ := newDialect(tt.kind)
		if got := d.BuildDeleteAll("t", false); got != tt.leaf {
			t.Errorf("%s BuildDeleteAll(leaf) = %q, want %q", tt.kind, got, tt.leaf)
		}
		if got := d.BuildDeleteAll("t", true); got != tt.referenced {
			t.Errorf("%s BuildDeleteAll(referenced) = %q, want %q", tt.kind, got, tt.referenced)
		}
	}
}

func TestBuildTableExistsCheck_QuotesLiteral(t *testing.T) {
	for _, d := range allDialects(t) {
		got := d.BuildTableExistsCheck("o'brien")
		if !strings.Contains(got, "'o''brien'") {
			t.Errorf("%s: table name literal not escaped: %q", d.Kind(), got)
		}
		if !strings.HasPrefix(got, "SELECT COUNT(*)") {
			t.Errorf("%s: expected a scalar count query, got %q", d.Kind(), got)
		}
	}
}

func TestBuildAddColumn(t *testing.T) {
	col := ColumnSpec{Name: "status", Type: VarChar(20), Default: "'Unknown'"}
	tests := []struct {
		kind BackendKind
		want string
	}{
		{BackendSQLite, `ALTER TABLE "ds" ADD COLUMN "status" VARCHAR(20) DEFAULT 'Unknown' NOT NULL`},
		{BackendMySQL, "ALTER TABLE `ds` ADD COLUMN `status` VARCHAR(20) DEFAULT 'Unknown' NOT NULL"},
		{BackendPostgres, `ALTER TABLE "ds" ADD COLUMN "status" VARCHAR(20) DEFAULT 'Unknown' NOT NULL`},
		{BackendSQLServer, "ALTER TABLE [ds] ADD [status] NVARCHAR(20) DEFAULT 'Unknown' NOT NULL"},
		{BackendOracle, `ALTER TABLE "ds" ADD ("status" VARCHAR2(20 CHAR) DEFAULT 'Unknown' NOT NULL)`},
	}
	for _, tt := range tests {
		d, _ := newDialect(tt.kind)
		if got := d.BuildAddColumn("ds", col); got != tt.want {
			t.Errorf("%s BuildAddColumn() =\n  %q\nwant\n  %q", tt.kind, got, tt.want)
		}
	}
}

func TestBuildRenameTable(t *testing.T) {
	tests := []struct {
		kind BackendKind
		want string
	}{
		{BackendSQLite, `ALTER TABLE "a__shadow" RENAME TO "a"`},
		{BackendMySQL, "RENAME TABLE `a__shadow` TO `a`"},
		{BackendSQLServer, "EXEC sp_rename N'a__shadow', N'a'"},
	}
	for _, tt := range tests {
		d, _ := newDialect(tt.kind)
		if got := d.BuildRenameTable("a__shadow", "a"); got != tt.want {
			t.Errorf("%s BuildRenameTable() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestIdentityHelpers(t *testing.T) {
	ss := sqlserverDialect{}
	if got := ss.BuildIdentityInsert("t", true); got != "SET IDENTITY_INSERT [t] ON" {
		t.Errorf("BuildIdentityInsert(on) = %q", got)
	}
	if got := ss.BuildIdentityInsert("t", false); got != "SET IDENTITY_INSERT [t] OFF" {
		t.Errorf("BuildIdentityInsert(off) = %q", got)
	}
	if got := (postgresDialect{}).BuildResetIdentity("t", "id"); !strings.Contains(got, "setval(pg_get_serial_sequence('\"t\"', 'id')") {
		t.Errorf("postgres BuildResetIdentity() = %q", got)
	}
	if got := (oracleDialect{}).BuildResetIdentity("t", "id"); !strings.Contains(got, "START WITH LIMIT VALUE") {
		t.Errorf("oracle BuildResetIdentity() = %q", got)
	}
	for _, d := range []Dialect{sqliteDialect{}, mysqlDialect{}} {
		if d.BuildIdentityInsert("t", true) != "" || d.BuildResetIdentity("t", "id") != "" {
			t.Errorf("%s should not need identity statements", d.Kind())
		}
	}
}

func TestBehaviorFlags(t *testing.T) {
	tests := []struct {
		kind          BackendKind
		transactional bool
		fkPragma      bool
		isolation     sql.IsolationLevel
	}{
		{BackendSQLite, true, true, sql.LevelDefault},
		{BackendMySQL, false, false, sql.LevelReadCommitted},
		{BackendPostgres, true, false, sql.LevelReadCommitted},
		{BackendSQLServer, true, false, sql.LevelReadCommitted},
		{BackendOracle, false, false, sql.LevelReadCommitted},
	}
	for _, tt := range tests {
		d, _ := newDialect(tt.kind)
		if d.TransactionalDDL() != tt.transactional {
			t.Errorf("%s TransactionalDDL() = %t", tt.kind, d.TransactionalDDL())
		}
		if (d.EnableForeignKeys() != "") != tt.fkPragma {
			t.Errorf("%s EnableForeignKeys() = %q", tt.kind, d.EnableForeignKeys())
		}
		if d.TxIsolation() != tt.isolation {
			t.Errorf("%s TxIsolation() = %v", tt.kind, d.TxIsolation())
		}
	}
}

func TestClassifyNativeType(t *testing.T) {
	tests := []struct {
		declared string
		want     TypeKind
	}{
		{"INTEGER", TypeInteger},
		{"int(11)", TypeInteger},
		{"bigint", TypeInteger},
		{"NUMBER(10,0)", TypeInteger},
		{"NUMBER(18,2)", TypeDecimal},
		{"numeric", TypeDecimal},
		{"decimal(18,4)", TypeDecimal},
		{"VARCHAR(20)", TypeVarChar},
		{"character varying", TypeVarChar},
		{"nvarchar", TypeVarChar},
		{"VARCHAR2", TypeVarChar},
		{"nvarchar(max)", TypeText},
		{"longtext", TypeText},
		{"CLOB", TypeText},
		{"timestamp without time zone", TypeDateTime},
		{"datetime2", TypeDateTime},
		{"date", TypeDate},
		{"", TypeUnknown},
		{"blob", TypeUnknown},
	}
	for _, tt := range tests {
		if got := classifyNativeType(tt.declared); got != tt.want {
			t.Errorf("classifyNativeType(%q) = %s, want %s", tt.declared, got, tt.want)
		}
	}
}

func TestSameTypeFamily(t *testing.T) {
	if !sameTypeFamily(TypeText, VarChar(20)) {
		t.Error("text should satisfy varchar")
	}
	if !sameTypeFamily(TypeVarChar, Text()) {
		t.Error("varchar should satisfy text")
	}
	if sameTypeFamily(TypeInteger, VarChar(20)) {
		t.Error("integer should not satisfy varchar")
	}
	if sameTypeFamily(TypeDecimal, Integer()) {
		t.Error("decimal should not satisfy integer")
	}
}
