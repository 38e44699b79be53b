package main

import (
	"fmt"
	"strings"
)

// schemaVersion identifies the catalog below. Stored as app.version in
// system_config by the seeder.
const schemaVersion = "3.2.0"

// Table names.
const (
	tableRoles           = "roles"
	tablePermissions     = "permissions"
	tableRolePermissions = "role_permissions"
	tableUsers           = "users"
	tableSystemConfig    = "system_config"
	tableDataSources     = "data_sources"
	tableImportTemplates = "import_templates"
	tableImportHistory   = "import_history"
	tableScheduledJobs   = "scheduled_jobs"
	tableJobExecutions   = "job_executions"
	tableSavedQueries    = "saved_queries"
)

func autoID() *PrimaryKeySpec { return &PrimaryKeySpec{Column: "id", Strategy: KeyAutoIncrement} }

func externalID() *PrimaryKeySpec { return &PrimaryKeySpec{Column: "id", Strategy: KeyExternal} }

// uuidColumn is the column type for externally supplied UUID keys.
func uuidColumn(name string, nullable bool) ColumnSpec {
	return ColumnSpec{Name: name, Type: VarChar(36), Nullable: nullable}
}

// schemaCatalog lists every table in dependency order: a table only
// references tables declared before it.
var schemaCatalog = []TableSpec{
	{
		Name:       tableRoles,
		PrimaryKey: autoID(),
		Columns: []ColumnSpec{
			{Name: "code", Type: VarChar(50)},
			{Name: "name", Type: VarChar(100)},
			{Name: "description", Type: VarChar(500), Nullable: true},
			{Name: "is_system", Type: Integer(), Default: "0"},
			{Name: "created_at", Type: DateTime()},
		},
	},
	{
		Name:       tablePermissions,
		PrimaryKey: autoID(),
		Columns: []ColumnSpec{
			{Name: "code", Type: VarChar(100)},
			{Name: "name", Type: VarChar(100)},
			{Name: "module", Type: VarChar(50)},
			{Name: "description", Type: VarChar(500), Nullable: true},
		},
	},
	{
		Name:       tableRolePermissions,
		PrimaryKey: autoID(),
		Columns: []ColumnSpec{
			{Name: "role_id", Type: Integer()},
			{Name: "permission_id", Type: Integer()},
		},
		ForeignKeys: []ForeignKeySpec{
			{Column: "role_id", RefTable: tableRoles, RefColumn: "id", OnDelete: OnDeleteCascade},
			{Column: "permission_id", RefTable: tablePermissions, RefColumn: "id", OnDelete: OnDeleteCascade},
		},
	},
	{
		Name:       tableUsers,
		PrimaryKey: autoID(),
		Columns: []ColumnSpec{
			{Name: "username", Type: VarChar(50)},
			{Name: "password_hash", Type: VarChar(255)},
			{Name: "display_name", Type: VarChar(100)},
			{Name: "email", Type: VarChar(255), Nullable: true},
			{Name: "role_id", Type: Integer(), Nullable: true},
			{Name: "is_enabled", Type: Integer(), Default: "1"},
			{Name: "last_login_at", Type: DateTime(), Nullable: true},
			{Name: "created_at", Type: DateTime()},
		},
		ForeignKeys: []ForeignKeySpec{
			{Column: "role_id", RefTable: tableRoles, RefColumn: "id", OnDelete: OnDeleteSetNull},
		},
	},
	{
		Name:       tableSystemConfig,
		PrimaryKey: autoID(),
		Columns: []ColumnSpec{
			{Name: "config_key", Type: VarChar(100)},
			{Name: "config_value", Type: VarChar(2000)},
			{Name: "description", Type: VarChar(500), Nullable: true},
			{Name: "updated_at", Type: DateTime()},
		},
	},
	{
		Name:       tableDataSources,
		PrimaryKey: externalID(),
		Columns: []ColumnSpec{
			uuidColumn("id", false),
			{Name: "name", Type: VarChar(100)},
			{Name: "db_type", Type: VarChar(20)},
			{Name: "connection_string", Type: VarChar(2000)},
			{Name: "is_enabled", Type: Integer(), Default: "1"},
			{Name: "is_default", Type: Integer(), Default: "0"},
			{Name: "status", Type: VarChar(20), Default: "'Unknown'"},
			{Name: "last_tested_at", Type: DateTime(), Nullable: true},
			{Name: "created_at", Type: DateTime()},
			{Name: "updated_at", Type: DateTime()},
		},
	},
	{
		Name:       tableImportTemplates,
		PrimaryKey: autoID(),
		Columns: []ColumnSpec{
			{Name: "name", Type: VarChar(100)},
			uuidColumn("data_source_id", true),
			{Name: "target_table", Type: VarChar(128)},
			{Name: "sheet_name", Type: VarChar(100), Nullable: true},
			{Name: "header_row", Type: Integer(), Default: "1"},
			{Name: "column_mapping", Type: Text(), Nullable: true},
			{Name: "created_at", Type: DateTime()},
		},
		ForeignKeys: []ForeignKeySpec{
			{Column: "data_source_id", RefTable: tableDataSources, RefColumn: "id", OnDelete: OnDeleteSetNull},
		},
	},
	{
		Name:       tableImportHistory,
		PrimaryKey: autoID(),
		Columns: []ColumnSpec{
			{Name: "file_name", Type: VarChar(260)},
			{Name: "sheet_name", Type: VarChar(100), Nullable: true},
			{Name: "target_table", Type: VarChar(128)},
			uuidColumn("data_source_id", true),
			{Name: "total_rows", Type: Integer(), Default: "0"},
			{Name: "imported_rows", Type: Integer(), Default: "0"},
			{Name: "skipped_rows", Type: Integer(), Default: "0"},
			{Name: "status", Type: VarChar(20), Default: "'Completed'"},
			{Name: "error_message", Type: Text(), Nullable: true},
			{Name: "duration_ms", Type: Decimal(18, 2), Nullable: true},
			{Name: "imported_at", Type: DateTime()},
		},
		ForeignKeys: []ForeignKeySpec{
			{Column: "data_source_id", RefTable: tableDataSources, RefColumn: "id", OnDelete: OnDeleteSetNull},
		},
	},
	{
		Name:       tableScheduledJobs,
		PrimaryKey: externalID(),
		Columns: []ColumnSpec{
			uuidColumn("id", false),
			{Name: "name", Type: VarChar(100)},
			{Name: "job_type", Type: VarChar(20)},
			{Name: "schedule_type", Type: VarChar(20), Default: "'Manual'"},
			{Name: "cron_expression", Type: VarChar(100), Nullable: true},
			uuidColumn("data_source_id", true),
			{Name: "sql_text", Type: Text(), Nullable: true},
			{Name: "import_template_id", Type: Integer(), Nullable: true},
			{Name: "is_enabled", Type: Integer(), Default: "1"},
			{Name: "timeout_seconds", Type: Integer(), Default: "300"},
			{Name: "last_run_at", Type: DateTime(), Nullable: true},
			{Name: "next_run_at", Type: DateTime(), Nullable: true},
			{Name: "created_at", Type: DateTime()},
		},
		ForeignKeys: []ForeignKeySpec{
			{Column: "data_source_id", RefTable: tableDataSources, RefColumn: "id", OnDelete: OnDeleteSetNull},
		},
	},
	{
		Name:       tableJobExecutions,
		PrimaryKey: autoID(),
		Columns: []ColumnSpec{
			uuidColumn("job_id", false),
			{Name: "trigger_source", Type: VarChar(20), Default: "'Schedule'"},
			{Name: "started_at", Type: DateTime()},
			{Name: "finished_at", Type: DateTime(), Nullable: true},
			{Name: "status", Type: VarChar(20)},
			{Name: "rows_affected", Type: Integer(), Default: "0"},
			{Name: "error_message", Type: Text(), Nullable: true},
		},
		ForeignKeys: []ForeignKeySpec{
			{Column: "job_id", RefTable: tableScheduledJobs, RefColumn: "id", OnDelete: OnDeleteCascade},
		},
	},
	{
		Name:       tableSavedQueries,
		PrimaryKey: autoID(),
		Columns: []ColumnSpec{
			{Name: "name", Type: VarChar(100)},
			uuidColumn("data_source_id", true),
			{Name: "sql_text", Type: Text()},
			{Name: "created_by", Type: Integer(), Nullable: true},
			{Name: "run_date", Type: Date(), Nullable: true},
			{Name: "created_at", Type: DateTime()},
		},
		ForeignKeys: []ForeignKeySpec{
			{Column: "data_source_id", RefTable: tableDataSources, RefColumn: "id", OnDelete: OnDeleteSetNull},
		},
	},
}

// migrationCatalog lists the repairs applied to databases created by older
// releases. Every column added to schemaCatalog after the first release needs
// an entry here.
var migrationCatalog = []MigrationStep{
	addColumnStep(tableDataSources, "status"),
	addColumnStep(tableDataSources, "last_tested_at"),
	addColumnStep(tableUsers, "last_login_at"),
	addColumnStep(tableScheduledJobs, "timeout_seconds"),
	addColumnStep(tableImportHistory, "skipped_rows"),
	// Older releases stored these as integer codes with 0 meaning "unset".
	retypeColumnStep(tableImportHistory, "status", NullOrZeroToDefault("Completed")),
	retypeColumnStep(tableJobExecutions, "trigger_source", NullOrZeroToDefault("Schedule")),
}

func addColumnStep(table, column string) MigrationStep {
	return MigrationStep{Table: table, Kind: StepAddColumn, Column: mustColumn(table, column)}
}

func retypeColumnStep(table, column string, transform ValueTransform) MigrationStep {
	return MigrationStep{Table: table, Kind: StepRetypeColumn, Column: mustColumn(table, column), Transform: transform}
}

func mustColumn(table, column string) ColumnSpec {
	t, ok := lookupTable(schemaCatalog, table)
	if !ok {
		panic(fmt.Sprintf("migration catalog: unknown table %s", table))
	}
	c, ok := t.Column(column)
	if !ok {
		panic(fmt.Sprintf("migration catalog: unknown column %s.%s", table, column))
	}
	return c
}

func lookupTable(catalog []TableSpec, name string) (TableSpec, bool) {
	for _, t := range catalog {
		if t.Name == name {
			return t, true
		}
	}
	return TableSpec{}, false
}

// validateCatalog checks the portability rules the dialects rely on.
func validateCatalog(catalog []TableSpec, steps []MigrationStep) []string {
	var errs []string
	seen := make(map[string]bool)
	for _, t := range catalog {
		for _, fk := range t.ForeignKeys {
			if !seen[fk.RefTable] && fk.RefTable != t.Name {
				errs = append(errs, fmt.Sprintf("%s.%s references %s, which is not declared before it", t.Name, fk.Column, fk.RefTable))
			}
			if _, ok := t.Column(fk.Column); !ok {
				errs = append(errs, fmt.Sprintf("%s: foreign key column %s is not declared", t.Name, fk.Column))
			}
			if fk.OnDelete == OnDeleteSetNull {
				if c, ok := t.Column(fk.Column); ok && !c.Nullable {
					errs = append(errs, fmt.Sprintf("%s.%s: ON DELETE SET NULL on a NOT NULL column", t.Name, fk.Column))
				}
			}
		}
		for _, c := range t.Columns {
			// MySQL rejects literal defaults on LONGTEXT columns.
			if c.Type.Kind == TypeText && c.Default != "" {
				errs = append(errs, fmt.Sprintf("%s.%s: text columns cannot carry a default", t.Name, c.Name))
			}
			// Oracle reads '' as NULL.
			if c.Default == "''" {
				errs = append(errs, fmt.Sprintf("%s.%s: empty string default is not portable", t.Name, c.Name))
			}
		}
		seen[t.Name] = true
	}

	for _, s := range steps {
		switch s.Kind {
		case StepAddColumn:
			if !s.Column.Nullable && s.Column.Default == "" {
				errs = append(errs, fmt.Sprintf("%s.%s: added NOT NULL column needs a default", s.Table, s.Column.Name))
			}
		case StepRetypeColumn:
			if s.Transform == nil {
				errs = append(errs, fmt.Sprintf("%s.%s: retype step has no value transform", s.Table, s.Column.Name))
			}
			// Dropping a referenced table would cascade or fail on most backends.
			if refs := referencingTables(catalog, s.Table); len(refs) > 0 {
				errs = append(errs, fmt.Sprintf("%s.%s: retyped table is referenced by %s", s.Table, s.Column.Name, strings.Join(refs, ", ")))
			}
		}
	}
	return errs
}

// isReferenced reports whether any foreign key in the catalog, including a
// self reference, points at table.
func isReferenced(catalog []TableSpec, table string) bool {
	for _, t := range catalog {
		for _, fk := range t.ForeignKeys {
			if fk.RefTable == table {
				return true
			}
		}
	}
	return false
}

func referencingTables(catalog []TableSpec, table string) []string {
	var refs []string
	for _, t := range catalog {
		if t.Name == table {
			continue
		}
		for _, fk := range t.ForeignKeys {
			if fk.RefTable == table {
				refs = append(refs, t.Name)
				break
			}
		}
	}
	return refs
}
