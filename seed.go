package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// System role codes.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleViewer   = "viewer"
)

// Permission codes checked by the authorization layer.
const (
	PermDataSourceView   = "datasource.view"
	PermDataSourceManage = "datasource.manage"
	PermImportExecute    = "import.execute"
	PermImportHistory    = "import.history"
	PermJobView          = "job.view"
	PermJobManage        = "job.manage"
	PermQueryExecute     = "query.execute"
	PermQuerySave        = "query.save"
	PermUserManage       = "user.manage"
	PermSystemConfig     = "system.config"
)

// Data source status values.
const (
	StatusUnknown   = "Unknown"
	StatusConnected = "Connected"
	StatusFailed    = "Failed"
)

// SeedConfig carries the installation-specific seed values.
type SeedConfig struct {
	AdminUsername     string
	AdminPassword     string
	DefaultSourceName string
	DefaultSourceKind BackendKind
	DefaultSourceDSN  string
	// BcryptCost defaults to bcrypt.DefaultCost when zero.
	BcryptCost int
}

type permissionSeed struct {
	Code, Name, Module, Description string
}

var seedPermissions = []permissionSeed{
	{PermDataSourceView, "View data sources", "datasource", "List data sources and their status"},
	{PermDataSourceManage, "Manage data sources", "datasource", "Create, edit, test and delete data sources"},
	{PermImportExecute, "Run imports", "import", "Import spreadsheet files into a data source"},
	{PermImportHistory, "View import history", "import", "Browse past imports and their errors"},
	{PermJobView, "View jobs", "job", "List scheduled jobs and executions"},
	{PermJobManage, "Manage jobs", "job", "Create, edit, run and delete scheduled jobs"},
	{PermQueryExecute, "Run queries", "query", "Execute SQL queries against a data source"},
	{PermQuerySave, "Save queries", "query", "Store queries for reuse"},
	{PermUserManage, "Manage users", "system", "Create users and assign roles"},
	{PermSystemConfig, "System configuration", "system", "Change system configuration values"},
}

type roleSeed struct {
	Code, Name, Description string
	Permissions             []string
}

var seedRoles = []roleSeed{
	{RoleAdmin, "Administrator", "Full access", []string{
		PermDataSourceView, PermDataSourceManage, PermImportExecute, PermImportHistory, PermJobView,
		PermJobManage, PermQueryExecute, PermQuerySave, PermUserManage, PermSystemConfig,
	}},
	{RoleOperator, "Operator", "Runs imports, jobs and queries", []string{
		PermDataSourceView, PermImportExecute, PermImportHistory, PermJobView,
		PermJobManage, PermQueryExecute, PermQuerySave,
	}},
	{RoleViewer, "Viewer", "Read-only access", []string{
		PermDataSourceView, PermImportHistory, PermJobView, PermQueryExecute,
	}},
}

type configSeed struct {
	Key, Value, Description string
}

var seedSystemConfig = []configSeed{
	{"app.version", schemaVersion, "Schema version the database was created with"},
	{"import.batch_size", "1000", "Rows per insert batch during imports"},
	{"import.max_file_size_mb", "50", "Largest accepted spreadsheet file"},
	{"job.max_concurrency", "4", "Scheduled jobs allowed to run at once"},
	{"query.max_rows", "10000", "Row limit for ad-hoc queries"},
	{"query.timeout_seconds", "60", "Timeout for ad-hoc queries"},
}

// seeder inserts reference rows that are missing; existing rows are never
// updated.
type seeder struct {
	exec sqlExecutor
	d    Dialect
	cfg  SeedConfig
	now  time.Time
	rows int
}

func seedReferenceData(ctx context.Context, exec sqlExecutor, d Dialect, cfg SeedConfig) (int, error) {
	s := &seeder{exec: exec, d: d, cfg: cfg, now: time.Now().UTC()}

	steps := []struct {
		name  string
		table string
		fn    func(context.Context) error
	}{
		{"permissions", tablePermissions, s.seedPermissions},
		{"roles", tableRoles, s.seedRoles},
		{"role permissions", tableRolePermissions, s.seedRolePermissions},
		{"admin account", tableUsers, s.seedAdmin},
		{"system configuration", tableSystemConfig, s.seedSystemConfig},
		{"default data source", tableDataSources, s.seedDefaultDataSource},
	}
	for _, step := range steps {
		before := s.rows
		if err := step.fn(ctx); err != nil {
			return s.rows, initError("seed "+step.name, step.table, err)
		}
		if n := s.rows - before; n > 0 {
			log.Printf("  %s: %d rows", step.name, n)
		}
	}
	return s.rows, nil
}

// countWhere counts rows matching col = val [AND col2 = val2 ...].
func (s *seeder) countWhere(ctx context.Context, table string, cols []string, vals ...any) (int64, error) {
	return queryCount(ctx, s.exec, selectWhere(s.d, "COUNT(*)", table, cols), vals...)
}

func (s *seeder) insert(ctx context.Context, table string, cols []string, vals ...any) error {
	if err := execSQL(ctx, s.exec, "insert into "+table, s.d.BuildInsert(table, cols), vals...); err != nil {
		return err
	}
	s.rows++
	return nil
}

func (s *seeder) lookupID(ctx context.Context, table, codeCol, code string) (int64, error) {
	query := selectWhere(s.d, s.d.QuoteIdentifier("id"), table, []string{codeCol})
	var id int64
	err := s.exec.QueryRowContext(ctx, query, code).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%s %q not found", table, code)
	}
	if err != nil {
		return 0, fmt.Errorf("lookup %s %q: %w\nSQL: %s", table, code, err, query)
	}
	return id, nil
}

func (s *seeder) seedPermissions(ctx context.Context) error {
	for _, p := range seedPermissions {
		n, err := s.countWhere(ctx, tablePermissions, []string{"code"}, p.Code)
		if err != nil {
			return err
		}
		if n > 0 {
			continue
		}
		if err := s.insert(ctx, tablePermissions, []string{"code", "name", "module", "description"},
			p.Code, p.Name, p.Module, p.Description); err != nil {
			return err
		}
	}
	return nil
}

func (s *seeder) seedRoles(ctx context.Context) error {
	for _, r := range seedRoles {
		n, err := s.countWhere(ctx, tableRoles, []string{"code"}, r.Code)
		if err != nil {
			return err
		}
		if n > 0 {
			continue
		}
		if err := s.insert(ctx, tableRoles, []string{"code", "name", "description", "is_system", "created_at"},
			r.Code, r.Name, r.Description, int64(1), s.now); err != nil {
			return err
		}
	}
	return nil
}

func (s *seeder) seedRolePermissions(ctx context.Context) error {
	for _, r := range seedRoles {
		roleID, err := s.lookupID(ctx, tableRoles, "code", r.Code)
		if err != nil {
			return err
		}
		for _, code := range r.Permissions {
			permID, err := s.lookupID(ctx, tablePermissions, "code", code)
			if err != nil {
				return err
			}
			n, err := s.countWhere(ctx, tableRolePermissions, []string{"role_id", "permission_id"}, roleID, permID)
			if err != nil {
				return err
			}
			if n > 0 {
				continue
			}
			if err := s.insert(ctx, tableRolePermissions, []string{"role_id", "permission_id"}, roleID, permID); err != nil {
				return err
			}
		}
	}
	return nil
}

// seedAdmin creates the reserved administrative account. An existing account
// with that username is left exactly as it is.
func (s *seeder) seedAdmin(ctx context.Context) error {
	n, err := s.countWhere(ctx, tableUsers, []string{"username"}, s.cfg.AdminUsername)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	hash, err := hashPassword(s.cfg.AdminPassword, s.cfg.BcryptCost)
	if err != nil {
		return err
	}
	roleID, err := s.lookupID(ctx, tableRoles, "code", RoleAdmin)
	if err != nil {
		return err
	}
	return s.insert(ctx, tableUsers,
		[]string{"username", "password_hash", "display_name", "role_id", "is_enabled", "created_at"},
		s.cfg.AdminUsername, hash, "Administrator", roleID, int64(1), s.now)
}

func (s *seeder) seedSystemConfig(ctx context.Context) error {
	for _, c := range seedSystemConfig {
		n, err := s.countWhere(ctx, tableSystemConfig, []string{"config_key"}, c.Key)
		if err != nil {
			return err
		}
		if n > 0 {
			continue
		}
		if err := s.insert(ctx, tableSystemConfig, []string{"config_key", "config_value", "description", "updated_at"},
			c.Key, c.Value, c.Description, s.now); err != nil {
			return err
		}
	}
	return nil
}

// seedDefaultDataSource registers the configured store as the default data
// source on a database that has no data sources yet. Once any row exists the
// table belongs to the operator: a cleared default stays cleared.
func (s *seeder) seedDefaultDataSource(ctx context.Context) error {
	n, err := s.countWhere(ctx, tableDataSources, nil)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return s.insert(ctx, tableDataSources, dataSourceColumns,
		uuid.NewString(), s.cfg.DefaultSourceName, string(s.cfg.DefaultSourceKind), s.cfg.DefaultSourceDSN,
		int64(1), int64(1), StatusUnknown, nil, s.now, s.now)
}

// hashPassword returns a salted bcrypt hash.
func hashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", errors.New("admin password is empty")
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
