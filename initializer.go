package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// SchemaInitializer brings a fresh or partially initialized database to the
// latest schema: tables, drift repair and seed data. Every step is
// idempotent, so a retry after a failure is safe.
type SchemaInitializer struct {
	dialect  Dialect
	factory  ConnectionFactory
	connStr  string
	catalog  []TableSpec
	migrator *MigrationEngine
	seed     SeedConfig
}

// InitResult summarizes one initializer run.
type InitResult struct {
	TablesCreated  int
	StepsApplied   int
	RowsSeeded     int
	AlreadyCurrent bool
}

// NewSchemaInitializer returns an initializer for the built-in catalogs.
func NewSchemaInitializer(d Dialect, f ConnectionFactory, connStr string, seed SeedConfig) *SchemaInitializer {
	return &SchemaInitializer{
		dialect:  d,
		factory:  f,
		connStr:  connStr,
		catalog:  schemaCatalog,
		migrator: NewMigrationEngine(d),
		seed:     seed,
	}
}

// Run executes the startup barrier on a single connection:
// storage → FK enforcement → shadow recovery → tables → migrations → seed.
func (s *SchemaInitializer) Run(ctx context.Context) (*InitResult, error) {
	start := time.Now()
	d := s.dialect
	res := &InitResult{}

	if errs := validateCatalog(s.catalog, s.migrator.steps); len(errs) > 0 {
		return nil, initError("validate catalog", "", fmt.Errorf("%s", strings.Join(errs, "; ")))
	}

	if err := s.factory.EnsureStorage(s.connStr); err != nil {
		return nil, initError("prepare storage", "", err)
	}
	db, err := s.factory.CreateConnection(s.connStr)
	if err != nil {
		return nil, initError("connect", "", err)
	}
	defer db.Close()

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, initError("connect", "", err)
	}
	defer conn.Close()

	if q := d.EnableForeignKeys(); q != "" {
		if err := execSQL(ctx, conn, "enable foreign keys", q); err != nil {
			return nil, initError("enable foreign keys", "", err)
		}
	}

	// Must precede table creation: a retype interrupted after dropping the
	// original would otherwise get an empty replacement table.
	if err := s.migrator.RecoverInterrupted(ctx, conn); err != nil {
		return nil, initError("recover interrupted migration", "", err)
	}

	log.Printf("creating tables on %s...", d.Name())
	res.TablesCreated, err = createTables(ctx, conn, d, s.catalog)
	if err != nil {
		return nil, err
	}

	log.Printf("checking schema drift...")
	res.StepsApplied, err = s.migrator.Run(ctx, conn)
	if err != nil {
		return nil, initError("migrate", "", err)
	}

	log.Printf("seeding reference data...")
	res.RowsSeeded, err = seedReferenceData(ctx, conn, d, s.seed)
	if err != nil {
		return nil, err
	}

	res.AlreadyCurrent = res.TablesCreated == 0 && res.StepsApplied == 0 && res.RowsSeeded == 0
	log.Printf("schema ready in %s: %d tables created, %d migration steps, %d seed rows",
		time.Since(start).Round(time.Millisecond), res.TablesCreated, res.StepsApplied, res.RowsSeeded)
	return res, nil
}

// createTables creates every catalog table that does not exist yet, in
// catalog order. Existing tables are left untouched.
func createTables(ctx context.Context, exec sqlExecutor, d Dialect, catalog []TableSpec) (int, error) {
	created := 0
	for _, t := range catalog {
		exists, err := tableExists(ctx, exec, d, t.Name)
		if err != nil {
			return created, initError("check table", t.Name, err)
		}
		if exists {
			continue
		}
		ddl := generateCreateTable(d, t)
		log.Printf("  creating %s", t.Name)
		if err := execSQL(ctx, exec, "create table "+t.Name, ddl); err != nil {
			return created, initError("create table", t.Name, err)
		}
		created++
	}
	return created, nil
}

// generateCreateTable is the full DDL for a table, foreign keys included.
func generateCreateTable(d Dialect, t TableSpec) string {
	return withForeignKeys(d, d.BuildCreateTable(t), t.ForeignKeys)
}
