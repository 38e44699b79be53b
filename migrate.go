package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
)

// shadowSuffix names the temporary copy built by a retype.
const shadowSuffix = "__shadow"

func shadowName(table string) string { return table + shadowSuffix }

// MigrationEngine reconciles a live database with the schema catalog using
// the closed set of steps in its migration catalog. Detection is cheap and
// runs on every startup; steps are applied only when drift is found.
type MigrationEngine struct {
	dialect Dialect
	catalog []TableSpec
	steps   []MigrationStep
}

// NewMigrationEngine returns an engine for the built-in catalogs.
func NewMigrationEngine(d Dialect) *MigrationEngine {
	return newMigrationEngine(d, schemaCatalog, migrationCatalog)
}

func newMigrationEngine(d Dialect, catalog []TableSpec, steps []MigrationStep) *MigrationEngine {
	return &MigrationEngine{dialect: d, catalog: catalog, steps: steps}
}

// Run recovers interrupted retypes, detects drift and applies the resulting
// steps in catalog order. The first failure aborts the pass.
func (m *MigrationEngine) Run(ctx context.Context, db txBeginner) (int, error) {
	if err := m.RecoverInterrupted(ctx, db); err != nil {
		return 0, err
	}
	pending, err := m.Detect(ctx, db)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		log.Printf("  schema up to date (%d checks)", len(m.steps))
		return 0, nil
	}
	for i, step := range pending {
		log.Printf("  [%d/%d] %s %s.%s", i+1, len(pending), step.Kind, step.Table, step.Column.Name)
		if err := m.apply(ctx, db, step); err != nil {
			return i, err
		}
	}
	return len(pending), nil
}

// RecoverInterrupted resolves shadow tables left by a retype that did not
// finish. If the original still exists the copy was incomplete and the
// shadow is discarded; if only the shadow exists the original was already
// dropped and the shadow is renamed into place.
func (m *MigrationEngine) RecoverInterrupted(ctx context.Context, exec sqlExecutor) error {
	d := m.dialect
	for _, step := range m.steps {
		if step.Kind != StepRetypeColumn {
			continue
		}
		shadow := shadowName(step.Table)
		hasShadow, err := tableExists(ctx, exec, d, shadow)
		if err != nil {
			return migrationError(step, "recover", err)
		}
		if !hasShadow {
			continue
		}
		hasOriginal, err := tableExists(ctx, exec, d, step.Table)
		if err != nil {
			return migrationError(step, "recover", err)
		}
		if hasOriginal {
			log.Printf("  discarding incomplete %s", shadow)
			if err := execSQL(ctx, exec, "drop stale shadow", d.BuildDropTable(shadow)); err != nil {
				return migrationError(step, "recover", err)
			}
			continue
		}
		log.Printf("  completing interrupted retype of %s", step.Table)
		if err := execSQL(ctx, exec, "rename shadow", d.BuildRenameTable(shadow, step.Table)); err != nil {
			return migrationError(step, "recover", err)
		}
	}
	return nil
}

// Detect returns the steps whose target differs from the live database.
// A retype whose column is missing altogether becomes an add.
func (m *MigrationEngine) Detect(ctx context.Context, exec sqlExecutor) ([]MigrationStep, error) {
	live := make(map[string][]liveColumn)
	var pending []MigrationStep
	for _, step := range m.steps {
		cols, ok := live[step.Table]
		if !ok {
			var err error
			cols, err = liveColumns(ctx, exec, m.dialect, step.Table)
			if err != nil {
				return nil, migrationError(step, "detect", err)
			}
			if len(cols) == 0 {
				return nil, migrationError(step, "detect", fmt.Errorf("table %s does not exist", step.Table))
			}
			live[step.Table] = cols
		}

		col, found := findLiveColumn(cols, step.Column.Name)
		switch {
		case !found:
			add := step
			add.Kind = StepAddColumn
			pending = append(pending, add)
		case step.Kind == StepRetypeColumn && !sameTypeFamily(classifyNativeType(col.Declared), step.Column.Type):
			pending = append(pending, step)
		}
	}
	return pending, nil
}

func (m *MigrationEngine) apply(ctx context.Context, db txBeginner, step MigrationStep) error {
	switch step.Kind {
	case StepAddColumn:
		if err := execSQL(ctx, db, "add column", m.dialect.BuildAddColumn(step.Table, step.Column)); err != nil {
			return migrationError(step, "alter table", err)
		}
		return nil
	case StepRetypeColumn:
		return m.retype(ctx, db, step)
	default:
		return migrationError(step, "apply", fmt.Errorf("unknown step kind %d", step.Kind))
	}
}

// retype rebuilds a table whose column type cannot be altered in place:
// create shadow, copy with the value transform, verify, drop, rename.
// Where DDL is transactional all of it commits at once; elsewhere the order
// guarantees that the original survives until the copy is verified.
func (m *MigrationEngine) retype(ctx context.Context, db txBeginner, step MigrationStep) (err error) {
	d := m.dialect
	spec, ok := lookupTable(m.catalog, step.Table)
	if !ok {
		return migrationError(step, "retype", fmt.Errorf("table %s is not in the catalog", step.Table))
	}
	shadow := shadowName(spec.Name)

	var exec sqlExecutor = db
	var tx *sql.Tx
	originalDropped := false
	if d.TransactionalDDL() {
		tx, err = db.BeginTx(ctx, nil)
		if err != nil {
			return migrationError(step, "begin", err)
		}
		defer func() {
			if err != nil {
				_ = tx.Rollback()
			}
		}()
		exec = tx
	} else {
		defer func() {
			// The original is intact until it is dropped, so a failed copy
			// only leaves a shadow to clean up. After the drop the shadow
			// holds the data and RecoverInterrupted finishes the rename.
			if err != nil && !originalDropped {
				_, _ = db.ExecContext(ctx, d.BuildDropTable(shadow))
			}
		}()
	}

	shadowSpec := spec
	shadowSpec.Name = shadow
	ddl := generateCreateTable(d, shadowSpec)
	if err := execSQL(ctx, exec, "create shadow", ddl); err != nil {
		return migrationError(step, "create shadow", err)
	}

	copied, err := m.copyRows(ctx, exec, spec, shadow, step)
	if err != nil {
		return migrationError(step, "copy rows", err)
	}
	if err := verifyCopy(ctx, exec, d, spec.Name, shadow, copied); err != nil {
		return migrationError(step, "verify copy", err)
	}

	if err := execSQL(ctx, exec, "drop original", d.BuildDropTable(spec.Name)); err != nil {
		return migrationError(step, "drop original", err)
	}
	originalDropped = true
	if err := execSQL(ctx, exec, "rename shadow", d.BuildRenameTable(shadow, spec.Name)); err != nil {
		return migrationError(step, "rename shadow", err)
	}
	if pk := spec.PrimaryKey; pk != nil && pk.Strategy == KeyAutoIncrement {
		if q := d.BuildResetIdentity(spec.Name, pk.Column); q != "" {
			if err := execSQL(ctx, exec, "reset identity", q); err != nil {
				return migrationError(step, "reset identity", err)
			}
		}
	}

	if tx != nil {
		if err := tx.Commit(); err != nil {
			return migrationError(step, "commit", err)
		}
	}
	log.Printf("    %s.%s retyped to %s, %d rows copied (%s)",
		spec.Name, step.Column.Name, d.MapType(step.Column.Type), copied, step.Transform)
	return nil
}

// copyRows moves every row of the original table into the shadow. Columns
// present in both are copied; the retyped column goes through the step's
// transform. Rows are buffered first because most drivers cannot interleave
// reads and writes on one connection.
func (m *MigrationEngine) copyRows(ctx context.Context, exec sqlExecutor, spec TableSpec, shadow string, step MigrationStep) (int64, error) {
	d := m.dialect
	live, err := liveColumns(ctx, exec, d, spec.Name)
	if err != nil {
		return 0, err
	}

	var cols []string
	asText := make(map[string]bool)
	retyped := -1
	for _, name := range spec.ColumnNames() {
		lc, ok := findLiveColumn(live, name)
		if !ok {
			continue
		}
		if name == step.Column.Name {
			retyped = len(cols)
		} else if copyAsText(d, lc.Declared) {
			asText[name] = true
		}
		cols = append(cols, name)
	}
	if retyped < 0 {
		return 0, fmt.Errorf("column %s.%s not found", spec.Name, step.Column.Name)
	}

	rows, err := readAllRows(ctx, exec, d, spec.Name, cols, asText)
	if err != nil {
		return 0, err
	}

	for i, row := range rows {
		for j := range row {
			row[j] = normalizeValue(row[j])
		}
		v, err := step.Transform.Apply(row[retyped], step.Column.Type)
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i+1, err)
		}
		row[retyped] = v
	}

	identity := spec.PrimaryKey != nil && spec.PrimaryKey.Strategy == KeyAutoIncrement
	if on := d.BuildIdentityInsert(shadow, true); identity && on != "" {
		if err := execSQL(ctx, exec, "identity insert", on); err != nil {
			return 0, err
		}
	}
	insert := d.BuildInsert(shadow, cols)
	for i, row := range rows {
		if _, err := exec.ExecContext(ctx, insert, row...); err != nil {
			return 0, fmt.Errorf("insert row %d: %w\nSQL: %s", i+1, err, insert)
		}
	}
	if off := d.BuildIdentityInsert(shadow, false); identity && off != "" {
		if err := execSQL(ctx, exec, "identity insert", off); err != nil {
			return 0, err
		}
	}
	return int64(len(rows)), nil
}

// copyAsText reports whether a column must be copied as its stored text.
// The SQLite driver parses DATE/DATETIME text into time.Time, and binding that
// back would rewrite the stored value in a different layout.
func copyAsText(d Dialect, declared string) bool {
	if d.Kind() != BackendSQLite {
		return false
	}
	switch classifyNativeType(declared) {
	case TypeDate, TypeDateTime:
		return true
	}
	return false
}

// readAllRows selects cols from table. Columns in asText are read through
// CAST(... AS TEXT) so the driver hands back the stored text unchanged.
func readAllRows(ctx context.Context, exec sqlExecutor, d Dialect, table string, cols []string, asText map[string]bool) ([][]any, error) {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdentifier(c)
		if asText[c] {
			quoted[i] = fmt.Sprintf("CAST(%s AS TEXT)", quoted[i])
		}
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoted, ", "), d.QuoteIdentifier(table))
	rows, err := exec.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w\nSQL: %s", table, err, query)
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("read %s: %w", table, err)
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	return out, nil
}

func verifyCopy(ctx context.Context, exec sqlExecutor, d Dialect, original, shadow string, copied int64) error {
	src, err := queryCount(ctx, exec, d.BuildCountRows(original))
	if err != nil {
		return err
	}
	dst, err := queryCount(ctx, exec, d.BuildCountRows(shadow))
	if err != nil {
		return err
	}
	if src != dst || dst != copied {
		return fmt.Errorf("row count mismatch: %s has %d, %s has %d, copied %d", original, src, shadow, dst, copied)
	}
	return nil
}
