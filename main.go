package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "sheetbridge.toml"

var (
	configPath  string
	ddlBackend  string
	addKind     string
	addConnStr  string
	enableAgain bool
)

var rootCmd = &cobra.Command{
	Use:           "sheetbridge",
	Short:         "Schema initialization and data source management for the spreadsheet import service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var initCmd = &cobra.Command{
	Use:   "init [config.toml]",
	Short: "Create missing tables, repair schema drift and seed reference data",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInit,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate [config.toml]",
	Short: "Detect and repair schema drift on an existing database",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMigrate,
}

var ddlCmd = &cobra.Command{
	Use:   "ddl",
	Short: "Print the CREATE TABLE statements for a backend",
	Args:  cobra.NoArgs,
	RunE:  runDDL,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "sheetbridge %s (schema %s)\n", versionString(), schemaVersion)
	},
}

var datasourceCmd = &cobra.Command{
	Use:     "datasource",
	Aliases: []string{"ds"},
	Short:   "Manage registered data sources",
}

var dsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List data sources",
	Args:  cobra.NoArgs,
	RunE:  runDataSourceList,
}

var dsAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a data source",
	Args:  cobra.ExactArgs(1),
	RunE:  runDataSourceAdd,
}

var dsPromoteCmd = &cobra.Command{
	Use:   "promote <id>",
	Short: "Make a data source the default",
	Args:  cobra.ExactArgs(1),
	RunE:  runDataSourcePromote,
}

var dsClearCmd = &cobra.Command{
	Use:   "clear <id>",
	Short: "Unmark a data source as the default",
	Args:  cobra.ExactArgs(1),
	RunE:  runDataSourceClear,
}

var dsTestCmd = &cobra.Command{
	Use:   "test <id>",
	Short: "Test a data source connection and record the result",
	Args:  cobra.ExactArgs(1),
	RunE:  runDataSourceTest,
}

var dsDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Disable a data source",
	Args:  cobra.ExactArgs(1),
	RunE:  runDataSourceDisable,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to TOML config file (default "+defaultConfigPath+")")
	ddlCmd.Flags().StringVar(&ddlBackend, "backend", "", "backend to render: sqlite, mysql, postgres, sqlserver or oracle")
	_ = ddlCmd.MarkFlagRequired("backend")
	dsAddCmd.Flags().StringVar(&addKind, "type", "", "backend type of the data source")
	dsAddCmd.Flags().StringVar(&addConnStr, "dsn", "", "connection string of the data source")
	_ = dsAddCmd.MarkFlagRequired("type")
	_ = dsAddCmd.MarkFlagRequired("dsn")
	dsDisableCmd.Flags().BoolVar(&enableAgain, "enable", false, "re-enable instead of disabling")

	datasourceCmd.AddCommand(dsListCmd, dsAddCmd, dsPromoteCmd, dsClearCmd, dsTestCmd, dsDisableCmd)
	rootCmd.AddCommand(initCmd, migrateCmd, ddlCmd, versionCmd, datasourceCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadCommandConfig resolves the config path (positional arg over --config
// over the default), loads it and installs the logger.
func loadCommandConfig(args []string) (*AppConfig, error) {
	cfgPath := configPath
	if len(args) > 0 {
		cfgPath = args[0]
	}
	if cfgPath == "" {
		cfgPath = defaultConfigPath
	}
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	setupLogger(os.Stderr, cfg.LogLevel)
	return cfg, nil
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := loadCommandConfig(args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	log.Printf("sheetbridge %s: initializing %s store", versionString(), cfg.backend)

	d, factory, err := newBackend(cfg.backend)
	if err != nil {
		return err
	}
	res, err := NewSchemaInitializer(d, factory, cfg.Store.DSN, cfg.seedConfig()).Run(ctx)
	if err != nil {
		return err
	}
	if res.AlreadyCurrent {
		log.Printf("database already current")
	}

	if len(cfg.Hooks.AfterInit) > 0 {
		db, err := factory.CreateConnection(cfg.Store.DSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := runHookFiles(ctx, db, cfg, cfg.Hooks.AfterInit, "after_init"); err != nil {
			return err
		}
	}
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadCommandConfig(args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	start := time.Now()

	d, factory, err := newBackend(cfg.backend)
	if err != nil {
		return err
	}
	db, err := factory.CreateConnection(cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer db.Close()
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	if q := d.EnableForeignKeys(); q != "" {
		if err := execSQL(ctx, conn, "enable foreign keys", q); err != nil {
			return err
		}
	}
	log.Printf("checking schema drift on %s...", d.Name())
	n, err := NewMigrationEngine(d).Run(ctx, conn)
	if err != nil {
		return err
	}
	log.Printf("migration completed in %s: %d steps applied", time.Since(start).Round(time.Millisecond), n)
	return nil
}

func runDDL(cmd *cobra.Command, args []string) error {
	kind, err := parseBackendKind(ddlBackend)
	if err != nil {
		return err
	}
	d, err := newDialect(kind)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "-- sheetbridge schema %s for %s\n", schemaVersion, d.Name())
	for _, t := range schemaCatalog {
		fmt.Fprintf(out, "\n%s;\n", generateCreateTable(d, t))
	}
	return nil
}

// openStore runs the startup barrier and returns a data source store on the
// application database. Callers must close the returned *sql.DB.
func openStore(ctx context.Context, cfg *AppConfig) (*DataSourceStore, *sql.DB, error) {
	d, factory, err := newBackend(cfg.backend)
	if err != nil {
		return nil, nil, err
	}
	if _, err := NewSchemaInitializer(d, factory, cfg.Store.DSN, cfg.seedConfig()).Run(ctx); err != nil {
		return nil, nil, err
	}
	db, err := factory.CreateConnection(cfg.Store.DSN)
	if err != nil {
		return nil, nil, err
	}
	return NewDataSourceStore(db, d), db, nil
}

func runDataSourceList(cmd *cobra.Command, args []string) error {
	cfg, err := loadCommandConfig(nil)
	if err != nil {
		return err
	}
	store, db, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := store.List(cmd.Context())
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tDEFAULT\tENABLED\tSTATUS\tLAST TESTED")
	for _, r := range records {
		tested := "-"
		if r.LastTestedAt != nil {
			tested = r.LastTestedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Name, r.Kind, yesNo(r.IsDefault), yesNo(r.Enabled), r.Status, tested)
	}
	return w.Flush()
}

func runDataSourceAdd(cmd *cobra.Command, args []string) error {
	cfg, err := loadCommandConfig(nil)
	if err != nil {
		return err
	}
	kind, err := parseBackendKind(addKind)
	if err != nil {
		return err
	}
	// Validates the connection string without dialing.
	_, factory, err := newBackend(kind)
	if err != nil {
		return err
	}
	probe, err := factory.CreateConnection(addConnStr)
	if err != nil {
		return err
	}
	_ = probe.Close()

	store, db, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	rec, err := store.Create(cmd.Context(), args[0], kind, addConnStr)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), rec.ID)
	return nil
}

func runDataSourcePromote(cmd *cobra.Command, args []string) error {
	cfg, err := loadCommandConfig(nil)
	if err != nil {
		return err
	}
	store, db, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ok, err := store.PromoteToDefault(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s (default unchanged)", ErrDataSourceNotFound, args[0])
	}
	return nil
}

func runDataSourceClear(cmd *cobra.Command, args []string) error {
	cfg, err := loadCommandConfig(nil)
	if err != nil {
		return err
	}
	store, db, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ok, err := store.ClearDefault(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !ok {
		log.Printf("data source %s is not the default, nothing to clear", args[0])
		return nil
	}
	log.Printf("data source %s is no longer the default", args[0])
	return nil
}

func runDataSourceTest(cmd *cobra.Command, args []string) error {
	cfg, err := loadCommandConfig(nil)
	if err != nil {
		return err
	}
	store, db, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.TestConnection(cmd.Context(), args[0], cfg.testTimeout); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), StatusConnected)
	return nil
}

func runDataSourceDisable(cmd *cobra.Command, args []string) error {
	cfg, err := loadCommandConfig(nil)
	if err != nil {
		return err
	}
	store, db, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	return store.SetEnabled(cmd.Context(), args[0], enableAgain)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
