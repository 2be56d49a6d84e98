// Package main provides dbexport, which copies scan records from the SQLite
// store into MySQL when moving a codescan installation to a shared database.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tphakala/codescan/internal/conf"
	"github.com/tphakala/codescan/internal/datastore"
	"github.com/tphakala/codescan/internal/errors"
)

// Set via ldflags.
var version = "dev"

type options struct {
	configPath string
	sqlitePath string
	batchSize  int
	clean      bool
	skipVerify bool
}

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "dbexport",
		Short: "Copy codescan scan records from SQLite to MySQL",
		Long: `Copy every scan record from the SQLite database into the MySQL database
configured under output.mysql. Records keep their ids and scan dates. Records
whose id or code value already exists in MySQL are skipped, so the export can
be re-run safely.`,
		Version:      version,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to codescan config.yaml")
	cmd.Flags().StringVar(&opts.sqlitePath, "sqlite-path", "", "Source database, overrides output.sqlite.path")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", defaultBatchSize, "Records per insert batch")
	cmd.Flags().BoolVar(&opts.clean, "clean", false, "Delete all scan records in MySQL before copying")
	cmd.Flags().BoolVar(&opts.skipVerify, "skip-verify", false, "Skip post-copy verification")

	return cmd
}

func run(cmd *cobra.Command, opts *options) error {
	if opts.batchSize < 1 || opts.batchSize > maxBatchSize {
		return fmt.Errorf("batch-size must be between 1 and %d", maxBatchSize)
	}

	settings, err := conf.LoadFile(opts.configPath)
	if err != nil {
		return err
	}
	if !settings.Output.MySQL.Enabled {
		return fmt.Errorf("output.mysql.enabled must be true in the config to select the target database")
	}
	if opts.sqlitePath != "" {
		settings.Output.SQLite.Path = opts.sqlitePath
	}
	if _, err := os.Stat(settings.Output.SQLite.Path); err != nil {
		return fmt.Errorf("source database: %w", err)
	}

	source, err := openBackend(settings, true)
	if err != nil {
		return fmt.Errorf("opening SQLite: %w", err)
	}
	defer source.Close()

	target, err := openBackend(settings, false)
	if err != nil {
		return fmt.Errorf("opening MySQL: %w", err)
	}
	defer target.Close()

	out := cmd.OutOrStdout()
	m := &Migrator{
		Source:    source.(*datastore.SQLiteStore).DB,
		Target:    target.(*datastore.MySQLStore).DB,
		BatchSize: opts.batchSize,
		Clean:     opts.clean,
	}

	stats, err := m.Run(cmd.Context())
	if err != nil {
		return err
	}
	stats.Print(out)

	if opts.skipVerify {
		return nil
	}
	fmt.Fprintln(out, "verifying...")
	if err := (&Verifier{Source: m.Source, Target: m.Target}).Verify(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(out, "verification passed")
	return nil
}

// openBackend opens only the SQLite or only the MySQL backend from settings.
func openBackend(settings *conf.Settings, sqlite bool) (datastore.Interface, error) {
	s := *settings
	s.Output.SQLite.Enabled = sqlite
	s.Output.MySQL.Enabled = !sqlite

	store, err := datastore.New(&s)
	if err != nil {
		return nil, err
	}
	if err := store.Open(); err != nil {
		return nil, errors.Join(err, store.Close())
	}
	return store, nil
}
