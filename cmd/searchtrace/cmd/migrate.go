package cmd

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solatis/searchtrace/internal/core/config"
	"github.com/solatis/searchtrace/internal/core/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the persistent-graph schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrateUp,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List applied and pending migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrateStatus,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd)
}

// schemaURL is trace.db_url, or the SQLite file the persistent-graph
// backend would use under trace.data_dir.
func schemaURL(cfg *config.Config) string {
	if cfg.Trace.DBURL != "" {
		return cfg.Trace.DBURL
	}
	return db.SQLiteURL(filepath.Join(cfg.Trace.DataDir, "trace.db"))
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	conn, err := db.Open(cmd.Context(), schemaURL(cfg))
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := db.MigrateUp(cmd.Context(), conn); err != nil {
		return err
	}
	logger.Info("migrations applied", zap.String("driver", conn.DriverName()))
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	conn, err := db.Open(cmd.Context(), schemaURL(cfg))
	if err != nil {
		return err
	}
	defer conn.Close()

	statuses, err := db.MigrateStatus(cmd.Context(), conn)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MIGRATION\tSTATUS\tAPPLIED AT\tDURATION")
	for _, s := range statuses {
		if s.Applied {
			fmt.Fprintf(w, "%s\tapplied\t%s\t%dms\n", s.ID, s.AppliedAt, s.ExecutionMs)
		} else {
			fmt.Fprintf(w, "%s\tpending\t-\t-\n", s.ID)
		}
	}
	return w.Flush()
}
