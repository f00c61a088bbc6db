package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/msomdec/care-practice/internal/repository/sqlite"
)

var migrateStatus bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Apply pending database migrations. Applied files are verified against
their recorded checksums first. With --status, only list each migration.`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateStatus, "status", false, "list migrations without applying them")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(migrateStatus)
	if err != nil {
		return err
	}

	db, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if migrateStatus {
		list, err := db.MigrationStatus(cmd.Context())
		if err != nil {
			return fmt.Errorf("reading migration status: %w", err)
		}
		w := cmd.OutOrStdout()
		for _, m := range list {
			state := "pending"
			if m.Applied {
				state = "applied " + m.AppliedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(w, "%-28s  %s\n", m.Filename, state)
		}
		return nil
	}

	applied, err := db.MigrateCount(cmd.Context())
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d migration(s) applied\n", applied)
	slog.Info("migrations applied", "path", cfg.Database.Path, "count", applied)
	return nil
}
