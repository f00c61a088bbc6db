package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/msomdec/care-practice/internal/export"
	"github.com/msomdec/care-practice/internal/repository/sqlite"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a ledger as CSV",
}

var exportAssessmentsCmd = &cobra.Command{
	Use:   "assessments",
	Short: "Export the multi-rater assessment ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(cmd, func(db *sqlite.DB, w io.Writer) (int, error) {
			rows, err := db.Assessments().ListAll(cmd.Context())
			if err != nil {
				return 0, err
			}
			return len(rows), export.WriteAssessments(w, rows)
		})
	},
}

var exportEfficacyCmd = &cobra.Command{
	Use:   "efficacy",
	Short: "Export the self-efficacy ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(cmd, func(db *sqlite.DB, w io.Writer) (int, error) {
			rows, err := db.SelfEfficacy().ListAll(cmd.Context())
			if err != nil {
				return 0, err
			}
			return len(rows), export.WriteEfficacy(w, rows)
		})
	},
}

func init() {
	exportCmd.PersistentFlags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")
	exportCmd.AddCommand(exportAssessmentsCmd)
	exportCmd.AddCommand(exportEfficacyCmd)
}

func runExport(cmd *cobra.Command, write func(*sqlite.DB, io.Writer) (int, error)) error {
	cfg, err := loadConfig(exportOut == "")
	if err != nil {
		return err
	}

	db, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	var w io.Writer = cmd.OutOrStdout()
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("creating %s: %w", exportOut, err)
		}
		defer f.Close()
		w = f
	}

	n, err := write(db, w)
	if err != nil {
		return fmt.Errorf("exporting %s: %w", cmd.Name(), err)
	}
	slog.Info("export written", "ledger", cmd.Name(), "rows", n, "out", exportOut)
	return nil
}
