package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"calibration-engine/internal/db"
	"calibration-engine/internal/migrate"
	"calibration-engine/internal/modules/training/repository"
	"calibration-engine/internal/modules/training/types"
)

// openLedger opens (creating if needed) the ledger and brings its schema up to date.
func openLedger(ctx context.Context, path string) (*sql.DB, error) {
	conn, err := db.Open(ctx, path, slog.Default())
	if err != nil {
		return nil, err
	}
	if _, err := migrate.Run(ctx, conn); err != nil {
		_ = db.Close(conn)
		return nil, err
	}
	return conn, nil
}

// openExistingLedger is openLedger for read-only commands, which should not
// create a ledger by accident.
func openExistingLedger(ctx context.Context, path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("ledger %s: %w", path, err)
	}
	return openLedger(ctx, path)
}

type runsOptions struct {
	ledger    string
	pollutant string
	limit     int
	asJSON    bool
}

func newRunsCommand() *cobra.Command {
	opts := &runsOptions{}

	cmd := &cobra.Command{
		Use:     "runs",
		Aliases: []string{"run"},
		Short:   "List recorded training runs",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRuns(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.ledger, "ledger", "", "sqlite ledger path")
	_ = cmd.MarkPersistentFlagRequired("ledger")
	cmd.Flags().StringVar(&opts.pollutant, "pollutant", "", "only runs for this pollutant")
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "maximum runs to list")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print JSON instead of a table")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <run_id>",
		Short: "Show one run with its full leaderboard as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showRun(cmd.Context(), cmd.OutOrStdout(), opts.ledger, args[0])
		},
	})
	return cmd
}

func listRuns(ctx context.Context, out io.Writer, opts *runsOptions) error {
	conn, err := openExistingLedger(ctx, opts.ledger)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(conn) }()

	runs, err := repository.NewRepository(conn).ListRuns(ctx, opts.pollutant, opts.limit)
	if err != nil {
		return err
	}
	if opts.asJSON {
		if runs == nil {
			runs = []types.Run{}
		}
		return writeJSON(out, runs)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tPOLLUTANT\tALGORITHM\tR2\tRMSE\tROWS\tARTIFACT")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.4f\t%.4f\t%d\t%s\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Pollutant, r.Algorithm,
			r.R2, r.RMSE, r.TrainRows+r.HoldoutRows, r.ArtifactPath)
	}
	return tw.Flush()
}

func showRun(ctx context.Context, out io.Writer, ledger, id string) error {
	conn, err := openExistingLedger(ctx, ledger)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(conn) }()

	run, err := repository.NewRepository(conn).GetRun(ctx, id)
	if err != nil {
		return err
	}
	return writeJSON(out, run)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
