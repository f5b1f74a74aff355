package cli

import (
	"github.com/spf13/cobra"

	"calibration-engine/internal/model"
)

func newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <artifact>",
		Short: "Print artifact metadata as JSON",
		Long: `Validates a model artifact the same way the server does at startup and
prints its contents.

Examples:
  trainer inspect assets/model_pm2_5.json.gz`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, a, err := model.LoadArtifact(args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), a)
		},
	}
}
