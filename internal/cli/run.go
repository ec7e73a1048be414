package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"stockbot/internal/infrastructure/svc"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the background scan scheduler until interrupted",
	Long: `Starts the reserve scan (shock re-scoring of holdings) and the broad scan
(entry screening of holdings plus watchlist) on their configured cadences.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServiceContext(func(ctx context.Context, sc *svc.ServiceContext) error {
			if err := sc.Jobs.Run(ctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
