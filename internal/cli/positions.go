package cli

import (
	"context"

	"github.com/spf13/cobra"

	"stockbot/internal/infrastructure/svc"
)

var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "Show open positions with exit policy verdicts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServiceContext(func(ctx context.Context, sc *svc.ServiceContext) error {
			views, err := sc.Portfolio.ActivePositions(ctx)
			if err != nil {
				return err
			}
			return printJSON(views)
		})
	},
}

func init() {
	rootCmd.AddCommand(positionsCmd)
}
