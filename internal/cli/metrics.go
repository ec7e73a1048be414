package cli

import (
	"context"

	"github.com/spf13/cobra"

	"stockbot/internal/infrastructure/svc"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Replay the trade ledger into equity curve, Sharpe, drawdown and win rate",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServiceContext(func(ctx context.Context, sc *svc.ServiceContext) error {
			report, err := sc.Metrics.Compute(ctx)
			if err != nil {
				return err
			}
			return printJSON(report)
		})
	},
}

func init() {
	rootCmd.AddCommand(metricsCmd)
}
