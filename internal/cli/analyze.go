package cli

import (
	"context"

	"github.com/spf13/cobra"

	"stockbot/internal/infrastructure/svc"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <ticker>",
	Short: "Build the evidence packet and decision for a ticker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServiceContext(func(ctx context.Context, sc *svc.ServiceContext) error {
			rec, err := sc.Portfolio.Analyze(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(rec)
		})
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
