package cli

import (
	"context"

	"github.com/spf13/cobra"

	appservice "stockbot/internal/application/service"
	"stockbot/internal/infrastructure/svc"
)

var (
	sellQty  float64
	sellFees float64
)

var sellCmd = &cobra.Command{
	Use:   "sell <ticker>",
	Short: "Sell all or part of an active position",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServiceContext(func(ctx context.Context, sc *svc.ServiceContext) error {
			req := appservice.SellRequest{Ticker: args[0], Fees: sellFees}
			if cmd.Flags().Changed("qty") {
				req.Qty = &sellQty
			}
			res, err := sc.Portfolio.Sell(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(res)
		})
	},
}

func init() {
	sellCmd.Flags().Float64Var(&sellQty, "qty", 0, "quantity to sell (full position when omitted)")
	sellCmd.Flags().Float64Var(&sellFees, "fees", 0, "fees for the trade")
	rootCmd.AddCommand(sellCmd)
}
