package cli

import (
	"context"

	"github.com/spf13/cobra"

	appservice "stockbot/internal/application/service"
	"stockbot/internal/infrastructure/svc"
)

var (
	buyQty      float64
	buyNotional float64
	buyRiskMode string
	buyFees     float64
)

var buyCmd = &cobra.Command{
	Use:   "buy <ticker>",
	Short: "Attempt a gated buy",
	Long: `Runs the full entry pipeline for the ticker: analysis, entry gate,
position sizing and the ledger write. A refused gate prints no_trade with the
gate's reason instead of trading.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServiceContext(func(ctx context.Context, sc *svc.ServiceContext) error {
			req := appservice.BuyRequest{
				Ticker:   args[0],
				RiskMode: buyRiskMode,
				Fees:     buyFees,
			}
			if cmd.Flags().Changed("qty") {
				req.Qty = &buyQty
			}
			if cmd.Flags().Changed("notional") {
				req.NotionalUSD = &buyNotional
			}
			res, err := sc.Portfolio.Buy(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(res)
		})
	},
}

func init() {
	buyCmd.Flags().Float64Var(&buyQty, "qty", 0, "explicit share quantity (skips sizing)")
	buyCmd.Flags().Float64Var(&buyNotional, "notional", 0, "dollar notional to buy (skips allocation sizing)")
	buyCmd.Flags().StringVar(&buyRiskMode, "risk-mode", "", "risk mode, e.g. moderate")
	buyCmd.Flags().Float64Var(&buyFees, "fees", 0, "fees for the trade")
	rootCmd.AddCommand(buyCmd)
}
