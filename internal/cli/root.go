package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"stockbot/internal/infrastructure/config"
	"stockbot/internal/infrastructure/logger"
	"stockbot/internal/infrastructure/svc"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "stockbot",
	Short: "Paper-trading decision bot with an auditable trade ledger",
	Long: `Stockbot analyzes equities from price history and news flow, runs every
recommendation through an entry gate with hysteresis, sizes positions from
calibrated probabilities, and records every decision and trade in an
append-only ledger. Portfolio state is always derived by replaying trades.`,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.toml (built-in defaults when empty)")
}

// withServiceContext loads config, wires the service context and hands it to
// the command body. Resources close when the body returns.
func withServiceContext(fn func(ctx context.Context, sc *svc.ServiceContext) error) error {
	logger.Setup()

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config %s: %w", configPath, err)
		}
		cfg = loaded
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, err := svc.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = sc.Close() }()

	return fn(ctx, sc)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
