package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"TradeOrdu/internal/di"
	"TradeOrdu/internal/domain/models"
	"TradeOrdu/internal/usecase"
	"TradeOrdu/pkg/config"
	"TradeOrdu/pkg/logger"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		var fatal *models.FatalConfigurationError
		if errors.As(err, &fatal) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "tradeordu",
		Short:         "Multi-agent decision engine for perpetual futures",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "config file path")

	load := func() (*config.Config, error) {
		cfg, err := config.LoadWithEnv(configPath)
		if err != nil {
			return nil, &models.FatalConfigurationError{Reason: "load config", Err: err}
		}
		return cfg, nil
	}

	run := &cobra.Command{
		Use:   "run",
		Short: "Stream market data and run decision cycles until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			app, err := di.InitializeApp(cfg)
			if err != nil {
				return fmt.Errorf("initialize: %w", err)
			}
			return app.Run()
		},
	}

	once := &cobra.Command{
		Use:   "once",
		Short: "Run a single decision cycle and print its summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			app, err := di.InitializeApp(cfg)
			if err != nil {
				return fmt.Errorf("initialize: %w", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			summary, err := app.RunOnce(ctx)
			if printErr := printJSON(cmd, summary); printErr != nil {
				return errors.Join(err, printErr)
			}
			return err
		},
	}

	symbols := &cobra.Command{
		Use:   "symbols",
		Short: "Print the instruments a run would track",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			rest := di.ProvideMarketData(cfg, logger.Nop())
			list, err := usecase.ResolveSymbols(cmd.Context(), cfg.Exchange.Symbols, rest, cfg.Exchange.QuoteAsset, cfg.Exchange.MaxSymbols)
			if err != nil {
				return err
			}
			for _, s := range list {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}

	root.RunE = run.RunE
	root.AddCommand(run, once, symbols)
	return root
}

func printJSON(cmd *cobra.Command, summary usecase.CycleSummary) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
