package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"alligator-trader/internal/broker"
	"alligator-trader/internal/models"
	"alligator-trader/internal/strategy"
)

// newRunCmd creates the command that runs the live engine against the
// configured feed with a paper broker.
func newRunCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the trading engine",
		Long: `Run connects to the candle feed and drives the breakout engine until
interrupted. Orders are executed against the built-in paper broker.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			cfg := app.Config

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sim := broker.NewSimBroker(broker.SimBrokerConfig{
				InitialBalance: cfg.Paper.InitialBalance,
				Constraints: models.SymbolConstraints{
					Symbol:          cfg.Strategy.Symbol,
					MinLot:          cfg.Paper.MinLot,
					MaxLot:          cfg.Paper.MaxLot,
					LotStep:         cfg.Paper.LotStep,
					MinStopDistance: cfg.Paper.MinStopDistance,
					Digits:          cfg.Paper.Digits,
				},
			})

			engine := strategy.NewEngine(cfg, sim, app.Logger)

			stream := broker.NewCandleStream(broker.CandleStreamConfig{
				URL:          cfg.Feed.URL,
				PingInterval: cfg.Feed.PingInterval,
				RedialMax:    cfg.Feed.RedialBackoff,
				Logger:       app.Logger,
			})

			// Closed candles extend the paper broker's history; ticks drive
			// the engine and sweep paper SL/TP levels.
			stream.OnCandle(func(c models.Candle) {
				sim.AppendCandle(cfg.Strategy.Symbol, c)
				tick := models.Tick{
					Symbol:    cfg.Strategy.Symbol,
					Last:      c.Close,
					Timestamp: c.Timestamp,
				}
				if err := engine.OnTick(ctx, tick); err != nil {
					app.Logger.Error().Err(err).Msg("Tick processing failed")
				}
			})
			stream.OnTick(func(tick models.Tick) {
				sim.UpdatePrice(tick.Symbol, tick.Mid())
				if err := engine.OnTick(ctx, tick); err != nil {
					app.Logger.Error().Err(err).Msg("Tick processing failed")
				}
			})

			if err := stream.Subscribe(cfg.Strategy.Symbol, cfg.Strategy.Timeframe); err != nil {
				return err
			}

			output.Info("Engine running on %s %s, press Ctrl-C to stop",
				cfg.Strategy.Symbol, cfg.Strategy.Timeframe)

			err := stream.Run(ctx)
			if errors.Is(err, context.Canceled) {
				output.Println()
				output.Success("Stopped")
				return nil
			}
			return err
		},
	}
}
