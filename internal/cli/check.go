package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"alligator-trader/internal/broker"
	"alligator-trader/internal/indicators"
	"alligator-trader/internal/models"
	"alligator-trader/internal/regime"
)

// newCheckCmd creates the command that prints a one-shot regime snapshot.
func newCheckCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Print a one-shot market regime snapshot",
		Long: `Check connects to the candle feed, collects enough history to seed the
indicators, prints the current regime classification, and exits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			cfg := app.Config

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			alligator := &indicators.Alligator{
				JawPeriod:   cfg.Strategy.JawPeriod,
				JawShift:    cfg.Strategy.JawShift,
				TeethPeriod: cfg.Strategy.TeethPeriod,
				TeethShift:  cfg.Strategy.TeethShift,
				LipsPeriod:  cfg.Strategy.LipsPeriod,
				LipsShift:   cfg.Strategy.LipsShift,
			}
			atr := indicators.NewATR(cfg.Strategy.ATRPeriod)
			adx := indicators.NewADX(cfg.Strategy.ADXPeriod, cfg.Strategy.ADXSmoothPeriod)

			required := alligator.RequiredBars()
			if r := atr.RequiredBars(); r > required {
				required = r
			}
			if r := adx.RequiredBars(); r > required {
				required = r
			}
			required += cfg.Signal.SlopeLookbackBars + cfg.Strategy.HistoryMargin

			bars, err := collectBars(ctx, app, required)
			if err != nil {
				return err
			}

			lines, err := alligator.Calculate(bars)
			if err != nil {
				return err
			}
			atrValue, err := atr.Current(bars)
			if err != nil {
				return err
			}
			adxResult, err := adx.Calculate(bars)
			if err != nil {
				return err
			}

			jaw, teeth, lips := lines.Current()
			prevIdx := len(bars) - 1 - cfg.Signal.SlopeLookbackBars
			if prevIdx < lines.FirstUsable() {
				prevIdx = lines.FirstUsable()
			}
			prevJaw, prevTeeth, prevLips := lines.At(prevIdx)
			price := bars[len(bars)-1].Close

			classifier := regime.NewClassifier(cfg.Strategy.Symbol, regime.Thresholds{
				MaxLineSlopeDegrees:    cfg.Signal.MaxLineSlopeDegrees,
				MaxLineSpreadDollars:   cfg.Signal.MaxLineSpreadDollars,
				DivergenceSlopeDegrees: cfg.Signal.DivergenceSlopeDegrees,
				MinMeaningfulSlope:     cfg.Signal.MinMeaningfulSlope,
			}, app.Logger)

			state := classifier.Classify(regime.Observation{
				Jaw:          jaw,
				Teeth:        teeth,
				Lips:         lips,
				PrevJaw:      prevJaw,
				PrevTeeth:    prevTeeth,
				PrevLips:     prevLips,
				Price:        price,
				LookbackBars: cfg.Signal.SlopeLookbackBars,
				BarDuration:  cfg.BarDuration(),
				Time:         time.Now(),
			})

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"symbol":        cfg.Strategy.Symbol,
					"price":         price,
					"jaw":           jaw,
					"teeth":         teeth,
					"lips":          lips,
					"atr":           atrValue,
					"adx":           adxResult.Current(),
					"sleeping":      state.Sleeping,
					"diverging":     state.Diverging,
					"bullish_awake": state.BullishAwake,
					"bearish_awake": state.BearishAwake,
				})
			}

			output.Info("%s regime snapshot", cfg.Strategy.Symbol)
			output.Printf("  Price: %.5f  Jaw: %.5f  Teeth: %.5f  Lips: %.5f\n", price, jaw, teeth, lips)
			output.Printf("  ATR: %.5f  ADX: %.2f\n", atrValue, adxResult.Current())
			switch {
			case state.BullishAwake:
				output.Success("  Regime: bullish awake")
			case state.BearishAwake:
				output.Error("  Regime: bearish awake")
			case state.Sleeping:
				output.Dim("  Regime: sleeping")
			default:
				output.Warning("  Regime: transitional")
			}
			return nil
		},
	}
}

// collectBars gathers closed candles from the feed until the requested
// count is reached or the context is cancelled.
func collectBars(ctx context.Context, app *App, count int) ([]models.Candle, error) {
	cfg := app.Config

	stream := broker.NewCandleStream(broker.CandleStreamConfig{
		URL:          cfg.Feed.URL,
		PingInterval: cfg.Feed.PingInterval,
		RedialMax:    cfg.Feed.RedialBackoff,
		Logger:       app.Logger,
	})

	bars := make([]models.Candle, 0, count)
	done := make(chan struct{})
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream.OnCandle(func(c models.Candle) {
		bars = append(bars, c)
		if len(bars) >= count {
			select {
			case <-done:
			default:
				close(done)
			}
			cancel()
		}
	})

	if err := stream.Subscribe(cfg.Strategy.Symbol, cfg.Strategy.Timeframe); err != nil {
		return nil, err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- stream.Run(streamCtx)
	}()

	select {
	case <-done:
		<-errCh
		return bars, nil
	case err := <-errCh:
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
}
