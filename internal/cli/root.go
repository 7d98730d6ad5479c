package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"alligator-trader/internal/config"
	"alligator-trader/internal/logging"
)

// Version information
const (
	Version = "0.1.0"
)

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "alligator",
		Short: "Alligator breakout trading engine",
		Long: `Alligator is an automated breakout trading engine.

It classifies the market regime with the Williams Alligator lines, waits for
a qualifying sleep phase, validates breakouts against slope, distance, and
trend-consistency criteria, and sizes orders from account risk and ATR.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/alligator-trader)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newRunCmd(app))
	rootCmd.AddCommand(newCheckCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"version": Version})
			} else {
				output.Printf("Alligator Trader v%s\n", Version)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Info("Strategy")
	output.Printf("  Symbol:       %s\n", cfg.Strategy.Symbol)
	output.Printf("  Timeframe:    %s\n", cfg.Strategy.Timeframe)
	output.Printf("  Jaw:          %d/%d\n", cfg.Strategy.JawPeriod, cfg.Strategy.JawShift)
	output.Printf("  Teeth:        %d/%d\n", cfg.Strategy.TeethPeriod, cfg.Strategy.TeethShift)
	output.Printf("  Lips:         %d/%d\n", cfg.Strategy.LipsPeriod, cfg.Strategy.LipsShift)
	output.Printf("  ATR period:   %d\n", cfg.Strategy.ATRPeriod)
	output.Printf("  ADX periods:  %d/%d\n", cfg.Strategy.ADXPeriod, cfg.Strategy.ADXSmoothPeriod)
	output.Info("Risk")
	output.Printf("  Risk percent:     %.2f%%\n", cfg.Risk.RiskPercent)
	output.Printf("  Reward ratio:     %.2f\n", cfg.Risk.RewardRatio)
	output.Printf("  ATR stop mult:    %.2f\n", cfg.Risk.ATRStopMultiplier)
	output.Printf("  Max daily trades: %d\n", cfg.Risk.MaxDailyTrades)
	output.Info("Feed")
	output.Printf("  URL: %s\n", cfg.Feed.URL)
	return nil
}
