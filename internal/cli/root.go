package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"signal-trader/internal/analysis/signal"
	"signal-trader/internal/broker"
	"signal-trader/internal/config"
	"signal-trader/internal/journal"
	"signal-trader/internal/logging"
	"signal-trader/internal/store"
	"signal-trader/internal/trading"
	"signal-trader/pkg/utils"
)

// Version information
const (
	Version   = "0.3.0"
	BuildDate = "2026-03-01"
)

// annotationInit controls how much of the App a command needs. Commands without
// it get the full engine.
const (
	annotationInit = "init"
	initNone       = "none"
	initConfig     = "config"
)

// App holds the application dependencies.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Store   store.StateStore
	Market  broker.MarketData
	Journal *journal.Journal
	Engine  *trading.Engine
}

// Close releases the resources opened by init.
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// init loads configuration and wires the engine.
func (a *App) init(configDir string, withState bool) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}
	a.Config = cfg

	logCfg := logging.DefaultLogConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Console = cfg.Logging.Console
	logCfg.File = cfg.Logging.File
	logCfg.FilePath = cfg.LogPath()
	if a.Logger.GetLevel() == zerolog.DebugLevel {
		logCfg.Level = "debug"
	}
	a.Logger = logging.NewLoggerWithConfig(logCfg)

	if !withState {
		return nil
	}

	st, err := store.NewSQLiteStore(cfg.DBPath(), a.Logger)
	if err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}
	a.Store = st

	a.Market = broker.NewBinanceClient(broker.BinanceConfig{
		BaseURL:           cfg.Market.BaseURL,
		Timeout:           cfg.Market.Timeout,
		RequestsPerSecond: cfg.Market.RequestsPerSecond,
		MaxRetries:        cfg.Market.MaxRetries,
		Logger:            a.Logger,
	})
	a.Journal = journal.New(cfg.Storage.JournalDir, cfg.Risk.RiskPerTrade, a.Logger)

	signals := signal.NewEngine(signal.Config{
		MinScore:     cfg.Strategy.MinConfluenceScore,
		RRTarget:     cfg.Strategy.RRTarget,
		MinRR:        cfg.Risk.MinRR,
		MinGrade:     cfg.MinGrade(),
		SessionHours: cfg.Strategy.PreferredSessionHours,
		EffortBonus:  cfg.Strategy.EffortBonus,
	})

	a.Engine = trading.NewEngine(cfg, trading.Deps{
		Store:    st,
		Market:   a.Market,
		Signals:  signals,
		Executor: broker.NewPaperExecutor(cfg.Trading.PaperSlippageBps),
		Journal:  a.Journal,
		Logger:   a.Logger,
	})
	a.Logger.Debug().Str("db", cfg.DBPath()).Msg("Engine initialized")
	return nil
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(logger zerolog.Logger) *cobra.Command {
	app := &App{Logger: logger}

	rootCmd := &cobra.Command{
		Use:   "signal-trader",
		Short: "Signal Trader - confluence signals with human-approved paper execution",
		Long: `Signal Trader turns a window of candles into a scored, graded trade setup,
sizes it under explicit risk limits, and manages the order lifecycle:
pending proposal, operator approval, paper fill, armed exits and closes,
into a trade journal with recomputed metrics.

Every run is short-lived. Schedule 'evaluate' and 'monitor' externally.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			mode := cmd.Annotations[annotationInit]
			if mode == initNone {
				return nil
			}
			configDir, _ := cmd.Flags().GetString("config")
			return app.init(configDir, mode != initConfig)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/signal-trader)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addTradingCommands(rootCmd, app)
	addPositionCommands(rootCmd, app)
	addMonitoringCommands(rootCmd, app)
	addJournalCommands(rootCmd, app)

	return rootCmd
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: map[string]string{annotationInit: initNone},
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Signal Trader v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func configDirFlag(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString("config")
	if dir == "" {
		return config.DefaultConfigDir()
	}
	return dir
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:         "show",
		Short:       "Show current configuration",
		Annotations: map[string]string{annotationInit: initConfig},
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:         "path",
		Short:       "Show configuration file path",
		Annotations: map[string]string{annotationInit: initNone},
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			path := filepath.Join(configDirFlag(cmd), "config.toml")
			if output.IsJSON() {
				output.JSON(map[string]string{"path": path})
			} else {
				output.Println(path)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:         "validate",
		Short:       "Validate the configuration file",
		Annotations: map[string]string{annotationInit: initNone},
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			cfg, err := config.Load(configDirFlag(cmd))
			if err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"valid": true, "mode": cfg.Trading.Mode})
			}
			output.Success("✓ Configuration is valid")
			if !cfg.IsPaperMode() {
				output.Warning("Mode is %q: trading commands will refuse to run", cfg.Trading.Mode)
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Trading")
	output.KV("Symbol", cfg.Trading.Symbol)
	output.KV("Timeframe", cfg.Trading.Timeframe)
	output.KV("Mode", cfg.Trading.Mode)
	output.KV("Leverage", fmt.Sprintf("%.1fx", cfg.Trading.Leverage))
	output.KV("Slippage", fmt.Sprintf("%.1f bps", cfg.Trading.PaperSlippageBps))
	output.Println()

	output.Bold("Risk")
	output.KV("Equity", utils.FormatUSD(cfg.Risk.AccountEquityUSD))
	output.KV("Risk/trade", fmt.Sprintf("%.2f%%", cfg.Risk.RiskPerTrade*100))
	output.KV("Max daily loss", fmt.Sprintf("%.2f%%", cfg.Risk.MaxDailyLoss*100))
	output.KV("Max weekly loss", fmt.Sprintf("%.2f%%", cfg.Risk.MaxWeeklyLoss*100))
	output.KV("Min RR", fmt.Sprintf("%.2f", cfg.Risk.MinRR))
	output.Println()

	output.Bold("Strategy")
	output.KV("Min score", cfg.Strategy.MinConfluenceScore)
	output.KV("RR target", fmt.Sprintf("%.2f", cfg.Strategy.RRTarget))
	output.KV("Min grade", cfg.MinGrade())
	hours := "any"
	if len(cfg.Strategy.PreferredSessionHours) > 0 {
		parts := make([]string, len(cfg.Strategy.PreferredSessionHours))
		for i, h := range cfg.Strategy.PreferredSessionHours {
			parts[i] = fmt.Sprintf("%02d", h)
		}
		hours = strings.Join(parts, ",") + " UTC"
	}
	output.KV("Session hours", hours)
	output.KV("Effort bonus", cfg.Strategy.EffortBonus)
	output.Println()

	output.Bold("Storage")
	output.KV("Database", cfg.DBPath())
	output.KV("Journal", cfg.Storage.JournalDir)
	output.KV("Market", cfg.Market.BaseURL)
}
