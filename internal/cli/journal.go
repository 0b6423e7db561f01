package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"signal-trader/internal/models"
	"signal-trader/internal/store"
	"signal-trader/pkg/utils"
)

// addJournalCommands adds journal commands.
func addJournalCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Trade journal and metrics",
		Long:  "Review closed trades, journal metrics, and regenerate the CSV journal.",
	}

	cmd.AddCommand(newJournalShowCmd(app))
	cmd.AddCommand(newJournalMetricsCmd(app))
	cmd.AddCommand(newJournalRebuildCmd(app))

	rootCmd.AddCommand(cmd)
}

func newJournalShowCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show closed trades",
		Example: `  signal-trader journal show
  signal-trader journal show --limit 50 --reason sl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, app)
			defer cancel()

			limit, _ := cmd.Flags().GetInt("limit")
			reason, _ := cmd.Flags().GetString("reason")
			trades, err := app.Store.GetClosedTrades(ctx, store.TradeFilter{
				Limit:  limit,
				Reason: models.CloseReason(reason),
			})
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(trades)
			}
			if len(trades) == 0 {
				output.Dim("No closed trades")
				return nil
			}

			rows := make([][]string, 0, len(trades))
			var total float64
			for _, t := range trades {
				total += t.PnLUSD
				rows = append(rows, []string{
					FormatDateTime(t.ClosedAt),
					FormatSide(t.Side),
					string(t.Reason),
					FormatPrice(t.EntryFill),
					FormatPrice(t.ExitPrice),
					FormatPercentOf(t.Percent),
					output.Signed(t.ResultR, utils.FormatR(t.ResultR)),
					output.Signed(t.PnLUSD, FormatPnL(t.PnLUSD)),
				})
			}
			if err := output.Table([]string{"Closed", "Side", "Via", "Entry", "Exit", "Pct", "R", "P&L"}, rows); err != nil {
				return err
			}
			output.KV("Total P&L", output.Signed(total, FormatPnL(total)))
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "maximum trades to show (0 for all)")
	cmd.Flags().String("reason", "", "filter by close reason (tp, sl, manual)")
	return cmd
}

func newJournalMetricsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Show journal metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			m, err := app.Journal.Metrics()
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(m)
			}
			printMetrics(output, m)
			return nil
		},
	}
}

func newJournalRebuildCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Regenerate the CSV journal from the trade ledger",
		Long: `Rewrite trades.csv from the closed-trade ledger in the state database and
recompute metrics. Use it after a journal write failed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, app)
			defer cancel()

			trades, err := app.Store.GetClosedTrades(ctx, store.TradeFilter{})
			if err != nil {
				return err
			}
			m, err := app.Journal.Rebuild(trades)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"rows": len(trades), "metrics": m})
			}
			output.Success("JOURNAL_REBUILT")
			output.KV("Rows", len(trades))
			output.KV("Path", app.Journal.TradesPath())
			printMetrics(output, m)
			return nil
		},
	}
}

func printMetrics(output *Output, m *models.Metrics) {
	output.KV("Trades", m.TotalTrades)
	output.KV("Win rate", fmt.Sprintf("%.2f%%", m.WinRate))
	output.KV("Avg win", utils.FormatR(m.AvgWinR))
	output.KV("Avg loss", utils.FormatR(m.AvgLossR))
	output.KV("Expectancy", output.Signed(m.ExpectancyR, utils.FormatR(m.ExpectancyR)))
	if m.UpdatedAt != nil {
		output.KV("Updated", FormatDateTime(*m.UpdatedAt))
	}
}
