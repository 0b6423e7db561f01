package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"signal-trader/internal/analysis"
	"signal-trader/internal/logging"
	"signal-trader/internal/models"
	"signal-trader/internal/trading"
	"signal-trader/pkg/utils"
)

const commandTimeout = 30 * time.Second

// commandContext bounds a command run and carries a logger tagged with the
// command name.
func commandContext(cmd *cobra.Command, app *App) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := app.Logger.With().Str("command", cmd.Name()).Logger()
	return context.WithTimeout(logging.WithLogger(ctx, logger), commandTimeout)
}

// addTradingCommands adds the order proposal and approval commands.
func addTradingCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newEvaluateCmd(app))
	rootCmd.AddCommand(newExplainCmd(app))
	rootCmd.AddCommand(newPendingCmd(app))
	rootCmd.AddCommand(newApproveCmd(app))
	rootCmd.AddCommand(newDenyCmd(app))
}

func newEvaluateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate the market and propose a pending order",
		Long: `Fetch the latest candle window, run the confluence engine and, on a
qualifying setup, size it and write it as the pending order.

A kill switch, an open position or a tripped loss guard refuse with NO_TRADE.
Re-running replaces any pending order with the latest proposal.`,
		Example: `  signal-trader evaluate
  signal-trader evaluate --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, app)
			defer cancel()

			res, err := app.Engine.Evaluate(ctx)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(res)
			}

			if res.Status != models.StatusSetup || res.Order == nil {
				output.Warning("NO_TRADE")
				output.KV("Reason", res.Reason)
				if res.Verdict != nil {
					printSnapshot(output, res.Verdict)
				}
				return nil
			}

			if res.Replaced {
				output.Success("PENDING_ORDER_UPDATED")
			} else {
				output.Success("PENDING_ORDER_CREATED")
			}
			printOrder(output, res.Order)
			output.Println()
			output.Dim("Approve with 'signal-trader approve' or discard with 'signal-trader deny'.")
			return nil
		},
	}
}

func newExplainCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Explain the current verdict with the full confluence checklist",
		Long: `Run the same evaluation as 'evaluate' without changing any state, and print
every confluence check with its points and whether it passed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, app)
			defer cancel()

			cached, _ := cmd.Flags().GetBool("cached")
			ex, err := app.Engine.Explain(ctx, cached)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(ex)
			}

			v := ex.Verdict
			if v.IsSetup() {
				output.Success("WHY_REPORT: SETUP_AVAILABLE")
			} else {
				output.Warning("WHY_REPORT: NO_TRADE")
				output.KV("Reason", v.Reason)
			}
			printSnapshot(output, v)

			if len(v.Checklist) > 0 {
				output.Println()
				output.Bold("Checklist %s", FormatScore(v.Score, v.MaxScore))
				rows := make([][]string, 0, len(v.Checklist))
				for _, c := range v.Checklist {
					mark := output.Red(FormatCheck(false))
					if c.Passed {
						mark = output.Green(FormatCheck(true))
					}
					rows = append(rows, []string{mark, c.Name, fmt.Sprintf("%d", c.Points), c.Detail})
				}
				if err := output.Table([]string{"", "Check", "Pts", "Detail"}, rows); err != nil {
					return err
				}
			}

			if len(ex.Blockers) > 0 {
				output.Println()
				output.Bold("Blocked")
				for _, b := range ex.Blockers {
					output.Printf("  - %s\n", b)
				}
			}
			if ex.Order != nil {
				output.Println()
				output.Bold("Would propose")
				printOrder(output, ex.Order)
			}
			return nil
		},
	}

	cmd.Flags().Bool("cached", false, "use the last stored candle window instead of fetching")
	return cmd
}

func newPendingCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "Show the pending order",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, app)
			defer cancel()

			order, err := app.Engine.Pending(ctx)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"pending_order": order})
			}
			if order == nil {
				output.Dim("NO_PENDING_ORDER")
				return nil
			}
			output.Bold("PENDING_ORDER")
			printOrder(output, order)
			output.KV("Age", FormatDuration(time.Since(order.CreatedAt)))
			return nil
		},
	}
}

func newApproveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "approve",
		Short: "Approve the pending order and open a paper position",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, app)
			defer cancel()

			res, err := app.Engine.Approve(ctx)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(res)
			}

			output.Success("PAPER_EXECUTED")
			printPosition(output, res.Position)
			output.KV("Signal entry", FormatPrice(res.Execution.EntrySignal))
			output.KV("Slippage", fmt.Sprintf("%.1f bps", res.Execution.SlippageBps))
			return nil
		},
	}
}

func newDenyCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "deny",
		Short: "Discard the pending order",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, app)
			defer cancel()

			order, err := app.Engine.Deny(ctx)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"denied": order})
			}
			output.Warning("PENDING_ORDER_DENIED")
			output.KV("Setup", order.Setup)
			return nil
		},
	}
}

func printSnapshot(output *Output, v *analysis.Verdict) {
	m := v.Snapshot
	if m.Last == 0 {
		return
	}
	output.KV("Regime", m.Regime)
	output.KV("Phase", m.Phase)
	output.KV("Price", FormatPrice(m.Last))
	output.KV("EMA50/EMA200", fmt.Sprintf("%s / %s", FormatPrice(m.EMA50), FormatPrice(m.EMA200)))
	output.KV("ATR%", fmt.Sprintf("%.3f", m.ATRPct))
	if v.Side != "" {
		output.KV("Bias", FormatSide(v.Side))
		output.KV("Score", fmt.Sprintf("%s grade %s", FormatScore(v.Score, v.MaxScore), v.Grade))
	}
}

func printOrder(output *Output, o *models.PendingOrder) {
	output.KV("Symbol", o.Symbol)
	output.KV("Side", FormatSide(o.Side))
	output.KV("Setup", o.Setup)
	output.KV("Entry", FormatPrice(o.Entry))
	output.KV("Stop", FormatPrice(o.Stop))
	output.KV("TP1", FormatPrice(o.TP1))
	output.KV("RR", FormatRiskReward(o.RR))
	output.KV("Grade", fmt.Sprintf("%s (score %d, %s)", o.Grade, o.Score, o.Confidence))
	output.KV("Size", utils.FormatUSD(o.SizeUSD))
	output.KV("Margin", fmt.Sprintf("%s at %.1fx", utils.FormatUSD(o.MarginUSD), o.Leverage))
}

func printPosition(output *Output, p *models.OpenPosition) {
	output.KV("Symbol", p.Symbol)
	output.KV("Side", FormatSide(p.Side))
	output.KV("Entry fill", FormatPrice(p.EntryFill))
	output.KV("Stop", FormatPrice(p.Stop))
	output.KV("TP1", FormatPrice(p.TP1))
	output.KV("Size", fmt.Sprintf("%s (%s closed)", utils.FormatUSD(p.SizeUSD), FormatPercentOf(p.ClosedPercent)))
	output.KV("Opened", FormatDateTime(p.OpenedAt))
}

func printClose(output *Output, res *trading.CloseResult) {
	t := res.Trade
	if res.FullyClosed() {
		output.Success("TRADE_CLOSED")
	} else {
		output.Success("PARTIAL_CLOSED")
	}
	output.KV("Reason", t.Reason)
	output.KV("Exit", FormatPrice(t.ExitPrice))
	output.KV("Closed", fmt.Sprintf("%s of initial, %s", FormatPercentOf(t.Percent), utils.FormatUSD(t.CloseSizeUSD)))
	output.KV("Result", output.Signed(t.ResultR, utils.FormatR(t.ResultR)))
	output.KV("P&L", output.Signed(t.PnLUSD, FormatPnL(t.PnLUSD)))
	if res.Position != nil {
		output.KV("Remaining", utils.FormatUSD(res.Position.SizeUSD))
	}
	if res.JournalErr != nil {
		output.Warning("Journal not updated: %v (run 'signal-trader journal rebuild')", res.JournalErr)
	} else if res.Metrics != nil {
		output.KV("Expectancy", fmt.Sprintf("%s over %d trades", utils.FormatR(res.Metrics.ExpectancyR), res.Metrics.TotalTrades))
	}
}
