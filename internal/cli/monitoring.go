package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"signal-trader/internal/errors"
	"signal-trader/internal/models"
	"signal-trader/internal/store"
	"signal-trader/pkg/utils"
)

// addMonitoringCommands adds state inspection and kill switch commands.
func addMonitoringCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newStatusCmd(app))
	rootCmd.AddCommand(newKillCmd(app))
	rootCmd.AddCommand(newExecutionsCmd(app))
	rootCmd.AddCommand(newEvaluationsCmd(app))
}

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show engine state",
		Long:  "Show mode, kill switch, pending order, open position, armed exit and rolling P&L.",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, app)
			defer cancel()

			st, err := app.Engine.Status(ctx)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(st)
			}

			output.Bold("%s %s", st.Symbol, st.Timeframe)
			output.KV("Mode", st.Mode)
			kill := st.KillSwitch != nil && st.KillSwitch.Enabled
			if kill {
				output.KV("Kill switch", output.Red(FormatOnOff(true))+" since "+FormatDateTime(st.KillSwitch.At))
			} else {
				output.KV("Kill switch", FormatOnOff(false))
			}
			output.KV("Day P&L", output.Signed(st.Performance.DayPnLPct, utils.FormatFraction(st.Performance.DayPnLPct)))
			output.KV("Week P&L", output.Signed(st.Performance.WeekPnLPct, utils.FormatFraction(st.Performance.WeekPnLPct)))
			output.KV("Executions", st.Executions)

			output.Println()
			if st.Pending != nil {
				output.Bold("Pending order")
				printOrder(output, st.Pending)
			} else {
				output.Dim("No pending order")
			}

			output.Println()
			if st.Position != nil {
				output.Bold("Open position")
				printPosition(output, st.Position)
				if st.ArmedExit != nil {
					output.KV("Armed exit", fmt.Sprintf("%s at %s for %s",
						st.ArmedExit.Type, FormatPrice(st.ArmedExit.Target), FormatPercentOf(st.ArmedExit.Percent)))
				}
			} else {
				output.Dim("No open position")
			}
			return nil
		},
	}
}

func newKillCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "kill <on|off>",
		Short: "Enable or disable the kill switch",
		Long: `While the kill switch is on, evaluate refuses to propose new orders.
Existing positions and armed exits are unaffected.`,
		Example: `  signal-trader kill on
  signal-trader kill off`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, app)
			defer cancel()

			var on bool
			switch strings.ToLower(args[0]) {
			case "on", "enable":
				on = true
			case "off", "disable":
				on = false
			default:
				return errors.NewValidationError("state", args[0], "must be on or off")
			}

			ks, err := app.Engine.SetKillSwitch(ctx, on)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"kill_switch": on, "record": ks})
			}
			if on {
				output.Warning("KILL_SWITCH_ON")
			} else {
				output.Success("KILL_SWITCH_OFF")
			}
			return nil
		},
	}
}

func newExecutionsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "executions",
		Short: "List paper executions",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, app)
			defer cancel()

			limit, _ := cmd.Flags().GetInt("limit")
			execs, err := app.Store.GetExecutions(ctx, limit)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(execs)
			}
			if len(execs) == 0 {
				output.Dim("No executions")
				return nil
			}

			rows := make([][]string, 0, len(execs))
			for _, e := range execs {
				rows = append(rows, []string{
					FormatDateTime(e.ExecutedAt),
					e.Symbol,
					FormatSide(e.Side),
					FormatPrice(e.EntrySignal),
					FormatPrice(e.EntryFill),
					fmt.Sprintf("%.1f", e.SlippageBps),
					utils.FormatUSD(e.SizeUSD),
					TruncateString(e.Setup, 28),
				})
			}
			return output.Table([]string{"Time", "Symbol", "Side", "Signal", "Fill", "Bps", "Size", "Setup"}, rows)
		},
	}
	cmd.Flags().Int("limit", 20, "maximum records to show")
	return cmd
}

func newEvaluationsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluations",
		Short: "List recent evaluation verdicts",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, app)
			defer cancel()

			limit, _ := cmd.Flags().GetInt("limit")
			setups, _ := cmd.Flags().GetBool("setups")
			filter := store.EvaluationFilter{Symbol: app.Config.Trading.Symbol, Limit: limit}
			if setups {
				filter.Status = models.StatusSetup
			}

			evals, err := app.Store.GetEvaluations(ctx, filter)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(evals)
			}
			if len(evals) == 0 {
				output.Dim("No evaluations recorded")
				return nil
			}

			rows := make([][]string, 0, len(evals))
			for _, e := range evals {
				pending := ""
				if e.PendingMade {
					pending = "pending"
				}
				rows = append(rows, []string{
					FormatDateTime(e.Timestamp),
					e.Timeframe,
					string(e.Status),
					pending,
					TruncateString(e.Reason, 48),
				})
			}
			return output.Table([]string{"Time", "TF", "Status", "Order", "Reason"}, rows)
		},
	}
	cmd.Flags().Int("limit", 20, "maximum records to show")
	cmd.Flags().Bool("setups", false, "only show qualifying setups")
	return cmd
}
