package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"signal-trader/internal/errors"
	"signal-trader/internal/models"
)

// addPositionCommands adds commands that manage the open position.
func addPositionCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newArmExitCmd(app))
	rootCmd.AddCommand(newCloseCmd(app))
	rootCmd.AddCommand(newMonitorCmd(app))
}

// parsePercent reads an optional percent argument, defaulting to 100.
func parsePercent(args []string, idx int) (float64, error) {
	if len(args) <= idx {
		return 100, nil
	}
	pct, err := strconv.ParseFloat(strings.TrimSuffix(args[idx], "%"), 64)
	if err != nil || pct <= 0 || pct > 100 {
		return 0, errors.NewValidationError("percent", args[idx], "must be a number in (0, 100]")
	}
	return pct, nil
}

func newArmExitCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "arm-exit <tp|sl> [percent]",
		Short: "Arm a take-profit or stop-loss on the open position",
		Long: `Arm a conditional exit at the position's TP1 (tp) or stop (sl) for a share of
the initial size (default 100). If the current price already satisfies the
trigger the close happens immediately instead of arming.`,
		Example: `  signal-trader arm-exit tp 40
  signal-trader arm-exit sl`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, app)
			defer cancel()

			t := models.ExitType(strings.ToLower(args[0]))
			if !t.Valid() {
				return errors.NewValidationError("type", args[0], "must be tp or sl")
			}
			pct, err := parsePercent(args, 1)
			if err != nil {
				return err
			}

			res, err := app.Engine.ArmExit(ctx, t, pct)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(res)
			}

			if res.Triggered {
				output.Info("EXIT_TRIGGERED_IMMEDIATELY")
				printClose(output, res.Close)
				return nil
			}
			output.Success("EXIT_ARMED")
			printExit(output, res.Exit, res.Price)
			return nil
		},
	}
}

func newCloseCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "close <now|price> [percent]",
		Short: "Close the open position manually",
		Long: `Close a share of the initial size (default 100) at the current market price
('now') or at an explicit price. A share larger than what is still open
closes the remainder.`,
		Example: `  signal-trader close now
  signal-trader close 104250.5 40`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, app)
			defer cancel()

			var price float64
			if !strings.EqualFold(args[0], "now") {
				p, err := strconv.ParseFloat(args[0], 64)
				if err != nil || p <= 0 {
					return errors.NewValidationError("price", args[0], "must be 'now' or a positive number")
				}
				price = p
			}
			pct, err := parsePercent(args, 1)
			if err != nil {
				return err
			}

			res, err := app.Engine.Close(ctx, price, pct)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(res)
			}
			printClose(output, res)
			return nil
		},
	}
}

func newMonitorCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Check the armed exit once against the current price",
		Long: `Re-evaluate the armed exit against the latest price and close when it
triggers. Run it from a scheduler; each run checks exactly once.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, app)
			defer cancel()

			res, err := app.Engine.Monitor(ctx)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(res)
			}

			switch {
			case res.Triggered:
				output.Info("ARMED_EXIT_TRIGGERED")
				printClose(output, res.Close)
			case res.Exit == nil:
				output.Dim("NO_ARMED_EXIT")
			default:
				output.Printf("ARMED_EXIT_WAITING\n")
				printExit(output, res.Exit, res.Price)
			}
			return nil
		},
	}
}

func printExit(output *Output, exit *models.ArmedExit, current float64) {
	output.KV("Type", exit.Type)
	output.KV("Target", FormatPrice(exit.Target))
	output.KV("Current", FormatPrice(current))
	output.KV("Percent", FormatPercentOf(exit.Percent))
	if exit.Target > 0 {
		output.KV("Distance", fmt.Sprintf("%.2f%%", (exit.Target-current)/current*100))
	}
}
