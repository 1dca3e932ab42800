package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"nifty-signals/internal/logging"
	"nifty-signals/internal/models"
	"nifty-signals/pkg/marketclock"
)

// addStrategyCommands adds the strategy lifecycle commands.
func addStrategyCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newStrategyCmd(app))
	rootCmd.AddCommand(newRunCmd(app))
}

func newStrategyCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "strategy",
		Short: "Opening-range credit-spread strategy",
	}

	cmd.AddCommand(newStrategyStatusCmd(app))
	cmd.AddCommand(newStrategyHistoryCmd(app))
	cmd.AddCommand(newStrategyTickCmd(app))
	cmd.AddCommand(newStrategyTimelineCmd(app))
	return cmd
}

func newStrategyStatusCmd(app *App) *cobra.Command {
	var underlyingFlag string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show today's strategy state",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireStore(app); err != nil {
				return err
			}
			output := NewOutput(cmd)

			underlying, err := parseUnderlying(underlyingFlag)
			if err != nil {
				return err
			}

			status, err := app.Manager.Status(cmd.Context(), underlying)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(status)
			}

			output.Bold("%s Strategy Status — %s", underlying, FormatDateTime(status.LastUpdated))
			output.Printf("  Market: %s   Entry window: %v\n",
				output.MarketStatus(app.Sessions.MarketStatus(status.LastUpdated)), status.InEntryWindow)
			output.Printf("  Trades today: %d/%d\n", status.TodayTradeCount, status.MaxTradesPerDay)

			if status.Range != nil {
				output.Printf("  Opening range: %.2f - %.2f (size %.2f)\n",
					status.Range.Low, status.Range.High, status.Range.Size())
			} else {
				output.Dim("  No opening range captured")
			}
			if status.CurrentPrice > 0 {
				output.Printf("  Current price: %.2f (as of %s)\n",
					status.CurrentPrice, FormatTime(status.PriceTimestamp))
			}

			if exec := status.ActiveExecution; exec != nil {
				output.Println()
				output.Bold("Active Position")
				printExecution(output, exec)
			} else {
				output.Dim("  No active position")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&underlyingFlag, "underlying", "u", "NIFTY", "underlying index")
	return cmd
}

func newStrategyHistoryCmd(app *App) *cobra.Command {
	var underlyingFlag, dateFlag string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the execution timeline for a trading day",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireStore(app); err != nil {
				return err
			}
			output := NewOutput(cmd)

			underlying, err := parseUnderlying(underlyingFlag)
			if err != nil {
				return err
			}

			date := app.Clock.Now()
			if dateFlag != "" {
				date, err = time.ParseInLocation("2006-01-02", dateFlag, marketclock.IndiaLocation)
				if err != nil {
					return fmt.Errorf("invalid date %q (use YYYY-MM-DD)", dateFlag)
				}
			}

			history, err := app.Manager.History(cmd.Context(), underlying, date)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(history)
			}

			output.Bold("%s Executions — %s", underlying, FormatDate(date))
			output.Printf("  Total: %d   Active: %d   Closed: %d\n\n",
				history.TotalRecords, history.ActiveTrades, history.ClosedTrades)

			if history.TotalRecords == 0 {
				output.Dim("  No executions")
				return nil
			}

			table := NewTable(output, "TIME", "TRIGGER", "SPREAD", "STATUS", "P&L", "P&L %")
			for _, e := range history.Executions {
				spread := fmt.Sprintf("%s/%s %s",
					FormatStrike(e.SellStrike), FormatStrike(e.BuyStrike), e.OptionType)
				status := string(e.Status)
				if e.Status == models.TradeClosed {
					status = output.DimText(status)
				}
				table.AddRow(FormatTime(e.Timestamp), string(e.TriggerType), spread, status,
					output.FormatPnLColored(e.CurrentPnl), output.FormatPercentColored(e.PnlPercentage))
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&underlyingFlag, "underlying", "u", "NIFTY", "underlying index")
	cmd.Flags().StringVar(&dateFlag, "date", "", "trading date (YYYY-MM-DD, default today)")
	return cmd
}

func newStrategyTickCmd(app *App) *cobra.Command {
	var underlyingFlag string

	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run one lifecycle evaluation",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireStore(app); err != nil {
				return err
			}
			output := NewOutput(cmd)

			underlying, err := parseUnderlying(underlyingFlag)
			if err != nil {
				return err
			}

			result := app.Manager.Tick(cmd.Context(), underlying)
			logging.LogTick(app.Logger, string(underlying), string(result.Action), result.Message)

			if output.IsJSON() {
				return output.JSON(result)
			}
			printTickResult(output, result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&underlyingFlag, "underlying", "u", "NIFTY", "underlying index")
	return cmd
}

func newStrategyTimelineCmd(app *App) *cobra.Command {
	var entryID int64

	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Show the monitoring ticks for one entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireStore(app); err != nil {
				return err
			}
			output := NewOutput(cmd)

			if entryID <= 0 {
				return fmt.Errorf("--entry is required")
			}

			ticks, err := app.Manager.Timeline(cmd.Context(), entryID)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(ticks)
			}

			if len(ticks) == 0 {
				output.Dim("No ticks for entry %d", entryID)
				return nil
			}

			table := NewTable(output, "TIME", "PRICE", "SELL LTP", "BUY LTP", "P&L", "P&L %", "")
			for _, t := range ticks {
				marker := ""
				if t.Closing {
					marker = output.Yellow("close")
				}
				table.AddRow(FormatTime(t.Timestamp), fmt.Sprintf("%.2f", t.NiftyPrice),
					fmt.Sprintf("%.2f", t.SellLtp), fmt.Sprintf("%.2f", t.BuyLtp),
					output.FormatPnLColored(t.TotalPnl), output.FormatPercentColored(t.PnlPercentage), marker)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().Int64Var(&entryID, "entry", 0, "strategy entry ID")
	return cmd
}

func newRunCmd(app *App) *cobra.Command {
	var interval time.Duration
	var underlyingFlag string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the strategy loop",
		Long:  "Invokes a lifecycle tick once per interval during market hours until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireStore(app); err != nil {
				return err
			}
			output := NewOutput(cmd)

			underlying, err := parseUnderlying(underlyingFlag)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			output.Info("Running %s strategy loop every %s (Ctrl-C to stop)", underlying, interval)

			runOnce := func() {
				tickCtx, cancel := context.WithTimeout(ctx, interval)
				defer cancel()
				result := app.Manager.Tick(tickCtx, underlying)
				logging.LogTick(app.Logger, string(underlying), string(result.Action), result.Message)
				printTickResult(output, result)
			}

			runOnce()
			for {
				select {
				case <-ticker.C:
					runOnce()
				case <-sigCh:
					output.Println()
					output.Info("Stopped")
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", time.Minute, "tick interval")
	cmd.Flags().StringVarP(&underlyingFlag, "underlying", "u", "NIFTY", "underlying index")
	return cmd
}

func printTickResult(output *Output, result models.TickResult) {
	switch result.Action {
	case models.ActionNewTrade:
		output.Success("[%s] %s", result.Action, result.Message)
	case models.ActionTradeClosed:
		output.Warning("[%s] %s", result.Action, result.Message)
	case models.ActionError:
		output.Error("[%s] %s", result.Action, result.Message)
	default:
		output.Printf("[%s] %s\n", result.Action, result.Message)
	}
}

func printExecution(output *Output, e *models.StrategyExecution) {
	output.Printf("  Trigger:  %s @ %.2f range [%.2f, %.2f]\n",
		e.TriggerType, e.CurrentPrice, e.RangeLow, e.RangeHigh)
	output.Printf("  Spread:   sell %s / buy %s %s (%d qty)\n",
		FormatStrike(e.SellStrike), FormatStrike(e.BuyStrike), e.OptionType, e.TotalQuantity)
	output.Printf("  Premium:  entry %.2f, now %.2f\n", e.NetPremiumEntry, e.NetPremiumCurrent)
	output.Printf("  Capital:  %s\n", FormatIndianCurrency(e.CapitalUsed))
	output.Printf("  P&L:      %s (%s)\n",
		output.FormatPnLColored(e.CurrentPnl), output.FormatPercentColored(e.PnlPercentage))
}
