package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"nifty-signals/internal/models"
)

// addSignalCommands adds the market signal and OI analysis commands.
func addSignalCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newSignalCmd(app))
	rootCmd.AddCommand(newOICmd(app))
	rootCmd.AddCommand(newStocksCmd(app))
}

func requireStore(app *App) error {
	if app.Store == nil {
		return fmt.Errorf("store unavailable, check database path")
	}
	return nil
}

func parseUnderlying(s string) (models.Underlying, error) {
	switch strings.ToUpper(s) {
	case "", "NIFTY":
		return models.UnderlyingNifty, nil
	case "BANKNIFTY":
		return models.UnderlyingBankNifty, nil
	default:
		return "", fmt.Errorf("unknown underlying %q (use NIFTY or BANKNIFTY)", s)
	}
}

func newSignalCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "signal",
		Short: "Compute the composite market signal",
		Long:  "Combines index moves, OI trends, and stock influence into one bounded signal score.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireStore(app); err != nil {
				return err
			}
			output := NewOutput(cmd)

			result := app.Scorer.ComputeSignal(cmd.Context(), app.Clock.Now())
			if output.IsJSON() {
				return output.JSON(result)
			}

			output.Bold("Market Signal — %s", FormatDateTime(result.AsOf))
			output.Printf("  Score: %s  Label: %s\n\n",
				FormatSignalScore(result.Score), output.SignalLabel(result.Label))

			table := NewTable(output, "FACTOR", "INPUT", "SCORE", "AVAILABLE")
			for _, f := range result.Breakdown.Factors() {
				avail := "yes"
				if !f.Available {
					avail = output.DimText("no")
				}
				table.AddRow(f.Name, fmt.Sprintf("%.2f", f.Input),
					output.FormatPercentColored(f.Score), avail)
			}
			table.Render()
			return nil
		},
	}
}

func newOICmd(app *App) *cobra.Command {
	var underlyingFlag string
	var moversLimit int

	cmd := &cobra.Command{
		Use:   "oi",
		Short: "Analyze option-chain open-interest trends",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireStore(app); err != nil {
				return err
			}
			output := NewOutput(cmd)

			underlying, err := parseUnderlying(underlyingFlag)
			if err != nil {
				return err
			}

			analysis := app.OI.AnalyzeOIChange(cmd.Context(), underlying, app.Clock.Now())
			if output.IsJSON() {
				return output.JSON(analysis)
			}

			output.Bold("%s OI Trend — %s", underlying, FormatDateTime(analysis.AsOf))
			output.Printf("  CE OI: %s   PE OI: %s   PCR: %s\n",
				FormatOI(analysis.CETotal), FormatOI(analysis.PETotal), FormatPCR(analysis.PCR))
			output.Printf("  CE Δ%%: %s   PE Δ%%: %s   Net: %s\n",
				FormatPercent(analysis.CEChangePercent), FormatPercent(analysis.PEChangePercent),
				FormatPercent(analysis.NetChangePercent))
			output.Printf("  Score: %d (%s)   Samples: %d\n",
				analysis.Score, analysis.Dominant, analysis.SampleSize)
			output.Info("  %s", analysis.Interpretation)

			movers := app.OI.TopMovers(cmd.Context(), underlying, moversLimit)
			if len(movers.CEIncreases)+len(movers.PEIncreases) > 0 {
				output.Println()
				output.Bold("Top OI Movers")
				table := NewTable(output, "SIDE", "STRIKE", "OI", "OI CHANGE", "LTP")
				for _, r := range movers.CEIncreases {
					table.AddRow("CE", FormatStrike(r.Strike), FormatOI(r.CEOi),
						output.Green(fmt.Sprintf("+%d", r.CEOiChange)), fmt.Sprintf("%.2f", r.CELtp))
				}
				for _, r := range movers.CEDecreases {
					table.AddRow("CE", FormatStrike(r.Strike), FormatOI(r.CEOi),
						output.Red(fmt.Sprintf("%d", r.CEOiChange)), fmt.Sprintf("%.2f", r.CELtp))
				}
				for _, r := range movers.PEIncreases {
					table.AddRow("PE", FormatStrike(r.Strike), FormatOI(r.PEOi),
						output.Green(fmt.Sprintf("+%d", r.PEOiChange)), fmt.Sprintf("%.2f", r.PELtp))
				}
				for _, r := range movers.PEDecreases {
					table.AddRow("PE", FormatStrike(r.Strike), FormatOI(r.PEOi),
						output.Red(fmt.Sprintf("%d", r.PEOiChange)), fmt.Sprintf("%.2f", r.PELtp))
				}
				table.Render()
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&underlyingFlag, "underlying", "u", "NIFTY", "underlying index (NIFTY or BANKNIFTY)")
	cmd.Flags().IntVar(&moversLimit, "movers", 5, "number of top movers per side")
	return cmd
}

func newStocksCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stocks",
		Short: "Show index constituent influence",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireStore(app); err != nil {
				return err
			}
			output := NewOutput(cmd)

			now := app.Clock.Now()
			summary, err := app.Scorer.StockInfluence(cmd.Context(), now)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(summary)
			}

			output.Bold("Index Stock Influence — %s", FormatDate(now))
			output.Printf("  Net: %s   (+%.3f / %.3f)\n",
				output.FormatPercentColored(summary.NetInfluence),
				summary.PositiveInfluence, summary.NegativeInfluence)
			output.Printf("  Gainers: %d   Losers: %d   Unchanged: %d   Total: %d\n",
				summary.Gainers, summary.Losers, summary.Unchanged, summary.TotalStocks)
			return nil
		},
	}
}
