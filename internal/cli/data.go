package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"nifty-signals/internal/ingest"
	"nifty-signals/internal/models"
	"nifty-signals/pkg/marketclock"
)

// addDataCommands adds ingestion and expiry admin commands.
func addDataCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newIngestCmd(app))
	rootCmd.AddCommand(newExpiryCmd(app))
}

func newIngestCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest market data snapshots",
	}

	cmd.AddCommand(newIngestPriceCmd(app))
	cmd.AddCommand(newIngestChainCmd(app))
	cmd.AddCommand(newIngestStocksCmd(app))
	return cmd
}

func newIngestPriceCmd(app *App) *cobra.Command {
	var underlyingFlag string
	var price, open, high, low, prevClose, change, changePct float64

	cmd := &cobra.Command{
		Use:   "price",
		Short: "Ingest one index price snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireStore(app); err != nil {
				return err
			}
			output := NewOutput(cmd)

			underlying, err := parseUnderlying(underlyingFlag)
			if err != nil {
				return err
			}

			snap := &models.PriceSnapshot{
				Underlying:    underlying,
				Price:         price,
				Open:          open,
				High:          high,
				Low:           low,
				Close:         prevClose,
				Change:        change,
				ChangePercent: changePct,
			}
			if err := app.Ingestor.IngestPrice(cmd.Context(), snap); err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(snap)
			}
			output.Success("Saved %s price %.2f", underlying, price)
			return nil
		},
	}

	cmd.Flags().StringVarP(&underlyingFlag, "underlying", "u", "NIFTY", "underlying index")
	cmd.Flags().Float64Var(&price, "price", 0, "last traded price (required)")
	cmd.Flags().Float64Var(&open, "open", 0, "bar open")
	cmd.Flags().Float64Var(&high, "high", 0, "bar high")
	cmd.Flags().Float64Var(&low, "low", 0, "bar low")
	cmd.Flags().Float64Var(&prevClose, "close", 0, "previous close")
	cmd.Flags().Float64Var(&change, "change", 0, "absolute change")
	cmd.Flags().Float64Var(&changePct, "change-pct", 0, "percent change")
	cmd.MarkFlagRequired("price")
	return cmd
}

func newIngestChainCmd(app *App) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "chain",
		Short: "Ingest option chain rows from a JSON file",
		Long:  "Reads a JSON array of chain rows and persists them with write-time OI diffing.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireStore(app); err != nil {
				return err
			}
			output := NewOutput(cmd)

			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading %s: %w", file, err)
			}

			var rows []models.OptionChainRow
			if err := json.Unmarshal(data, &rows); err != nil {
				return fmt.Errorf("parsing %s: %w", file, err)
			}

			saved, err := app.Ingestor.IngestChainRows(cmd.Context(), rows)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]int{"saved": saved, "received": len(rows)})
			}
			output.Success("Saved %d/%d chain rows", saved, len(rows))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file of chain rows (required)")
	cmd.MarkFlagRequired("file")
	return cmd
}

func newIngestStocksCmd(app *App) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "stocks",
		Short: "Ingest index constituent quotes from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireStore(app); err != nil {
				return err
			}
			output := NewOutput(cmd)

			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading %s: %w", file, err)
			}

			var quotes []ingest.StockQuote
			if err := json.Unmarshal(data, &quotes); err != nil {
				return fmt.Errorf("parsing %s: %w", file, err)
			}

			if err := app.Ingestor.IngestStockQuotes(cmd.Context(), quotes); err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]int{"saved": len(quotes)})
			}
			output.Success("Saved %d stock quotes", len(quotes))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file of stock quotes (required)")
	cmd.MarkFlagRequired("file")
	return cmd
}

func newExpiryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expiry",
		Short: "Manage option-chain expiry overrides",
	}

	var underlyingFlag string

	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Show the resolved expiry",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireStore(app); err != nil {
				return err
			}
			output := NewOutput(cmd)

			underlying, err := parseUnderlying(underlyingFlag)
			if err != nil {
				return err
			}

			expiry := app.Ingestor.ResolveExpiry(cmd.Context(), underlying)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"underlying": string(underlying),
					"expiry":     expiry.Format("2006-01-02"),
				})
			}
			output.Printf("%s expiry: %s\n", underlying, FormatDate(expiry))
			return nil
		},
	}
	getCmd.Flags().StringVarP(&underlyingFlag, "underlying", "u", "NIFTY", "underlying index")

	var setUnderlying, currentFlag, nextFlag string
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Store an expiry override",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireStore(app); err != nil {
				return err
			}
			output := NewOutput(cmd)

			underlying, err := parseUnderlying(setUnderlying)
			if err != nil {
				return err
			}

			current, err := time.ParseInLocation("2006-01-02", currentFlag, marketclock.IndiaLocation)
			if err != nil {
				return fmt.Errorf("invalid --current %q (use YYYY-MM-DD)", currentFlag)
			}
			var next time.Time
			if nextFlag != "" {
				next, err = time.ParseInLocation("2006-01-02", nextFlag, marketclock.IndiaLocation)
				if err != nil {
					return fmt.Errorf("invalid --next %q (use YYYY-MM-DD)", nextFlag)
				}
			}

			if err := app.Ingestor.SetExpiry(cmd.Context(), underlying, current, next); err != nil {
				return err
			}
			output.Success("Expiry for %s set to %s", underlying, FormatDate(current))
			return nil
		},
	}
	setCmd.Flags().StringVarP(&setUnderlying, "underlying", "u", "NIFTY", "underlying index")
	setCmd.Flags().StringVar(&currentFlag, "current", "", "current expiry date (required)")
	setCmd.Flags().StringVar(&nextFlag, "next", "", "next expiry date")
	setCmd.MarkFlagRequired("current")

	cmd.AddCommand(getCmd)
	cmd.AddCommand(setCmd)
	return cmd
}
