package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/invoice-pricer/internal/logger"
	"github.com/rezonia/invoice-pricer/internal/model"
)

var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Fetch and print the current rate table",
	Long: `Fetch the latest exchange rates from the active source and print them
relative to the home currency.

Examples:
  invoice-pricer rates
  invoice-pricer rates --source FREE_MARKET --free-market-url https://example.com/rates -f table`,
	RunE: runRates,
}

func init() {
	rootCmd.AddCommand(ratesCmd)

	ratesCmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Rate fetch timeout")
}

func runRates(cmd *cobra.Command, args []string) error {
	catalog, err := newCatalog("", logger.WithComponent("catalog"))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	table, err := catalog.Refresh(ctx, cfg.RateSource)
	if err != nil {
		return fmt.Errorf("failed to fetch %s rates: %w", cfg.RateSource, err)
	}
	printVerbose("Fetched %d rates from %s\n", len(table.Rates), table.Source)

	switch outputFormat {
	case "json":
		return outputJSON(os.Stdout, table)
	case "table":
		return outputRateTable(os.Stdout, table)
	default:
		return fmt.Errorf("unsupported output format: %s", outputFormat)
	}
}

func outputRateTable(w io.Writer, table *model.RateTable) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Source: %s\tHome: %s\tFetched: %s\n\n", table.Source, table.Home, table.FetchedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintln(tw, "CURRENCY\tBUYING\tSELLING")
	fmt.Fprintln(tw, "--------\t------\t-------")
	for _, code := range table.Currencies() {
		rate, ok := table.Rates[code]
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", code, rate.Buying.String(), rate.Selling.String())
	}
	return tw.Flush()
}
