package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/invoice-pricer/internal/document"
	"github.com/rezonia/invoice-pricer/internal/logger"
	"github.com/rezonia/invoice-pricer/internal/model"
)

var (
	outputFile string
	ratesFile  string
	timeout    time.Duration
)

var priceCmd = &cobra.Command{
	Use:   "price <file.json>",
	Short: "Price an invoice document",
	Long: `Price an invoice document described as JSON and print the derived
line amounts and totals.

Input shape:
  {
    "currency": "USD",
    "tax_mode": "NORMAL",
    "price_mode": "TAX_EXCLUSIVE",
    "lines": [
      {"item_code": "A-1", "quantity": "10", "unit_price": "100", "vat_rate": "18", "discount_rate": "0"}
    ]
  }

Use "-" to read from stdin. Rates are fetched from the active source
unless --rates points to a JSON array of quotes.

Examples:
  invoice-pricer price invoice.json
  invoice-pricer price invoice.json --rates rates.json -f table
  cat invoice.json | invoice-pricer price - -o priced.json`,
	Args: cobra.ExactArgs(1),
	RunE: runPrice,
}

func init() {
	rootCmd.AddCommand(priceCmd)

	priceCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	priceCmd.Flags().StringVar(&ratesFile, "rates", "", "JSON file with rate quotes instead of a live fetch")
	priceCmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Rate fetch timeout")
}

func runPrice(cmd *cobra.Command, args []string) error {
	req, err := readRequest(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	catalog, err := newCatalog(ratesFile, logger.WithComponent("catalog"))
	if err != nil {
		return err
	}
	if needsRates(req) {
		if _, err := catalog.Refresh(ctx, cfg.RateSource); err != nil {
			return fmt.Errorf("failed to load %s rates: %w", cfg.RateSource, err)
		}
	}

	state, err := document.Build(cfg.HomeCurrency, req, catalog.Table())
	if err != nil {
		return fmt.Errorf("failed to price document: %w", err)
	}
	printVerbose("Priced %d lines in %s\n", len(state.Document.Lines), state.Document.Currency)

	return outputDocument(state.Document)
}

func readRequest(path string) (document.Request, error) {
	var req document.Request

	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return req, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return req, fmt.Errorf("failed to parse document: %w", err)
	}
	if len(req.Lines) == 0 {
		return req, model.ErrNoLines
	}
	return req, nil
}

// needsRates reports whether any currency in req differs from home
func needsRates(req document.Request) bool {
	if req.Currency != "" && model.NormalizeCurrency(string(req.Currency)) != cfg.HomeCurrency {
		return true
	}
	for _, l := range req.Lines {
		if l.Currency != "" && model.NormalizeCurrency(string(l.Currency)) != cfg.HomeCurrency {
			return true
		}
	}
	return false
}

func outputDocument(doc model.Document) error {
	var writer io.Writer = os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		writer = f
	}

	switch outputFormat {
	case "json":
		return outputJSON(writer, doc)
	case "table":
		return outputTable(writer, doc)
	default:
		return fmt.Errorf("unsupported output format: %s", outputFormat)
	}
}

func outputJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func outputTable(w io.Writer, doc model.Document) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Currency: %s\tTax mode: %s\tPrice mode: %s\n\n", doc.Currency, doc.TaxMode, doc.PriceMode)

	fmt.Fprintln(tw, "ITEM\tQTY\tUNIT PRICE\tVAT%\tDISC%\tTOTAL\tDISCOUNT\tSUBTOTAL\tVAT\tNET\tHOME")
	fmt.Fprintln(tw, "----\t---\t----------\t----\t-----\t-----\t--------\t--------\t---\t---\t----")
	for _, l := range doc.Lines {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			l.ItemCode,
			l.Quantity.String(),
			l.UnitPrice.String(),
			l.EffectiveVATRate.String(),
			l.DiscountRate.String(),
			l.TotalAmount.StringFixed(2),
			l.DiscountAmount.StringFixed(2),
			l.SubtotalAmount.StringFixed(2),
			l.VATAmount.StringFixed(2),
			l.NetAmount.StringFixed(2),
			nullString(l.HomeCurrencyEquivalent.Valid, l.HomeCurrencyEquivalent.Decimal.StringFixed(2)),
		)
	}

	t := doc.Totals
	fmt.Fprintf(tw, "TOTAL\t\t\t\t\t%s\t%s\t%s\t%s\t%s\t%s\n",
		t.TotalAmount.StringFixed(2),
		t.DiscountAmount.StringFixed(2),
		t.SubtotalAmount.StringFixed(2),
		t.VATAmount.StringFixed(2),
		t.NetAmount.StringFixed(2),
		nullString(t.HomeCurrencyEquivalentTotal.Valid, t.HomeCurrencyEquivalentTotal.Decimal.StringFixed(2)),
	)

	if len(t.VATBreakdown) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "VAT%\tBASE\tVAT")
		for _, g := range t.VATBreakdown {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", g.Rate.String(), g.Base.StringFixed(2), g.VAT.StringFixed(2))
		}
	}

	if doc.RateIssue != nil {
		fmt.Fprintf(tw, "\nWARNING: %v\n", doc.RateIssue)
	}
	return tw.Flush()
}

func nullString(valid bool, s string) string {
	if !valid {
		return "-"
	}
	return s
}
