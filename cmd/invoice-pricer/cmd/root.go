package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rezonia/invoice-pricer/internal/config"
	"github.com/rezonia/invoice-pricer/internal/logger"
)

var (
	version = "1.0.0"

	// Global flags
	verbose        bool
	outputFormat   string
	homeCurrency   string
	rateSource     string
	centralBankURL string
	freeMarketURL  string
	logLevel       string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "invoice-pricer",
	Short: "Price invoice lines across currencies and tax modes",
	Long: `Invoice Pricer derives line amounts and document totals for invoices
priced in any currency, with tax-inclusive or tax-exclusive unit prices and
an optional tax-exempt mode.

Exchange rates are read from the central bank daily bulletin or a free
market JSON feed and pivot through the home currency.

Examples:
  # Price a document using live central bank rates
  invoice-pricer price invoice.json

  # Price with rates from a file and print a table
  invoice-pricer price invoice.json --rates rates.json -f table

  # Show the current rate table
  invoice-pricer rates --source FREE_MARKET --free-market-url https://example.com/rates

  # Start the HTTP API
  invoice-pricer serve --address :8080`,
	Version:           version,
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "json", "Output format (json, table)")
	rootCmd.PersistentFlags().StringVar(&homeCurrency, "home-currency", "", "Home currency used as conversion pivot (env: HOME_CURRENCY)")
	rootCmd.PersistentFlags().StringVar(&rateSource, "source", "", "Rate source: CENTRAL_BANK or FREE_MARKET (env: RATE_SOURCE)")
	rootCmd.PersistentFlags().StringVar(&centralBankURL, "central-bank-url", "", "Central bank bulletin URL (env: CENTRAL_BANK_URL)")
	rootCmd.PersistentFlags().StringVar(&freeMarketURL, "free-market-url", "", "Free market rates URL (env: FREE_MARKET_URL)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (env: LOG_LEVEL)")
}

// loadConfig reads the environment, then lets explicit flags win
func loadConfig(cmd *cobra.Command, args []string) error {
	// Flags are applied before validation so that e.g. --source FREE_MARKET
	// with --free-market-url is accepted without env vars.
	applyFlagEnv()

	loaded, err := config.Load()
	if err != nil {
		return err
	}
	if verbose && logLevel == "" {
		loaded.LogLevel = "debug"
	}
	if err := logger.Setup(loaded.GetLoggerConfig()); err != nil {
		return err
	}

	cfg = loaded
	printVerbose("Home currency: %s, rate source: %s\n", cfg.HomeCurrency, cfg.RateSource)
	return nil
}

func applyFlagEnv() {
	overrides := map[string]string{
		"HOME_CURRENCY":    homeCurrency,
		"RATE_SOURCE":      rateSource,
		"CENTRAL_BANK_URL": centralBankURL,
		"FREE_MARKET_URL":  freeMarketURL,
		"LOG_LEVEL":        logLevel,
	}
	for key, value := range overrides {
		if value != "" {
			os.Setenv(key, value)
		}
	}
}

func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}
