package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/invoice-pricer/internal/currency"
	"github.com/rezonia/invoice-pricer/internal/document"
	"github.com/rezonia/invoice-pricer/internal/logger"
	"github.com/rezonia/invoice-pricer/internal/model"
	"github.com/rezonia/invoice-pricer/internal/server"
)

var (
	serverAddr   string
	serverDebug  bool
	readTimeout  time.Duration
	writeTimeout time.Duration
	productsFile string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP API server holding one editable invoice document.

Rates are refreshed on start, every RATE_REFRESH_INTERVAL, and whenever the
document currency or rate source changes.

The API provides endpoints for:
  - GET  /api/v1/rates             - Current rate table
  - POST /api/v1/rates/refresh     - Refresh rates now
  - POST /api/v1/price             - Price a whole document in one call
  - GET  /api/v1/document          - Current document
  - POST /api/v1/document/actions  - Apply an action to the document
  - POST /api/v1/document/stage    - Stage a catalogue item
  - POST /api/v1/document/submit   - Submission payload
  - GET  /health                   - Health check

Examples:
  # Start server on default port
  invoice-pricer serve

  # Start with a product price list
  invoice-pricer serve --products products.json

  # Start in debug mode
  invoice-pricer serve --debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverAddr, "address", ":8080", "Server listen address")
	serveCmd.Flags().BoolVar(&serverDebug, "debug", false, "Enable debug mode")
	serveCmd.Flags().DurationVar(&readTimeout, "read-timeout", 30*time.Second, "HTTP read timeout")
	serveCmd.Flags().DurationVar(&writeTimeout, "write-timeout", time.Minute, "HTTP write timeout")
	serveCmd.Flags().StringVar(&productsFile, "products", "", "JSON file with the product price list")
	serveCmd.Flags().StringVar(&ratesFile, "rates", "", "JSON file with rate quotes for the active source")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalog, err := newCatalog(ratesFile, logger.WithComponent("catalog"))
	if err != nil {
		return err
	}
	refresher := currency.NewRefresher(catalog, cfg.RateSource, cfg.RefreshInterval, logger.WithComponent("refresher"))

	lookup, err := loadProducts(productsFile)
	if err != nil {
		return err
	}

	session := document.NewSession(cfg.HomeCurrency, catalog.Table(),
		document.WithLogger(logger.WithComponent("session")),
		document.WithLookup(lookup),
		document.WithCurrencyChangeHook(func(model.CurrencyCode) { refresher.Trigger() }),
	)
	catalog.Subscribe(session.OnRates)

	srv := server.NewServer(&server.Config{
		Address:      serverAddr,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		Debug:        serverDebug,
		Logger:       logger.WithComponent("server"),
	}, session, catalog, refresher)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = refresher.Run(ctx)
	}()

	fmt.Printf("Starting server on %s (home %s, rates from %s)\n", serverAddr, cfg.HomeCurrency, cfg.RateSource)
	err = srv.Run(ctx)
	stop()
	wg.Wait()

	if err != nil {
		return err
	}
	fmt.Println("\nServer stopped")
	return nil
}

func loadProducts(path string) (*document.StaticLookup, error) {
	lookup := document.NewStaticLookup()
	if path == "" {
		return lookup, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read products file: %w", err)
	}
	var products []document.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("failed to parse products file %s: %w", path, err)
	}
	for _, p := range products {
		if p.ItemCode == "" {
			return nil, errors.New("product without item_code in products file")
		}
		p.Currency = model.NormalizeCurrency(string(p.Currency))
		lookup.Put(p)
	}
	printVerbose("Loaded %d products\n", len(products))
	return lookup, nil
}
