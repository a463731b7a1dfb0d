package main

import (
	"fmt"
	"os"

	"github.com/rezonia/invoice-pricer/cmd/invoice-pricer/cmd"
	"github.com/rezonia/invoice-pricer/internal/config"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
