// Package main loads pre-known employees from an .xlsx or .csv file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"randomcoffee/internal/app"
	"randomcoffee/internal/config"
	"randomcoffee/internal/logging"
	"randomcoffee/internal/services"
)

func main() {
	path := flag.String("config", config.DefaultPath, "path to the YAML config")
	file := flag.String("file", "", "spreadsheet to import (.xlsx or .csv)")
	flag.Parse()
	if *file == "" {
		log.Fatal("-file is required")
	}

	cfg, err := config.Read(*path)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.New(cfg.LogLevel)
	store, closeStore, err := app.OpenStore(ctx, cfg.Database.DSN, logger)
	if err != nil {
		log.Fatalf("store init: %v", err)
	}
	defer closeStore()

	report, err := services.NewImporter(store, logger).ImportFile(ctx, *file)
	for _, e := range report.Errors {
		fmt.Fprintln(os.Stderr, "skip:", e)
	}
	if err != nil {
		closeStore()
		log.Fatalf("import failed: %v", err)
	}
	fmt.Printf("rows=%d created=%d existing=%d\n", report.Rows, report.Created, report.Existing)
}
