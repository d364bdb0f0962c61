package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"bitbucket.org/mmdatafocus/clients_backend/config"
	"bitbucket.org/mmdatafocus/clients_backend/imports"
	"bitbucket.org/mmdatafocus/clients_backend/models"
	"bitbucket.org/mmdatafocus/clients_backend/utils"
)

// Ops tool: ingest a local spreadsheet directly, bypassing the HTTP surface.
// Useful for large backfills and for re-running a file after fixing headers.
func main() {
	businessID := flag.String("business-id", "", "Required: business id (uuid)")
	filePath := flag.String("file", "", "Required: path to .xlsx or .csv file")
	defaultCarrier := flag.String("default-carrier", "", "Carrier applied to rows without one")
	dryRun := flag.Bool("dry-run", true, "Preview mapping and issues only (no writes)")
	confirm := flag.String("confirm", "", "Type IMPORT to proceed when dry-run=false")
	flag.Parse()

	if strings.TrimSpace(*businessID) == "" || strings.TrimSpace(*filePath) == "" {
		fmt.Fprintln(os.Stderr, "--business-id and --file are required")
		os.Exit(1)
	}
	if !*dryRun && strings.TrimSpace(*confirm) != "IMPORT" {
		fmt.Fprintln(os.Stderr, "set --confirm=IMPORT to proceed")
		os.Exit(1)
	}

	f, err := os.Open(*filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	rows, err := imports.ParseUpload(*filePath, f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse file: %v\n", err)
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	models.MigrateTable()

	ctx := utils.SetBusinessIdInContext(context.Background(), *businessID)
	ctx = utils.SetUserNameInContext(ctx, "ops:import-file")

	defaults := imports.Defaults{}
	if *defaultCarrier != "" {
		defaults[imports.FieldCarrier] = *defaultCarrier
	}

	importer := &imports.Importer{
		Store:  models.ClientStore{},
		Ledger: models.BatchLedger{},
		Cache:  imports.RedisMappingCache{},
		Logger: config.GetLogger(),
	}

	if *dryRun {
		preview, err := importer.Preview(ctx, rows, defaults)
		if err != nil {
			fmt.Fprintf(os.Stderr, "preview failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("fingerprint=%s from_cache=%v\n", preview.Fingerprint, preview.FromCache)
		for field, col := range preview.Mapping {
			fmt.Printf("  %-14s <- column %d\n", field, col)
		}
		for _, issue := range preview.Issues {
			fmt.Printf("  [%s] row=%d %s\n", issue.Severity, issue.Row, issue.Message)
		}
		return
	}

	result, err := importer.Run(ctx, imports.RunInput{
		FileName: filepath.Base(*filePath),
		Rows:     rows,
		Defaults: defaults,
	})
	if err != nil {
		if result != nil {
			for _, issue := range result.Issues {
				fmt.Fprintf(os.Stderr, "  [%s] row=%d %s\n", issue.Severity, issue.Row, issue.Message)
			}
		}
		fmt.Fprintf(os.Stderr, "import failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("batch=%s created=%d updated=%d skipped=%d errors=%d\n",
		result.Batch.ID, result.Counts.Created, result.Counts.Updated, result.Counts.Skipped, result.Counts.Errors)
	for _, issue := range result.Issues {
		fmt.Printf("  [%s] row=%d %s\n", issue.Severity, issue.Row, issue.Message)
	}
}
