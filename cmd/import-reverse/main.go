package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/clients_backend/config"
	"bitbucket.org/mmdatafocus/clients_backend/models"
	"bitbucket.org/mmdatafocus/clients_backend/utils"
)

// Ops tool: reverse an import batch outside the HTTP surface. Deletes only
// the records the batch created; records it updated are never touched.
func main() {
	businessID := flag.String("business-id", "", "Required: business id (uuid)")
	batchID := flag.String("batch-id", "", "Required: import_batches.id to reverse")
	dryRun := flag.Bool("dry-run", true, "Show batch only (no writes)")
	confirm := flag.String("confirm", "", "Type REVERSE to proceed when dry-run=false")
	flag.Parse()

	if strings.TrimSpace(*businessID) == "" || strings.TrimSpace(*batchID) == "" {
		fmt.Fprintln(os.Stderr, "--business-id and --batch-id are required")
		os.Exit(1)
	}
	if !*dryRun && strings.TrimSpace(*confirm) != "REVERSE" {
		fmt.Fprintln(os.Stderr, "set --confirm=REVERSE to proceed")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	ctx := utils.SetBusinessIdInContext(context.Background(), *businessID)
	ctx = utils.SetUserNameInContext(ctx, "ops:import-reverse")

	if *dryRun {
		printBatch(ctx, *businessID, *batchID)
		return
	}

	batch, err := models.ReverseImportBatch(ctx, *batchID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reverse failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("import batch reversed: id=%s removed=%d\n", batch.ID, utils.DereferencePtr(batch.ReversedCount, 0))
}

func printBatch(ctx context.Context, businessID string, batchID string) {
	batch, err := models.BatchLedger{}.GetBatch(ctx, businessID, batchID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "not found: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("id=%s file=%s status=%s created=%d updated=%d skipped=%d errors=%d created_at=%s\n",
		batch.ID, batch.FileName, batch.Status, batch.CreatedCount, batch.UpdatedCount,
		batch.SkippedCount, batch.ErrorCount, batch.CreatedAt.Format("2006-01-02 15:04:05"))
}
