package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/clients_backend/config"
	"bitbucket.org/mmdatafocus/clients_backend/imports"
	"bitbucket.org/mmdatafocus/clients_backend/models"
	"bitbucket.org/mmdatafocus/clients_backend/utils"
	"github.com/google/uuid"
)

// Regression: reversing an import batch must delete ONLY the clients that
// batch created. Clients the batch merely updated keep their pre-import
// identity, and a batch can be reversed exactly once.
func TestImportReversal_RemovesOnlyCreatedClients(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "clients_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	businessID := uuid.NewString()
	ctx = utils.SetBusinessIdInContext(ctx, businessID)
	ctx = utils.SetUserNameInContext(ctx, "Test")

	store := models.ClientStore{}

	// Pre-existing client the import will update, not create.
	existing := &models.Client{
		BusinessId: businessID,
		FirstName:  "Alice",
		LastName:   "Smith",
		Phone:      "555-111-0001",
		Notes:      "long-time client",
	}
	if err := store.Create(ctx, existing); err != nil {
		t.Fatalf("seed client: %v", err)
	}

	importer := &imports.Importer{
		Store:  store,
		Ledger: models.BatchLedger{},
		Cache:  imports.RedisMappingCache{},
		Logger: config.GetLogger(),
	}

	result, err := importer.Run(ctx, imports.RunInput{
		FileName: "book.csv",
		Rows: [][]string{
			{"First", "Last", "Cell Phone"},
			{"Bob", "Jones", "555-111-0002"},
			{"Carol", "White", "555-111-0003"},
			{"Alice", "Smyth", "(555) 111-0001"},
			{"Dan", "Brown", "555-111-0004"},
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Counts.Created != 3 || result.Counts.Updated != 1 || result.Counts.Errors != 0 {
		t.Fatalf("counts = %+v, want 3 created / 1 updated", result.Counts)
	}
	batchID := result.Batch.ID

	// The formatted phone merged into the seeded client.
	updated, err := store.FindByPhone(ctx, businessID, "5551110001")
	if err != nil || updated == nil {
		t.Fatalf("FindByPhone after import: %v (client=%v)", err, updated)
	}
	if updated.ID != existing.ID {
		t.Fatalf("import created a duplicate for the formatted phone: id %d vs %d", updated.ID, existing.ID)
	}
	if updated.LastName != "Smyth" || updated.Notes != "long-time client" {
		t.Fatalf("merge lost data: lastName=%q notes=%q", updated.LastName, updated.Notes)
	}

	ledgered, err := models.BatchLedger{}.GetBatch(ctx, businessID, batchID)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if ledgered.Status != models.ImportBatchStatusCompleted || ledgered.CreatedCount != 3 {
		t.Fatalf("ledger entry = %+v, want completed with created=3", ledgered)
	}

	reversed, err := models.ReverseImportBatch(ctx, batchID)
	if err != nil {
		t.Fatalf("ReverseImportBatch: %v", err)
	}
	if reversed.Status != models.ImportBatchStatusReversed {
		t.Fatalf("batch status = %q after reversal", reversed.Status)
	}
	if utils.DereferencePtr(reversed.ReversedCount, -1) != 3 {
		t.Fatalf("reversed count = %v, want exactly the 3 created clients", reversed.ReversedCount)
	}

	// The updated client survives; every created one is gone.
	survivor, err := store.FindByPhone(ctx, businessID, "5551110001")
	if err != nil || survivor == nil {
		t.Fatalf("updated client should survive reversal: %v (client=%v)", err, survivor)
	}
	for _, phone := range []string{"5551110002", "5551110003", "5551110004"} {
		gone, err := store.FindByPhone(ctx, businessID, phone)
		if err != nil {
			t.Fatalf("FindByPhone(%s): %v", phone, err)
		}
		if gone != nil {
			t.Fatalf("client %s should have been removed by reversal", phone)
		}
	}

	// Reversal is single-use.
	if _, err := models.ReverseImportBatch(ctx, batchID); !errors.Is(err, utils.ErrorBatchConflict) {
		t.Fatalf("second reversal: err = %v, want ErrorBatchConflict", err)
	}

	// Unknown batch ids are a clean not-found, not a silent no-op.
	if _, err := models.ReverseImportBatch(ctx, uuid.NewString()); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("unknown batch: err = %v, want ErrorRecordNotFound", err)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("clients-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("clients-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=clients_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
