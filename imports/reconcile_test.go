package imports_test

import (
	"context"
	"testing"

	"bitbucket.org/mmdatafocus/clients_backend/imports"
	"bitbucket.org/mmdatafocus/clients_backend/models"
)

const testBusinessId = "b7f9a2ce-0000-0000-0000-000000000001"

func row(rowNum int, c *models.Client) imports.NormalizedRow {
	return imports.NormalizedRow{Row: rowNum, Client: c}
}

func TestApplyCreatesAndTagsNewClients(t *testing.T) {
	store := &fakeStore{}
	r := &imports.Reconciler{Store: store}

	counts, issues := r.Apply(context.Background(), testBusinessId, "batch-1", []imports.NormalizedRow{
		row(2, &models.Client{FirstName: "Ann", LastName: "Lee", Phone: "555-111-0001"}),
		row(3, &models.Client{FirstName: "Bob", LastName: "Ray", Email: "bob@example.test"}),
	})

	if counts.Created != 2 || counts.Updated != 0 || counts.Errors != 0 {
		t.Fatalf("counts = %+v, want 2 created", counts)
	}
	if len(issues) != 0 {
		t.Errorf("unexpected issues: %v", issues)
	}
	for _, c := range store.clients {
		if c.BusinessId != testBusinessId {
			t.Errorf("client %d business = %q", c.ID, c.BusinessId)
		}
		if c.SourceBatchId == nil || *c.SourceBatchId != "batch-1" {
			t.Errorf("client %d missing batch provenance", c.ID)
		}
		if c.Status != models.ClientStatusActive {
			t.Errorf("client %d status = %q, want active default", c.ID, c.Status)
		}
	}
}

func TestApplyMatchesPhoneAcrossFormatting(t *testing.T) {
	store := &fakeStore{}
	store.Create(context.Background(), &models.Client{
		BusinessId: testBusinessId,
		FirstName:  "Ann", LastName: "Lee",
		Phone: "555-111-2222",
		Notes: "prefers evening calls",
	})

	r := &imports.Reconciler{Store: store}
	counts, _ := r.Apply(context.Background(), testBusinessId, "batch-2", []imports.NormalizedRow{
		row(2, &models.Client{FirstName: "Ann", LastName: "Lee", Phone: "(555) 111-2222", Carrier: "Acme Mutual"}),
	})

	if counts.Created != 0 || counts.Updated != 1 {
		t.Fatalf("counts = %+v, want 1 updated and 0 created", counts)
	}
	if len(store.clients) != 1 {
		t.Fatalf("store has %d clients, formatting variants must not duplicate", len(store.clients))
	}
	got := store.clients[0]
	if got.Carrier != "Acme Mutual" {
		t.Errorf("carrier = %q, want the merged value", got.Carrier)
	}
	if got.Notes != "prefers evening calls" {
		t.Errorf("notes = %q, an omitted field must not erase existing data", got.Notes)
	}
	if got.SourceBatchId != nil {
		t.Error("update must not stamp the updating batch onto an existing client")
	}
}

func TestApplyPhoneWinsOverEmail(t *testing.T) {
	store := &fakeStore{}
	store.Create(context.Background(), &models.Client{
		BusinessId: testBusinessId, FirstName: "ByPhone", LastName: "Match", Phone: "555-111-3333",
	})
	store.Create(context.Background(), &models.Client{
		BusinessId: testBusinessId, FirstName: "ByEmail", LastName: "Match", Email: "shared@example.test",
	})

	r := &imports.Reconciler{Store: store}
	counts, _ := r.Apply(context.Background(), testBusinessId, "batch-3", []imports.NormalizedRow{
		row(2, &models.Client{FirstName: "Incoming", LastName: "Row",
			Phone: "555-111-3333", Email: "shared@example.test", Plan: "Gold"}),
	})

	if counts.Updated != 1 || counts.Created != 0 {
		t.Fatalf("counts = %+v, want exactly one update", counts)
	}
	phoneMatch := store.byPhone("5551113333")
	if phoneMatch == nil || phoneMatch.Plan != "Gold" {
		t.Error("the phone match should receive the merge, not the email match")
	}
	for _, c := range store.clients {
		if c.FirstName == "ByEmail" && c.Plan != "" {
			t.Error("the email match must be left untouched when phone resolves first")
		}
	}
}

func TestApplyFallsBackToEmailWhenPhoneUnmatched(t *testing.T) {
	store := &fakeStore{}
	store.Create(context.Background(), &models.Client{
		BusinessId: testBusinessId, FirstName: "Ann", LastName: "Lee", Email: "ann@example.test",
	})

	r := &imports.Reconciler{Store: store}
	counts, _ := r.Apply(context.Background(), testBusinessId, "batch-4", []imports.NormalizedRow{
		row(2, &models.Client{FirstName: "Ann", LastName: "Lee",
			Phone: "555-111-9999", Email: "Ann@Example.Test", City: "Austin"}),
	})

	if counts.Updated != 1 || counts.Created != 0 {
		t.Fatalf("counts = %+v, want the email fallback to update", counts)
	}
	if store.clients[0].City != "Austin" {
		t.Error("email fallback should merge into the existing record")
	}
}

func TestApplyRejectsRowsWithoutIdentity(t *testing.T) {
	store := &fakeStore{}
	r := &imports.Reconciler{Store: store}

	counts, issues := r.Apply(context.Background(), testBusinessId, "batch-5", []imports.NormalizedRow{
		row(2, &models.Client{FirstName: "No", LastName: "Identity"}),
		row(3, &models.Client{FirstName: "Ann", LastName: "Lee", Phone: "555-111-0001"}),
	})

	if counts.Errors != 1 || counts.Created != 1 {
		t.Fatalf("counts = %+v, want 1 error and 1 created", counts)
	}
	if len(issues) != 1 || issues[0].Row != 2 || issues[0].Severity != imports.SeverityError {
		t.Errorf("issues = %v, want one error on row 2", issues)
	}
}

func TestApplyContinuesPastRowFailures(t *testing.T) {
	store := &fakeStore{failCreateFor: "555-111-0666"}
	r := &imports.Reconciler{Store: store}

	counts, issues := r.Apply(context.Background(), testBusinessId, "batch-6", []imports.NormalizedRow{
		row(2, &models.Client{FirstName: "Ann", LastName: "Lee", Phone: "555-111-0001"}),
		row(3, &models.Client{FirstName: "Bad", LastName: "Row", Phone: "555-111-0666"}),
		row(4, &models.Client{FirstName: "Bob", LastName: "Ray", Phone: "555-111-0002"}),
	})

	if counts.Created != 2 || counts.Errors != 1 {
		t.Fatalf("counts = %+v, want the run to continue past the failure", counts)
	}
	if len(issues) != 1 || issues[0].Row != 3 {
		t.Errorf("issues = %v, want one error on row 3", issues)
	}
}

func TestApplyMergePreservesIdentityOfExistingRecord(t *testing.T) {
	store := &fakeStore{}
	batchOld := "batch-old"
	store.Create(context.Background(), &models.Client{
		BusinessId: testBusinessId, FirstName: "Ann", LastName: "Lee",
		Phone: "555-111-0001", SourceBatchId: &batchOld,
	})
	origID := store.clients[0].ID

	r := &imports.Reconciler{Store: store}
	r.Apply(context.Background(), testBusinessId, "batch-new", []imports.NormalizedRow{
		row(2, &models.Client{FirstName: "Anne", LastName: "Lee", Phone: "555-111-0001"}),
	})

	got := store.clients[0]
	if got.ID != origID {
		t.Errorf("id changed from %d to %d on update", origID, got.ID)
	}
	if got.SourceBatchId == nil || *got.SourceBatchId != batchOld {
		t.Error("update changed batch provenance")
	}
	if got.FirstName != "Anne" {
		t.Errorf("firstName = %q, want the merged value", got.FirstName)
	}
}
