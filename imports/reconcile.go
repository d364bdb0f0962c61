package imports

import (
	"context"
	"strconv"

	"bitbucket.org/mmdatafocus/clients_backend/models"
	"bitbucket.org/mmdatafocus/clients_backend/utils"
	"github.com/sirupsen/logrus"
)

// Store is the persistence surface the reconciliation engine writes through.
// models.ClientStore is the gorm implementation; tests substitute a fake.
type Store interface {
	FindByPhone(ctx context.Context, businessId string, normalizedPhone string) (*models.Client, error)
	FindByEmail(ctx context.Context, businessId string, normalizedEmail string) (*models.Client, error)
	Create(ctx context.Context, client *models.Client) error
	Update(ctx context.Context, client *models.Client) error
	DeleteByBatch(ctx context.Context, businessId string, batchId string) (int64, error)
}

type Counts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// Reconciler resolves each normalized row to an existing client or a new
// one. Identity resolution is ordered: phone first, then email; getting the
// order wrong changes which of two conflicting existing records a row merges
// into, so the order is part of the contract.
type Reconciler struct {
	Store  Store
	Logger *logrus.Logger
}

// Apply upserts every row against the store and aggregates the outcome.
// Rows are processed sequentially: rows in one file are independent, but the
// lookup-then-write on a shared identity key is a check-then-act race, so
// the whole run is serialized per batch. A failure on one row never aborts
// the rest; it is tallied and the run continues.
func (r *Reconciler) Apply(ctx context.Context, businessId string, batchId string, rows []NormalizedRow) (Counts, []RowIssue) {
	var counts Counts
	var issues []RowIssue

	for _, row := range rows {
		client := row.Client
		phone := utils.NormalizePhone(client.Phone)
		email := utils.NormalizeEmail(client.Email)

		if phone == "" && email == "" {
			// The batch was already disqualified if NO rows carry an
			// identity key; an individual row missing both while its
			// siblings have them is still rejected on its own.
			counts.Errors++
			issues = append(issues, RowIssue{Row: row.Row, Severity: SeverityError,
				Message: "row has neither phone nor email; cannot be reconciled"})
			continue
		}

		existing, err := r.lookup(ctx, businessId, phone, email)
		if err != nil {
			counts.Errors++
			issues = append(issues, RowIssue{Row: row.Row, Severity: SeverityError,
				Message: "identity lookup failed: " + err.Error()})
			continue
		}

		if existing != nil {
			mergeClient(existing, client)
			if err := r.Store.Update(ctx, existing); err != nil {
				counts.Errors++
				issues = append(issues, RowIssue{Row: row.Row, Severity: SeverityError,
					Message: "update failed for client " + strconv.Itoa(existing.ID) + ": " + err.Error()})
				continue
			}
			counts.Updated++
			continue
		}

		client.BusinessId = businessId
		client.SourceBatchId = &batchId
		if client.Status == "" {
			client.Status = models.ClientStatusActive
		}
		if err := r.Store.Create(ctx, client); err != nil {
			counts.Errors++
			issues = append(issues, RowIssue{Row: row.Row, Severity: SeverityError,
				Message: "create failed: " + err.Error()})
			continue
		}
		counts.Created++
	}

	if r.Logger != nil {
		r.Logger.WithFields(logrus.Fields{
			"module":      "reconcile.go",
			"business_id": businessId,
			"batch_id":    batchId,
			"created":     counts.Created,
			"updated":     counts.Updated,
			"errors":      counts.Errors,
		}).Info("reconciliation complete")
	}

	return counts, issues
}

// lookup applies the documented identity priority: exact normalized-phone
// match first, then exact case-insensitive email match.
func (r *Reconciler) lookup(ctx context.Context, businessId string, phone string, email string) (*models.Client, error) {
	if phone != "" {
		existing, err := r.Store.FindByPhone(ctx, businessId, phone)
		if err != nil || existing != nil {
			return existing, err
		}
	}
	if email != "" {
		return r.Store.FindByEmail(ctx, businessId, email)
	}
	return nil, nil
}

// mergeClient overlays every non-empty incoming field onto the existing
// record. A field the spreadsheet omitted never erases existing data, and
// the existing id and sourceBatchId survive: an update never changes batch
// provenance.
func mergeClient(existing *models.Client, incoming *models.Client) {
	if incoming.FirstName != "" {
		existing.FirstName = incoming.FirstName
	}
	if incoming.LastName != "" {
		existing.LastName = incoming.LastName
	}
	if incoming.Phone != "" {
		existing.Phone = incoming.Phone
	}
	if incoming.Email != "" {
		existing.Email = incoming.Email
	}
	if incoming.EffectiveDate != nil {
		existing.EffectiveDate = incoming.EffectiveDate
	}
	if incoming.DateOfBirth != nil {
		existing.DateOfBirth = incoming.DateOfBirth
	}
	if incoming.Carrier != "" {
		existing.Carrier = incoming.Carrier
	}
	if incoming.Plan != "" {
		existing.Plan = incoming.Plan
	}
	if incoming.PlanType != "" {
		existing.PlanType = incoming.PlanType
	}
	if incoming.Status != "" {
		existing.Status = incoming.Status
	}
	if incoming.Street != "" {
		existing.Street = incoming.Street
	}
	if incoming.City != "" {
		existing.City = incoming.City
	}
	if incoming.State != "" {
		existing.State = incoming.State
	}
	if incoming.Zip != "" {
		existing.Zip = incoming.Zip
	}
	if incoming.Notes != "" {
		existing.Notes = incoming.Notes
	}
}
