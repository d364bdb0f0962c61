package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/clients_backend/config"
	"bitbucket.org/mmdatafocus/clients_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ImportBatch is the durable ledger entry for one ingestion run. The id is a
// uuid minted before any row is written, so creations can carry provenance,
// but the ledger row itself is written exactly once, after every row outcome
// is known. Status transitions once: completed -> reversed.
type ImportBatch struct {
	ID            string            `gorm:"primary_key;size:36" json:"id"`
	BusinessId    string            `gorm:"index;not null" json:"business_id" binding:"required"`
	FileName      string            `gorm:"size:255" json:"file_name"`
	Status        ImportBatchStatus `gorm:"type:enum('completed','reversed');not null;default:'completed'" json:"status"`
	CreatedCount  int               `json:"created_count"`
	UpdatedCount  int               `json:"updated_count"`
	SkippedCount  int               `json:"skipped_count"`
	ErrorCount    int               `json:"error_count"`
	ReversedCount *int              `json:"reversed_count"`
	ReversedAt    *time.Time        `json:"reversed_at"`
	CreatedAt     time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

// NewImportBatchId mints the provenance id for a run before its ledger row exists.
func NewImportBatchId() string {
	return uuid.NewString()
}

// BatchLedger is the gorm-backed implementation of the import batch ledger.
type BatchLedger struct{}

// RecordBatch persists the ledger entry and its audit trail in one
// transaction. A crash before this point leaves no ledger row at all.
func (BatchLedger) RecordBatch(ctx context.Context, batch *ImportBatch) error {
	if batch.BusinessId == "" {
		return errors.New("business id is required")
	}
	if batch.ID == "" {
		batch.ID = NewImportBatchId()
	}
	if batch.Status == "" {
		batch.Status = ImportBatchStatusCompleted
	}
	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(batch).Error; err != nil {
			return err
		}
		description := fmt.Sprintf("Imported %q: %d created, %d updated, %d skipped, %d errors.",
			batch.FileName, batch.CreatedCount, batch.UpdatedCount, batch.SkippedCount, batch.ErrorCount)
		return createHistory(tx, "Import", batch.ID, "ImportBatch", nil, batch, description)
	})
}

func (BatchLedger) GetBatch(ctx context.Context, businessId string, id string) (*ImportBatch, error) {
	db := config.GetDB()
	var batch ImportBatch
	err := db.WithContext(ctx).
		Where("business_id = ? AND id = ?", businessId, id).
		First(&batch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &batch, nil
}

// ListBatches returns the ledger most recent first.
func (BatchLedger) ListBatches(ctx context.Context, businessId string) ([]ImportBatch, error) {
	db := config.GetDB()
	var batches []ImportBatch
	err := db.WithContext(ctx).
		Where("business_id = ?", businessId).
		Order("created_at desc, id desc").
		Find(&batches).Error
	return batches, err
}

// ReverseImportBatch deletes exactly the clients the batch created (never the
// ones it merely updated) and marks the batch reversed. Reversing a batch
// that does not exist or was already reversed returns a conflict and deletes
// nothing. A redis lock plus a compare-and-set on status keeps two concurrent
// reversal requests from both succeeding.
func ReverseImportBatch(ctx context.Context, batchId string) (*ImportBatch, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	release, err := utils.BusinessLock(ctx, businessId, "reverse_import", "importBatch.go", "ReverseImportBatch")
	if err != nil {
		return nil, err
	}
	defer release()

	db := config.GetDB()
	var batch ImportBatch
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("business_id = ? AND id = ?", businessId, batchId).
			First(&batch).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		if batch.Status != ImportBatchStatusCompleted {
			return utils.ErrorBatchConflict
		}

		res := tx.
			Where("business_id = ? AND source_batch_id = ?", businessId, batchId).
			Delete(&Client{})
		if res.Error != nil {
			return res.Error
		}
		reversedCount := int(res.RowsAffected)
		now := time.Now().UTC()

		// Compare-and-set on status: if another request slipped past the
		// redis lock, exactly one of them flips completed -> reversed.
		upd := tx.Model(&ImportBatch{}).
			Where("business_id = ? AND id = ? AND status = ?", businessId, batchId, ImportBatchStatusCompleted).
			Updates(map[string]interface{}{
				"status":         ImportBatchStatusReversed,
				"reversed_count": reversedCount,
				"reversed_at":    now,
			})
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return utils.ErrorBatchConflict
		}

		batch.Status = ImportBatchStatusReversed
		batch.ReversedCount = &reversedCount
		batch.ReversedAt = &now

		description := fmt.Sprintf("Reversed import %q: %d created records removed.", batch.FileName, reversedCount)
		return createHistory(tx, "Reverse", batch.ID, "ImportBatch", nil, &batch, description)
	})
	if err != nil {
		return nil, err
	}
	return &batch, nil
}
