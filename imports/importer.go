package imports

import (
	"context"
	"errors"

	"bitbucket.org/mmdatafocus/clients_backend/models"
	"bitbucket.org/mmdatafocus/clients_backend/utils"
	"github.com/sirupsen/logrus"
)

var (
	// ErrorEmptyFile rejects uploads without at least one header row and one data row.
	ErrorEmptyFile = errors.New("file must contain a header row and at least one data row")
	// ErrorBlockingIssues means pipeline validation failed; no row was touched.
	ErrorBlockingIssues = errors.New("import blocked by validation errors")
)

// Ledger is the batch ledger surface the importer writes its one entry to.
// models.BatchLedger is the gorm implementation; tests substitute a fake.
type Ledger interface {
	RecordBatch(ctx context.Context, batch *models.ImportBatch) error
}

// Importer runs the full ingestion pipeline: header inference, pipeline
// validation, row normalization, reconciliation, and the single ledger write.
type Importer struct {
	Store  Store
	Ledger Ledger
	Cache  MappingCache
	Logger *logrus.Logger
}

// RunInput is one upload. Rows is the raw grid, headers first. Mapping, when
// non-nil, is the operator's override of inference; Defaults supplies values
// for unmapped fields.
type RunInput struct {
	FileName string
	Rows     [][]string
	Mapping  ColumnMapping
	Defaults Defaults
}

// RunResult is returned for successful runs and for runs blocked by
// validation (Batch is nil in the blocked case). The caller always sees
// counts and the full issue list, never just a success flag.
type RunResult struct {
	Batch       *models.ImportBatch `json:"batch"`
	Mapping     ColumnMapping       `json:"mapping"`
	Fingerprint string              `json:"fingerprint"`
	Counts      Counts              `json:"counts"`
	Issues      []RowIssue          `json:"issues"`
}

// Preview is the mapping step shown to the operator before commit.
type Preview struct {
	Mapping     ColumnMapping `json:"mapping"`
	Fingerprint string        `json:"fingerprint"`
	FromCache   bool          `json:"from_cache"`
	Issues      []RowIssue    `json:"issues"`
	SampleRows  [][]string    `json:"sample_rows"`
}

const previewSampleSize = 5

// resolveMapping prefers, in order: the operator's override, a cached
// mapping whose fingerprint matches this upload exactly, fresh inference.
func (imp *Importer) resolveMapping(ctx context.Context, businessId string, headers []string, override ColumnMapping) (ColumnMapping, string, bool) {
	fingerprint := Fingerprint(headers)
	if override != nil {
		return override, fingerprint, false
	}
	if imp.Cache != nil {
		cached, ok, err := imp.Cache.Get(ctx, businessId, fingerprint)
		if err != nil && imp.Logger != nil {
			logWarn(imp.Logger, "mapping cache read failed", err)
		}
		if ok {
			return cached, fingerprint, true
		}
	}
	return InferMapping(headers), fingerprint, false
}

// Preview infers (or recalls) the mapping and reports pipeline issues plus a
// few sample rows, without touching any client record.
func (imp *Importer) Preview(ctx context.Context, rows [][]string, defaults Defaults) (*Preview, error) {
	if len(rows) < 2 {
		return nil, ErrorEmptyFile
	}
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	headers := rows[0]
	mapping, fingerprint, fromCache := imp.resolveMapping(ctx, businessId, headers, nil)

	issues := mapping.Validate(len(headers))
	issues = append(issues, ValidatePipeline(mapping, defaults)...)

	sample := rows[1:]
	if len(sample) > previewSampleSize {
		sample = sample[:previewSampleSize]
	}

	return &Preview{
		Mapping:     mapping,
		Fingerprint: fingerprint,
		FromCache:   fromCache,
		Issues:      issues,
		SampleRows:  sample,
	}, nil
}

// Run ingests one upload end to end. The run is synchronous and serialized;
// the ledger entry is written once, after every row outcome is known, so a
// crash mid-run leaves no ledger entry and no reversible batch.
func (imp *Importer) Run(ctx context.Context, input RunInput) (*RunResult, error) {
	if len(input.Rows) < 2 {
		return nil, ErrorEmptyFile
	}
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	headers := input.Rows[0]
	mapping, fingerprint, _ := imp.resolveMapping(ctx, businessId, headers, input.Mapping)

	result := &RunResult{Mapping: mapping, Fingerprint: fingerprint}
	result.Issues = mapping.Validate(len(headers))
	result.Issues = append(result.Issues, ValidatePipeline(mapping, input.Defaults)...)
	if HasBlocking(result.Issues) {
		return result, ErrorBlockingIssues
	}

	// Normalize every row up front; normalization is pure, so issues here
	// are complete before the first write happens.
	var normalized []NormalizedRow
	for i, row := range input.Rows[1:] {
		rowNum := i + 2 // 1-based, headers are row 1
		res := NormalizeRow(rowNum, row, mapping, input.Defaults)
		result.Issues = append(result.Issues, res.Issues...)
		if res.Skipped {
			result.Counts.Skipped++
			continue
		}
		normalized = append(normalized, NormalizedRow{Row: rowNum, Client: res.Client})
	}

	// The batch id is minted before any row is written so creations can
	// carry provenance; the ledger row itself is still written last. A crash
	// between here and RecordBatch leaves orphaned provenance tags but no
	// ledger entry, so nothing is reversible as a unit (accepted gap).
	batchId := models.NewImportBatchId()
	counts, issues := (&Reconciler{Store: imp.Store, Logger: imp.Logger}).Apply(ctx, businessId, batchId, normalized)
	result.Counts.Created = counts.Created
	result.Counts.Updated = counts.Updated
	result.Counts.Errors = counts.Errors
	result.Issues = append(result.Issues, issues...)

	batch := &models.ImportBatch{
		ID:           batchId,
		BusinessId:   businessId,
		FileName:     input.FileName,
		Status:       models.ImportBatchStatusCompleted,
		CreatedCount: result.Counts.Created,
		UpdatedCount: result.Counts.Updated,
		SkippedCount: result.Counts.Skipped,
		ErrorCount:   result.Counts.Errors,
	}
	if err := imp.Ledger.RecordBatch(ctx, batch); err != nil {
		return result, err
	}
	result.Batch = batch

	if imp.Cache != nil {
		if err := imp.Cache.Save(ctx, businessId, fingerprint, mapping); err != nil && imp.Logger != nil {
			logWarn(imp.Logger, "mapping cache write failed", err)
		}
	}

	return result, nil
}

func logWarn(logger *logrus.Logger, msg string, err error) {
	logger.WithFields(logrus.Fields{"module": "importer.go"}).Warn(msg + ": " + err.Error())
}
