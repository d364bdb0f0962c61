package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"bitbucket.org/mmdatafocus/clients_backend/config"
	"bitbucket.org/mmdatafocus/clients_backend/imports"
	"bitbucket.org/mmdatafocus/clients_backend/models"
	"bitbucket.org/mmdatafocus/clients_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

const maxUploadSizeBytes int64 = 10 * 1024 * 1024

// uploadGrid pulls the spreadsheet out of the multipart form and parses it
// into the raw grid. Optional form fields:
//   - mapping:  JSON object {canonicalField: columnIndex} overriding inference
//   - defaults: JSON object {canonicalField: value} applied to unmapped fields
func uploadGrid(c *gin.Context) (fileName string, rows [][]string, mapping imports.ColumnMapping, defaults imports.Defaults, err error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return "", nil, nil, nil, errors.New("multipart field \"file\" is required")
	}
	if fh.Size > maxUploadSizeBytes {
		return "", nil, nil, nil, errors.New("file size exceeds 10MB limit")
	}
	f, err := fh.Open()
	if err != nil {
		return "", nil, nil, nil, err
	}
	defer f.Close()

	rows, err = imports.ParseUpload(fh.Filename, f)
	if err != nil {
		return "", nil, nil, nil, err
	}

	if raw := c.PostForm("mapping"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
			return "", nil, nil, nil, errors.New("mapping must be a JSON object of field to column index")
		}
	}
	if raw := c.PostForm("defaults"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &defaults); err != nil {
			return "", nil, nil, nil, errors.New("defaults must be a JSON object of field to value")
		}
	}
	return fh.Filename, rows, mapping, defaults, nil
}

func importPreviewHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, rows, _, defaults, err := uploadGrid(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		preview, err := newImporter(logger).Preview(c.Request.Context(), rows, defaults)
		if err != nil {
			if errors.Is(err, imports.ErrorEmptyFile) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			config.LogError(logger, "importHandlers.go", "importPreviewHandler", "Preview", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "preview failed"})
			return
		}
		c.JSON(http.StatusOK, preview)
	}
}

func importRunHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "import.run")
		defer span.End()

		fileName, rows, mapping, defaults, err := uploadGrid(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		result, err := newImporter(logger).Run(ctx, imports.RunInput{
			FileName: fileName,
			Rows:     rows,
			Mapping:  mapping,
			Defaults: defaults,
		})
		switch {
		case errors.Is(err, imports.ErrorEmptyFile):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, imports.ErrorBlockingIssues):
			// The operator gets the full issue list, not an opaque failure.
			c.JSON(http.StatusUnprocessableEntity, result)
		case err != nil:
			config.LogError(logger, "importHandlers.go", "importRunHandler", "Run", fileName, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "import failed"})
		default:
			c.JSON(http.StatusOK, result)
		}
	}
}

func listBatchesHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, _ := utils.GetBusinessIdFromContext(c.Request.Context())
		batches, err := models.BatchLedger{}.ListBatches(c.Request.Context(), businessId)
		if err != nil {
			config.LogError(logger, "importHandlers.go", "listBatchesHandler", "ListBatches", businessId, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list import batches"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"batches": batches})
	}
}

func reverseBatchHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "import.reverse")
		defer span.End()

		batchId := c.Param("id")
		batch, err := models.ReverseImportBatch(ctx, batchId)
		switch {
		case errors.Is(err, utils.ErrorRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "import batch not found"})
		case errors.Is(err, utils.ErrorBatchConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "import batch already reversed"})
		case err != nil:
			config.LogError(logger, "importHandlers.go", "reverseBatchHandler", "ReverseImportBatch", batchId, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "reversal failed"})
		default:
			c.JSON(http.StatusOK, gin.H{"batch": batch})
		}
	}
}

func batchHistoryHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		businessId, _ := utils.GetBusinessIdFromContext(ctx)
		batchId := c.Param("id")

		if err := utils.ValidateResourceId[models.ImportBatch](ctx, businessId, batchId); err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "import batch not found"})
				return
			}
			config.LogError(logger, "importHandlers.go", "batchHistoryHandler", "ValidateResourceId", batchId, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load history"})
			return
		}

		histories, err := models.ListHistories(ctx, "ImportBatch", batchId)
		if err != nil {
			config.LogError(logger, "importHandlers.go", "batchHistoryHandler", "ListHistories", batchId, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load history"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"histories": histories})
	}
}

func listClientsHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		clients, err := models.ListClients(c.Request.Context())
		if err != nil {
			config.LogError(logger, "importHandlers.go", "listClientsHandler", "ListClients", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list clients"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"clients": clients})
	}
}

func getClientHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var uri struct {
			ID int `uri:"id" binding:"required"`
		}
		if err := c.ShouldBindUri(&uri); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid client id"})
			return
		}
		client, err := models.GetClient(c.Request.Context(), uri.ID)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "client not found"})
				return
			}
			config.LogError(logger, "importHandlers.go", "getClientHandler", "GetClient", uri.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load client"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"client": client})
	}
}
