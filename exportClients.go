package main

import (
	"fmt"
	"net/http"
	"time"

	"bitbucket.org/mmdatafocus/clients_backend/config"
	"bitbucket.org/mmdatafocus/clients_backend/models"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// exportClientsHandler serializes the full client record set back to the
// same tabular shape imports consume.
func exportClientsHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		clients, err := models.ListClients(c.Request.Context())
		if err != nil {
			config.LogError(logger, "exportClients.go", "exportClientsHandler", "ListClients", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not export clients"})
			return
		}

		f := excelize.NewFile()
		defer f.Close()
		sheet := f.GetSheetName(0)

		headers := []string{"First Name", "Last Name", "Phone", "Email", "Effective Date",
			"Carrier", "Plan", "Plan Type", "Status", "Date of Birth",
			"Street", "City", "State", "Zip", "Notes"}
		for col, h := range headers {
			cell, _ := excelize.CoordinatesToCellName(col+1, 1)
			f.SetCellValue(sheet, cell, h)
		}

		for i, cl := range clients {
			values := []interface{}{
				cl.FirstName, cl.LastName, cl.Phone, cl.Email, formatDate(cl.EffectiveDate),
				cl.Carrier, cl.Plan, cl.PlanType, string(cl.Status), formatDate(cl.DateOfBirth),
				cl.Street, cl.City, cl.State, cl.Zip, cl.Notes,
			}
			for col, v := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
				f.SetCellValue(sheet, cell, v)
			}
		}

		fileName := fmt.Sprintf("clients-%s.xlsx", time.Now().UTC().Format("2006-01-02"))
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename="+fileName)
		if err := f.Write(c.Writer); err != nil {
			config.LogError(logger, "exportClients.go", "exportClientsHandler", "Write workbook", nil, err)
		}
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
