package handler

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/FacundoTogliefoso/transaction-log/internal/models"
	"github.com/FacundoTogliefoso/transaction-log/internal/store"
	"github.com/FacundoTogliefoso/transaction-log/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

var exportHeaders = []string{"id", "date", "type", "description", "amount", "completed", "created"}

type ExportHandler struct {
	Txs *store.Transactions
}

func NewExportHandler(txs *store.Transactions) *ExportHandler {
	return &ExportHandler{Txs: txs}
}

// Export writes the caller's whole ledger as csv (default) or xlsx.
func (h *ExportHandler) Export(c *gin.Context) {
	claims, ok := caller(c)
	if !ok {
		return
	}

	owner := claims.UserID
	if id := c.Query("owner_id"); id != "" && id != owner {
		if !claims.Role.Can(models.ViewAllTransactions) {
			util.Error(c, http.StatusUnauthorized, util.CodeAuth, msgNoPermission)
			return
		}
		owner = id
	}

	format := c.DefaultQuery("format", "csv")
	if format != "csv" && format != "xlsx" {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "format must be csv or xlsx")
		return
	}

	txs, err := h.Txs.ListForExport(c.Request.Context(), owner)
	if err != nil {
		storeError(c, err, "transaction")
		return
	}

	filename := fmt.Sprintf("transactions_%s.%s", time.Now().Format("20060102"), format)
	if format == "xlsx" {
		h.writeXLSX(c, txs, filename)
		return
	}
	h.writeCSV(c, txs, filename)
}

func exportRow(t *models.Transaction) []string {
	return []string{
		t.ID,
		t.Date,
		string(t.Type),
		t.Description,
		t.Amount.StringFixed(2),
		strconv.FormatBool(t.Completed),
		time.Unix(t.Created, 0).UTC().Format(time.RFC3339),
	}
}

func (h *ExportHandler) writeCSV(c *gin.Context, txs []models.Transaction, filename string) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)

	if err := writeCSVRows(c.Writer, txs); err != nil {
		// headers are gone already, the client sees a truncated file
		log.Printf("csv export: %v", err)
	}
}

func writeCSVRows(out io.Writer, txs []models.Transaction) error {
	w := csv.NewWriter(out)
	if err := w.Write(exportHeaders); err != nil {
		return err
	}
	for i := range txs {
		if err := w.Write(exportRow(&txs[i])); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func (h *ExportHandler) writeXLSX(c *gin.Context, txs []models.Transaction, filename string) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Transactions"
	index, err := f.NewSheet(sheet)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "could not create sheet")
		return
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	for i, title := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, title)
	}
	for r := range txs {
		t := &txs[r]
		row := r + 2
		amount, _ := t.Amount.Float64()
		values := []any{t.ID, t.Date, string(t.Type), t.Description, amount, t.Completed,
			time.Unix(t.Created, 0).UTC().Format(time.RFC3339)}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 38)
	_ = f.SetColWidth(sheet, "B", "C", 12)
	_ = f.SetColWidth(sheet, "D", "D", 30)
	_ = f.SetColWidth(sheet, "E", "F", 12)
	_ = f.SetColWidth(sheet, "G", "G", 22)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := f.Write(c.Writer); err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "export failed")
	}
}
