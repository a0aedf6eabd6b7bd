package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/FacundoTogliefoso/transaction-log/internal/ledger"
	"github.com/FacundoTogliefoso/transaction-log/internal/models"
	"github.com/FacundoTogliefoso/transaction-log/internal/query"
	"github.com/FacundoTogliefoso/transaction-log/internal/store"
	"github.com/FacundoTogliefoso/transaction-log/internal/util"

	"github.com/gin-gonic/gin"
)

// TransactionHandler serves batch ingestion and ledger reads.
type TransactionHandler struct {
	Pipeline *ledger.Pipeline
	Txs      *store.Transactions
	// BatchFile is read when a POST carries no uploaded file.
	BatchFile string
	Limits    query.Limits
}

func NewTransactionHandler(p *ledger.Pipeline, txs *store.Transactions, batchFile string, limits query.Limits) *TransactionHandler {
	return &TransactionHandler{Pipeline: p, Txs: txs, BatchFile: batchFile, Limits: limits}
}

// Create ingests a batch for the caller: the multipart "file" upload when
// present, the configured batch file otherwise.
func (h *TransactionHandler) Create(c *gin.Context) {
	claims, ok := caller(c)
	if !ok {
		return
	}

	records, err := h.readBatch(c)
	if err != nil {
		if errors.Is(err, ledger.ErrUnreadableBatch) {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
			return
		}
		log.Printf("read batch: %v", err)
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "could not open the transaction batch")
		return
	}

	// a client hanging up must not cut a batch in half
	ctx := context.WithoutCancel(c.Request.Context())
	sum, err := h.Pipeline.Ingest(ctx, claims.UserID, records)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			util.Error(c, http.StatusNotFound, util.CodeNotFound, "user not found")
			return
		}
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrStaleWrite) {
			// the balance moved under us; what was stored stays, the rest can be resent
			status = http.StatusConflict
		}
		log.Printf("ingest for %s stopped: %v", claims.UserID, err)
		c.JSON(status, gin.H{
			"code":    util.CodeServerErr,
			"message": fmt.Sprintf("%d of %d transactions applied", sum.Stored, sum.Total),
			"summary": sum,
		})
		return
	}

	if sum.Complete() {
		util.Success(c, gin.H{"status": "ok", "message": "All transactions saved correctly", "summary": sum})
		return
	}
	util.Success(c, gin.H{
		"status":  "partial",
		"message": fmt.Sprintf("%d of %d transactions applied", sum.Stored, sum.Total),
		"summary": sum,
	})
}

func (h *TransactionHandler) readBatch(c *gin.Context) ([]ledger.Record, error) {
	var (
		r    io.ReadCloser
		name string
	)
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ledger.ErrUnreadableBatch, err)
		}
		r, name = f, fh.Filename
	} else {
		f, err := os.Open(h.BatchFile)
		if err != nil {
			return nil, err
		}
		r, name = f, h.BatchFile
	}
	defer r.Close()

	return ledger.DecodeBatch(r, ledger.FormatFromName(name))
}

// List pages through the ledger. Callers who may not see every record are
// limited to their own, whatever filter they ask for; admins may narrow to
// one owner with owner_id.
func (h *TransactionHandler) List(c *gin.Context) {
	claims, ok := caller(c)
	if !ok {
		return
	}

	p, err := query.ParseParams(c.Request.URL.Query(), h.Limits)
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}
	owner := scopeFor(c, claims)
	filter, err := p.Filter(owner)
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}

	ctx := c.Request.Context()
	var (
		items []models.Transaction
		total int64
	)
	switch {
	case filter.HasRange || filter.Column != "":
		items, total, err = h.Txs.Search(ctx, filter, p.Page())
	case owner != nil:
		items, total, err = h.Txs.ListByOwner(ctx, *owner, p.Page())
	default:
		items, total, err = h.Txs.ListAll(ctx, p.Page())
	}
	if err != nil {
		storeError(c, err, "transaction")
		return
	}

	util.Success(c, query.NewEnvelope(items, total, p.PageNumber, p.PageSize))
}

func (h *TransactionHandler) Show(c *gin.Context) {
	claims, ok := caller(c)
	if !ok {
		return
	}
	tx, err := h.Txs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		storeError(c, err, "transaction")
		return
	}
	if !claims.Role.Can(models.ViewAllTransactions) && !tx.OwnedBy(claims.UserID) {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, msgNoPermission)
		return
	}
	util.Success(c, tx)
}

// Delete removes one record. The owner's balance is not touched.
func (h *TransactionHandler) Delete(c *gin.Context) {
	if err := h.Txs.Delete(c.Request.Context(), c.Param("id")); err != nil {
		storeError(c, err, "transaction")
		return
	}
	util.Success(c, true)
}

// scopeFor returns the owner a listing is limited to, nil meaning all.
func scopeFor(c *gin.Context, claims *util.Claims) *string {
	if !claims.Role.Can(models.ViewAllTransactions) {
		id := claims.UserID
		return &id
	}
	if id := c.Query("owner_id"); id != "" {
		return &id
	}
	return nil
}
