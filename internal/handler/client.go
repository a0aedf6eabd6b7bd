package handler

import (
	"net/http"
	"strings"

	"github.com/FacundoTogliefoso/transaction-log/internal/models"
	"github.com/FacundoTogliefoso/transaction-log/internal/query"
	"github.com/FacundoTogliefoso/transaction-log/internal/store"
	"github.com/FacundoTogliefoso/transaction-log/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ClientHandler serves the client bookkeeping records under /clients.
type ClientHandler struct {
	Clients *store.Clients
	Limits  query.Limits
}

func NewClientHandler(clients *store.Clients, limits query.Limits) *ClientHandler {
	return &ClientHandler{Clients: clients, Limits: limits}
}

type createClientReq struct {
	Name         string               `json:"name"`
	Lastname     string               `json:"lastname"`
	Balance      decimal.Decimal      `json:"balance"`
	Transactions []models.ClientEntry `json:"transactions"`
	Expenses     *models.ClientEntry  `json:"expenses"`
}

func (h *ClientHandler) Create(c *gin.Context) {
	var req createClientReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid client payload")
		return
	}

	client := &models.Client{
		Name:         strings.TrimSpace(req.Name),
		Lastname:     strings.TrimSpace(req.Lastname),
		Balance:      req.Balance,
		Transactions: req.Transactions,
		Expenses:     req.Expenses,
	}
	if client.Transactions == nil {
		client.Transactions = []models.ClientEntry{}
	}
	if err := h.Clients.Save(c.Request.Context(), client); err != nil {
		storeError(c, err, "client")
		return
	}
	util.Success(c, client)
}

// List pages through the clients with the same envelope as the ledger.
func (h *ClientHandler) List(c *gin.Context) {
	p, err := query.ParseParams(c.Request.URL.Query(), h.Limits)
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}

	page := p.Page()
	// only the columns a client has
	switch p.OrderBy {
	case "created_asc", "created_desc", "id_asc", "id_desc":
	default:
		page.Order = ""
	}

	clients, total, err := h.Clients.List(c.Request.Context(), page)
	if err != nil {
		storeError(c, err, "client")
		return
	}
	util.Success(c, query.NewEnvelope(clients, total, p.PageNumber, p.PageSize))
}

func (h *ClientHandler) Show(c *gin.Context) {
	client, err := h.Clients.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		storeError(c, err, "client "+c.Param("id"))
		return
	}
	util.Success(c, client)
}

// Update applies a partial update; the id is never changed.
func (h *ClientHandler) Update(c *gin.Context) {
	var patch models.ClientUpdate
	if err := c.ShouldBindJSON(&patch); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid client payload")
		return
	}

	ctx := c.Request.Context()
	client, err := h.Clients.Get(ctx, c.Param("id"))
	if err != nil {
		storeError(c, err, "client "+c.Param("id"))
		return
	}
	if !patch.Merge(client) {
		util.Success(c, client)
		return
	}
	if err := h.Clients.Save(ctx, client); err != nil {
		storeError(c, err, "client")
		return
	}
	util.Success(c, client)
}

func (h *ClientHandler) Delete(c *gin.Context) {
	if err := h.Clients.Delete(c.Request.Context(), c.Param("id")); err != nil {
		storeError(c, err, "client "+c.Param("id"))
		return
	}
	util.Success(c, true)
}
