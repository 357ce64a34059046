// Package api exposes the order, wallet and matching operations over http.
package api

import (
	"strconv"

	"ccspot/pkg/info"
	"ccspot/pkg/ome"
	"ccspot/pkg/order"
	"ccspot/pkg/wallet"
	"ccspot/pkg/xlog"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

var logger = xlog.GetLogger().Named("api")

type Handler struct {
	orders *order.Service
	wallet *wallet.Service
	engine *ome.Engine // nil when matching runs in a separate process
}

func NewHandler(orders *order.Service, w *wallet.Service, engine *ome.Engine) *Handler {
	return &Handler{orders: orders, wallet: w, engine: engine}
}

// NewRouter returns a gin engine serving every route under /api/v1
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	h.RegisterRoutes(&r.RouterGroup)
	return r
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1")
	{
		api.POST("/orders", h.PlaceOrder)
		api.GET("/orders/:id", h.GetOrder)
		api.DELETE("/orders/:id", h.CancelOrder)
		api.GET("/orders/:id/trades", h.GetTrades)
		api.POST("/orders/:id/match", h.MatchOrder)

		api.GET("/info", h.GetInfo)

		api.GET("/balances/:owner", h.GetBalances)
		api.POST("/deposits", h.Deposit)
		api.POST("/withdrawals", h.Withdraw)
		api.POST("/transfers", h.Transfer)
	}
}

type FundsRequest struct {
	Owner  int64           `json:"owner" binding:"required"`
	Asset  string          `json:"asset" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
}

type TransferRequest struct {
	From   int64           `json:"from" binding:"required"`
	To     int64           `json:"to" binding:"required"`
	Asset  string          `json:"asset" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
	RefID  int64           `json:"refId"`
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

func (h *Handler) PlaceOrder(c *gin.Context) {
	var req order.PlaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	o, err := h.orders.PlaceOrder(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, o)
}

func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	o, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, o)
}

// CancelOrder cancels on behalf of the owner query parameter
func (h *Handler) CancelOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	owner, err := strconv.ParseInt(c.Query("owner"), 10, 64)
	if err != nil {
		badRequest(c, "owner parameter is required")
		return
	}

	o, err := h.orders.CancelOrder(c.Request.Context(), id, owner)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, o)
}

func (h *Handler) GetTrades(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	trades, err := h.orders.Trades(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, gin.H{"trades": trades})
}

// MatchOrder runs the matcher for one order, used to retry an order whose notification was lost
func (h *Handler) MatchOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if h.engine == nil {
		badRequest(c, "matching is not served by this process")
		return
	}
	trades, err := h.engine.MatchOrder(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, gin.H{"trades": trades})
}

func (h *Handler) GetInfo(c *gin.Context) {
	success(c, info.Get())
}

func (h *Handler) GetBalances(c *gin.Context) {
	owner, ok := paramID(c, "owner")
	if !ok {
		return
	}
	if asset := c.Query("asset"); asset != "" {
		b, err := h.wallet.Balance(c.Request.Context(), owner, asset)
		if err != nil {
			fail(c, err)
			return
		}
		success(c, b)
		return
	}

	bs, err := h.wallet.Balances(c.Request.Context(), owner)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, gin.H{"balances": bs})
}

func (h *Handler) Deposit(c *gin.Context) {
	var req FundsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	b, err := h.wallet.Deposit(c.Request.Context(), req.Owner, req.Asset, req.Amount)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, b)
}

func (h *Handler) Withdraw(c *gin.Context) {
	var req FundsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	b, err := h.wallet.Withdraw(c.Request.Context(), req.Owner, req.Asset, req.Amount)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, b)
}

func (h *Handler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	err := h.wallet.Transfer(c.Request.Context(), req.From, req.To, req.Asset, req.Amount, req.Reason, req.RefID)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, nil)
}
