package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"alphadesk/internal/executor"
	"alphadesk/internal/logger"
	"alphadesk/internal/market"
	"alphadesk/internal/portfolio"
	"alphadesk/internal/risk"
	"alphadesk/internal/store"
	"alphadesk/internal/types"

	"github.com/gin-gonic/gin"
)

// Router exposes the desk API: portfolio views, proposal dry runs and
// order submission.
type Router struct {
	ledger    *portfolio.Ledger
	gate      *risk.Gate
	exec      *executor.Executor
	oracle    market.PriceOracle
	sectors   market.SectorClassifier
	decisions store.DecisionLog
}

// NewRouter wires the desk API handlers.
func NewRouter(ledger *portfolio.Ledger, gate *risk.Gate, exec *executor.Executor, oracle market.PriceOracle, sectors market.SectorClassifier, decisions store.DecisionLog) *Router {
	return &Router{ledger: ledger, gate: gate, exec: exec, oracle: oracle, sectors: sectors, decisions: decisions}
}

// Register mounts the routes under the given group.
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/portfolio", r.handlePortfolio)
	group.GET("/trades", r.handleTrades)
	group.GET("/decisions", r.handleDecisions)
	group.POST("/proposals", r.handleProposal)
	group.POST("/orders", r.handleOrder)
	group.POST("/market/refresh", r.handleMarketRefresh)
}

func (r *Router) handlePortfolio(c *gin.Context) {
	summary := r.ledger.Summary(c.Request.Context(), r.oracle, r.sectors)
	c.JSON(http.StatusOK, summary)
}

func (r *Router) handleTrades(c *gin.Context) {
	limit := parseLimit(c.DefaultQuery("limit", "50"), 50, 500)
	state := r.ledger.State()
	history := state.TradeHistory
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	c.JSON(http.StatusOK, gin.H{
		"trades":      history,
		"total_count": len(state.TradeHistory),
	})
}

func (r *Router) handleDecisions(c *gin.Context) {
	if r.decisions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "decision log unavailable"})
		return
	}
	limit := parseLimit(c.DefaultQuery("limit", "50"), 50, 500)
	records, err := r.decisions.ListRecent(c.Request.Context(), limit)
	if err != nil {
		logger.Errorf("[api] decisions list failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"decisions": records})
}

// handleProposal runs the gate without touching the ledger. The verdict is
// still logged so dry runs show up in the audit trail.
func (r *Router) handleProposal(c *gin.Context) {
	proposal, ok := bindProposal(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	verdict := r.gate.Evaluate(ctx, proposal)
	r.exec.RecordDecision(ctx, verdict)
	logger.Infof("[api] proposal ip=%s ticker=%s verdict=%s reason=%s", c.ClientIP(), verdict.Ticker, verdict.Status, verdict.Reason)
	c.JSON(http.StatusOK, gin.H{"verdict": verdict})
}

type orderRequest struct {
	Proposal types.TradeProposal `json:"proposal"`
	Override bool                `json:"override,omitempty"`
}

func (r *Router) handleOrder(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validatePayload(orderSchema, raw); err != nil {
		logger.Warnf("[api] order payload rejected ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order", "detail": err.Error()})
		return
	}
	var req orderRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	verdict := r.gate.Evaluate(ctx, req.Proposal)

	var fill executor.Fill
	switch {
	case verdict.Approved():
		fill, err = r.exec.Execute(ctx, verdict)
	case req.Override && verdict.Overridable():
		fill, err = r.exec.ExecuteOverride(ctx, verdict)
	default:
		r.exec.RecordDecision(ctx, verdict)
		logger.Infof("[api] order rejected ip=%s ticker=%s reason=%s", c.ClientIP(), verdict.Ticker, verdict.Reason)
		c.JSON(http.StatusOK, gin.H{"verdict": verdict})
		return
	}
	if err != nil {
		var rej *executor.RejectedError
		if errors.As(err, &rej) {
			logger.Warnf("[api] order refused at commit ip=%s ticker=%s reason=%s", c.ClientIP(), verdict.Ticker, rej.Reason)
			c.JSON(http.StatusOK, gin.H{
				"verdict":   verdict,
				"rejection": gin.H{"reason": rej.Reason, "detail": rej.Detail},
			})
			return
		}
		logger.Errorf("[api] order commit failed ip=%s ticker=%s err=%v", c.ClientIP(), verdict.Ticker, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("[api] order filled ip=%s ticker=%s action=%s qty=%d", c.ClientIP(), fill.Ticker, fill.Action, fill.Quantity)
	c.JSON(http.StatusOK, gin.H{"verdict": verdict, "fill": fill})
}

func (r *Router) handleMarketRefresh(c *gin.Context) {
	if err := r.oracle.Refresh(c.Request.Context()); err != nil {
		logger.Errorf("[api] market refresh failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func bindProposal(c *gin.Context) (types.TradeProposal, bool) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return types.TradeProposal{}, false
	}
	if err := validatePayload(proposalSchema, raw); err != nil {
		logger.Warnf("[api] proposal payload rejected ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid proposal", "detail": err.Error()})
		return types.TradeProposal{}, false
	}
	var proposal types.TradeProposal
	if err := json.Unmarshal(raw, &proposal); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return types.TradeProposal{}, false
	}
	return proposal, true
}

func parseLimit(val string, def, max int) int {
	limit, _ := strconv.Atoi(val)
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	return limit
}
