package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"quorum/internal/council"
	"quorum/internal/desk"
	"quorum/internal/plan"
	"quorum/internal/risk"
	"quorum/internal/store"
	"quorum/internal/store/decisionlog"

	"github.com/gin-gonic/gin"
)

// DeskAPI is the slice of the desk the HTTP layer consumes.
type DeskAPI interface {
	RequestPlan(ctx context.Context, positionID string) (*plan.Plan, error)
	RefreshDecision(ctx context.Context, symbol string) (council.Decision, error)
	MarkStepDone(ctx context.Context, positionID, stepID string) error
	Health(ctx context.Context) (risk.Health, error)
	SyncPortfolio(ctx context.Context) error
	PlanByPosition(ctx context.Context, positionID string) (*plan.Plan, error)
	Decision(symbol string) (council.Decision, bool)
	Evaluate(ctx context.Context, positionID string, price float64) (plan.Evaluation, error)
}

// AuditReader exposes the audit log's query side.
type AuditReader interface {
	RecentDecisions(ctx context.Context, symbol string, limit int) ([]decisionlog.DecisionRecord, error)
	RecentAlerts(ctx context.Context, limit int) ([]decisionlog.AlertRecord, error)
}

// Router mounts the API handlers.
type Router struct {
	desk DeskAPI
	logs AuditReader
}

func NewRouter(d DeskAPI, logs AuditReader) *Router {
	return &Router{desk: d, logs: logs}
}

func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/positions/:id/plan", r.handleRequestPlan)
	group.GET("/positions/:id/plan", r.handleGetPlan)
	group.GET("/positions/:id/evaluation", r.handleEvaluate)
	group.POST("/positions/:id/steps/:stepId/done", r.handleMarkStepDone)
	group.POST("/decisions/:symbol/refresh", r.handleRefreshDecision)
	group.GET("/decisions/:symbol", r.handleGetDecision)
	group.GET("/portfolio/health", r.handleHealth)
	group.POST("/portfolio/sync", r.handleSyncPortfolio)
	if r.logs != nil {
		group.GET("/decisions/:symbol/history", r.handleDecisionHistory)
		group.GET("/alerts", r.handleAlerts)
	}
}

func (r *Router) handleRequestPlan(c *gin.Context) {
	p, err := r.desk.RequestPlan(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (r *Router) handleGetPlan(c *gin.Context) {
	p, err := r.desk.PlanByPosition(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (r *Router) handleEvaluate(c *gin.Context) {
	price, err := strconv.ParseFloat(strings.TrimSpace(c.Query("price")), 64)
	if err != nil || price <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query param price must be a positive number"})
		return
	}
	eval, err := r.desk.Evaluate(c.Request.Context(), c.Param("id"), price)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, eval)
}

func (r *Router) handleMarkStepDone(c *gin.Context) {
	if err := r.desk.MarkStepDone(c.Request.Context(), c.Param("id"), c.Param("stepId")); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (r *Router) handleRefreshDecision(c *gin.Context) {
	dec, err := r.desk.RefreshDecision(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, dec)
}

func (r *Router) handleGetDecision(c *gin.Context) {
	dec, ok := r.desk.Decision(c.Param("symbol"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no decision cached for symbol"})
		return
	}
	c.JSON(http.StatusOK, dec)
}

func (r *Router) handleHealth(c *gin.Context) {
	health, err := r.desk.Health(c.Request.Context())
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, health)
}

func (r *Router) handleSyncPortfolio(c *gin.Context) {
	if err := r.desk.SyncPortfolio(c.Request.Context()); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (r *Router) handleDecisionHistory(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), 50)
	recs, err := r.logs.RecentDecisions(c.Request.Context(), c.Param("symbol"), limit)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"decisions": recs})
}

func (r *Router) handleAlerts(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), 50)
	recs, err := r.logs.RecentAlerts(c.Request.Context(), limit)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": recs})
}

// abortWith maps domain errors onto HTTP statuses.
func abortWith(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrPlanNotFound), errors.Is(err, desk.ErrPositionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, plan.ErrInvalidEntryContext), errors.Is(err, plan.ErrStepNotFound):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, plan.ErrPlanClosed):
		status = http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func parseLimit(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return def
	}
	if n > 500 {
		return 500
	}
	return n
}
