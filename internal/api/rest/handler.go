package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tiktox/dhiorfans-ledger/internal/domain"
	"github.com/tiktox/dhiorfans-ledger/internal/ledger"
	"github.com/tiktox/dhiorfans-ledger/internal/monitor"
)

const defaultHistoryLimit = 24

// Handler bundles the ledger engine and the monitor behind the REST surface
type Handler struct {
	ledger  *ledger.Service
	monitor *monitor.Service
}

// NewHandler creates a new REST handler
func NewHandler(ledgerSvc *ledger.Service, monitorSvc *monitor.Service) *Handler {
	return &Handler{
		ledger:  ledgerSvc,
		monitor: monitorSvc,
	}
}

// HealthCheck handles GET /healthz
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetBalance handles GET /v1/users/:userID/balance.
// The ledger degrades instead of failing, so this endpoint always answers 200.
func (h *Handler) GetBalance(c *gin.Context) {
	userID := c.Param("userID")
	if userID == "" {
		respondBadRequest(c, "user id is required")
		return
	}

	acct := h.ledger.GetBalance(c.Request.Context(), userID)
	c.JSON(http.StatusOK, BalanceResponse{
		TokenAccount: *acct,
		CanClaim:     h.ledger.CanClaim(acct.LastClaim),
	})
}

// Claim handles POST /v1/users/:userID/claim. An ineligible claim is a
// business outcome and comes back 200 with success:false.
func (h *Handler) Claim(c *gin.Context) {
	userID := c.Param("userID")

	var req ClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body", err.Error())
		return
	}

	result, err := h.ledger.ClaimDaily(c.Request.Context(), userID, req.Followers)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidFollowerCount) {
			respondBadRequest(c, "follower count must be non-negative")
			return
		}
		respondStoreUnavailable(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Spend handles POST /v1/users/:userID/spend
func (h *Handler) Spend(c *gin.Context) {
	userID := c.Param("userID")

	var req SpendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body", err.Error())
		return
	}

	result, err := h.ledger.Spend(c.Request.Context(), userID, req.Amount, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidAmount):
			respondBadRequest(c, "amount must be positive")
		case errors.Is(err, domain.ErrInvalidReason):
			respondBadRequest(c, "reason is required")
		default:
			respondStoreUnavailable(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// Credit handles POST /v1/users/:userID/credit (admin)
func (h *Handler) Credit(c *gin.Context) {
	userID := c.Param("userID")

	var req CreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body", err.Error())
		return
	}

	result, err := h.ledger.Credit(c.Request.Context(), userID, req.Amount, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidAmount):
			respondBadRequest(c, "amount must be positive")
		case errors.Is(err, domain.ErrAmountTooLarge):
			respondBadRequest(c, "amount exceeds the single-credit cap")
		case errors.Is(err, domain.ErrInvalidReason):
			respondBadRequest(c, "reason is required")
		default:
			respondStoreUnavailable(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// SyncFollowers handles POST /v1/users/:userID/followers/sync. The follow
// path (source=follow) reports the milestone decision back to the caller;
// the passive path reconciles without reporting a grant and answers 202,
// with any failure logged rather than surfaced.
func (h *Handler) SyncFollowers(c *gin.Context) {
	userID := c.Param("userID")

	var req SyncFollowersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body", err.Error())
		return
	}
	if req.Followers < 0 {
		respondBadRequest(c, "follower count must be non-negative")
		return
	}

	if req.Source == "follow" {
		grant, err := h.ledger.GrantFollowerMilestoneBonus(c.Request.Context(), userID, req.Followers)
		if err != nil {
			respondStoreUnavailable(c, err)
			return
		}
		c.JSON(http.StatusOK, SyncFollowersResponse{Accepted: true, Grant: grant})
		return
	}

	h.ledger.SyncFollowers(c.Request.Context(), userID, req.Followers)
	c.JSON(http.StatusAccepted, SyncFollowersResponse{Accepted: true})
}

// AnalyzeUser handles GET /v1/users/:userID/analysis (admin)
func (h *Handler) AnalyzeUser(c *gin.Context) {
	userID := c.Param("userID")

	analysis, err := h.monitor.AnalyzeUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			respondNotFound(c, "account not found")
			return
		}
		respondInternalError(c, err, "Failed to analyze user", zap.String("user_id", userID))
		return
	}

	c.JSON(http.StatusOK, analysis)
}

// RunDiagnostic handles GET /v1/system/diagnostic (admin).
// The diagnostic never fails; a broken store shows up as a critical report.
func (h *Handler) RunDiagnostic(c *gin.Context) {
	c.JSON(http.StatusOK, h.monitor.RunDiagnostic(c.Request.Context()))
}

// AutoRepair handles POST /v1/system/repair (admin)
func (h *Handler) AutoRepair(c *gin.Context) {
	c.JSON(http.StatusOK, h.monitor.AutoRepair(c.Request.Context()))
}

// MetricsHistory handles GET /v1/system/metrics/history (admin)
func (h *Handler) MetricsHistory(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondBadRequest(c, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	snapshots, err := h.monitor.MetricsHistory(c.Request.Context(), limit)
	if err != nil {
		respondInternalError(c, err, "Failed to load metrics history")
		return
	}

	c.JSON(http.StatusOK, MetricsHistoryResponse{Snapshots: snapshots})
}

// CacheStats handles GET /v1/system/cache (admin)
func (h *Handler) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.ledger.CacheStats())
}

// ClearCache handles DELETE /v1/system/cache (admin). With a user_id query
// parameter only that entry is dropped, otherwise the whole cache.
func (h *Handler) ClearCache(c *gin.Context) {
	userID := c.Query("user_id")
	h.ledger.ClearCache(userID)
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}
