package rest

import "github.com/tiktox/dhiorfans-ledger/internal/domain"

// ClaimRequest is the body for POST /v1/users/:userID/claim
type ClaimRequest struct {
	// Followers is the caller's current follower count, used for the
	// milestone portion of the reward
	Followers int64 `json:"followers"`
}

// SpendRequest is the body for POST /v1/users/:userID/spend
type SpendRequest struct {
	Amount int64  `json:"amount" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

// CreditRequest is the body for POST /v1/users/:userID/credit
type CreditRequest struct {
	Amount int64  `json:"amount" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

// SyncFollowersRequest is the body for POST /v1/users/:userID/followers/sync.
// Source "follow" marks the active follow path, which reports any milestone
// grant back to the caller; anything else is the passive reconciler.
type SyncFollowersRequest struct {
	Followers int64  `json:"followers"`
	Source    string `json:"source"`
}

// BalanceResponse is the payload for GET /v1/users/:userID/balance
type BalanceResponse struct {
	domain.TokenAccount
	CanClaim bool `json:"canClaim"`
}

// SyncFollowersResponse is the payload for the follower sync endpoint
type SyncFollowersResponse struct {
	Accepted bool                   `json:"accepted"`
	Grant    *domain.MilestoneGrant `json:"grant,omitempty"`
}

// MetricsHistoryResponse is the payload for GET /v1/system/metrics/history
type MetricsHistoryResponse struct {
	Snapshots []domain.SystemMetrics `json:"snapshots"`
}
