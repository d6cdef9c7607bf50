package domain

import "time"

// TokenAccount is the per-user balance record as seen by callers.
// LastClaim is in milliseconds since epoch; 0 means "never claimed"
// and is treated as immediately claimable.
type TokenAccount struct {
	UserID         string `json:"userId"`
	Tokens         int64  `json:"tokens"`
	LastClaim      int64  `json:"lastClaim"`
	FollowersCount int64  `json:"followersCount"`
}

// TransactionType tags a token transaction in the audit trail
type TransactionType string

const (
	// TransactionTypeDailyClaim is the once-per-24h claim reward
	TransactionTypeDailyClaim TransactionType = "daily_claim"
	// TransactionTypePurchase is a debit for a store/avatar purchase
	TransactionTypePurchase TransactionType = "purchase"
	// TransactionTypeManualAdd is an admin-issued credit
	TransactionTypeManualAdd TransactionType = "manual_add"
	// TransactionTypeFollowerMilestoneBonus is a bonus for crossing a follower milestone on the follow path
	TransactionTypeFollowerMilestoneBonus TransactionType = "follower_milestone_bonus"
	// TransactionTypeFollowerSyncBonus is a milestone bonus detected during passive reconciliation
	TransactionTypeFollowerSyncBonus TransactionType = "follower_sync_bonus"
	// TransactionTypeMigrationBonus is the starter balance granted when an account is first provisioned
	TransactionTypeMigrationBonus TransactionType = "migration_bonus"
	// TransactionTypeRepairAdjustment marks a balance normalization performed by auto-repair
	TransactionTypeRepairAdjustment TransactionType = "repair_adjustment"
)

// TokenTransaction is one immutable audit entry describing a balance-changing event
type TokenTransaction struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	Amount          int64           `json:"amount"`
	Type            TransactionType `json:"type"`
	PreviousBalance int64           `json:"previousBalance"`
	NewBalance      int64           `json:"newBalance"`
	Timestamp       time.Time       `json:"timestamp"`
	Metadata        map[string]any  `json:"metadata,omitempty"`
}

// ClaimResult is the outcome of a daily-claim attempt
type ClaimResult struct {
	Success      bool  `json:"success"`
	TokensEarned int64 `json:"tokensEarned"`
	NewBalance   int64 `json:"newBalance"`
}

// SpendResult is the outcome of a spend attempt.
// Reason carries the rejection cause when Success is false.
type SpendResult struct {
	Success          bool   `json:"success"`
	RemainingBalance int64  `json:"remainingBalance"`
	Reason           string `json:"reason,omitempty"`
}

// CreditResult is the outcome of a credit operation
type CreditResult struct {
	Success    bool  `json:"success"`
	NewBalance int64 `json:"newBalance"`
}

// MilestoneGrant describes a follower-milestone bonus that was actually granted
type MilestoneGrant struct {
	TokensGranted int64 `json:"tokensGranted"`
	NewBalance    int64 `json:"newBalance"`
}

// SystemMetrics is a derived, non-authoritative aggregate over a sampled
// window of accounts and transactions
type SystemMetrics struct {
	TotalUsers           int64     `json:"totalUsers"`
	SampledUsers         int       `json:"sampledUsers"`
	TotalTokens          int64     `json:"totalTokens"`
	AverageTokensPerUser float64   `json:"averageTokensPerUser"`
	DailyClaimsToday     int       `json:"dailyClaimsToday"`
	FailedOpsToday       int       `json:"failedOpsToday"`
	HealthScore          int       `json:"healthScore"`
	ComputedAt           time.Time `json:"computedAt"`
}

// Anomaly describes a single suspicious finding in a user's transaction history
type Anomaly struct {
	Kind        string `json:"kind"`
	Description string `json:"description"`
}

// UserAnalysis is a per-user aggregate over recent transaction history
type UserAnalysis struct {
	UserID         string    `json:"userId"`
	CurrentBalance int64     `json:"currentBalance"`
	TotalEarned    int64     `json:"totalEarned"`
	TotalSpent     int64     `json:"totalSpent"`
	ClaimCount     int       `json:"claimCount"`
	LastActivity   time.Time `json:"lastActivity"`
	RiskScore      int       `json:"riskScore"`
	Anomalies      []Anomaly `json:"anomalies"`
}

// IssueSeverity ranks a diagnostic issue
type IssueSeverity string

const (
	SeverityLow    IssueSeverity = "low"
	SeverityMedium IssueSeverity = "medium"
	SeverityHigh   IssueSeverity = "high"
)

// OverallHealth summarizes a diagnostic run
type OverallHealth string

const (
	HealthHealthy  OverallHealth = "healthy"
	HealthWarning  OverallHealth = "warning"
	HealthCritical OverallHealth = "critical"
)

// DiagnosticIssue is one finding from a diagnostic run
type DiagnosticIssue struct {
	Severity    IssueSeverity `json:"severity"`
	Description string        `json:"description"`
}

// DiagnosticReport is the result of applying threshold rules to system metrics
type DiagnosticReport struct {
	Overall OverallHealth     `json:"overall"`
	Issues  []DiagnosticIssue `json:"issues"`
	Metrics *SystemMetrics    `json:"metrics,omitempty"`
}

// RepairResult summarizes an auto-repair scan
type RepairResult struct {
	Attempted  int      `json:"attempted"`
	Successful int      `json:"successful"`
	Errors     []string `json:"errors,omitempty"`
}

// CacheStats reports the current state of the account cache
type CacheStats struct {
	Size int      `json:"size"`
	Keys []string `json:"keys"`
}
