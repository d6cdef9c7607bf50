package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/tiktox/dhiorfans-ledger/internal/adapter"
	"github.com/tiktox/dhiorfans-ledger/internal/domain"
	"github.com/tiktox/dhiorfans-ledger/internal/logger"
	"github.com/tiktox/dhiorfans-ledger/internal/store"
	"github.com/tiktox/dhiorfans-ledger/internal/store/schema"
)

// Config holds the diagnostic thresholds and scoring weights. The constants
// encode tunable policy, not structural invariants, so they live here rather
// than as literals in the scoring code.
type Config struct {
	// MetricsWindow bounds the audit-trail scan for system metrics
	MetricsWindow time.Duration
	// TransactionSampleLimit caps the number of audit records scanned per run
	TransactionSampleLimit int
	// AccountSampleLimit caps the top-by-balance account sample
	AccountSampleLimit int
	// UserHistoryLimit bounds the per-user audit slice for analysis
	UserHistoryLimit int

	// LargeTransactionAmount flags any single transaction at or above this
	// absolute amount as anomalous
	LargeTransactionAmount int64
	// BurstWindow and BurstCount define the "too many transactions recently"
	// anomaly: more than BurstCount transactions within the trailing window
	BurstWindow time.Duration
	BurstCount  int

	// FailedOpPenalty and ActiveClaimsBonus are the health score weights
	FailedOpPenalty   int
	ActiveClaimsBonus int
	// LargeTxWeight, BurstWeight and NegativeBalanceWeight are the risk
	// score weights
	LargeTxWeight         int
	BurstWeight           int
	NegativeBalanceWeight int

	// CriticalHealthScore and WarningHealthScore split the health score into
	// critical (< critical), warning (< warning) and healthy bands
	CriticalHealthScore int
	WarningHealthScore  int
	// FailedOpsHigh and FailedOpsMedium are the failed-operation issue bands:
	// > high is a high-severity issue, > medium is medium
	FailedOpsHigh   int
	FailedOpsMedium int
	// LowAverageBalance marks an informational issue when the sampled average
	// falls below it
	LowAverageBalance float64

	// RepairPageSize and RepairConcurrency shape the auto-repair scan
	RepairPageSize    int
	RepairConcurrency int
}

// DefaultConfig returns the production diagnostic thresholds
func DefaultConfig() Config {
	return Config{
		MetricsWindow:          24 * time.Hour,
		TransactionSampleLimit: 1000,
		AccountSampleLimit:     100,
		UserHistoryLimit:       100,

		LargeTransactionAmount: 1_000_000,
		BurstWindow:            time.Hour,
		BurstCount:             10,

		FailedOpPenalty:       10,
		ActiveClaimsBonus:     20,
		LargeTxWeight:         20,
		BurstWeight:           30,
		NegativeBalanceWeight: 50,

		CriticalHealthScore: 50,
		WarningHealthScore:  80,
		FailedOpsHigh:       10,
		FailedOpsMedium:     5,
		LowAverageBalance:   10,

		RepairPageSize:    200,
		RepairConcurrency: 8,
	}
}

// Service is the out-of-band supervisory loop over the ledger: aggregate
// metrics, per-user anomaly analysis, threshold diagnostics and automatic
// repair of corrupted records. It never blocks or gates the ledger engine.
type Service struct {
	store store.Store
	clock adapter.Clock
	cfg   Config
}

// NewService creates a monitor service
func NewService(st store.Store, clock adapter.Clock, cfg Config) *Service {
	return &Service{
		store: st,
		clock: clock,
		cfg:   cfg,
	}
}

// ComputeMetrics derives a system metrics snapshot from a bounded sample of
// recent audit records and top accounts. The result is a heuristic gauge of
// drift, not an authoritative aggregate.
func (s *Service) ComputeMetrics(ctx context.Context) (*domain.SystemMetrics, error) {
	now := s.clock.Now()

	totalUsers, err := s.store.CountAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count accounts: %w", err)
	}

	accounts, err := s.store.TopAccountsByBalance(ctx, s.cfg.AccountSampleLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to sample accounts: %w", err)
	}

	txs, err := s.store.ListTransactionsSince(ctx, now.Add(-s.cfg.MetricsWindow), s.cfg.TransactionSampleLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to sample transactions: %w", err)
	}

	var totalTokens int64
	for _, acct := range accounts {
		totalTokens += acct.Tokens
	}

	claims := 0
	failed := 0
	for _, tx := range txs {
		if tx.Type == domain.TransactionTypeDailyClaim {
			claims++
		}
		if isFailureType(tx.Type) {
			failed++
		}
	}

	avg := float64(0)
	if len(accounts) > 0 {
		avg = float64(totalTokens) / float64(len(accounts))
	}

	return &domain.SystemMetrics{
		TotalUsers:           totalUsers,
		SampledUsers:         len(accounts),
		TotalTokens:          totalTokens,
		AverageTokensPerUser: avg,
		DailyClaimsToday:     claims,
		FailedOpsToday:       failed,
		HealthScore:          s.healthScore(failed, claims),
		ComputedAt:           now,
	}, nil
}

// healthScore computes the 0-100 gauge: full marks minus a penalty per failed
// operation, plus a bonus when any claims were processed at all
func (s *Service) healthScore(failedOps, claims int) int {
	score := 100 - s.cfg.FailedOpPenalty*failedOps
	if claims > 0 {
		score += s.cfg.ActiveClaimsBonus
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// isFailureType reports whether an audit tag records a failed operation
func isFailureType(t domain.TransactionType) bool {
	tag := strings.ToLower(string(t))
	return strings.Contains(tag, "error") || strings.Contains(tag, "failed")
}

// AnalyzeUser aggregates a bounded recent slice of one user's audit trail
// into earned/spent totals, claim count and an anomaly-weighted risk score
func (s *Service) AnalyzeUser(ctx context.Context, userID string) (*domain.UserAnalysis, error) {
	acct, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, domain.ErrAccountNotFound
	}

	txs, err := s.store.ListUserTransactions(ctx, userID, s.cfg.UserHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction history: %w", err)
	}

	now := s.clock.Now()
	analysis := &domain.UserAnalysis{
		UserID:         userID,
		CurrentBalance: acct.Tokens,
		Anomalies:      []domain.Anomaly{},
	}

	largeTxCount := 0
	recentCount := 0
	for _, tx := range txs {
		if tx.Amount > 0 {
			analysis.TotalEarned += tx.Amount
		} else {
			analysis.TotalSpent += -tx.Amount
		}
		if tx.Type == domain.TransactionTypeDailyClaim {
			analysis.ClaimCount++
		}
		if tx.CreatedAt.After(analysis.LastActivity) {
			analysis.LastActivity = tx.CreatedAt
		}

		amount := tx.Amount
		if amount < 0 {
			amount = -amount
		}
		if amount > s.cfg.LargeTransactionAmount {
			largeTxCount++
			analysis.Anomalies = append(analysis.Anomalies, domain.Anomaly{
				Kind:        "large_transaction",
				Description: fmt.Sprintf("transaction %s has unusually large amount %d", tx.ID, tx.Amount),
			})
		}
		if now.Sub(tx.CreatedAt) <= s.cfg.BurstWindow {
			recentCount++
		}
	}

	burst := recentCount > s.cfg.BurstCount
	if burst {
		analysis.Anomalies = append(analysis.Anomalies, domain.Anomaly{
			Kind:        "transaction_burst",
			Description: fmt.Sprintf("%d transactions within the last %s", recentCount, s.cfg.BurstWindow),
		})
	}
	negative := acct.Tokens < 0
	if negative {
		analysis.Anomalies = append(analysis.Anomalies, domain.Anomaly{
			Kind:        "negative_balance",
			Description: fmt.Sprintf("current balance is negative: %d", acct.Tokens),
		})
	}

	risk := s.cfg.LargeTxWeight * largeTxCount
	if burst {
		risk += s.cfg.BurstWeight
	}
	if negative {
		risk += s.cfg.NegativeBalanceWeight
	}
	if risk > 100 {
		risk = 100
	}
	analysis.RiskScore = risk

	return analysis, nil
}

// RunDiagnostic applies the threshold rules to current system metrics. It
// never returns an error: a failed metrics computation yields a critical
// report with a descriptive issue instead.
func (s *Service) RunDiagnostic(ctx context.Context) *domain.DiagnosticReport {
	metrics, err := s.ComputeMetrics(ctx)
	if err != nil {
		logger.ErrorCtx(ctx, err, zap.String("operation", "run diagnostic"))
		return &domain.DiagnosticReport{
			Overall: domain.HealthCritical,
			Issues: []domain.DiagnosticIssue{{
				Severity:    domain.SeverityHigh,
				Description: fmt.Sprintf("metrics computation failed: %v", err),
			}},
		}
	}

	var issues []domain.DiagnosticIssue
	addIssue := func(severity domain.IssueSeverity, format string, args ...any) {
		issues = append(issues, domain.DiagnosticIssue{
			Severity:    severity,
			Description: fmt.Sprintf(format, args...),
		})
	}

	switch {
	case metrics.HealthScore < s.cfg.CriticalHealthScore:
		addIssue(domain.SeverityHigh, "health score critically low: %d", metrics.HealthScore)
	case metrics.HealthScore < s.cfg.WarningHealthScore:
		addIssue(domain.SeverityMedium, "health score degraded: %d", metrics.HealthScore)
	}

	if metrics.DailyClaimsToday == 0 {
		addIssue(domain.SeverityMedium, "no daily claims processed in the sample window")
	}

	switch {
	case metrics.FailedOpsToday > s.cfg.FailedOpsHigh:
		addIssue(domain.SeverityHigh, "%d failed operations in the sample window", metrics.FailedOpsToday)
	case metrics.FailedOpsToday > s.cfg.FailedOpsMedium:
		addIssue(domain.SeverityMedium, "%d failed operations in the sample window", metrics.FailedOpsToday)
	}

	if metrics.AverageTokensPerUser < s.cfg.LowAverageBalance {
		addIssue(domain.SeverityLow, "average balance is low: %.2f", metrics.AverageTokensPerUser)
	}

	overall := domain.HealthHealthy
	highs, mediums := 0, 0
	for _, issue := range issues {
		switch issue.Severity {
		case domain.SeverityHigh:
			highs++
		case domain.SeverityMedium:
			mediums++
		}
	}
	if highs > 0 {
		overall = domain.HealthCritical
	} else if mediums >= 2 {
		overall = domain.HealthWarning
	}

	return &domain.DiagnosticReport{
		Overall: overall,
		Issues:  issues,
		Metrics: metrics,
	}
}

// AutoRepair scans all accounts in pages and rewrites any that fail the
// data-model invariant, clamping negative fields to zero inside a locked
// transaction. Non-fatal errors are accumulated without aborting the scan.
func (s *Service) AutoRepair(ctx context.Context) *domain.RepairResult {
	result := &domain.RepairResult{}
	var mu sync.Mutex

	pool := pond.NewPool(s.cfg.RepairConcurrency)

	offset := 0
	for {
		page, err := s.store.ListAccounts(ctx, s.cfg.RepairPageSize, offset)
		if err != nil {
			mu.Lock()
			result.Errors = append(result.Errors, fmt.Sprintf("account scan failed at offset %d: %v", offset, err))
			mu.Unlock()
			break
		}
		if len(page) == 0 {
			break
		}

		for _, row := range page {
			if row.Valid() {
				continue
			}
			row := row
			pool.Submit(func() {
				err := s.repairAccount(ctx, &row)

				mu.Lock()
				defer mu.Unlock()
				result.Attempted++
				if err != nil {
					result.Errors = append(result.Errors, fmt.Sprintf("repair %s: %v", row.UserID, err))
					return
				}
				result.Successful++
			})
		}

		if len(page) < s.cfg.RepairPageSize {
			break
		}
		offset += s.cfg.RepairPageSize
	}

	pool.StopAndWait()

	if result.Attempted > 0 {
		logger.InfoCtx(ctx, "Auto-repair completed",
			zap.Int("attempted", result.Attempted),
			zap.Int("successful", result.Successful),
			zap.Int("errors", len(result.Errors)),
		)
	}
	return result
}

// repairAccount normalizes one corrupted row inside a locked transaction and
// records a zero-amount repair_adjustment audit entry carrying the observed
// invalid values. The store re-reads and clamps under the lock, so a row that
// was fixed concurrently is left untouched.
func (s *Service) repairAccount(ctx context.Context, observed *schema.TokenAccount) error {
	_, err := s.store.MutateAccount(ctx, observed.UserID, store.MutateOptions{},
		func(acct *schema.TokenAccount) (*store.AuditEntry, error) {
			return &store.AuditEntry{
				Amount: 0,
				Type:   domain.TransactionTypeRepairAdjustment,
				Metadata: map[string]any{
					"observed_tokens":          observed.Tokens,
					"observed_last_claim":      observed.LastClaim,
					"observed_followers_count": observed.FollowersCount,
				},
			}, nil
		})
	return err
}

// SnapshotMetrics computes current metrics and appends them to the
// historical snapshot log
func (s *Service) SnapshotMetrics(ctx context.Context) (*domain.SystemMetrics, error) {
	metrics, err := s.ComputeMetrics(ctx)
	if err != nil {
		return nil, err
	}

	detail, err := json.Marshal(metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metrics: %w", err)
	}

	snap := &schema.MetricsSnapshot{
		TotalUsers:  metrics.TotalUsers,
		TotalTokens: metrics.TotalTokens,
		HealthScore: metrics.HealthScore,
		Detail:      detail,
		CreatedAt:   metrics.ComputedAt,
	}
	if err := s.store.SaveMetricsSnapshot(ctx, snap); err != nil {
		return nil, err
	}
	return metrics, nil
}

// MetricsHistory returns the most recent persisted snapshots, newest first
func (s *Service) MetricsHistory(ctx context.Context, limit int) ([]domain.SystemMetrics, error) {
	snaps, err := s.store.ListMetricsSnapshots(ctx, limit)
	if err != nil {
		return nil, err
	}

	out := make([]domain.SystemMetrics, 0, len(snaps))
	for _, snap := range snaps {
		var m domain.SystemMetrics
		if len(snap.Detail) > 0 {
			if err := json.Unmarshal(snap.Detail, &m); err == nil {
				out = append(out, m)
				continue
			}
		}
		out = append(out, domain.SystemMetrics{
			TotalUsers:  snap.TotalUsers,
			TotalTokens: snap.TotalTokens,
			HealthScore: snap.HealthScore,
			ComputedAt:  snap.CreatedAt,
		})
	}
	return out, nil
}
