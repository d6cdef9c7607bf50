package monitor_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiktox/dhiorfans-ledger/internal/domain"
	"github.com/tiktox/dhiorfans-ledger/internal/logger"
	"github.com/tiktox/dhiorfans-ledger/internal/mocks"
	"github.com/tiktox/dhiorfans-ledger/internal/monitor"
	"github.com/tiktox/dhiorfans-ledger/internal/store"
	"github.com/tiktox/dhiorfans-ledger/internal/store/schema"
)

func TestMain(m *testing.M) {
	// Initialize logger for tests
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*monitor.Service, *mocks.MockStore) {
	t.Helper()

	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)
	clock := mocks.NewMockClock(ctrl)
	clock.EXPECT().Now().Return(testNow).AnyTimes()

	return monitor.NewService(st, clock, monitor.DefaultConfig()), st
}

// stubMetrics wires the three sampling reads ComputeMetrics performs
func stubMetrics(st *mocks.MockStore, total int64, accounts []schema.TokenAccount, txs []schema.TokenTransaction) {
	st.EXPECT().CountAccounts(gomock.Any()).Return(total, nil)
	st.EXPECT().TopAccountsByBalance(gomock.Any(), gomock.Any()).Return(accounts, nil)
	st.EXPECT().ListTransactionsSince(gomock.Any(), gomock.Any(), gomock.Any()).Return(txs, nil)
}

func claimTx() schema.TokenTransaction {
	return schema.TokenTransaction{Type: domain.TransactionTypeDailyClaim, Amount: 10, CreatedAt: testNow}
}

func failedTx() schema.TokenTransaction {
	return schema.TokenTransaction{Type: "operation_failed", CreatedAt: testNow}
}

func TestComputeMetrics_HealthScore(t *testing.T) {
	svc, st := newService(t)

	stubMetrics(st, 3,
		[]schema.TokenAccount{{UserID: "a", Tokens: 300}, {UserID: "b", Tokens: 150}},
		[]schema.TokenTransaction{claimTx(), claimTx(), failedTx(), failedTx(), failedTx()},
	)

	metrics, err := svc.ComputeMetrics(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), metrics.TotalUsers)
	assert.Equal(t, 2, metrics.SampledUsers)
	assert.Equal(t, int64(450), metrics.TotalTokens)
	assert.Equal(t, float64(225), metrics.AverageTokensPerUser)
	assert.Equal(t, 2, metrics.DailyClaimsToday)
	assert.Equal(t, 3, metrics.FailedOpsToday)
	// 100 - 3*10 + 20 for active claims
	assert.Equal(t, 90, metrics.HealthScore)
	assert.Equal(t, testNow, metrics.ComputedAt)
}

func TestComputeMetrics_ScoreClampsAtZero(t *testing.T) {
	svc, st := newService(t)

	txs := make([]schema.TokenTransaction, 15)
	for i := range txs {
		txs[i] = failedTx()
	}
	stubMetrics(st, 1, []schema.TokenAccount{{UserID: "a", Tokens: 100}}, txs)

	metrics, err := svc.ComputeMetrics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, metrics.HealthScore)
}

func TestComputeMetrics_EmptySystem(t *testing.T) {
	svc, st := newService(t)

	stubMetrics(st, 0, nil, nil)

	metrics, err := svc.ComputeMetrics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float64(0), metrics.AverageTokensPerUser)
	assert.Equal(t, 100, metrics.HealthScore)
}

func TestRunDiagnostic_Healthy(t *testing.T) {
	svc, st := newService(t)

	stubMetrics(st, 2,
		[]schema.TokenAccount{{UserID: "a", Tokens: 100}, {UserID: "b", Tokens: 200}},
		[]schema.TokenTransaction{claimTx()},
	)

	report := svc.RunDiagnostic(context.Background())
	assert.Equal(t, domain.HealthHealthy, report.Overall)
	assert.Empty(t, report.Issues)
	require.NotNil(t, report.Metrics)
	assert.Equal(t, 100, report.Metrics.HealthScore)
}

func TestRunDiagnostic_CriticalOnFailedOps(t *testing.T) {
	svc, st := newService(t)

	// 12 failed operations tank the health score and trip the failed-ops band
	txs := make([]schema.TokenTransaction, 12)
	for i := range txs {
		txs[i] = failedTx()
	}
	stubMetrics(st, 1, []schema.TokenAccount{{UserID: "a", Tokens: 100}}, txs)

	report := svc.RunDiagnostic(context.Background())
	assert.Equal(t, domain.HealthCritical, report.Overall)

	var highs int
	for _, issue := range report.Issues {
		if issue.Severity == domain.SeverityHigh {
			highs++
		}
	}
	assert.GreaterOrEqual(t, highs, 1)
}

func TestRunDiagnostic_WarningOnTwoMediumIssues(t *testing.T) {
	svc, st := newService(t)

	// Three failed ops and zero claims: score 70 (degraded) plus the no-claims
	// issue, two mediums and no highs
	stubMetrics(st, 1,
		[]schema.TokenAccount{{UserID: "a", Tokens: 100}},
		[]schema.TokenTransaction{failedTx(), failedTx(), failedTx()},
	)

	report := svc.RunDiagnostic(context.Background())
	assert.Equal(t, domain.HealthWarning, report.Overall)

	mediums := 0
	for _, issue := range report.Issues {
		require.NotEqual(t, domain.SeverityHigh, issue.Severity)
		if issue.Severity == domain.SeverityMedium {
			mediums++
		}
	}
	assert.Equal(t, 2, mediums)
}

func TestRunDiagnostic_NeverFails(t *testing.T) {
	svc, st := newService(t)

	st.EXPECT().CountAccounts(gomock.Any()).Return(int64(0), errors.New("store unreachable"))

	report := svc.RunDiagnostic(context.Background())
	assert.Equal(t, domain.HealthCritical, report.Overall)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, domain.SeverityHigh, report.Issues[0].Severity)
	assert.Contains(t, report.Issues[0].Description, "metrics computation failed")
	assert.Nil(t, report.Metrics)
}

func TestAnalyzeUser_Aggregates(t *testing.T) {
	svc, st := newService(t)

	st.EXPECT().GetAccount(gomock.Any(), "user-1").
		Return(&schema.TokenAccount{UserID: "user-1", Tokens: 500}, nil)

	older := testNow.Add(-2 * time.Hour)
	st.EXPECT().ListUserTransactions(gomock.Any(), "user-1", gomock.Any()).
		Return([]schema.TokenTransaction{
			{Type: domain.TransactionTypeDailyClaim, Amount: 10, CreatedAt: testNow.Add(-time.Minute)},
			{Type: domain.TransactionTypeDailyClaim, Amount: 10, CreatedAt: older},
			{Type: domain.TransactionTypePurchase, Amount: -30, CreatedAt: older},
		}, nil)

	analysis, err := svc.AnalyzeUser(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, int64(500), analysis.CurrentBalance)
	assert.Equal(t, int64(20), analysis.TotalEarned)
	assert.Equal(t, int64(30), analysis.TotalSpent)
	assert.Equal(t, 2, analysis.ClaimCount)
	assert.Equal(t, testNow.Add(-time.Minute), analysis.LastActivity)
	assert.Equal(t, 0, analysis.RiskScore)
	assert.Empty(t, analysis.Anomalies)
}

func TestAnalyzeUser_Anomalies(t *testing.T) {
	svc, st := newService(t)

	st.EXPECT().GetAccount(gomock.Any(), "user-1").
		Return(&schema.TokenAccount{UserID: "user-1", Tokens: 500}, nil)

	// One oversized credit plus 11 transactions inside the burst window
	txs := []schema.TokenTransaction{
		{ID: "tx-big", Type: domain.TransactionTypeManualAdd, Amount: 2_000_000, CreatedAt: testNow.Add(-time.Minute)},
	}
	for i := 0; i < 11; i++ {
		txs = append(txs, schema.TokenTransaction{
			Type: domain.TransactionTypeDailyClaim, Amount: 10, CreatedAt: testNow.Add(-10 * time.Minute),
		})
	}
	st.EXPECT().ListUserTransactions(gomock.Any(), "user-1", gomock.Any()).Return(txs, nil)

	analysis, err := svc.AnalyzeUser(context.Background(), "user-1")
	require.NoError(t, err)

	kinds := map[string]bool{}
	for _, anomaly := range analysis.Anomalies {
		kinds[anomaly.Kind] = true
	}
	assert.True(t, kinds["large_transaction"])
	assert.True(t, kinds["transaction_burst"])
	assert.False(t, kinds["negative_balance"])

	// 20 for the large transaction, 30 for the burst
	assert.Equal(t, 50, analysis.RiskScore)
}

func TestAnalyzeUser_NegativeBalance(t *testing.T) {
	svc, st := newService(t)

	st.EXPECT().GetAccount(gomock.Any(), "user-1").
		Return(&schema.TokenAccount{UserID: "user-1", Tokens: -5}, nil)
	st.EXPECT().ListUserTransactions(gomock.Any(), "user-1", gomock.Any()).
		Return(nil, nil)

	analysis, err := svc.AnalyzeUser(context.Background(), "user-1")
	require.NoError(t, err)

	require.Len(t, analysis.Anomalies, 1)
	assert.Equal(t, "negative_balance", analysis.Anomalies[0].Kind)
	assert.Equal(t, 50, analysis.RiskScore)
}

func TestAnalyzeUser_NotFound(t *testing.T) {
	svc, st := newService(t)

	st.EXPECT().GetAccount(gomock.Any(), "ghost").Return(nil, nil)

	_, err := svc.AnalyzeUser(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestAutoRepair_RewritesInvalidRows(t *testing.T) {
	svc, st := newService(t)

	st.EXPECT().ListAccounts(gomock.Any(), gomock.Any(), 0).
		Return([]schema.TokenAccount{
			{UserID: "ok-1", Tokens: 100},
			{UserID: "bad-1", Tokens: -5, FollowersCount: -3},
			{UserID: "ok-2", Tokens: 200},
		}, nil)

	// Only the invalid row reaches the locked rewrite
	st.EXPECT().MutateAccount(gomock.Any(), "bad-1", gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, userID string, _ store.MutateOptions, fn store.MutateFunc) (*schema.TokenAccount, error) {
			acct := &schema.TokenAccount{UserID: userID}
			entry, err := fn(acct)
			require.NoError(t, err)
			require.NotNil(t, entry)
			assert.Equal(t, int64(0), entry.Amount)
			assert.Equal(t, domain.TransactionTypeRepairAdjustment, entry.Type)
			assert.Equal(t, int64(-5), entry.Metadata["observed_tokens"])
			return acct, nil
		})

	result := svc.AutoRepair(context.Background())
	assert.Equal(t, 1, result.Attempted)
	assert.Equal(t, 1, result.Successful)
	assert.Empty(t, result.Errors)
}

func TestAutoRepair_AccumulatesErrors(t *testing.T) {
	svc, st := newService(t)

	st.EXPECT().ListAccounts(gomock.Any(), gomock.Any(), 0).
		Return([]schema.TokenAccount{{UserID: "bad-1", Tokens: -5}}, nil)
	st.EXPECT().MutateAccount(gomock.Any(), "bad-1", gomock.Any(), gomock.Any()).
		Return(nil, errors.New("lock timeout"))

	result := svc.AutoRepair(context.Background())
	assert.Equal(t, 1, result.Attempted)
	assert.Equal(t, 0, result.Successful)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "bad-1")
}

func TestAutoRepair_ScanFailureStopsCleanly(t *testing.T) {
	svc, st := newService(t)

	st.EXPECT().ListAccounts(gomock.Any(), gomock.Any(), 0).
		Return(nil, errors.New("store unreachable"))

	result := svc.AutoRepair(context.Background())
	assert.Equal(t, 0, result.Attempted)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "account scan failed")
}

func TestSnapshotMetrics_PersistsDetail(t *testing.T) {
	svc, st := newService(t)

	stubMetrics(st, 2,
		[]schema.TokenAccount{{UserID: "a", Tokens: 100}, {UserID: "b", Tokens: 200}},
		[]schema.TokenTransaction{claimTx()},
	)

	var saved *schema.MetricsSnapshot
	st.EXPECT().SaveMetricsSnapshot(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, snap *schema.MetricsSnapshot) error {
			saved = snap
			return nil
		})

	metrics, err := svc.SnapshotMetrics(context.Background())
	require.NoError(t, err)

	require.NotNil(t, saved)
	assert.Equal(t, metrics.TotalUsers, saved.TotalUsers)
	assert.Equal(t, metrics.TotalTokens, saved.TotalTokens)
	assert.Equal(t, metrics.HealthScore, saved.HealthScore)
	assert.NotEmpty(t, saved.Detail)
}

func TestMetricsHistory_PrefersDetail(t *testing.T) {
	svc, st := newService(t)

	st.EXPECT().ListMetricsSnapshots(gomock.Any(), 10).
		Return([]schema.MetricsSnapshot{
			{
				TotalUsers: 5, TotalTokens: 900, HealthScore: 95,
				Detail: []byte(`{"totalUsers":5,"totalTokens":900,"healthScore":95,"dailyClaimsToday":7}`),
			},
			// Legacy snapshot without detail falls back to the columns
			{TotalUsers: 3, TotalTokens: 450, HealthScore: 80, CreatedAt: testNow},
		}, nil)

	history, err := svc.MetricsHistory(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, 7, history[0].DailyClaimsToday)
	assert.Equal(t, int64(3), history[1].TotalUsers)
	assert.Equal(t, 80, history[1].HealthScore)
	assert.Equal(t, testNow, history[1].ComputedAt)
}
