package ledger_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tiktox/dhiorfans-ledger/internal/adapter"
	"github.com/tiktox/dhiorfans-ledger/internal/cache"
	"github.com/tiktox/dhiorfans-ledger/internal/domain"
	"github.com/tiktox/dhiorfans-ledger/internal/ledger"
	"github.com/tiktox/dhiorfans-ledger/internal/logger"
	"github.com/tiktox/dhiorfans-ledger/internal/mocks"
	"github.com/tiktox/dhiorfans-ledger/internal/notifier"
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

// fixture wires a ledger service against a real in-memory SQLite store with
// a movable mock clock
type fixture struct {
	db    *gorm.DB
	store store.Store
	svc   *ledger.Service
	now   *time.Time
}

func newFixture(t *testing.T, sink notifier.Notifier) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, store.Migrate(db))

	ctrl := gomock.NewController(t)
	clock := mocks.NewMockClock(ctrl)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock.EXPECT().Now().DoAndReturn(func() time.Time { return now }).AnyTimes()

	st := store.NewStore(db)
	svc := ledger.NewService(
		st,
		cache.New(30*time.Second, clock),
		adapter.NewRetryer(3, time.Millisecond, time.Second),
		sink,
		clock,
		domain.DefaultRewardPolicy(),
	)
	t.Cleanup(svc.Close)

	return &fixture{db: db, store: st, svc: svc, now: &now}
}

func TestEnsureAccountExists_Idempotent(t *testing.T) {
	f := newFixture(t, notifier.NewNoop())
	ctx := context.Background()

	first := f.svc.EnsureAccountExists(ctx, "user-1", 0)
	assert.Equal(t, int64(100), first.Tokens)

	second := f.svc.EnsureAccountExists(ctx, "user-1", 600)
	assert.Equal(t, int64(100), second.Tokens)

	// Exactly one migration bonus was granted
	txs, err := f.store.ListUserTransactions(ctx, "user-1", 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, domain.TransactionTypeMigrationBonus, txs[0].Type)
}

func TestEnsureAccountExists_StarterTiers(t *testing.T) {
	f := newFixture(t, notifier.NewNoop())
	ctx := context.Background()

	assert.Equal(t, int64(100), f.svc.EnsureAccountExists(ctx, "low", 0).Tokens)
	assert.Equal(t, int64(150), f.svc.EnsureAccountExists(ctx, "mid", 100).Tokens)
	assert.Equal(t, int64(200), f.svc.EnsureAccountExists(ctx, "high", 500).Tokens)
}

func TestGetBalance_NewUserBootstrap(t *testing.T) {
	f := newFixture(t, notifier.NewNoop())
	ctx := context.Background()

	acct := f.svc.GetBalance(ctx, "user-1")
	assert.Equal(t, int64(100), acct.Tokens)
	assert.Equal(t, int64(0), acct.LastClaim)
	assert.Equal(t, int64(0), acct.FollowersCount)
	assert.True(t, f.svc.CanClaim(acct.LastClaim))

	result, err := f.svc.ClaimDaily(ctx, "user-1", 0)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int64(10), result.TokensEarned)
	assert.Equal(t, int64(110), result.NewBalance)
}

func TestClaimDaily_HighFollowerReward(t *testing.T) {
	f := newFixture(t, notifier.NewNoop())
	ctx := context.Background()

	// 1200 followers: starter 200, then 10 + floor(1200/500)*50 = 110
	result, err := f.svc.ClaimDaily(ctx, "user-1", 1200)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int64(110), result.TokensEarned)
	assert.Equal(t, int64(310), result.NewBalance)
}

func TestClaimDaily_EligibilityWindow(t *testing.T) {
	f := newFixture(t, notifier.NewNoop())
	ctx := context.Background()

	first, err := f.svc.ClaimDaily(ctx, "user-1", 0)
	require.NoError(t, err)
	require.True(t, first.Success)

	// A second claim inside the window is a business outcome, not an error
	second, err := f.svc.ClaimDaily(ctx, "user-1", 0)
	require.NoError(t, err)
	assert.False(t, second.Success)
	assert.Equal(t, int64(0), second.TokensEarned)
	assert.Equal(t, first.NewBalance, second.NewBalance)

	// Exactly 24h later the claim is eligible again
	*f.now = f.now.Add(24 * time.Hour)
	third, err := f.svc.ClaimDaily(ctx, "user-1", 0)
	require.NoError(t, err)
	assert.True(t, third.Success)
}

func TestClaimDaily_InvalidFollowerCount(t *testing.T) {
	f := newFixture(t, notifier.NewNoop())

	_, err := f.svc.ClaimDaily(context.Background(), "user-1", -1)
	assert.ErrorIs(t, err, domain.ErrInvalidFollowerCount)
}

func TestSpend_Conservation(t *testing.T) {
	f := newFixture(t, notifier.NewNoop())
	ctx := context.Background()

	f.svc.EnsureAccountExists(ctx, "user-1", 0)

	result, err := f.svc.Spend(ctx, "user-1", 30, "avatar frame")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int64(70), result.RemainingBalance)

	// Exactly one debit audit record with the matching negative amount
	txs, err := f.store.ListUserTransactions(ctx, "user-1", 10)
	require.NoError(t, err)
	var debits []schema.TokenTransaction
	for _, tx := range txs {
		if tx.Amount < 0 {
			debits = append(debits, tx)
		}
	}
	require.Len(t, debits, 1)
	assert.Equal(t, int64(-30), debits[0].Amount)
	assert.Equal(t, int64(70), debits[0].NewBalance)
}

func TestSpend_InsufficientBalance(t *testing.T) {
	f := newFixture(t, notifier.NewNoop())
	ctx := context.Background()

	f.svc.EnsureAccountExists(ctx, "user-1", 0)

	result, err := f.svc.Spend(ctx, "user-1", 500, "too expensive")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, int64(100), result.RemainingBalance)

	// The rejected spend wrote nothing
	txs, err := f.store.ListUserTransactions(ctx, "user-1", 10)
	require.NoError(t, err)
	assert.Len(t, txs, 1) // migration bonus only

	acct := f.svc.GetBalance(ctx, "user-1")
	assert.Equal(t, int64(100), acct.Tokens)
}

func TestSpend_MissingAccount(t *testing.T) {
	f := newFixture(t, notifier.NewNoop())

	// Spending never auto-provisions
	result, err := f.svc.Spend(context.Background(), "ghost", 10, "anything")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "account not found", result.Reason)
}

func TestSpend_ContractViolations(t *testing.T) {
	f := newFixture(t, notifier.NewNoop())
	ctx := context.Background()

	_, err := f.svc.Spend(ctx, "user-1", 0, "zero")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.svc.Spend(ctx, "user-1", -5, "negative")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.svc.Spend(ctx, "user-1", 5, "")
	assert.ErrorIs(t, err, domain.ErrInvalidReason)
}

func TestCredit_AutoProvisionsAndCaps(t *testing.T) {
	f := newFixture(t, notifier.NewNoop())
	ctx := context.Background()

	// Credit provisions a zero baseline, not a starter balance
	result, err := f.svc.Credit(ctx, "user-1", 250, "support gift")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int64(250), result.NewBalance)

	_, err = f.svc.Credit(ctx, "user-1", 50_000_001, "typo")
	assert.ErrorIs(t, err, domain.ErrAmountTooLarge)

	_, err = f.svc.Credit(ctx, "user-1", 100, "")
	assert.ErrorIs(t, err, domain.ErrInvalidReason)
}

func TestGrantFollowerMilestoneBonus_Monotonic(t *testing.T) {
	f := newFixture(t, notifier.NewNoop())
	ctx := context.Background()

	f.svc.EnsureAccountExists(ctx, "user-1", 499) // starter 150

	grant, err := f.svc.GrantFollowerMilestoneBonus(ctx, "user-1", 500)
	require.NoError(t, err)
	require.NotNil(t, grant)
	assert.Equal(t, int64(50), grant.TokensGranted)
	assert.Equal(t, int64(200), grant.NewBalance)

	// Same count again: no new crossing, count update only
	again, err := f.svc.GrantFollowerMilestoneBonus(ctx, "user-1", 500)
	require.NoError(t, err)
	assert.Nil(t, again)

	acct := f.svc.GetBalance(ctx, "user-1")
	assert.Equal(t, int64(200), acct.Tokens)
	assert.Equal(t, int64(500), acct.FollowersCount)
}

func TestSyncFollowers_GrantsUnderSyncTag(t *testing.T) {
	f := newFixture(t, notifier.NewNoop())
	ctx := context.Background()

	f.svc.EnsureAccountExists(ctx, "user-1", 0)
	f.svc.SyncFollowers(ctx, "user-1", 1100)

	acct := f.svc.GetBalance(ctx, "user-1")
	assert.Equal(t, int64(1100), acct.FollowersCount)
	assert.Equal(t, int64(200), acct.Tokens) // 100 starter + 2 milestones

	txs, err := f.store.ListUserTransactions(ctx, "user-1", 10)
	require.NoError(t, err)
	var syncBonus bool
	for _, tx := range txs {
		if tx.Type == domain.TransactionTypeFollowerSyncBonus {
			syncBonus = true
			assert.Equal(t, int64(100), tx.Amount)
		}
	}
	assert.True(t, syncBonus)
}

func TestGetBalance_HealsCorruptedRecord(t *testing.T) {
	f := newFixture(t, notifier.NewNoop())
	ctx := context.Background()

	// Plant a corrupted row directly, bypassing the write paths
	require.NoError(t, f.db.Create(&schema.TokenAccount{
		UserID: "user-1", Tokens: -5, LastClaim: -1, FollowersCount: -3,
	}).Error)

	acct := f.svc.GetBalance(ctx, "user-1")
	assert.Equal(t, int64(0), acct.Tokens)
	assert.Equal(t, int64(0), acct.LastClaim)
	assert.Equal(t, int64(0), acct.FollowersCount)

	// The correction was persisted, not just returned
	row, err := f.store.GetAccount(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), row.Tokens)
	assert.Equal(t, int64(0), row.LastClaim)
	assert.Equal(t, int64(0), row.FollowersCount)
}

func TestGetBalance_CachesReads(t *testing.T) {
	f := newFixture(t, notifier.NewNoop())
	ctx := context.Background()

	f.svc.GetBalance(ctx, "user-1")
	stats := f.svc.CacheStats()
	assert.Equal(t, 1, stats.Size)
	assert.Contains(t, stats.Keys, "user-1")

	f.svc.ClearCache("user-1")
	assert.Equal(t, 0, f.svc.CacheStats().Size)
}

func TestGetBalance_DegradedModeOnTotalStoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)
	clock := mocks.NewMockClock(ctrl)
	clock.EXPECT().Now().Return(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)).AnyTimes()

	broken := errors.New("store unreachable")
	st.EXPECT().GetAccount(gomock.Any(), gomock.Any()).Return(nil, broken).AnyTimes()
	st.EXPECT().SaveAccount(gomock.Any(), gomock.Any()).Return(broken).AnyTimes()

	svc := ledger.NewService(
		st,
		cache.New(30*time.Second, clock),
		adapter.NewRetryer(2, time.Millisecond, time.Second),
		notifier.NewNoop(),
		clock,
		domain.DefaultRewardPolicy(),
	)
	defer svc.Close()

	// Balance UI must never crash: a best-effort emergency value comes back
	acct := svc.GetBalance(context.Background(), "user-1")
	require.NotNil(t, acct)
	assert.Equal(t, "user-1", acct.UserID)
	assert.Equal(t, int64(50), acct.Tokens)
	assert.Equal(t, int64(0), acct.LastClaim)

	// Degraded values are never cached as existing accounts
	assert.Equal(t, 0, svc.CacheStats().Size)
}

func TestClaimDaily_DispatchesNotifications(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockNotifier(ctrl)

	// One event for the migration grant, one for the claim itself. Dispatch
	// goroutines run concurrently, so the collection is guarded.
	var mu sync.Mutex
	delivered := make([]notifier.Event, 0, 2)
	sink.EXPECT().Notify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, event notifier.Event) error {
			mu.Lock()
			defer mu.Unlock()
			delivered = append(delivered, event)
			return nil
		}).Times(2)

	f := newFixture(t, sink)

	result, err := f.svc.ClaimDaily(context.Background(), "user-1", 0)
	require.NoError(t, err)
	require.True(t, result.Success)

	// Close drains the async dispatch queue
	f.svc.Close()

	kinds := map[domain.TransactionType]bool{}
	for _, event := range delivered {
		assert.NotEmpty(t, event.ID)
		assert.Equal(t, "user-1", event.UserID)
		kinds[event.TransactionType] = true
	}
	assert.True(t, kinds[domain.TransactionTypeMigrationBonus])
	assert.True(t, kinds[domain.TransactionTypeDailyClaim])
}
