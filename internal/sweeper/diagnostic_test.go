package sweeper_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiktox/dhiorfans-ledger/internal/adapter"
	"github.com/tiktox/dhiorfans-ledger/internal/domain"
	"github.com/tiktox/dhiorfans-ledger/internal/logger"
	"github.com/tiktox/dhiorfans-ledger/internal/mocks"
	"github.com/tiktox/dhiorfans-ledger/internal/monitor"
	"github.com/tiktox/dhiorfans-ledger/internal/store/schema"
	"github.com/tiktox/dhiorfans-ledger/internal/sweeper"
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

func TestDiagnosticSweeper_Name(t *testing.T) {
	s := sweeper.NewDiagnosticSweeper(&sweeper.DiagnosticSweeperConfig{}, nil, adapter.NewClock())
	assert.Equal(t, "diagnostic-sweeper", s.Name())
}

func TestDiagnosticSweeper_StopBeforeStart(t *testing.T) {
	s := sweeper.NewDiagnosticSweeper(&sweeper.DiagnosticSweeperConfig{}, nil, adapter.NewClock())
	assert.NoError(t, s.Stop(context.Background()))
}

func TestDiagnosticSweeper_ImmediateCycle(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)

	// Healthy system: one claim in the window, no repair expected
	st.EXPECT().CountAccounts(gomock.Any()).Return(int64(1), nil).AnyTimes()
	st.EXPECT().TopAccountsByBalance(gomock.Any(), gomock.Any()).
		Return([]schema.TokenAccount{{UserID: "a", Tokens: 100}}, nil).AnyTimes()
	st.EXPECT().ListTransactionsSince(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]schema.TokenTransaction{{Type: domain.TransactionTypeDailyClaim, Amount: 10}}, nil).AnyTimes()

	snapshotted := make(chan struct{}, 1)
	st.EXPECT().SaveMetricsSnapshot(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, *schema.MetricsSnapshot) error {
			select {
			case snapshotted <- struct{}{}:
			default:
			}
			return nil
		}).AnyTimes()

	mon := monitor.NewService(st, adapter.NewClock(), monitor.DefaultConfig())
	s := sweeper.NewDiagnosticSweeper(&sweeper.DiagnosticSweeperConfig{
		Interval:         time.Hour, // only the immediate cycle runs
		RepairOnCritical: true,
	}, mon, adapter.NewClock())

	started := make(chan error, 1)
	go func() {
		started <- s.Start(context.Background())
	}()

	select {
	case <-snapshotted:
	case <-time.After(5 * time.Second):
		t.Fatal("first diagnostic cycle never ran")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))

	select {
	case err := <-started:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper loop did not exit after Stop")
	}
}

func TestDiagnosticSweeper_RepairsOnCriticalReport(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)

	// Metrics computation fails, so every cycle reports critical and the
	// sweeper must kick off a repair scan
	st.EXPECT().CountAccounts(gomock.Any()).
		Return(int64(0), errors.New("store unreachable")).AnyTimes()

	repaired := make(chan struct{}, 1)
	st.EXPECT().ListAccounts(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, int, int) ([]schema.TokenAccount, error) {
			select {
			case repaired <- struct{}{}:
			default:
			}
			return nil, nil
		}).AnyTimes()

	mon := monitor.NewService(st, adapter.NewClock(), monitor.DefaultConfig())
	s := sweeper.NewDiagnosticSweeper(&sweeper.DiagnosticSweeperConfig{
		Interval:         time.Hour,
		RepairOnCritical: true,
	}, mon, adapter.NewClock())

	started := make(chan error, 1)
	go func() {
		started <- s.Start(context.Background())
	}()

	select {
	case <-repaired:
	case <-time.After(5 * time.Second):
		t.Fatal("critical diagnostic did not trigger auto-repair")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))
	require.NoError(t, <-started)
}

func TestDiagnosticSweeper_ContextCancellationStopsLoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)

	st.EXPECT().CountAccounts(gomock.Any()).Return(int64(0), nil).AnyTimes()
	st.EXPECT().TopAccountsByBalance(gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()
	st.EXPECT().ListTransactionsSince(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()
	st.EXPECT().SaveMetricsSnapshot(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	st.EXPECT().ListAccounts(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()

	mon := monitor.NewService(st, adapter.NewClock(), monitor.DefaultConfig())
	s := sweeper.NewDiagnosticSweeper(&sweeper.DiagnosticSweeperConfig{Interval: time.Hour}, mon, adapter.NewClock())

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan error, 1)
	go func() {
		started <- s.Start(ctx)
	}()

	cancel()

	select {
	case err := <-started:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper loop did not exit on context cancellation")
	}
}
