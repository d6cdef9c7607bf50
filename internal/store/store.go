package store

import (
	"context"
	"time"

	"github.com/tiktox/dhiorfans-ledger/internal/domain"
	"github.com/tiktox/dhiorfans-ledger/internal/store/schema"
)

// CreateAccountInput describes a new account to provision together with its
// starter-bonus audit record
type CreateAccountInput struct {
	UserID         string
	Tokens         int64
	FollowersCount int64
	BonusType      domain.TransactionType
	Metadata       map[string]any
}

// MutateOptions controls how MutateAccount resolves the account row
type MutateOptions struct {
	// CreateIfMissing provisions a zero baseline inside the same transaction
	// when no account exists, instead of failing with ErrAccountNotFound
	CreateIfMissing bool
}

// AuditEntry describes the single token transaction a mutation records.
// The store applies Amount to the balance and writes the audit row with
// previous/new balance in the same transaction, so the
// newBalance = previousBalance + amount invariant holds by construction.
type AuditEntry struct {
	Amount   int64
	Type     domain.TransactionType
	Metadata map[string]any
}

// MutateFunc inspects and updates the locked account row. It may set account
// fields (last_claim, followers_count) in place. Returning a non-nil
// AuditEntry applies its Amount to the balance and records exactly one audit
// row; returning (nil, nil) persists field updates without touching the
// balance or the audit trail. Any error rolls the whole transaction back.
type MutateFunc func(acct *schema.TokenAccount) (*AuditEntry, error)

// Store defines the interface for ledger database operations
//
//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks -mock_names=Store=MockStore
type Store interface {
	// GetAccount retrieves an account by user id, nil when absent
	GetAccount(ctx context.Context, userID string) (*schema.TokenAccount, error)
	// SaveAccount upserts an account row; used by self-heal and repair paths
	SaveAccount(ctx context.Context, acct *schema.TokenAccount) error
	// CreateAccount provisions an account with a starter bonus and its audit
	// record in one transaction. Idempotent: when the account already exists
	// it is returned unchanged with created=false and no bonus re-granted.
	CreateAccount(ctx context.Context, input CreateAccountInput) (*schema.TokenAccount, bool, error)
	// MutateAccount runs fn against the locked account row inside a single
	// read-modify-write transaction and returns the post-mutation account
	MutateAccount(ctx context.Context, userID string, opts MutateOptions, fn MutateFunc) (*schema.TokenAccount, error)

	// ListUserTransactions retrieves a user's most recent audit records
	ListUserTransactions(ctx context.Context, userID string, limit int) ([]schema.TokenTransaction, error)
	// ListTransactionsSince retrieves recent audit records across all users
	ListTransactionsSince(ctx context.Context, since time.Time, limit int) ([]schema.TokenTransaction, error)
	// TopAccountsByBalance retrieves the highest-balance accounts
	TopAccountsByBalance(ctx context.Context, limit int) ([]schema.TokenAccount, error)
	// ListAccounts pages through accounts for repair scans
	ListAccounts(ctx context.Context, limit, offset int) ([]schema.TokenAccount, error)
	// CountAccounts returns the total number of accounts
	CountAccounts(ctx context.Context) (int64, error)

	// SaveMetricsSnapshot appends a snapshot to the historical metrics log
	SaveMetricsSnapshot(ctx context.Context, snap *schema.MetricsSnapshot) error
	// ListMetricsSnapshots retrieves the most recent snapshots
	ListMetricsSnapshots(ctx context.Context, limit int) ([]schema.MetricsSnapshot, error)
}
