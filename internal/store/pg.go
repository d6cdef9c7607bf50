package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tiktox/dhiorfans-ledger/internal/domain"
	"github.com/tiktox/dhiorfans-ledger/internal/store/schema"
)

type sqlStore struct {
	db *gorm.DB
	// rowLocks is false on SQLite, which serializes writers with a
	// database-level lock and rejects FOR UPDATE syntax
	rowLocks bool
}

// NewStore creates a new SQL-backed ledger store
func NewStore(db *gorm.DB) Store {
	return &sqlStore{
		db:       db,
		rowLocks: db.Dialector.Name() != "sqlite",
	}
}

// Migrate creates or updates the ledger tables
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&schema.TokenAccount{},
		&schema.TokenTransaction{},
		&schema.MetricsSnapshot{},
	)
}

// ConfigureConnectionPool configures the connection pool settings for a GORM
// database connection. Zero values fall back to reasonable defaults.
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// lockedFirst reads the account row, taking a row lock where the dialect
// supports it
func (s *sqlStore) lockedFirst(tx *gorm.DB, userID string, acct *schema.TokenAccount) error {
	q := tx
	if s.rowLocks {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q.Where("user_id = ?", userID).First(acct).Error
}

// GetAccount retrieves an account by user id
func (s *sqlStore) GetAccount(ctx context.Context, userID string) (*schema.TokenAccount, error) {
	var acct schema.TokenAccount
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&acct).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &acct, nil
}

// SaveAccount upserts an account row
func (s *sqlStore) SaveAccount(ctx context.Context, acct *schema.TokenAccount) error {
	if err := s.db.WithContext(ctx).Save(acct).Error; err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

// CreateAccount provisions an account with its starter-bonus audit record in
// a single transaction. ON CONFLICT DO NOTHING on user_id makes the call
// idempotent: a concurrent or repeated provision returns the existing row and
// never re-grants the bonus.
func (s *sqlStore) CreateAccount(ctx context.Context, input CreateAccountInput) (*schema.TokenAccount, bool, error) {
	var out schema.TokenAccount
	created := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		acct := schema.TokenAccount{
			UserID:         input.UserID,
			Tokens:         input.Tokens,
			FollowersCount: input.FollowersCount,
		}

		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).Create(&acct)
		if res.Error != nil {
			return fmt.Errorf("failed to create account: %w", res.Error)
		}

		// RowsAffected == 0 means the account already existed
		if res.RowsAffected == 0 {
			if err := tx.Where("user_id = ?", input.UserID).First(&acct).Error; err != nil {
				return fmt.Errorf("failed to get existing account: %w", err)
			}
			out = acct
			return nil
		}
		created = true

		audit := schema.TokenTransaction{
			ID:              uuid.NewString(),
			UserID:          input.UserID,
			Amount:          input.Tokens,
			Type:            input.BonusType,
			PreviousBalance: 0,
			NewBalance:      input.Tokens,
		}
		if input.Metadata != nil {
			meta, err := json.Marshal(input.Metadata)
			if err != nil {
				return fmt.Errorf("failed to marshal audit metadata: %w", err)
			}
			audit.Metadata = meta
		}
		if err := tx.Create(&audit).Error; err != nil {
			return fmt.Errorf("failed to create migration audit record: %w", err)
		}

		out = acct
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return &out, created, nil
}

// MutateAccount runs fn against the locked account row inside one
// read-modify-write transaction. Eligibility checks inside fn therefore see
// the committed state of any concurrent winner, never a pre-fetched value.
func (s *sqlStore) MutateAccount(ctx context.Context, userID string, opts MutateOptions, fn MutateFunc) (*schema.TokenAccount, error) {
	var out schema.TokenAccount

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var acct schema.TokenAccount
		err := s.lockedFirst(tx, userID, &acct)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("failed to lock account: %w", err)
			}
			if !opts.CreateIfMissing {
				return domain.ErrAccountNotFound
			}

			// Zero baseline inside the same transaction, not a separate
			// migration call. ON CONFLICT covers a racing provision.
			acct = schema.TokenAccount{UserID: userID}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}},
				DoNothing: true,
			}).Create(&acct).Error; err != nil {
				return fmt.Errorf("failed to create baseline account: %w", err)
			}
			if err := s.lockedFirst(tx, userID, &acct); err != nil {
				return fmt.Errorf("failed to lock baseline account: %w", err)
			}
		}

		// Validated decode at the store boundary: invalid persisted data
		// never propagates past this point
		acct.Normalize()

		entry, err := fn(&acct)
		if err != nil {
			return err
		}

		if entry == nil {
			// Field update only, no balance change and no audit row
			if err := tx.Save(&acct).Error; err != nil {
				return fmt.Errorf("failed to save account: %w", err)
			}
			out = acct
			return nil
		}

		prev := acct.Tokens
		acct.Tokens = prev + entry.Amount
		if err := tx.Save(&acct).Error; err != nil {
			return fmt.Errorf("failed to save account: %w", err)
		}

		audit := schema.TokenTransaction{
			ID:              uuid.NewString(),
			UserID:          userID,
			Amount:          entry.Amount,
			Type:            entry.Type,
			PreviousBalance: prev,
			NewBalance:      acct.Tokens,
		}
		if entry.Metadata != nil {
			meta, err := json.Marshal(entry.Metadata)
			if err != nil {
				return fmt.Errorf("failed to marshal audit metadata: %w", err)
			}
			audit.Metadata = meta
		}
		if err := tx.Create(&audit).Error; err != nil {
			return fmt.Errorf("failed to create audit record: %w", err)
		}

		out = acct
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &out, nil
}

// ListUserTransactions retrieves a user's most recent audit records
func (s *sqlStore) ListUserTransactions(ctx context.Context, userID string, limit int) ([]schema.TokenTransaction, error) {
	var txs []schema.TokenTransaction
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list user transactions: %w", err)
	}
	return txs, nil
}

// ListTransactionsSince retrieves recent audit records across all users
func (s *sqlStore) ListTransactionsSince(ctx context.Context, since time.Time, limit int) ([]schema.TokenTransaction, error) {
	var txs []schema.TokenTransaction
	err := s.db.WithContext(ctx).
		Where("created_at >= ?", since).
		Order("created_at DESC").
		Limit(limit).
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

// TopAccountsByBalance retrieves the highest-balance accounts
func (s *sqlStore) TopAccountsByBalance(ctx context.Context, limit int) ([]schema.TokenAccount, error) {
	var accts []schema.TokenAccount
	err := s.db.WithContext(ctx).
		Order("tokens DESC").
		Limit(limit).
		Find(&accts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list top accounts: %w", err)
	}
	return accts, nil
}

// ListAccounts pages through accounts ordered by user id for repair scans
func (s *sqlStore) ListAccounts(ctx context.Context, limit, offset int) ([]schema.TokenAccount, error) {
	var accts []schema.TokenAccount
	err := s.db.WithContext(ctx).
		Order("user_id ASC").
		Limit(limit).
		Offset(offset).
		Find(&accts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accts, nil
}

// CountAccounts returns the total number of accounts
func (s *sqlStore) CountAccounts(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&schema.TokenAccount{}).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return count, nil
}

// SaveMetricsSnapshot appends a snapshot to the historical metrics log
func (s *sqlStore) SaveMetricsSnapshot(ctx context.Context, snap *schema.MetricsSnapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(snap).Error; err != nil {
		return fmt.Errorf("failed to save metrics snapshot: %w", err)
	}
	return nil
}

// ListMetricsSnapshots retrieves the most recent snapshots
func (s *sqlStore) ListMetricsSnapshots(ctx context.Context, limit int) ([]schema.MetricsSnapshot, error) {
	var snaps []schema.MetricsSnapshot
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&snaps).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list metrics snapshots: %w", err)
	}
	return snaps, nil
}
