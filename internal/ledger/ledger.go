package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/tiktox/dhiorfans-ledger/internal/adapter"
	"github.com/tiktox/dhiorfans-ledger/internal/cache"
	"github.com/tiktox/dhiorfans-ledger/internal/domain"
	"github.com/tiktox/dhiorfans-ledger/internal/logger"
	"github.com/tiktox/dhiorfans-ledger/internal/notifier"
	"github.com/tiktox/dhiorfans-ledger/internal/store"
	"github.com/tiktox/dhiorfans-ledger/internal/store/schema"
)

// notifyTimeout bounds a single post-commit notification delivery
const notifyTimeout = 5 * time.Second

// Service is the transactional token ledger engine. Every balance mutation
// runs as one read-modify-write transaction against the store, paired with
// exactly one audit record, wrapped by the retryer so transient store
// unavailability is invisible to callers up to the retry budget.
type Service struct {
	store    store.Store
	cache    *cache.AccountCache
	retryer  *adapter.Retryer
	notifier notifier.Notifier
	clock    adapter.Clock
	policy   domain.RewardPolicy

	notifyWG sync.WaitGroup
}

// NewService creates a ledger service. The cache is owned by this instance.
func NewService(
	st store.Store,
	accountCache *cache.AccountCache,
	retryer *adapter.Retryer,
	n notifier.Notifier,
	clock adapter.Clock,
	policy domain.RewardPolicy,
) *Service {
	return &Service{
		store:    st,
		cache:    accountCache,
		retryer:  retryer,
		notifier: n,
		clock:    clock,
		policy:   policy,
	}
}

// Close waits for in-flight notification dispatches to drain
func (s *Service) Close() {
	s.notifyWG.Wait()
}

// CanClaim reports whether a daily claim is currently eligible for the given
// last-claim timestamp (ms since epoch; 0 = never claimed)
func (s *Service) CanClaim(lastClaim int64) bool {
	return s.policy.CanClaim(lastClaim, s.clock.Now())
}

// GetBalance returns the user's account, provisioning it when absent and
// repairing it when corrupted. It never returns an error: on total store
// failure a degraded in-memory value is returned so balance UI cannot crash.
func (s *Service) GetBalance(ctx context.Context, userID string) *domain.TokenAccount {
	if acct := s.cache.Get(userID); acct != nil {
		return acct
	}

	var row *schema.TokenAccount
	err := s.retryer.Do(ctx, "get account", func(ctx context.Context) error {
		var opErr error
		row, opErr = s.store.GetAccount(ctx, userID)
		return opErr
	})
	if err != nil {
		logger.ErrorCtx(ctx, err, zap.String("user_id", userID))
		return s.EnsureAccountExists(ctx, userID, 0)
	}

	if row == nil {
		return s.EnsureAccountExists(ctx, userID, 0)
	}

	if row.Normalize() {
		// Self-heal: persist the correction so the invalid record never
		// resurfaces. The corrected value is authoritative either way.
		if err := s.retryer.Do(ctx, "repair account", func(ctx context.Context) error {
			return s.store.SaveAccount(ctx, row)
		}); err != nil {
			logger.WarnCtx(ctx, "Failed to persist account repair",
				zap.String("user_id", userID), zap.Error(err))
		} else {
			logger.InfoCtx(ctx, "Repaired corrupted account on read", zap.String("user_id", userID))
		}
	}

	acct := toDomain(row)
	s.cache.Put(acct)
	return acct
}

// ClaimDaily issues the once-per-24h reward. Eligibility is re-checked
// against the locked row inside the transaction, so at most one concurrent
// claim can succeed per window. An ineligible claim is a business outcome:
// success=false with the unchanged balance, not an error.
func (s *Service) ClaimDaily(ctx context.Context, userID string, currentFollowers int64) (*domain.ClaimResult, error) {
	if currentFollowers < 0 {
		return nil, domain.ErrInvalidFollowerCount
	}

	// Migrate absent accounts first so a brand-new user claims against the
	// starter balance
	s.EnsureAccountExists(ctx, userID, currentFollowers)

	var (
		out     *schema.TokenAccount
		current int64
		reward  int64
	)
	err := s.retryer.Do(ctx, "claim daily", func(ctx context.Context) error {
		var opErr error
		out, opErr = s.store.MutateAccount(ctx, userID, store.MutateOptions{CreateIfMissing: true},
			func(acct *schema.TokenAccount) (*store.AuditEntry, error) {
				current = acct.Tokens

				now := s.clock.Now()
				if !s.policy.CanClaim(acct.LastClaim, now) {
					return nil, domain.ErrClaimNotEligible
				}

				reward = s.policy.ClaimReward(currentFollowers)
				acct.LastClaim = now.UnixMilli()
				acct.FollowersCount = currentFollowers
				return &store.AuditEntry{
					Amount: reward,
					Type:   domain.TransactionTypeDailyClaim,
					Metadata: map[string]any{
						"followers": currentFollowers,
					},
				}, nil
			})
		return opErr
	})
	if err != nil {
		if errors.Is(err, domain.ErrClaimNotEligible) {
			return &domain.ClaimResult{Success: false, TokensEarned: 0, NewBalance: current}, nil
		}
		return nil, err
	}

	s.cache.Put(toDomain(out))
	s.dispatch(notifier.KindTokensGranted, domain.TransactionTypeDailyClaim, userID, reward, out.Tokens)

	logger.InfoCtx(ctx, "Daily claim issued",
		zap.String("user_id", userID),
		zap.Int64("reward", reward),
		zap.Int64("new_balance", out.Tokens),
	)
	return &domain.ClaimResult{Success: true, TokensEarned: reward, NewBalance: out.Tokens}, nil
}

// Spend debits the account. Spending against a non-existent account fails
// rather than auto-provisioning, and an insufficient balance leaves the
// account unchanged with no audit record.
func (s *Service) Spend(ctx context.Context, userID string, amount int64, reason string) (*domain.SpendResult, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if reason == "" {
		return nil, domain.ErrInvalidReason
	}

	var (
		out     *schema.TokenAccount
		current int64
	)
	err := s.retryer.Do(ctx, "spend", func(ctx context.Context) error {
		var opErr error
		out, opErr = s.store.MutateAccount(ctx, userID, store.MutateOptions{},
			func(acct *schema.TokenAccount) (*store.AuditEntry, error) {
				current = acct.Tokens
				if acct.Tokens < amount {
					return nil, domain.ErrInsufficientBalance
				}
				return &store.AuditEntry{
					Amount: -amount,
					Type:   domain.TransactionTypePurchase,
					Metadata: map[string]any{
						"reason": reason,
					},
				}, nil
			})
		return opErr
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInsufficientBalance):
			return &domain.SpendResult{Success: false, RemainingBalance: current, Reason: "insufficient balance"}, nil
		case errors.Is(err, domain.ErrAccountNotFound):
			return &domain.SpendResult{Success: false, RemainingBalance: 0, Reason: "account not found"}, nil
		}
		return nil, err
	}

	s.cache.Put(toDomain(out))
	s.dispatch(notifier.KindTokensSpent, domain.TransactionTypePurchase, userID, -amount, out.Tokens)

	logger.InfoCtx(ctx, "Tokens spent",
		zap.String("user_id", userID),
		zap.Int64("amount", amount),
		zap.String("reason", reason),
		zap.Int64("remaining", out.Tokens),
	)
	return &domain.SpendResult{Success: true, RemainingBalance: out.Tokens}, nil
}

// Credit adds tokens to the account, provisioning a zero baseline inside the
// same transaction when absent. Amounts above the policy cap are rejected
// before any store access.
func (s *Service) Credit(ctx context.Context, userID string, amount int64, reason string) (*domain.CreditResult, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if amount > s.policy.MaxCreditAmount {
		return nil, domain.ErrAmountTooLarge
	}
	if reason == "" {
		return nil, domain.ErrInvalidReason
	}

	var out *schema.TokenAccount
	err := s.retryer.Do(ctx, "credit", func(ctx context.Context) error {
		var opErr error
		out, opErr = s.store.MutateAccount(ctx, userID, store.MutateOptions{CreateIfMissing: true},
			func(acct *schema.TokenAccount) (*store.AuditEntry, error) {
				return &store.AuditEntry{
					Amount: amount,
					Type:   domain.TransactionTypeManualAdd,
					Metadata: map[string]any{
						"reason": reason,
					},
				}, nil
			})
		return opErr
	})
	if err != nil {
		return nil, err
	}

	s.cache.Put(toDomain(out))
	s.dispatch(notifier.KindTokensGranted, domain.TransactionTypeManualAdd, userID, amount, out.Tokens)

	logger.InfoCtx(ctx, "Tokens credited",
		zap.String("user_id", userID),
		zap.Int64("amount", amount),
		zap.String("reason", reason),
	)
	return &domain.CreditResult{Success: true, NewBalance: out.Tokens}, nil
}

// GrantFollowerMilestoneBonus credits the one-time bonus when the follower
// count crosses a 500 boundary and returns the grant, or nil when no boundary
// was crossed (the follower count is still updated). This is the single
// source of truth for milestone crossings.
func (s *Service) GrantFollowerMilestoneBonus(ctx context.Context, userID string, newFollowers int64) (*domain.MilestoneGrant, error) {
	return s.applyFollowerUpdate(ctx, userID, newFollowers, domain.TransactionTypeFollowerMilestoneBonus)
}

// SyncFollowers reconciles the stored follower count on the passive sync
// path, granting any milestone bonus under the sync audit tag. It is
// fire-and-forget from the caller's perspective: errors are logged only.
func (s *Service) SyncFollowers(ctx context.Context, userID string, currentFollowers int64) {
	if _, err := s.applyFollowerUpdate(ctx, userID, currentFollowers, domain.TransactionTypeFollowerSyncBonus); err != nil {
		logger.WarnCtx(ctx, "Follower sync failed",
			zap.String("user_id", userID),
			zap.Int64("followers", currentFollowers),
			zap.Error(err),
		)
	}
}

func (s *Service) applyFollowerUpdate(ctx context.Context, userID string, newFollowers int64, txType domain.TransactionType) (*domain.MilestoneGrant, error) {
	if newFollowers < 0 {
		return nil, domain.ErrInvalidFollowerCount
	}

	var (
		out   *schema.TokenAccount
		bonus int64
	)
	err := s.retryer.Do(ctx, "follower update", func(ctx context.Context) error {
		var opErr error
		out, opErr = s.store.MutateAccount(ctx, userID, store.MutateOptions{CreateIfMissing: true},
			func(acct *schema.TokenAccount) (*store.AuditEntry, error) {
				oldFollowers := acct.FollowersCount
				bonus = s.policy.MilestoneBonusFor(oldFollowers, newFollowers)
				acct.FollowersCount = newFollowers

				if bonus == 0 {
					// Count update only: no audit record
					return nil, nil
				}
				return &store.AuditEntry{
					Amount: bonus,
					Type:   txType,
					Metadata: map[string]any{
						"old_followers": oldFollowers,
						"new_followers": newFollowers,
					},
				}, nil
			})
		return opErr
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(userID)

	if bonus == 0 {
		return nil, nil
	}

	s.dispatch(notifier.KindTokensGranted, txType, userID, bonus, out.Tokens)
	logger.InfoCtx(ctx, "Follower milestone bonus granted",
		zap.String("user_id", userID),
		zap.Int64("bonus", bonus),
		zap.Int64("followers", newFollowers),
	)
	return &domain.MilestoneGrant{TokensGranted: bonus, NewBalance: out.Tokens}, nil
}

// EnsureAccountExists migrates a legacy or missing record into a valid
// account, granting the follower-tiered starter balance exactly once. It is
// idempotent and never returns an error: it is the last line of defense
// invoked from error handlers, so on total store failure it falls back to a
// best-effort emergency record and returns that value regardless.
func (s *Service) EnsureAccountExists(ctx context.Context, userID string, currentFollowers int64) *domain.TokenAccount {
	if currentFollowers < 0 {
		currentFollowers = 0
	}

	var (
		row     *schema.TokenAccount
		created bool
	)
	err := s.retryer.Do(ctx, "ensure account", func(ctx context.Context) error {
		existing, opErr := s.store.GetAccount(ctx, userID)
		if opErr != nil {
			return opErr
		}
		if existing != nil {
			if existing.Normalize() {
				if saveErr := s.store.SaveAccount(ctx, existing); saveErr != nil {
					return saveErr
				}
				logger.InfoCtx(ctx, "Repaired corrupted account during migration check",
					zap.String("user_id", userID))
			}
			row, created = existing, false
			return nil
		}

		starter := s.policy.StarterBalance(currentFollowers)
		acct, didCreate, opErr := s.store.CreateAccount(ctx, store.CreateAccountInput{
			UserID:         userID,
			Tokens:         starter,
			FollowersCount: currentFollowers,
			BonusType:      domain.TransactionTypeMigrationBonus,
			Metadata: map[string]any{
				"followers": currentFollowers,
			},
		})
		if opErr != nil {
			return opErr
		}
		row, created = acct, didCreate
		return nil
	})
	if err != nil {
		logger.ErrorCtx(ctx, err, zap.String("user_id", userID),
			zap.String("operation", "ensure account"))
		return s.emergencyAccount(ctx, userID, currentFollowers)
	}

	acct := toDomain(row)
	s.cache.Put(acct)

	if created {
		s.dispatch(notifier.KindTokensGranted, domain.TransactionTypeMigrationBonus, userID, row.Tokens, row.Tokens)
		logger.InfoCtx(ctx, "Provisioned token account",
			zap.String("user_id", userID),
			zap.Int64("starter_balance", row.Tokens),
			zap.Int64("followers", currentFollowers),
		)
	}
	return acct
}

// emergencyAccount writes a minimal account best-effort and returns it
// whether or not the write succeeded. The value is degraded, never cached.
func (s *Service) emergencyAccount(ctx context.Context, userID string, followers int64) *domain.TokenAccount {
	row := &schema.TokenAccount{
		UserID:         userID,
		Tokens:         s.policy.EmergencyBalance,
		FollowersCount: followers,
	}
	if err := s.store.SaveAccount(ctx, row); err != nil {
		logger.WarnCtx(ctx, "Emergency account write failed, returning in-memory value",
			zap.String("user_id", userID), zap.Error(err))
	}
	return toDomain(row)
}

// ClearCache invalidates one user's cache entry, or the whole cache when
// userID is empty
func (s *Service) ClearCache(userID string) {
	if userID == "" {
		s.cache.InvalidateAll()
		return
	}
	s.cache.Invalidate(userID)
}

// CacheStats reports the account cache's size and keys
func (s *Service) CacheStats() domain.CacheStats {
	return s.cache.Stats()
}

// dispatch emits a post-commit token event to the notification bridge.
// Delivery runs outside the transaction on its own goroutine: failures are
// logged and structurally incapable of affecting ledger state.
func (s *Service) dispatch(kind notifier.EventKind, txType domain.TransactionType, userID string, amount, newBalance int64) {
	event := notifier.Event{
		ID:              ulid.Make().String(),
		UserID:          userID,
		Kind:            kind,
		TransactionType: txType,
		Amount:          amount,
		NewBalance:      newBalance,
		OccurredAt:      s.clock.Now(),
	}

	s.notifyWG.Add(1)
	go func() {
		defer s.notifyWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.notifier.Notify(ctx, event); err != nil {
			logger.Warn("Failed to deliver token notification",
				zap.String("user_id", userID),
				zap.String("kind", string(kind)),
				zap.Error(err),
			)
		}
	}()
}

// toDomain converts a schema row to the caller-facing account view
func toDomain(row *schema.TokenAccount) *domain.TokenAccount {
	return &domain.TokenAccount{
		UserID:         row.UserID,
		Tokens:         row.Tokens,
		LastClaim:      row.LastClaim,
		FollowersCount: row.FollowersCount,
	}
}
