package schema

import (
	"time"
)

// TokenAccount represents the token_accounts table - one balance record per user
type TokenAccount struct {
	// UserID is the authentication provider's stable user identifier
	UserID string `gorm:"column:user_id;primaryKey;type:text"`
	// Tokens is the current balance
	Tokens int64 `gorm:"column:tokens;not null;default:0"`
	// LastClaim is the last successful daily claim in ms since epoch (0 = never claimed)
	LastClaim int64 `gorm:"column:last_claim;not null;default:0"`
	// FollowersCount is the last-known follower count, used for bonus computation
	FollowersCount int64 `gorm:"column:followers_count;not null;default:0"`
	// CreatedAt is when the account was first provisioned
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime"`
	// UpdatedAt is when the account was last mutated
	UpdatedAt time.Time `gorm:"column:updated_at;not null;autoUpdateTime"`
}

// TableName specifies the table name for the TokenAccount model
func (TokenAccount) TableName() string {
	return "token_accounts"
}

// Valid reports whether the record satisfies the data-model invariant:
// all balance fields present and non-negative.
func (a *TokenAccount) Valid() bool {
	return a.Tokens >= 0 && a.LastClaim >= 0 && a.FollowersCount >= 0
}

// Normalize coerces an invalid record to valid defaults by clamping negative
// fields to zero. It returns true when anything was changed, in which case
// the caller persists the correction. Typed columns already exclude
// non-numeric corruption at the store boundary, so clamping is the full
// repair rule.
func (a *TokenAccount) Normalize() bool {
	changed := false
	if a.Tokens < 0 {
		a.Tokens = 0
		changed = true
	}
	if a.LastClaim < 0 {
		a.LastClaim = 0
		changed = true
	}
	if a.FollowersCount < 0 {
		a.FollowersCount = 0
		changed = true
	}
	return changed
}
