package schema

import (
	"time"

	"gorm.io/datatypes"

	"github.com/tiktox/dhiorfans-ledger/internal/domain"
)

// TokenTransaction represents the token_transactions table - append-only audit
// trail of balance-changing events. Rows are written in the same transaction
// as the paired TokenAccount mutation and are immutable thereafter.
type TokenTransaction struct {
	// ID is a generated unique identifier (UUID)
	ID string `gorm:"column:id;primaryKey;type:text"`
	// UserID references the account that was mutated
	UserID string `gorm:"column:user_id;not null;index:idx_token_transactions_user;type:text"`
	// Amount is the signed balance delta (positive = credit, negative = debit)
	Amount int64 `gorm:"column:amount;not null"`
	// Type tags the event (daily_claim, purchase, manual_add, ...)
	Type domain.TransactionType `gorm:"column:type;not null;type:text"`
	// PreviousBalance is the balance before the mutation
	PreviousBalance int64 `gorm:"column:previous_balance;not null"`
	// NewBalance is the balance after the mutation; always PreviousBalance + Amount
	NewBalance int64 `gorm:"column:new_balance;not null"`
	// Metadata carries free-form context about the event as JSON
	Metadata datatypes.JSON `gorm:"column:metadata;type:jsonb"`
	// CreatedAt is when the event occurred
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime;index:idx_token_transactions_created"`
}

// TableName specifies the table name for the TokenTransaction model
func (TokenTransaction) TableName() string {
	return "token_transactions"
}
