package notifier

import (
	"context"
	"time"

	"github.com/tiktox/dhiorfans-ledger/internal/domain"
)

// EventKind classifies a token notification
type EventKind string

const (
	// KindTokensGranted is emitted when a balance is credited
	KindTokensGranted EventKind = "tokens_granted"
	// KindTokensSpent is emitted when a balance is debited
	KindTokensSpent EventKind = "tokens_spent"
)

// Event is the payload pushed to the notification sink after a ledger
// mutation commits. Delivery is fire-and-forget: the ledger never depends on
// its success.
type Event struct {
	ID              string                 `json:"id"`
	UserID          string                 `json:"userId"`
	Kind            EventKind              `json:"kind"`
	TransactionType domain.TransactionType `json:"transactionType"`
	Amount          int64                  `json:"amount"`
	NewBalance      int64                  `json:"newBalance"`
	OccurredAt      time.Time              `json:"occurredAt"`
}

// Notifier defines the interface for pushing token events to the
// notification sink
//
//go:generate mockgen -source=notifier.go -destination=../mocks/notifier.go -package=mocks -mock_names=Notifier=MockNotifier
type Notifier interface {
	// Notify pushes one event; failures are for the caller to log, never to
	// propagate into ledger state
	Notify(ctx context.Context, event Event) error
	// Close releases the underlying connection
	Close()
}

// Noop is a Notifier that drops every event; used in tests and when no
// broker is configured
type Noop struct{}

// NewNoop creates a no-op notifier
func NewNoop() Notifier {
	return &Noop{}
}

func (n *Noop) Notify(_ context.Context, _ Event) error { return nil }

func (n *Noop) Close() {}
