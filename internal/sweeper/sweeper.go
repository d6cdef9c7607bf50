package sweeper

import (
	"context"
)

// Sweeper is a long-running background task performing periodic maintenance
// against the ledger, out of band from the request path
//
//go:generate mockgen -source=sweeper.go -destination=../mocks/sweeper.go -package=mocks -mock_names=Sweeper=MockSweeper
type Sweeper interface {
	// Start begins the sweeper's main loop. It blocks until the context is
	// canceled or Stop is called.
	Start(ctx context.Context) error

	// Stop gracefully stops the sweeper, waiting for the in-progress cycle
	// to complete
	Stop(ctx context.Context) error

	// Name returns the sweeper's name for logging and identification
	Name() string
}
