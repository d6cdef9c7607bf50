package domain

import "errors"

var (
	// ErrAccountNotFound is returned when spending against an account that does not exist.
	// Spend never auto-provisions; reads do.
	ErrAccountNotFound = errors.New("token account not found")

	// ErrInsufficientBalance is returned when a spend exceeds the current balance
	ErrInsufficientBalance = errors.New("insufficient token balance")

	// ErrClaimNotEligible is returned when the daily claim window has not elapsed
	ErrClaimNotEligible = errors.New("daily claim not yet eligible")

	// ErrInvalidAmount is returned when an amount is zero or negative
	ErrInvalidAmount = errors.New("amount must be a positive integer")

	// ErrInvalidReason is returned when a spend/credit reason is empty
	ErrInvalidReason = errors.New("reason must not be empty")

	// ErrAmountTooLarge is returned when a credit exceeds the sanity cap
	ErrAmountTooLarge = errors.New("amount exceeds maximum allowed credit")

	// ErrInvalidFollowerCount is returned when a follower count is negative
	ErrInvalidFollowerCount = errors.New("follower count must be non-negative")
)

// IsBusinessRejection reports whether err is a business-rule outcome rather
// than a transport failure. Business rejections are final: they must never
// consume retry attempts.
func IsBusinessRejection(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrClaimNotEligible) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidReason) ||
		errors.Is(err, ErrAmountTooLarge) ||
		errors.Is(err, ErrInvalidFollowerCount)
}
