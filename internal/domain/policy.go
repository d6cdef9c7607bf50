package domain

import "time"

// RewardPolicy holds the tunable token-economy constants. These encode
// product policy, not structural invariants, so they are configuration
// rather than literals scattered through the engine.
type RewardPolicy struct {
	// DailyBaseReward is the flat portion of the daily claim
	DailyBaseReward int64
	// MilestoneStep is the follower-count interval that defines a milestone
	MilestoneStep int64
	// MilestoneBonus is the credit per milestone crossed
	MilestoneBonus int64
	// ClaimInterval is the minimum time between successful daily claims
	ClaimInterval time.Duration
	// StarterHighFollowers / StarterMidFollowers are the tier boundaries for
	// the migration starter balance
	StarterHighFollowers int64
	StarterMidFollowers  int64
	// StarterHigh/Mid/Base are the starter balances per tier
	StarterHigh int64
	StarterMid  int64
	StarterBase int64
	// EmergencyBalance is the best-effort balance written when provisioning
	// fails partway
	EmergencyBalance int64
	// MaxCreditAmount caps a single credit to guard against overflow and typos
	MaxCreditAmount int64
}

// DefaultRewardPolicy returns the production token-economy constants
func DefaultRewardPolicy() RewardPolicy {
	return RewardPolicy{
		DailyBaseReward:      10,
		MilestoneStep:        500,
		MilestoneBonus:       50,
		ClaimInterval:        24 * time.Hour,
		StarterHighFollowers: 500,
		StarterMidFollowers:  100,
		StarterHigh:          200,
		StarterMid:           150,
		StarterBase:          100,
		EmergencyBalance:     50,
		MaxCreditAmount:      50_000_000,
	}
}

// CanClaim reports whether a daily claim is eligible given the last claim
// timestamp (ms since epoch) and the current time. A zero lastClaim means
// the account has never claimed and is immediately eligible.
func (p RewardPolicy) CanClaim(lastClaim int64, now time.Time) bool {
	if lastClaim == 0 {
		return true
	}
	return now.UnixMilli()-lastClaim >= p.ClaimInterval.Milliseconds()
}

// ClaimReward computes the daily claim reward for a follower count:
// base + one milestone bonus per full milestone step.
func (p RewardPolicy) ClaimReward(followers int64) int64 {
	if followers < 0 {
		followers = 0
	}
	return p.DailyBaseReward + (followers/p.MilestoneStep)*p.MilestoneBonus
}

// StarterBalance computes the migration starter balance by follower tier
func (p RewardPolicy) StarterBalance(followers int64) int64 {
	switch {
	case followers >= p.StarterHighFollowers:
		return p.StarterHigh
	case followers >= p.StarterMidFollowers:
		return p.StarterMid
	default:
		return p.StarterBase
	}
}

// MilestoneBonusFor computes the bonus owed when a follower count moves from
// oldFollowers to newFollowers. Zero when no milestone boundary was crossed
// upward; milestones are never re-granted on the way down.
func (p RewardPolicy) MilestoneBonusFor(oldFollowers, newFollowers int64) int64 {
	if oldFollowers < 0 {
		oldFollowers = 0
	}
	if newFollowers < 0 {
		newFollowers = 0
	}
	oldMilestone := oldFollowers / p.MilestoneStep
	newMilestone := newFollowers / p.MilestoneStep
	if newMilestone <= oldMilestone {
		return 0
	}
	return (newMilestone - oldMilestone) * p.MilestoneBonus
}
