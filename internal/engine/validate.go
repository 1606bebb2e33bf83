package engine

import "fmt"

// CanBid reports whether leaderID may bid amount on the current lot. It returns nil to
// accept and otherwise the first rule that failed. It has no side effects.
func CanBid(s State, leaderID string, amount int) error {
	if s.Paused {
		return ErrPaused
	}

	leader, ok := s.Leaders[leaderID]
	if !ok || leader.Departed {
		return ErrUnknownLeader
	}

	lot := s.Lot
	if lot == nil || lot.Phase != PhaseBidding {
		return ErrNotBidding
	}

	if lot.LastBidderID == leaderID {
		return ErrConsecutiveBid
	}

	if leader.slotsLeft(s.Settings) <= 0 {
		return ErrSlotsFull
	}

	// A leader with an empty wallet may still claim an unbid second-round lot for nothing.
	if s.SecondRoundActive && amount == 0 {
		if leader.PointsLeft == 0 && lot.HighestBid == 0 {
			return nil
		}
		return ErrZeroBidNotAllowed
	}

	if floor := lot.HighestBid + s.Settings.BidIncrement; amount < floor {
		return fmt.Errorf("%w: minimum is %d", ErrBidTooLow, floor)
	}

	if limit := maxAffordable(leader, s.Settings); amount > limit {
		return fmt.Errorf("%w: you can bid at most %d", ErrInsufficientPoints, limit)
	}

	return nil
}

// maxAffordable is the largest bid that still leaves the reserve owed for the
// leader's other open slots.
func maxAffordable(l Leader, st Settings) int {
	remainingAfterThis := max(0, l.slotsLeft(st)-1)
	return l.PointsLeft - remainingAfterThis*st.MinReservePerRemainingSlot
}
