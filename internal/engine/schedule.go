package engine

import "time"

// timeoutAdvance fires at most one transition for an expired phase.
func (s *State) timeoutAdvance(at time.Time) ([]Event, error) {
	lot := s.Lot
	if !s.AuctionStarted || s.Paused || lot == nil {
		return nil, ErrNoChange
	}
	if at.Before(lot.EndsAt) {
		return nil, ErrNoChange
	}

	switch lot.Phase {
	case PhasePreview:
		lot.Phase = PhaseBidding
		lot.LastBidderID = ""
		s.armPhase(at, s.Settings.BiddingDurationSec)
		return []Event{{
			Type:          EvtBiddingOpened,
			CandidateID:   lot.Candidate.ID,
			CandidateName: lot.Candidate.DisplayName,
		}}, nil

	case PhaseBidding:
		return s.settleAndAdvance(at)

	default:
		return nil, ErrNoLotToSettle
	}
}

// forceNext truncates the current phase and settles the lot immediately.
func (s *State) forceNext(at time.Time) ([]Event, error) {
	if !s.AuctionStarted {
		return nil, ErrNotStarted
	}
	if s.Paused {
		return nil, ErrPaused
	}
	return s.settleAndAdvance(at)
}

func (s *State) settleAndAdvance(at time.Time) ([]Event, error) {
	events, err := s.settle()
	if err != nil {
		return nil, err
	}
	return append(events, s.advance(at)...), nil
}

func (s *State) pause(at time.Time) ([]Event, error) {
	if !s.AuctionStarted || s.Lot == nil {
		return nil, ErrNoLotInFlight
	}
	if s.Paused {
		return nil, ErrAlreadyPaused
	}
	remaining := max(0, s.Lot.EndsAt.Sub(at).Milliseconds())
	s.Lot.PausedRemainingMs = &remaining
	s.Paused = true
	return []Event{{Type: EvtPaused, CandidateID: s.Lot.Candidate.ID, CandidateName: s.Lot.Candidate.DisplayName}}, nil
}

func (s *State) resume(at time.Time) ([]Event, error) {
	if !s.Paused {
		return nil, ErrNotPaused
	}
	s.Paused = false
	lot := s.Lot
	if lot == nil {
		return []Event{{Type: EvtResumed}}, nil
	}

	remaining := time.Duration(lot.TotalPhaseDurationSec) * time.Second
	if lot.PausedRemainingMs != nil {
		remaining = time.Duration(*lot.PausedRemainingMs) * time.Millisecond
	}
	lot.EndsAt = at.Add(remaining)
	lot.PausedRemainingMs = nil
	return []Event{{Type: EvtResumed, CandidateID: lot.Candidate.ID, CandidateName: lot.Candidate.DisplayName}}, nil
}

// armPhase restarts the current lot's phase clock to exactly sec seconds from at.
func (s *State) armPhase(at time.Time, sec int) {
	s.Lot.EndsAt = at.Add(time.Duration(sec) * time.Second)
	s.Lot.TotalPhaseDurationSec = sec
}

// RemainingMs is the time left in the current phase as seen at now; frozen while paused.
func (s State) RemainingMs(now time.Time) int64 {
	if s.Lot == nil {
		return 0
	}
	if s.Paused && s.Lot.PausedRemainingMs != nil {
		return *s.Lot.PausedRemainingMs
	}
	return max(0, s.Lot.EndsAt.Sub(now).Milliseconds())
}
