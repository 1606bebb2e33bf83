package engine

import (
	"cmp"
	"slices"
)

// settle closes the current lot exactly once: award, forced assignment or pass.
func (s *State) settle() ([]Event, error) {
	lot := s.Lot
	if lot == nil {
		return nil, ErrNoLotToSettle
	}
	s.Lot = nil
	c := lot.Candidate

	if lot.HighestBidder != nil {
		if leader, ok := s.Leaders[lot.HighestBidder.ID]; ok {
			leader.PointsLeft -= lot.HighestBid
			leader.Picks = append(leader.Picks, c)
			s.Leaders[leader.ID] = leader
			return []Event{{
				Type:          EvtLotSold,
				LeaderID:      leader.ID,
				LeaderName:    leader.DisplayName,
				CandidateID:   c.ID,
				CandidateName: c.DisplayName,
				Amount:        lot.HighestBid,
			}}, nil
		}
	}

	if s.SecondRoundActive {
		if leader, ok := s.forcedAssignee(); ok {
			leader.Picks = append(leader.Picks, c)
			s.Leaders[leader.ID] = leader
			return []Event{{
				Type:          EvtForcedAssignment,
				LeaderID:      leader.ID,
				LeaderName:    leader.DisplayName,
				CandidateID:   c.ID,
				CandidateName: c.DisplayName,
			}}, nil
		}
	}

	s.Unsold = append(s.Unsold, c)
	return []Event{{Type: EvtLotPassed, CandidateID: c.ID, CandidateName: c.DisplayName, Pass: s.UnsoldPassCount}}, nil
}

// forcedAssignee picks the present leader with a free slot and the most points left,
// ties broken by ascending name (then id, so the choice is total).
func (s *State) forcedAssignee() (Leader, bool) {
	eligible := s.eligibleLeaders()
	if len(eligible) == 0 {
		return Leader{}, false
	}
	best := slices.MinFunc(eligible, func(a, b Leader) int {
		return cmp.Or(
			cmp.Compare(b.PointsLeft, a.PointsLeft),
			cmp.Compare(a.DisplayName, b.DisplayName),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return best, true
}
