package engine

import (
	"slices"
	"time"
)

// advance runs the queue-advance rule after a settlement (or at start):
// dequeue the next candidate, else promote the unsold pool once the roster is dry,
// else halt.
func (s *State) advance(at time.Time) []Event {
	// Nobody left who could take a candidate; stop rather than cycle the unsold pool forever.
	if !s.hasEligibleLeader() {
		s.Unsold = append(s.Unsold, s.Roster...)
		s.Roster = nil
		return s.finish()
	}

	var events []Event
	if len(s.Roster) == 0 && len(s.Unsold) > 0 {
		// FIFO order is kept for the second round.
		s.Roster = s.Unsold
		s.Unsold = nil
		s.SecondRoundActive = true
		s.UnsoldPassCount++
		events = append(events, Event{Type: EvtSecondRoundStarted, Amount: len(s.Roster), Pass: s.UnsoldPassCount})
	}

	if len(s.Roster) == 0 {
		return append(events, s.finish()...)
	}

	next := s.Roster[0]
	s.Roster = slices.Delete(s.Roster, 0, 1)
	s.Lot = &Lot{Candidate: next, Phase: PhasePreview}
	s.armPhase(at, s.Settings.PreviewDurationSec)

	return append(events, Event{Type: EvtLotOpened, CandidateID: next.ID, CandidateName: next.DisplayName, Pass: s.UnsoldPassCount})
}

func (s *State) finish() []Event {
	s.AuctionStarted = false
	s.Paused = false
	s.Lot = nil
	return []Event{{Type: EvtAuctionCompleted, Amount: len(s.Unsold)}}
}

// eligibleLeaders are present leaders with at least one open slot, in join order.
func (s *State) eligibleLeaders() []Leader {
	var out []Leader
	for _, id := range s.LeaderOrder {
		l, ok := s.Leaders[id]
		if !ok || l.Departed || l.slotsLeft(s.Settings) <= 0 {
			continue
		}
		out = append(out, l)
	}
	return out
}

func (s *State) hasEligibleLeader() bool {
	return len(s.eligibleLeaders()) > 0
}

func indexOf(cs []Candidate, id string) int {
	return slices.IndexFunc(cs, func(c Candidate) bool { return c.ID == id })
}
