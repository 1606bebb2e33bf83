package engine

import (
	"fmt"
	"math/rand/v2"
)

// DefaultSettings mirrors the values rooms have always been created with.
func DefaultSettings() Settings {
	return Settings{
		BudgetCap:                  500,
		BidIncrement:               10,
		PicksPerLeader:             2,
		PreviewDurationSec:         30,
		BiddingDurationSec:         20,
		RaiseExtensionSec:          10,
		MinReservePerRemainingSlot: 0,
	}
}

func (st Settings) Validate() error {
	switch {
	case st.BudgetCap <= 0:
		return fmt.Errorf("%w: budget cap must be positive", ErrInvalidSettings)
	case st.BidIncrement <= 0:
		return fmt.Errorf("%w: bid increment must be positive", ErrInvalidSettings)
	case st.PicksPerLeader <= 0:
		return fmt.Errorf("%w: picks per leader must be positive", ErrInvalidSettings)
	case st.PreviewDurationSec <= 0, st.BiddingDurationSec <= 0, st.RaiseExtensionSec <= 0:
		return fmt.Errorf("%w: phase durations must be positive", ErrInvalidSettings)
	case st.MinReservePerRemainingSlot < 0:
		return fmt.Errorf("%w: reserve per slot cannot be negative", ErrInvalidSettings)
	}
	return nil
}

func NewEmptyState(st Settings) State {
	return State{
		Settings: st,
		Leaders:  map[string]Leader{},
	}
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

// shuffleRoster permutes the roster in place once per auction start. Tests stub it.
var shuffleRoster = func(cs []Candidate) {
	rand.Shuffle(len(cs), func(i, j int) { cs[i], cs[j] = cs[j], cs[i] })
}

// Describe renders an event as a system log line; "" for unknown events.
func Describe(e Event) string {
	switch e.Type {
	case EvtLeaderJoined:
		return fmt.Sprintf("%s joined as a leader", e.LeaderName)
	case EvtCandidateRegistered:
		return fmt.Sprintf("%s joined as a candidate", e.CandidateName)
	case EvtLeaderLeft:
		return fmt.Sprintf("%s left", e.LeaderName)
	case EvtCandidateWithdrawn:
		return fmt.Sprintf("%s withdrew", e.CandidateName)
	case EvtBidVoided:
		return fmt.Sprintf("bids by %s on %s were voided; standing bid is %d", e.LeaderName, e.CandidateName, e.Amount)
	case EvtAuctionStarted:
		return fmt.Sprintf("auction started with %d candidates", e.Amount)
	case EvtLotOpened:
		return fmt.Sprintf("now introducing %s", e.CandidateName)
	case EvtBiddingOpened:
		return fmt.Sprintf("bidding open for %s", e.CandidateName)
	case EvtBidAccepted:
		return fmt.Sprintf("%s bid %d on %s", e.LeaderName, e.Amount, e.CandidateName)
	case EvtLotSold:
		return fmt.Sprintf("%s won %s for %d", e.LeaderName, e.CandidateName, e.Amount)
	case EvtLotPassed:
		return fmt.Sprintf("%s passed with no bids", e.CandidateName)
	case EvtForcedAssignment:
		return fmt.Sprintf("%s was assigned to %s for 0", e.CandidateName, e.LeaderName)
	case EvtSecondRoundStarted:
		return fmt.Sprintf("second round %d: %d unsold candidates back in the queue", e.Pass, e.Amount)
	case EvtAuctionCompleted:
		if e.Amount > 0 {
			return fmt.Sprintf("auction complete, %d candidates unsold", e.Amount)
		}
		return "auction complete"
	case EvtPaused:
		return "auction paused"
	case EvtResumed:
		return "auction resumed"
	case EvtRoomReset:
		return "room reset"
	case EvtRosterUploaded:
		return fmt.Sprintf("roster uploaded with %d candidates", e.Amount)
	default:
		return ""
	}
}
