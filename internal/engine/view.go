package engine

import (
	"time"

	"github.com/DoyleJ11/lot-auction-backend/pkg/types"
)

// View projects the state into the public snapshot as seen at now.
func (s State) View(code string, now time.Time) types.RoomSnapshot {
	snap := types.RoomSnapshot{
		Code:              code,
		Settings:          types.SettingsView(s.Settings),
		Phase:             string(s.CurrentPhase()),
		AuctionStarted:    s.AuctionStarted,
		Paused:            s.Paused,
		SecondRoundActive: s.SecondRoundActive,
		UnsoldPassCount:   s.UnsoldPassCount,
		Leaders:           make([]types.LeaderView, 0, len(s.LeaderOrder)),
		Roster:            candidateViews(s.Roster),
		Unsold:            candidateViews(s.Unsold),
	}

	for _, id := range s.LeaderOrder {
		l, ok := s.Leaders[id]
		if !ok {
			continue
		}
		snap.Leaders = append(snap.Leaders, types.LeaderView{
			ID:         l.ID,
			Name:       l.DisplayName,
			PointsLeft: l.PointsLeft,
			Picks:      candidateViews(l.Picks),
			Departed:   l.Departed,
		})
	}

	if lot := s.Lot; lot != nil {
		lv := &types.LotView{
			Candidate:             candidateView(lot.Candidate),
			Phase:                 string(lot.Phase),
			HighestBid:            lot.HighestBid,
			LastBidderID:          lot.LastBidderID,
			EndsAt:                lot.EndsAt.UnixMilli(),
			RemainingMs:           s.RemainingMs(now),
			TotalPhaseDurationSec: lot.TotalPhaseDurationSec,
		}
		if lot.HighestBidder != nil {
			lv.HighestBidder = &types.BidderView{ID: lot.HighestBidder.ID, Name: lot.HighestBidder.Name}
		}
		snap.Lot = lv
	}
	return snap
}

func candidateView(c Candidate) types.CandidateView {
	roles := c.PreferredRoles
	if roles == nil {
		roles = []string{}
	}
	return types.CandidateView{ID: c.ID, Name: c.DisplayName, PreferredRoles: roles, Pitch: c.Pitch}
}

func candidateViews(cs []Candidate) []types.CandidateView {
	out := make([]types.CandidateView, 0, len(cs))
	for _, c := range cs {
		out = append(out, candidateView(c))
	}
	return out
}
