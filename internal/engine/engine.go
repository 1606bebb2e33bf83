package engine

import (
	"slices"
	"strings"
	"time"
)

type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhasePreview Phase = "preview"
	PhaseBidding Phase = "bidding"
)

type Role string

const (
	RoleLeader    Role = "leader"
	RoleCandidate Role = "candidate"
	RoleObserver  Role = "observer"
)

// MaxPreferredRoles caps Candidate.PreferredRoles.
const MaxPreferredRoles = 3

// Settings are fixed when a room is created.
type Settings struct {
	BudgetCap                  int `json:"budgetCap" yaml:"budget_cap"`
	BidIncrement               int `json:"bidIncrement" yaml:"bid_increment"`
	PicksPerLeader             int `json:"picksPerLeader" yaml:"picks_per_leader"`
	PreviewDurationSec         int `json:"previewDurationSec" yaml:"preview_duration_sec"`
	BiddingDurationSec         int `json:"biddingDurationSec" yaml:"bidding_duration_sec"`
	RaiseExtensionSec          int `json:"raiseExtensionSec" yaml:"raise_extension_sec"`
	MinReservePerRemainingSlot int `json:"minReservePerRemainingSlot" yaml:"min_reserve_per_remaining_slot"`
}

type Candidate struct {
	ID             string
	DisplayName    string
	PreferredRoles []string
	Pitch          string
}

type Leader struct {
	ID          string
	DisplayName string
	PointsLeft  int
	Picks       []Candidate
	// Departed leaders keep their picks but can no longer bid or receive forced assignments.
	Departed bool
}

func (l Leader) slotsLeft(s Settings) int {
	return s.PicksPerLeader - len(l.Picks)
}

// Bidder is a snapshot of the leader holding the standing bid, not a live reference.
type Bidder struct {
	ID   string
	Name string
}

type Bid struct {
	Bidder
	Amount int
}

type Lot struct {
	Candidate             Candidate
	HighestBid            int
	HighestBidder         *Bidder
	Phase                 Phase
	EndsAt                time.Time
	TotalPhaseDurationSec int
	LastBidderID          string
	PausedRemainingMs     *int64
	Bids                  []Bid
}

// State is the room aggregate. The system log lives with the coordinator, not here.
type State struct {
	Settings          Settings
	Leaders           map[string]Leader
	LeaderOrder       []string
	Catalog           []Candidate // last known full candidate set, restored on reset
	Roster            []Candidate
	Unsold            []Candidate
	SecondRoundActive bool
	UnsoldPassCount   int
	AuctionStarted    bool
	Paused            bool
	Lot               *Lot
}

type CommandType string

const (
	CmdJoin           CommandType = "Join"
	CmdLeave          CommandType = "Leave"
	CmdStartAuction   CommandType = "StartAuction"
	CmdBid            CommandType = "Bid"
	CmdForceNextLot   CommandType = "ForceNextLot"
	CmdPause          CommandType = "Pause"
	CmdResume         CommandType = "Resume"
	CmdResetRoom      CommandType = "ResetRoom"
	CmdUploadRoster   CommandType = "UploadRoster"
	CmdTimeoutAdvance CommandType = "TimeoutAdvance"
)

/*
	CmdJoin           -> EvtLeaderJoined | EvtCandidateRegistered
	CmdLeave          -> EvtBidVoided? -> EvtLeaderLeft | EvtCandidateWithdrawn
	CmdStartAuction   -> EvtAuctionStarted -> EvtLotOpened
	CmdBid            -> EvtBidAccepted
	CmdTimeoutAdvance -> EvtBiddingOpened
	                  or EvtLotSold | EvtLotPassed | EvtForcedAssignment
	                     -> EvtSecondRoundStarted? -> EvtLotOpened | EvtAuctionCompleted
	CmdForceNextLot   -> same settlement cascade as a bidding timeout
	CmdPause/Resume   -> EvtPaused / EvtResumed
	CmdResetRoom      -> EvtRoomReset
	CmdUploadRoster   -> EvtRosterUploaded
*/

type Command struct {
	Type      CommandType
	ClientID  string
	Role      Role
	Name      string
	Candidate Candidate
	Amount    int
	Roster    []Candidate
	At        time.Time
}

type EventType string

const (
	EvtLeaderJoined        EventType = "LeaderJoined"
	EvtCandidateRegistered EventType = "CandidateRegistered"
	EvtLeaderLeft          EventType = "LeaderLeft"
	EvtCandidateWithdrawn  EventType = "CandidateWithdrawn"
	EvtBidVoided           EventType = "BidVoided"
	EvtAuctionStarted      EventType = "AuctionStarted"
	EvtLotOpened           EventType = "LotOpened"
	EvtBiddingOpened       EventType = "BiddingOpened"
	EvtBidAccepted         EventType = "BidAccepted"
	EvtLotSold             EventType = "LotSold"
	EvtLotPassed           EventType = "LotPassed"
	EvtForcedAssignment    EventType = "ForcedAssignment"
	EvtSecondRoundStarted  EventType = "SecondRoundStarted"
	EvtAuctionCompleted    EventType = "AuctionCompleted"
	EvtPaused              EventType = "Paused"
	EvtResumed             EventType = "Resumed"
	EvtRoomReset           EventType = "RoomReset"
	EvtRosterUploaded      EventType = "RosterUploaded"
)

type Event struct {
	Type          EventType
	LeaderID      string
	LeaderName    string
	CandidateID   string
	CandidateName string
	Amount        int
	Pass          int
}

// Apply runs one command against s. On error the returned state is s, untouched.
func Apply(s State, cmd Command) ([]Event, State, error) {
	next := s.Clone()

	var (
		events []Event
		err    error
	)

	switch cmd.Type {
	case CmdJoin:
		events, err = next.join(cmd)
	case CmdLeave:
		events, err = next.leave(cmd.ClientID)
	case CmdStartAuction:
		events, err = next.start(cmd.At)
	case CmdBid:
		events, err = next.placeBid(cmd.ClientID, cmd.Amount, cmd.At)
	case CmdTimeoutAdvance:
		events, err = next.timeoutAdvance(cmd.At)
	case CmdForceNextLot:
		events, err = next.forceNext(cmd.At)
	case CmdPause:
		events, err = next.pause(cmd.At)
	case CmdResume:
		events, err = next.resume(cmd.At)
	case CmdResetRoom:
		events = next.reset()
	case CmdUploadRoster:
		events, err = next.uploadRoster(cmd.Roster)
	default:
		return nil, s, ErrUnsupportedCommand
	}

	if err != nil {
		return nil, s, err
	}
	return events, next, nil
}

func (s *State) join(cmd Command) ([]Event, error) {
	switch cmd.Role {
	case RoleLeader:
		name := strings.TrimSpace(cmd.Name)
		if cmd.ClientID == "" || name == "" {
			return nil, ErrInvalidIdentity
		}
		if s.hasJoined(cmd.ClientID) {
			return nil, ErrAlreadyJoined
		}
		s.Leaders[cmd.ClientID] = Leader{
			ID:          cmd.ClientID,
			DisplayName: name,
			PointsLeft:  s.Settings.BudgetCap,
		}
		s.LeaderOrder = append(s.LeaderOrder, cmd.ClientID)
		return []Event{{Type: EvtLeaderJoined, LeaderID: cmd.ClientID, LeaderName: name}}, nil

	case RoleCandidate:
		c := cmd.Candidate
		c.ID = cmd.ClientID
		if c.DisplayName == "" {
			c.DisplayName = cmd.Name
		}
		if err := validateCandidate(c); err != nil {
			return nil, err
		}
		if s.hasJoined(c.ID) {
			return nil, ErrAlreadyJoined
		}
		s.Catalog = append(s.Catalog, c)
		s.Roster = append(s.Roster, c)
		return []Event{{Type: EvtCandidateRegistered, CandidateID: c.ID, CandidateName: c.DisplayName}}, nil

	case RoleObserver:
		return nil, ErrNoChange

	default:
		return nil, ErrUnknownRole
	}
}

// hasJoined reports whether id already holds a role, as a leader or as a candidate.
func (s *State) hasJoined(id string) bool {
	if _, ok := s.Leaders[id]; ok {
		return true
	}
	return indexOf(s.Catalog, id) >= 0
}

func (s *State) leave(clientID string) ([]Event, error) {
	if leader, ok := s.Leaders[clientID]; ok {
		if leader.Departed {
			return nil, ErrNoChange
		}
		var events []Event
		if s.voidBids(clientID) {
			events = append(events, Event{
				Type:          EvtBidVoided,
				LeaderID:      clientID,
				LeaderName:    leader.DisplayName,
				CandidateID:   s.Lot.Candidate.ID,
				CandidateName: s.Lot.Candidate.DisplayName,
				Amount:        s.Lot.HighestBid,
			})
		}
		if s.AuctionStarted || len(leader.Picks) > 0 {
			leader.Departed = true
			s.Leaders[clientID] = leader
		} else {
			delete(s.Leaders, clientID)
			s.LeaderOrder = slices.DeleteFunc(s.LeaderOrder, func(id string) bool { return id == clientID })
		}
		return append(events, Event{Type: EvtLeaderLeft, LeaderID: clientID, LeaderName: leader.DisplayName}), nil
	}

	if !s.AuctionStarted {
		if i := indexOf(s.Roster, clientID); i >= 0 {
			c := s.Roster[i]
			s.Roster = slices.Delete(s.Roster, i, i+1)
			if j := indexOf(s.Catalog, clientID); j >= 0 {
				s.Catalog = slices.Delete(s.Catalog, j, j+1)
			}
			return []Event{{Type: EvtCandidateWithdrawn, CandidateID: c.ID, CandidateName: c.DisplayName}}, nil
		}
	}
	return nil, ErrNoChange
}

// voidBids drops leaderID's bids on the current lot and reverts the standing bid to the
// latest remaining one. Bids are non-decreasing, so the latest remaining bid is the highest.
func (s *State) voidBids(leaderID string) bool {
	lot := s.Lot
	if lot == nil {
		return false
	}
	kept := make([]Bid, 0, len(lot.Bids))
	for _, b := range lot.Bids {
		if b.ID != leaderID {
			kept = append(kept, b)
		}
	}
	if len(kept) == len(lot.Bids) {
		return false
	}
	lot.Bids = kept
	if len(kept) == 0 {
		lot.HighestBid = 0
		lot.HighestBidder = nil
		lot.LastBidderID = ""
		return true
	}
	last := kept[len(kept)-1]
	bidder := last.Bidder
	lot.HighestBid = last.Amount
	lot.HighestBidder = &bidder
	lot.LastBidderID = last.ID
	return true
}

func (s *State) start(at time.Time) ([]Event, error) {
	if s.AuctionStarted {
		return nil, ErrAlreadyStarted
	}
	if !s.hasEligibleLeader() {
		return nil, ErrNoLeaders
	}
	if len(s.Roster) == 0 {
		return nil, ErrEmptyRoster
	}

	shuffleRoster(s.Roster)
	s.AuctionStarted = true
	s.Paused = false
	s.SecondRoundActive = false
	s.UnsoldPassCount = 0

	events := []Event{{Type: EvtAuctionStarted, Amount: len(s.Roster)}}
	return append(events, s.advance(at)...), nil
}

func (s *State) placeBid(leaderID string, amount int, at time.Time) ([]Event, error) {
	if err := CanBid(*s, leaderID, amount); err != nil {
		return nil, err
	}
	leader := s.Leaders[leaderID]
	bidder := Bidder{ID: leaderID, Name: leader.DisplayName}

	lot := s.Lot
	lot.HighestBid = amount
	lot.HighestBidder = &bidder
	lot.LastBidderID = leaderID
	lot.Bids = append(lot.Bids, Bid{Bidder: bidder, Amount: amount})
	s.armPhase(at, s.Settings.RaiseExtensionSec)

	return []Event{{
		Type:          EvtBidAccepted,
		LeaderID:      leaderID,
		LeaderName:    leader.DisplayName,
		CandidateID:   lot.Candidate.ID,
		CandidateName: lot.Candidate.DisplayName,
		Amount:        amount,
	}}, nil
}

func (s *State) reset() []Event {
	for id, l := range s.Leaders {
		if l.Departed {
			delete(s.Leaders, id)
			continue
		}
		l.PointsLeft = s.Settings.BudgetCap
		l.Picks = nil
		s.Leaders[id] = l
	}
	s.LeaderOrder = slices.DeleteFunc(s.LeaderOrder, func(id string) bool {
		_, ok := s.Leaders[id]
		return !ok
	})
	s.Roster = slices.Clone(s.Catalog)
	s.Unsold = nil
	s.Lot = nil
	s.SecondRoundActive = false
	s.UnsoldPassCount = 0
	s.AuctionStarted = false
	s.Paused = false
	return []Event{{Type: EvtRoomReset}}
}

func (s *State) uploadRoster(roster []Candidate) ([]Event, error) {
	if len(roster) == 0 {
		return nil, ErrEmptyRoster
	}
	seen := make(map[string]bool, len(roster))
	for _, c := range roster {
		if err := validateCandidate(c); err != nil {
			return nil, err
		}
		if seen[c.ID] {
			return nil, ErrDuplicateCandidate
		}
		seen[c.ID] = true
	}
	s.Catalog = slices.Clone(roster)
	events := s.reset()
	return append([]Event{{Type: EvtRosterUploaded, Amount: len(roster)}}, events...), nil
}

func validateCandidate(c Candidate) error {
	if c.ID == "" || strings.TrimSpace(c.DisplayName) == "" {
		return ErrInvalidIdentity
	}
	if len(c.PreferredRoles) > MaxPreferredRoles {
		return ErrTooManyRoles
	}
	return nil
}

// Clone returns a copy that shares no mutable memory with s.
func (s State) Clone() State {
	c := s
	c.Leaders = make(map[string]Leader, len(s.Leaders))
	for id, l := range s.Leaders {
		l.Picks = slices.Clone(l.Picks)
		c.Leaders[id] = l
	}
	c.LeaderOrder = slices.Clone(s.LeaderOrder)
	c.Catalog = slices.Clone(s.Catalog)
	c.Roster = slices.Clone(s.Roster)
	c.Unsold = slices.Clone(s.Unsold)
	if s.Lot != nil {
		lot := *s.Lot
		lot.Bids = slices.Clone(s.Lot.Bids)
		if s.Lot.HighestBidder != nil {
			b := *s.Lot.HighestBidder
			lot.HighestBidder = &b
		}
		if s.Lot.PausedRemainingMs != nil {
			ms := *s.Lot.PausedRemainingMs
			lot.PausedRemainingMs = &ms
		}
		c.Lot = &lot
	}
	return c
}

// CurrentPhase reports the scheduler phase; Idle when no lot is in flight.
func (s State) CurrentPhase() Phase {
	if s.Lot == nil {
		return PhaseIdle
	}
	return s.Lot.Phase
}
