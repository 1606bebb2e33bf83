package types

// RoomSnapshot is the full room view broadcast after every mutation.
type RoomSnapshot struct {
	Code              string          `json:"code"`
	Settings          SettingsView    `json:"settings"`
	Phase             string          `json:"phase"` // "idle" | "preview" | "bidding"
	AuctionStarted    bool            `json:"auctionStarted"`
	Paused            bool            `json:"paused"`
	SecondRoundActive bool            `json:"secondRoundActive"`
	UnsoldPassCount   int             `json:"unsoldPassCount"`
	Leaders           []LeaderView    `json:"leaders"`
	Roster            []CandidateView `json:"roster"`
	Unsold            []CandidateView `json:"unsold"`
	Lot               *LotView        `json:"lot"`
}

type SettingsView struct {
	BudgetCap                  int `json:"budgetCap"`
	BidIncrement               int `json:"bidIncrement"`
	PicksPerLeader             int `json:"picksPerLeader"`
	PreviewDurationSec         int `json:"previewDurationSec"`
	BiddingDurationSec         int `json:"biddingDurationSec"`
	RaiseExtensionSec          int `json:"raiseExtensionSec"`
	MinReservePerRemainingSlot int `json:"minReservePerRemainingSlot"`
}

type LeaderView struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	PointsLeft int             `json:"pointsLeft"`
	Picks      []CandidateView `json:"picks"`
	Departed   bool            `json:"departed,omitempty"`
}

type CandidateView struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	PreferredRoles []string `json:"preferredRoles"`
	Pitch          string   `json:"pitch,omitempty"`
}

// BidderView is the standing bidder reduced to id and name.
type BidderView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type LotView struct {
	Candidate             CandidateView `json:"candidate"`
	Phase                 string        `json:"phase"`
	HighestBid            int           `json:"highestBid"`
	HighestBidder         *BidderView   `json:"highestBidder"`
	LastBidderID          string        `json:"lastBidderId,omitempty"`
	EndsAt                int64         `json:"endsAt"` // unix ms
	RemainingMs           int64         `json:"remainingMs"`
	TotalPhaseDurationSec int           `json:"totalPhaseDurationSec"`
}

// LogLine is one entry of the room's append-only system log.
type LogLine struct {
	Seq  int    `json:"seq"`
	At   int64  `json:"at"` // unix ms
	Text string `json:"text"`
}
