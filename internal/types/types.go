package types

import (
	"time"

	"github.com/DoyleJ11/lot-auction-backend/internal/engine"
	view "github.com/DoyleJ11/lot-auction-backend/pkg/types"
)

// ClientMessage is the tagged union sent by sockets; Type selects which fields apply.
type ClientMessage struct {
	Type      string            `json:"type"` // "Join" | "Bid" | "StartAuction" | "ForceNextLot" | "Pause" | "Resume" | "ResetRoom"
	Role      string            `json:"role,omitempty"`
	Name      string            `json:"name,omitempty"`
	Candidate *CandidatePayload `json:"candidate,omitempty"`
	Amount    *int              `json:"amount,omitempty"`
}

type CandidatePayload struct {
	PreferredRoles []string `json:"preferredRoles"`
	Pitch          string   `json:"pitch"`
}

type ServerMessage struct {
	Type     string             `json:"type"` // "Snapshot" | "Error" | "Welcome"
	Version  int                `json:"version"`
	Room     *view.RoomSnapshot `json:"room,omitempty"`
	Log      []view.LogLine     `json:"log,omitempty"`
	ClientID string             `json:"clientId,omitempty"`
	Kind     string             `json:"kind,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// EventBatch is what one successful command produced, handed to event sinks.
type EventBatch struct {
	Room    string
	Version int
	At      time.Time
	Events  []engine.Event
}
