package engine

import "errors"

// Kind classifies why a command was refused.
type Kind int

const (
	KindNone Kind = iota
	// KindValidation: a bid broke a bidding rule. Reported privately to the issuer.
	KindValidation
	// KindPrecondition: the command is not allowed in the current state.
	KindPrecondition
	// KindIntegrity: the scheduler reached a state it should never reach. Logged only.
	KindIntegrity
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPrecondition:
		return "precondition"
	case KindIntegrity:
		return "integrity"
	default:
		return "none"
	}
}

type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string { return e.Reason }

func validation(reason string) *Error   { return &Error{Kind: KindValidation, Reason: reason} }
func precondition(reason string) *Error { return &Error{Kind: KindPrecondition, Reason: reason} }
func integrity(reason string) *Error    { return &Error{Kind: KindIntegrity, Reason: reason} }

// Bid rules, in the order CanBid checks them.
var (
	ErrPaused             = validation("auction is paused")
	ErrUnknownLeader      = validation("only leaders in the room can bid")
	ErrNotBidding         = validation("bidding is not open")
	ErrConsecutiveBid     = validation("you already hold the latest bid")
	ErrSlotsFull          = validation("slots full")
	ErrZeroBidNotAllowed  = validation("a zero bid is only allowed in the second round with no points left and no standing bid")
	ErrBidTooLow          = validation("bid too low")
	ErrInsufficientPoints = validation("not enough points")
)

var (
	ErrAlreadyStarted     = precondition("auction already started")
	ErrNotStarted         = precondition("auction has not started")
	ErrNoLeaders          = precondition("at least one leader with a free slot is required")
	ErrEmptyRoster        = precondition("roster is empty")
	ErrAlreadyJoined      = precondition("already joined")
	ErrInvalidIdentity    = precondition("a non-empty name is required")
	ErrTooManyRoles       = precondition("at most 3 preferred roles")
	ErrUnknownRole        = precondition("unknown role")
	ErrDuplicateCandidate = precondition("duplicate candidate id")
	ErrNoLotInFlight      = precondition("no lot in flight")
	ErrAlreadyPaused      = precondition("auction already paused")
	ErrNotPaused          = precondition("auction is not paused")
	ErrInvalidSettings    = precondition("invalid room settings")
	ErrUnsupportedCommand = precondition("unsupported command")
)

var ErrNoLotToSettle = integrity("settlement requested with no current lot")

// ErrNoChange means the command was legal but had nothing to do, e.g. a tick before expiry.
var ErrNoChange = errors.New("no change")

// KindOf reports the Kind carried by err, or KindNone.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNone
}
