package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/DoyleJ11/lot-auction-backend/internal/engine"
	"github.com/DoyleJ11/lot-auction-backend/internal/hub"
	"github.com/DoyleJ11/lot-auction-backend/internal/lobby"
	"github.com/DoyleJ11/lot-auction-backend/internal/types"
)

var (
	errBadJSON     = errors.New("bad json")
	errUnknownType = errors.New("unknown message type")
	errMissingBid  = errors.New("bid needs an amount")
	errRateLimited = errors.New("too many bids, slow down")
)

type Options struct {
	Logger         *zap.Logger
	OriginPatterns []string
	// BidsPerSecond and BidBurst bound each connection's bid rate.
	BidsPerSecond float64
	BidBurst      int
}

const writeTimeout = 3 * time.Second

func Handler(h *hub.Hub, opts Options) http.HandlerFunc {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.BidsPerSecond <= 0 {
		opts.BidsPerSecond = 5
	}
	if opts.BidBurst <= 0 {
		opts.BidBurst = 3
	}

	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			code = hub.DefaultRoom
		}

		lb := h.Lookup(r.Context(), code)
		if lb == nil {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: opts.OriginPatterns})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		clientID := uuid.NewString()
		log := opts.Logger.With(zap.String("room", code), zap.String("client", clientID))
		out := make(chan lobby.Snapshot, 8)
		errs := make(chan error, 8)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		if !lb.Send(ctx, lobby.Join{ClientID: clientID, Outbox: out}) {
			return
		}
		defer lb.Send(context.Background(), lobby.Leave{ClientID: clientID})
		log.Debug("socket joined")

		// Writer goroutine
		go func() {
			defer cancel()
			if err := write(ctx, conn, types.ServerMessage{Type: "Welcome", ClientID: clientID}); err != nil {
				return
			}
			for {
				var msg types.ServerMessage
				select {
				case <-ctx.Done():
					return
				case snap, ok := <-out:
					if !ok {
						conn.Close(websocket.StatusGoingAway, "room closed")
						return
					}
					msg = types.ServerMessage{Type: "Snapshot", Version: snap.Version, Room: &snap.Room, Log: snap.Log}
				case err := <-errs:
					msg = errorMessage(err)
				}
				if err := write(ctx, conn, msg); err != nil {
					log.Debug("socket write failed", zap.Error(err))
					return
				}
			}
		}()

		reject := func(err error) {
			select {
			case errs <- err:
			default:
			}
		}
		limiter := rate.NewLimiter(rate.Limit(opts.BidsPerSecond), opts.BidBurst)

		// Reader loop
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("socket read ended", zap.Error(err))
				}
				return // lobby.Leave in defer
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				reject(errBadJSON)
				continue
			}

			cmd, err := toEngineCommand(cm, clientID)
			if err != nil {
				reject(err)
				continue
			}
			if cmd.Type == engine.CmdBid && !limiter.Allow() {
				reject(errRateLimited)
				continue
			}

			if !lb.Send(ctx, lobby.FromClient{Cmd: cmd, Reply: errs}) {
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, payload)
}

func errorMessage(err error) types.ServerMessage {
	kind := engine.KindOf(err)
	label := kind.String()
	if kind == engine.KindNone {
		label = "protocol"
	}
	return types.ServerMessage{Type: "Error", Kind: label, Error: err.Error()}
}

// toEngineCommand decodes the tagged union; the connection id is always the issuer.
func toEngineCommand(m types.ClientMessage, clientID string) (engine.Command, error) {
	cmd := engine.Command{ClientID: clientID}

	switch m.Type {
	case "Join":
		cmd.Type = engine.CmdJoin
		cmd.Role = engine.Role(m.Role)
		cmd.Name = m.Name
		if m.Candidate != nil {
			cmd.Candidate = engine.Candidate{
				DisplayName:    m.Name,
				PreferredRoles: m.Candidate.PreferredRoles,
				Pitch:          m.Candidate.Pitch,
			}
		}
	case "Bid":
		if m.Amount == nil {
			return engine.Command{}, errMissingBid
		}
		cmd.Type = engine.CmdBid
		cmd.Amount = *m.Amount
	case "StartAuction":
		cmd.Type = engine.CmdStartAuction
	case "ForceNextLot":
		cmd.Type = engine.CmdForceNextLot
	case "Pause":
		cmd.Type = engine.CmdPause
	case "Resume":
		cmd.Type = engine.CmdResume
	case "ResetRoom":
		cmd.Type = engine.CmdResetRoom
	default:
		return engine.Command{}, errUnknownType
	}
	return cmd, nil
}
