package hub

import (
	"context"

	"go.uber.org/zap"

	"github.com/DoyleJ11/lot-auction-backend/internal/engine"
	"github.com/DoyleJ11/lot-auction-backend/internal/lobby"
)

// DefaultRoom always exists.
const DefaultRoom = "MAIN"

type HubMsg interface{ isHubMsg() }

// CreateLobby replies with the existing room if the code is taken, so check with GetLobby first.
type CreateLobby struct {
	Code  string
	State engine.State
	Reply chan *lobby.Lobby
}

type GetLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

type EnsureLobby struct {
	Code  string
	State engine.State // only used if creation happens
	Reply chan *lobby.Lobby
}

type RemoveLobby struct {
	Code string
}

type ShutdownHub struct{}

func (CreateLobby) isHubMsg() {}
func (GetLobby) isHubMsg()    {}
func (EnsureLobby) isHubMsg() {}
func (RemoveLobby) isHubMsg() {}
func (ShutdownHub) isHubMsg() {}

type Config struct {
	// Lobby is the template for every room; Code is filled per room.
	Lobby    lobby.Config
	Settings engine.Settings
}

type Hub struct {
	cfg     Config
	log     *zap.Logger
	inbox   chan HubMsg
	lobbies map[string]*lobby.Lobby
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewHub(parent context.Context, cfg Config) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if cfg.Lobby.Logger == nil {
		cfg.Lobby.Logger = zap.NewNop()
	}
	if cfg.Settings == (engine.Settings{}) {
		cfg.Settings = engine.DefaultSettings()
	}
	h := &Hub{
		cfg:     cfg,
		log:     cfg.Lobby.Logger,
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		ctx:     ctx,
		cancel:  cancel,
	}
	h.lobbies[DefaultRoom] = h.spawn(DefaultRoom, engine.NewEmptyState(cfg.Settings))
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Settings are the defaults new rooms start with.
func (h *Hub) Settings() engine.Settings { return h.cfg.Settings }

// Lookup returns the room for code, or nil.
func (h *Hub) Lookup(ctx context.Context, code string) *lobby.Lobby {
	if h.ctx.Err() != nil {
		return nil
	}
	reply := make(chan *lobby.Lobby, 1)
	select {
	case h.inbox <- GetLobby{Code: code, Reply: reply}:
	case <-ctx.Done():
		return nil
	case <-h.ctx.Done():
		return nil
	}
	select {
	case lb := <-reply:
		return lb
	case <-ctx.Done():
		return nil
	case <-h.ctx.Done():
		return nil
	}
}

func (h *Hub) spawn(code string, state engine.State) *lobby.Lobby {
	if state.Settings == (engine.Settings{}) {
		state.Settings = h.cfg.Settings
	}
	if state.Leaders == nil {
		state.Leaders = map[string]engine.Leader{}
	}
	cfg := h.cfg.Lobby
	cfg.Code = code
	h.log.Info("room opened", zap.String("room", code))
	return lobby.NewLobby(h.ctx, state, cfg)
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateLobby, EnsureLobby:
				code, state, reply := unpackCreate(msg)
				if lb := h.lobbies[code]; lb != nil {
					reply <- lb
					break
				}
				lb := h.spawn(code, state)
				h.lobbies[code] = lb
				reply <- lb

			case GetLobby:
				msg.Reply <- h.lobbies[msg.Code] // May be nil

			case RemoveLobby:
				if msg.Code == DefaultRoom {
					break
				}
				if lb := h.lobbies[msg.Code]; lb != nil {
					lb.Send(h.ctx, lobby.Shutdown{})
					delete(h.lobbies, msg.Code)
					h.log.Info("room closed", zap.String("room", msg.Code))
				}

			case ShutdownHub:
				for _, lb := range h.lobbies {
					lb.Send(h.ctx, lobby.Shutdown{})
				}
				clear(h.lobbies)
				h.cancel()
			}
		}
	}
}

func unpackCreate(m HubMsg) (string, engine.State, chan *lobby.Lobby) {
	switch msg := m.(type) {
	case CreateLobby:
		return msg.Code, msg.State, msg.Reply
	case EnsureLobby:
		return msg.Code, msg.State, msg.Reply
	}
	return "", engine.State{}, nil
}
