package lobby

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/DoyleJ11/lot-auction-backend/internal/engine"
	"github.com/DoyleJ11/lot-auction-backend/internal/types"
	view "github.com/DoyleJ11/lot-auction-backend/pkg/types"
)

type Msg interface{ isLobbyMsg() }

// FromClient carries one command. Rejections go to Reply (if set) and nowhere else.
type FromClient struct {
	Cmd   engine.Command
	Reply chan<- error
}

func (FromClient) isLobbyMsg() {}

type Join struct {
	ClientID string
	Outbox   chan Snapshot // where this client wants to receive snapshots
}

func (Join) isLobbyMsg() {}

// Leave unsubscribes the client and removes it from the room.
type Leave struct{ ClientID string }

func (Leave) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type Snapshot struct {
	Version int
	Room    view.RoomSnapshot
	Log     []view.LogLine // tail only
}

type View struct {
	Version    int
	NumClients int
	State      engine.State
	Room       view.RoomSnapshot
	Log        []view.LogLine
}

// Sink receives every committed batch of events, off the lobby goroutine.
type Sink interface {
	Publish(ctx context.Context, batch types.EventBatch) error
}

type Config struct {
	Code         string
	Clock        clockwork.Clock
	TickInterval time.Duration
	LogTail      int
	Logger       *zap.Logger
	Sinks        []Sink
}

const (
	DefaultTickInterval = 200 * time.Millisecond
	defaultLogTail      = 50
	sinkBacklog         = 128
	sinkTimeout         = 5 * time.Second
)

func (c Config) withDefaults() Config {
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.LogTail <= 0 {
		c.LogTail = defaultLogTail
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

type Lobby struct {
	cfg     Config
	log     *zap.Logger
	inbox   chan Msg
	state   engine.State
	version int
	clients map[string]chan Snapshot
	lines   []view.LogLine
	sinkq   chan types.EventBatch
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewLobby(parent context.Context, initial engine.State, cfg Config) *Lobby {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(parent)

	l := &Lobby{
		cfg:     cfg,
		log:     cfg.Logger.With(zap.String("room", cfg.Code)),
		inbox:   make(chan Msg, 64),
		state:   initial,
		clients: make(map[string]chan Snapshot),
		ctx:     ctx,
		cancel:  cancel,
	}

	// The ticker is created before the loop starts so fake clocks see it immediately.
	ticker := cfg.Clock.NewTicker(cfg.TickInterval)

	if len(cfg.Sinks) > 0 {
		l.sinkq = make(chan types.EventBatch, sinkBacklog)
		go l.runSinks()
	}
	go l.loop(ticker)
	return l
}

func (l *Lobby) loop(ticker clockwork.Ticker) {
	defer ticker.Stop()
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case <-ticker.Chan():
			l.onTick()

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				// Register client + send current snapshot immediately
				l.clients[msg.ClientID] = msg.Outbox
				l.offer(msg.ClientID, msg.Outbox, l.snapshot())

			case Leave:
				delete(l.clients, msg.ClientID)
				l.apply(engine.Command{Type: engine.CmdLeave, ClientID: msg.ClientID}, nil)

			case FromClient:
				l.apply(msg.Cmd, msg.Reply)

			case GetState:
				snap := l.snapshot()
				msg.Reply <- View{
					Version:    l.version,
					NumClients: len(l.clients),
					State:      l.state.Clone(),
					Room:       snap.Room,
					Log:        snap.Log,
				}

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

// onTick is the periodic expiry check; it never fires more than one transition.
func (l *Lobby) onTick() {
	lot := l.state.Lot
	if !l.state.AuctionStarted || l.state.Paused || lot == nil {
		return
	}
	if l.cfg.Clock.Now().Before(lot.EndsAt) {
		return
	}
	l.apply(engine.Command{Type: engine.CmdTimeoutAdvance}, nil)
}

func (l *Lobby) apply(cmd engine.Command, reply chan<- error) {
	cmd.At = l.cfg.Clock.Now()
	events, next, err := engine.Apply(l.state, cmd)
	if err != nil {
		l.reject(cmd, err, reply)
		return
	}

	l.state = next
	l.version++
	for _, e := range events {
		l.record(cmd.At, e)
	}
	l.broadcast(l.snapshot())
	l.publish(types.EventBatch{Room: l.cfg.Code, Version: l.version, At: cmd.At, Events: events})
}

func (l *Lobby) reject(cmd engine.Command, err error, reply chan<- error) {
	if errors.Is(err, engine.ErrNoChange) {
		return
	}
	fields := []zap.Field{
		zap.String("cmd", string(cmd.Type)),
		zap.String("client", cmd.ClientID),
		zap.Error(err),
	}
	if engine.KindOf(err) == engine.KindIntegrity {
		l.log.Error("scheduler integrity violation", fields...)
		return
	}
	l.log.Debug("command rejected", fields...)
	if reply == nil {
		return
	}
	select {
	case reply <- err:
	default:
	}
}

func (l *Lobby) record(at time.Time, e engine.Event) {
	text := engine.Describe(e)
	if text == "" {
		return
	}
	l.lines = append(l.lines, view.LogLine{Seq: len(l.lines) + 1, At: at.UnixMilli(), Text: text})

	lvl := zap.InfoLevel
	if e.Type == engine.EvtBidAccepted {
		lvl = zap.DebugLevel
	}
	l.log.Log(lvl, text, zap.String("event", string(e.Type)), zap.Int("version", l.version))
}

func (l *Lobby) snapshot() Snapshot {
	tail := l.lines
	if len(tail) > l.cfg.LogTail {
		tail = tail[len(tail)-l.cfg.LogTail:]
	}
	return Snapshot{
		Version: l.version,
		Room:    l.state.View(l.cfg.Code, l.cfg.Clock.Now()),
		Log:     append([]view.LogLine(nil), tail...),
	}
}

func (l *Lobby) broadcast(snap Snapshot) {
	for id, ch := range l.clients {
		l.offer(id, ch, snap)
	}
}

// offer never blocks: a full outbox loses its oldest snapshot, since only the latest matters.
func (l *Lobby) offer(id string, ch chan Snapshot, snap Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
		l.log.Warn("slow subscriber, snapshot dropped", zap.String("client", id), zap.Int("version", snap.Version))
	}
}

func (l *Lobby) publish(b types.EventBatch) {
	if l.sinkq == nil {
		return
	}
	select {
	case l.sinkq <- b:
	default:
		l.log.Warn("event sink backlog full, batch dropped", zap.Int("version", b.Version))
	}
}

func (l *Lobby) runSinks() {
	for b := range l.sinkq {
		for _, s := range l.cfg.Sinks {
			ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
			if err := s.Publish(ctx, b); err != nil {
				l.log.Error("event sink failed", zap.Int("version", b.Version), zap.Error(err))
			}
			cancel()
		}
	}
}

func (l *Lobby) shutdown() {
	for id, ch := range l.clients {
		close(ch) // Tell client no more snapshots
		delete(l.clients, id)
	}
	if l.sinkq != nil {
		close(l.sinkq)
	}
	l.cancel()
}

// Inbox exposes the mailbox so the hub, tests, and sockets can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// Send delivers m unless the lobby or ctx is done first.
func (l *Lobby) Send(ctx context.Context, m Msg) bool {
	if l.ctx.Err() != nil {
		return false
	}
	select {
	case l.inbox <- m:
		return true
	case <-l.ctx.Done():
		return false
	case <-ctx.Done():
		return false
	}
}

// Done is closed once the lobby has stopped.
func (l *Lobby) Done() <-chan struct{} { return l.ctx.Done() }

func (l *Lobby) Code() string { return l.cfg.Code }
