package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/DoyleJ11/lot-auction-backend/internal/engine"
	"github.com/DoyleJ11/lot-auction-backend/internal/types"
)

// Envelope wraps one room event on the bus.
type Envelope struct {
	ID        string          `json:"id"`
	Room      string          `json:"room"`
	Type      string          `json:"type"`
	Version   int             `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

type eventData struct {
	LeaderID      string `json:"leaderId,omitempty"`
	LeaderName    string `json:"leaderName,omitempty"`
	CandidateID   string `json:"candidateId,omitempty"`
	CandidateName string `json:"candidateName,omitempty"`
	Amount        int    `json:"amount,omitempty"`
	Pass          int    `json:"pass,omitempty"`
	Text          string `json:"text,omitempty"`
}

type msgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

type Publisher struct {
	conn  msgPublisher
	close func()
	newID func() string
}

func Subject(room string) string { return "auction." + room + ".events" }

// Connect dials NATS with reconnects enabled.
func Connect(url string, log *zap.Logger) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("lot-auction"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &Publisher{conn: nc, close: nc.Close, newID: uuid.NewString}, nil
}

// Publish sends each event of the batch as its own envelope.
func (p *Publisher) Publish(ctx context.Context, batch types.EventBatch) error {
	for _, e := range batch.Events {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg, err := p.encode(batch, e)
		if err != nil {
			return err
		}
		if err := p.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("publish %s: %w", e.Type, err)
		}
	}
	return nil
}

func (p *Publisher) encode(batch types.EventBatch, e engine.Event) (*nats.Msg, error) {
	data, err := json.Marshal(eventData{
		LeaderID:      e.LeaderID,
		LeaderName:    e.LeaderName,
		CandidateID:   e.CandidateID,
		CandidateName: e.CandidateName,
		Amount:        e.Amount,
		Pass:          e.Pass,
		Text:          engine.Describe(e),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal event data: %w", err)
	}
	env := Envelope{
		ID:        p.newID(),
		Room:      batch.Room,
		Type:      string(e.Type),
		Version:   batch.Version,
		Timestamp: batch.At.UTC(),
		Data:      data,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}

	msg := nats.NewMsg(Subject(batch.Room))
	msg.Header.Set(nats.MsgIdHdr, env.ID)
	msg.Header.Set("Event-Type", env.Type)
	msg.Data = payload
	return msg, nil
}

func (p *Publisher) Close() {
	if p.close != nil {
		p.close()
	}
}
