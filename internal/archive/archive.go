// Package archive keeps a durable record of settled lots. It is write-behind only;
// rooms never read it back to rebuild state.
package archive

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/lot-auction-backend/internal/engine"
	"github.com/DoyleJ11/lot-auction-backend/internal/types"
)

type Outcome string

const (
	OutcomeSold   Outcome = "sold"
	OutcomeForced Outcome = "forced"
	OutcomePassed Outcome = "passed"
)

type LotResult struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Room          string    `gorm:"index;not null" json:"room"`
	Version       int       `json:"version"`
	CandidateID   string    `gorm:"not null" json:"candidateId"`
	CandidateName string    `json:"candidateName"`
	LeaderID      string    `json:"leaderId,omitempty"`
	LeaderName    string    `json:"leaderName,omitempty"`
	Outcome       Outcome   `gorm:"not null" json:"outcome"`
	Price         int       `json:"price"`
	Pass          int       `json:"pass"`
	SettledAt     time.Time `json:"settledAt"`
}

type Store struct {
	db *gorm.DB
}

// Open connects to postgres and migrates the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("archive: open: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&LotResult{}); err != nil {
		return nil, fmt.Errorf("archive: migrate: %w", err)
	}
	return New(db), nil
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Publish stores the settlements in batch; other events are ignored.
func (s *Store) Publish(ctx context.Context, batch types.EventBatch) error {
	rows := Results(batch)
	if len(rows) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("archive: insert %d results for %s: %w", len(rows), batch.Room, err)
	}
	return nil
}

func (s *Store) ListRoom(ctx context.Context, room string) ([]LotResult, error) {
	var out []LotResult
	if err := s.db.WithContext(ctx).Where("room = ?", room).Order("id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("archive: list %s: %w", room, err)
	}
	return out, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func Results(batch types.EventBatch) []LotResult {
	var rows []LotResult
	for _, e := range batch.Events {
		var outcome Outcome
		switch e.Type {
		case engine.EvtLotSold:
			outcome = OutcomeSold
		case engine.EvtForcedAssignment:
			outcome = OutcomeForced
		case engine.EvtLotPassed:
			outcome = OutcomePassed
		default:
			continue
		}
		rows = append(rows, LotResult{
			Room:          batch.Room,
			Version:       batch.Version,
			CandidateID:   e.CandidateID,
			CandidateName: e.CandidateName,
			LeaderID:      e.LeaderID,
			LeaderName:    e.LeaderName,
			Outcome:       outcome,
			Price:         e.Amount,
			Pass:          e.Pass,
			SettledAt:     batch.At,
		})
	}
	return rows
}
