package services

import (
	"context"
	"errors"
	"fmt"

	"duel-arena/engine"
	"duel-arena/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLedger persists engine state in the database. Every Update runs in one
// transaction that starts by locking the house row, so concurrent requests on
// any replica are applied one at a time.
type GormLedger struct {
	db *gorm.DB
}

// NewGormLedger seeds the house row with defaults on first start. An existing
// house keeps its stored config.
func NewGormLedger(db *gorm.DB, defaults engine.Config) (*GormLedger, error) {
	house := models.NewHouseRecord(engine.House{Config: defaults})
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&house).Error; err != nil {
		return nil, fmt.Errorf("failed to seed house row: %w", err)
	}
	return &GormLedger{db: db}, nil
}

func (l *GormLedger) Update(ctx context.Context, fn func(tx engine.Tx) error) error {
	return l.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		var house models.HouseRecord
		if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&house, "id = ?", models.HouseRowID).Error; err != nil {
			return fmt.Errorf("failed to lock house row: %w", err)
		}
		h := house.House()
		return fn(&gormTx{db: db, house: h})
	})
}

func (l *GormLedger) View(ctx context.Context, fn func(tx engine.Tx) error) error {
	db := l.db.WithContext(ctx)
	var house models.HouseRecord
	if err := db.First(&house, "id = ?", models.HouseRowID).Error; err != nil {
		return fmt.Errorf("failed to load house row: %w", err)
	}
	return fn(&gormTx{db: db, house: house.House(), readOnly: true})
}

type gormTx struct {
	db       *gorm.DB
	house    engine.House
	readOnly bool
}

func (t *gormTx) House() (engine.House, error) {
	return t.house, nil
}

func (t *gormTx) PutHouse(h engine.House) error {
	if t.readOnly {
		return engine.ErrReadOnly
	}
	rec := models.NewHouseRecord(h)
	if err := t.db.Save(&rec).Error; err != nil {
		return fmt.Errorf("failed to save house: %w", err)
	}
	t.house = h
	return nil
}

func (t *gormTx) Match(id uint64) (engine.Match, error) {
	var rec models.MatchRecord
	if err := t.db.First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return engine.Match{}, engine.ErrMatchNotFound
		}
		return engine.Match{}, fmt.Errorf("failed to load match %d: %w", id, err)
	}
	return rec.State, nil
}

func (t *gormTx) PutMatch(m engine.Match) error {
	if t.readOnly {
		return engine.ErrReadOnly
	}
	rec := models.NewMatchRecord(m)
	if err := t.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(models.MatchColumns),
	}).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to save match %d: %w", m.ID, err)
	}
	return nil
}

func (t *gormTx) Player(id string) (engine.Player, error) {
	var rec models.PlayerRecord
	if err := t.db.First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return engine.Player{}, engine.ErrPlayerNotFound
		}
		return engine.Player{}, fmt.Errorf("failed to load player %s: %w", id, err)
	}
	return rec.Player(), nil
}

func (t *gormTx) PutPlayer(p engine.Player) error {
	if t.readOnly {
		return engine.ErrReadOnly
	}
	rec := models.NewPlayerRecord(p)
	if err := t.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(models.PlayerColumns),
	}).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to save player %s: %w", p.ID, err)
	}
	return nil
}

func (t *gormTx) Players() ([]engine.Player, error) {
	var recs []models.PlayerRecord
	if err := t.db.Order("id ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	out := make([]engine.Player, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Player())
	}
	return out, nil
}
