package models

import (
	"time"

	"duel-arena/engine"
)

// HouseRowID is the primary key of the single house row.
const HouseRowID = 1

// HouseRecord holds the process-wide state. Every ledger transaction locks this
// row first, which serializes all mutations across service replicas.
type HouseRecord struct {
	ID          uint          `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Config      engine.Config `gorm:"type:jsonb;serializer:json" json:"config"`
	FeeBalance  uint64        `gorm:"not null;default:0" json:"fee_balance"`
	OpenSlot    uint64        `gorm:"not null;default:0" json:"open_slot"`
	Paused      bool          `gorm:"not null;default:false" json:"paused"`
	MatchCount  uint64        `gorm:"not null;default:0" json:"match_count"`
	Withdrawals uint64        `gorm:"not null;default:0" json:"withdrawals"`
	UpdatedAt   time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func (HouseRecord) TableName() string { return "house" }

func NewHouseRecord(h engine.House) HouseRecord {
	return HouseRecord{
		ID:          HouseRowID,
		Config:      h.Config,
		FeeBalance:  h.FeeBalance,
		OpenSlot:    h.OpenSlot,
		Paused:      h.Paused,
		MatchCount:  h.MatchCount,
		Withdrawals: h.Withdrawals,
	}
}

func (r HouseRecord) House() engine.House {
	return engine.House{
		Config:      r.Config,
		FeeBalance:  r.FeeBalance,
		OpenSlot:    r.OpenSlot,
		Paused:      r.Paused,
		MatchCount:  r.MatchCount,
		Withdrawals: r.Withdrawals,
	}
}
