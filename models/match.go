package models

import (
	"time"

	"duel-arena/engine"
)

// MatchRecord stores a whole match as JSON next to the few columns the
// scheduler and the listing endpoints query on.
type MatchRecord struct {
	ID         uint64       `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Player1    string       `gorm:"index;not null" json:"player1"`
	Player2    string       `gorm:"index" json:"player2"`
	Status     string       `gorm:"type:varchar(32);index;not null" json:"status"`
	Open       bool         `gorm:"not null;default:false" json:"open"`
	Turns      uint32       `gorm:"not null;default:0" json:"turns"`
	State      engine.Match `gorm:"type:jsonb;serializer:json" json:"state"`
	ArchivedAt *time.Time   `gorm:"index" json:"archived_at,omitempty"`
	ArchiveKey string       `gorm:"type:varchar(255)" json:"archive_key,omitempty"`
	ArchiveSum string       `gorm:"type:varchar(64)" json:"archive_sum,omitempty"` // blake3 of the stored blob

	Timestamps
}

func (MatchRecord) TableName() string { return "matches" }

func NewMatchRecord(m engine.Match) MatchRecord {
	return MatchRecord{
		ID:      m.ID,
		Player1: m.Player1,
		Player2: m.Player2,
		Status:  m.Status.String(),
		Open:    m.Open,
		Turns:   m.Turns,
		State:   m,
	}
}

// MatchColumns are the columns rewritten when a match is upserted. The archive
// columns belong to the archive job and are left alone.
var MatchColumns = []string{"player1", "player2", "status", "open", "turns", "state", "updated_at"}

// TerminalStatuses lists the status column values of finished matches.
func TerminalStatuses() []string {
	return []string{
		engine.Over.String(),
		engine.Player1Destroyed.String(),
		engine.Player2Destroyed.String(),
		engine.Player1Fled.String(),
		engine.Player2Fled.String(),
		engine.Draw.String(),
	}
}
