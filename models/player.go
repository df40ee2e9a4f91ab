package models

import (
	"duel-arena/engine"
)

// PlayerRecord is the persisted form of engine.Player. Counters get their own
// columns so leaderboards and admin queries can filter on them.
type PlayerRecord struct {
	ID               string                `gorm:"primaryKey;type:varchar(128)" json:"id"` // caller identity from the gateway
	Rating           uint32                `gorm:"index;not null" json:"rating"`
	Victories        uint32                `gorm:"not null;default:0" json:"victories"`
	DefaultVictories uint32                `gorm:"not null;default:0" json:"default_victories"`
	DefaultLosses    uint32                `gorm:"not null;default:0" json:"default_losses"`
	Draws            uint32                `gorm:"not null;default:0" json:"draws"`
	Losses           uint32                `gorm:"not null;default:0" json:"losses"`
	Matches          []uint64              `gorm:"type:jsonb;serializer:json" json:"matches"`
	Invitations      []uint64              `gorm:"type:jsonb;serializer:json" json:"invitations"`
	RatingHistory    []engine.RatingChange `gorm:"type:jsonb;serializer:json" json:"rating_history"`
	RegisteredAt     int64                 `gorm:"not null" json:"registered_at"`

	Timestamps
}

func (PlayerRecord) TableName() string { return "players" }

func NewPlayerRecord(p engine.Player) PlayerRecord {
	return PlayerRecord{
		ID:               p.ID,
		Rating:           p.Rating,
		Victories:        p.Stats.Victories,
		DefaultVictories: p.Stats.DefaultVictories,
		DefaultLosses:    p.Stats.DefaultLosses,
		Draws:            p.Stats.Draws,
		Losses:           p.Stats.Losses,
		Matches:          p.Matches,
		Invitations:      p.Invitations,
		RatingHistory:    p.RatingHistory,
		RegisteredAt:     p.RegisteredAt,
	}
}

func (r PlayerRecord) Player() engine.Player {
	return engine.Player{
		ID: r.ID,
		Stats: engine.Stats{
			Victories:        r.Victories,
			DefaultVictories: r.DefaultVictories,
			DefaultLosses:    r.DefaultLosses,
			Draws:            r.Draws,
			Losses:           r.Losses,
		},
		Rating:        r.Rating,
		Matches:       r.Matches,
		Invitations:   r.Invitations,
		RatingHistory: r.RatingHistory,
		RegisteredAt:  r.RegisteredAt,
	}
}

// PlayerColumns are the columns rewritten when a player is upserted.
var PlayerColumns = []string{
	"rating", "victories", "default_victories", "default_losses", "draws", "losses",
	"matches", "invitations", "rating_history", "registered_at", "updated_at",
}
