// services/scheduler.go
package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"duel-arena/models"
	"duel-arena/utils"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

const archiveBatchSize = 100

// StartScheduler runs the background jobs: archiving finished matches every
// minute and refreshing the ratings mirror every 30 seconds.
func StartScheduler(db *gorm.DB, players *PlayerService) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	if _, err := sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Second)
			defer cancel()
			if _, err := ArchiveFinishedMatches(ctx, db); err != nil {
				log.Printf("[SCHEDULER] Archive run failed: %v", err)
			}
		}),
	); err != nil {
		return nil, err
	}

	if players != nil && players.Leaderboard != nil {
		if _, err := sched.NewJob(
			gocron.DurationJob(30*time.Second),
			gocron.NewTask(func() {
				ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
				defer cancel()
				if err := players.RefreshLeaderboard(ctx); err != nil {
					log.Printf("[SCHEDULER] Leaderboard refresh failed: %v", err)
				}
			}),
		); err != nil {
			return nil, err
		}
	}

	sched.Start()
	return sched, nil
}

// ArchiveFinishedMatches exports finished matches that have no archive yet and
// returns how many were stored.
func ArchiveFinishedMatches(ctx context.Context, db *gorm.DB) (int, error) {
	var matches []models.MatchRecord
	err := db.WithContext(ctx).
		Where("status IN ? AND archived_at IS NULL", models.TerminalStatuses()).
		Order("id ASC").
		Limit(archiveBatchSize).
		Find(&matches).Error
	if err != nil {
		return 0, fmt.Errorf("DB error: %w", err)
	}

	archived := 0
	for _, rec := range matches {
		blob, sum, err := utils.EncodeArchive(rec.State)
		if err != nil {
			log.Printf("[SCHEDULER] Failed to encode match %d: %v", rec.ID, err)
			continue
		}
		key := fmt.Sprintf("matches/%d.msgpack.lz4", rec.ID)
		if _, err := utils.StoreArchive(ctx, key, blob); err != nil {
			log.Printf("[SCHEDULER] Failed to store match %d: %v", rec.ID, err)
			continue
		}

		now := time.Now().UTC()
		if err := db.WithContext(ctx).Model(&models.MatchRecord{}).
			Where("id = ?", rec.ID).
			Updates(map[string]interface{}{
				"archived_at": now,
				"archive_key": key,
				"archive_sum": sum,
			}).Error; err != nil {
			log.Printf("[SCHEDULER] Failed to mark match %d archived: %v", rec.ID, err)
			continue
		}
		archived++
		log.Printf("📦 Archived match %d (%d bytes)", rec.ID, len(blob))
	}
	return archived, nil
}
