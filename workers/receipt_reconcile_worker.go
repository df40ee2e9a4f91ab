package workers

import (
	"context"
	"log"
	"time"

	"duel-arena/models"
	"duel-arena/services"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TransferStatusSource reports custody-side transfer state;
// *services.CustodyClient implements it.
type TransferStatusSource interface {
	TransferStatus(ctx context.Context, keys []string) ([]services.CustodyStatus, error)
}

const reconcileBatchSize = 200

// ReconcileReceipts asks the custody service about every pending receipt and
// stores the answers. It returns how many receipts changed status.
func ReconcileReceipts(ctx context.Context, db *gorm.DB, custody TransferStatusSource) (int, error) {
	var pending []models.PayoutReceipt
	if err := db.WithContext(ctx).
		Where("status = ?", models.ReceiptPending).
		Order("created_at ASC").
		Limit(reconcileBatchSize).
		Find(&pending).Error; err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(pending))
	for _, r := range pending {
		keys = append(keys, r.ID)
	}
	statuses, err := custody.TransferStatus(ctx, keys)
	if err != nil {
		return 0, err
	}
	byKey := make(map[string]services.CustodyStatus, len(statuses))
	for _, s := range statuses {
		byKey[s.IdempotencyKey] = s
	}

	now := time.Now().UTC()
	var changed []models.PayoutReceipt
	for _, r := range pending {
		s, ok := byKey[r.ID]
		if !ok {
			continue
		}
		services.ApplyCustodyStatus(&r, s.Status, now)
		if s.TxID != "" {
			r.ExternalRef = s.TxID
		}
		if r.Status != models.ReceiptPending {
			r.UpdatedAt = now
			changed = append(changed, r)
		}
	}
	if len(changed) == 0 {
		return 0, nil
	}

	if err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "external_ref", "confirmed_at", "updated_at"}),
	}).Create(&changed).Error; err != nil {
		return 0, err
	}
	return len(changed), nil
}

// PollReceipts runs ReconcileReceipts every pollInterval until ctx ends.
func PollReceipts(ctx context.Context, db *gorm.DB, custody TransferStatusSource, pollInterval time.Duration) {
	log.Println("Starting payout receipt reconciliation...")
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Receipt reconciliation stopped.")
			return
		case <-ticker.C:
			n, err := ReconcileReceipts(ctx, db, custody)
			if err != nil {
				log.Printf("❌ [CUSTODY] Error reconciling receipts: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("✅ [CUSTODY] Reconciled %d receipt(s)", n)
			}
		}
	}
}
