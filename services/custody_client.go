package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"duel-arena/engine"
	"duel-arena/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CustodyClient is the engine's treasury: stakes and payouts are forwarded to
// the wallet custody service, and every accepted transfer is written to the
// payout_receipts table.
type CustodyClient struct {
	BaseURL  string
	Token    string
	Decimals int32 // custody amounts are whole tokens; engine amounts are base units
	Client   *http.Client
	DB       *gorm.DB // receipts; nil disables them
}

func NewCustodyClient(baseURL, token string, decimals int32, db *gorm.DB) *CustodyClient {
	return &CustodyClient{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Token:    token,
		Decimals: decimals,
		DB:       db,
		Client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type custodyTransfer struct {
	IdempotencyKey string          `json:"idempotency_key"`
	Account        string          `json:"account"`
	Amount         decimal.Decimal `json:"amount"`
	Memo           string          `json:"memo,omitempty"`
	Ref            string          `json:"ref,omitempty"`
}

// CustodyStatus is the custody service's view of one transfer.
type CustodyStatus struct {
	IdempotencyKey string `json:"idempotency_key"`
	TxID           string `json:"tx_id"`
	Status         string `json:"status"`
}

type custodyResponse struct {
	Transfers []CustodyStatus `json:"transfers"`
}

// ToTokens converts base units into the custody service's decimal amount.
func (c *CustodyClient) ToTokens(amount uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -c.Decimals)
}

// FromTokens is the inverse of ToTokens. Fractions below one base unit are rejected.
func (c *CustodyClient) FromTokens(d decimal.Decimal) (uint64, error) {
	units := d.Shift(c.Decimals)
	if !units.IsInteger() || units.IsNegative() {
		return 0, fmt.Errorf("amount %s is not a whole number of base units", d.String())
	}
	return strconv.ParseUint(units.String(), 10, 64)
}

// PayoutKey derives the idempotency key of a payout transfer. The same
// transfer always maps to the same key, so the custody service deduplicates
// retries of one settlement.
func PayoutKey(t engine.Transfer) string {
	name := fmt.Sprintf("%s|%s|%d", t.Ref, t.To, t.Amount)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

// CollectKey derives the idempotency key of a stake collection from the stake
// ref and the payer. A transition retried after a failed commit sends the same
// key, so the custody service charges the stake once.
func CollectKey(ref, from string, amount uint64) string {
	name := fmt.Sprintf("collect|%s|%s|%d", ref, from, amount)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

func (c *CustodyClient) Collect(ctx context.Context, from string, amount uint64, ref string) error {
	t := custodyTransfer{
		IdempotencyKey: CollectKey(ref, from, amount),
		Account:        from,
		Amount:         c.ToTokens(amount),
		Memo:           "stake",
		Ref:            ref,
	}
	log.Printf("[CUSTODY] 📥 Collecting %s from %s (key=%s)", t.Amount.String(), from, t.IdempotencyKey)

	resp, err := c.post(ctx, "/api/v1/custody/collect", t)
	if err != nil {
		log.Printf("[CUSTODY] ❌ Collect from %s failed: %v", from, err)
		return err
	}
	c.recordReceipts(models.ReceiptKindCollect, []custodyTransfer{t}, resp.Transfers)
	return nil
}

func (c *CustodyClient) Payout(ctx context.Context, transfers []engine.Transfer) error {
	batch := make([]custodyTransfer, 0, len(transfers))
	for _, t := range transfers {
		batch = append(batch, custodyTransfer{
			IdempotencyKey: PayoutKey(t),
			Account:        t.To,
			Amount:         c.ToTokens(t.Amount),
			Memo:           t.Memo,
			Ref:            t.Ref,
		})
	}
	log.Printf("[CUSTODY] 📤 Sending %d payout(s)", len(batch))

	resp, err := c.post(ctx, "/api/v1/custody/payouts", map[string]interface{}{"transfers": batch})
	if err != nil {
		log.Printf("[CUSTODY] ❌ Payout batch failed: %v", err)
		return err
	}
	c.recordReceipts(models.ReceiptKindPayout, batch, resp.Transfers)
	return nil
}

// TransferStatus asks the custody service where the given transfers stand.
func (c *CustodyClient) TransferStatus(ctx context.Context, keys []string) ([]CustodyStatus, error) {
	u, err := url.Parse(c.BaseURL + "/api/v1/custody/transfers")
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}
	q := u.Query()
	q.Set("ids", strings.Join(keys, ","))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Service-Token", c.Token)

	out, err := c.do(req)
	if err != nil {
		return nil, err
	}
	return out.Transfers, nil
}

func (c *CustodyClient) post(ctx context.Context, path string, payload interface{}) (*custodyResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode custody request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", c.Token)
	return c.do(req)
}

func (c *CustodyClient) do(req *http.Request) (*custodyResponse, error) {
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call custody service: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("custody service returned status %d: %s", resp.StatusCode, string(body))
	}

	var out custodyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode custody response: %w", err)
	}
	return &out, nil
}

// recordReceipts stores accepted transfers. A failure here is logged and left
// to the reconciliation worker; the money has already moved.
func (c *CustodyClient) recordReceipts(kind string, sent []custodyTransfer, statuses []CustodyStatus) {
	if c.DB == nil || len(sent) == 0 {
		return
	}
	byKey := make(map[string]CustodyStatus, len(statuses))
	for _, s := range statuses {
		byKey[s.IdempotencyKey] = s
	}

	receipts := make([]models.PayoutReceipt, 0, len(sent))
	for _, t := range sent {
		units, err := c.FromTokens(t.Amount)
		if err != nil {
			log.Printf("[CUSTODY] ⚠️ Skipping receipt %s: %v", t.IdempotencyKey, err)
			continue
		}
		r := models.PayoutReceipt{
			ID:      t.IdempotencyKey,
			Kind:    kind,
			Ref:     t.Ref,
			Account: t.Account,
			Amount:  units,
			Memo:    t.Memo,
			Status:  models.ReceiptPending,
		}
		if s, ok := byKey[t.IdempotencyKey]; ok {
			r.ExternalRef = s.TxID
			ApplyCustodyStatus(&r, s.Status, time.Now().UTC())
		}
		receipts = append(receipts, r)
	}
	if len(receipts) == 0 {
		return
	}

	if err := c.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "external_ref", "confirmed_at", "updated_at"}),
	}).Create(&receipts).Error; err != nil {
		log.Printf("[CUSTODY] ❌ Failed to record %d receipt(s): %v", len(receipts), err)
		return
	}
	log.Printf("[CUSTODY] ✅ Recorded %d %s receipt(s)", len(receipts), kind)
}

// ApplyCustodyStatus maps the custody service's status names onto a receipt.
func ApplyCustodyStatus(r *models.PayoutReceipt, status string, now time.Time) {
	switch strings.ToLower(status) {
	case "confirmed", "settled", "completed":
		r.Status = models.ReceiptConfirmed
		if r.ConfirmedAt == nil {
			r.ConfirmedAt = &now
		}
	case "failed", "rejected":
		r.Status = models.ReceiptFailed
	default:
		r.Status = models.ReceiptPending
	}
}
