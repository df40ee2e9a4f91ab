package engine

import (
	"context"
	"fmt"
)

// ConfigUpdate carries the settings an operator wants to change. Nil fields keep
// their current value.
type ConfigUpdate struct {
	StakeCost           *uint64 `json:"stake_cost,omitempty"`
	FeePercent          *uint64 `json:"fee_percent,omitempty"`
	MaxTorpedoes        *uint32 `json:"max_torpedoes,omitempty"`
	MaxMines            *uint32 `json:"max_mines,omitempty"`
	KFactor             *int64  `json:"k_factor,omitempty"`
	QuadrantSize        *int64  `json:"quadrant_size,omitempty"`
	AsteroidSize        *int64  `json:"asteroid_size,omitempty"`
	MineRange           *int64  `json:"mine_range,omitempty"`
	TorpedoRange        *int64  `json:"torpedo_range,omitempty"`
	TorpedoAcceleration *int64  `json:"torpedo_acceleration,omitempty"`
	TorpedoFuel         *uint32 `json:"torpedo_fuel,omitempty"`
	TimeoutSeconds      *int64  `json:"timeout_seconds,omitempty"`
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// Apply returns cfg with the update's non-nil fields applied.
func (u ConfigUpdate) Apply(cfg Config) Config {
	setIf(&cfg.StakeCost, u.StakeCost)
	setIf(&cfg.FeePercent, u.FeePercent)
	setIf(&cfg.MaxTorpedoes, u.MaxTorpedoes)
	setIf(&cfg.MaxMines, u.MaxMines)
	setIf(&cfg.KFactor, u.KFactor)
	setIf(&cfg.Rules.QuadrantSize, u.QuadrantSize)
	setIf(&cfg.Rules.AsteroidSize, u.AsteroidSize)
	setIf(&cfg.Rules.MineRange, u.MineRange)
	setIf(&cfg.Rules.TorpedoRange, u.TorpedoRange)
	setIf(&cfg.Rules.TorpedoAcceleration, u.TorpedoAcceleration)
	setIf(&cfg.Rules.TorpedoFuel, u.TorpedoFuel)
	setIf(&cfg.Rules.TimeoutSeconds, u.TimeoutSeconds)
	return cfg
}

// Configure changes the house rules. Matches already running keep the rules
// they started with.
func (e *Engine) Configure(ctx context.Context, u ConfigUpdate) (Config, error) {
	var cfg Config
	err := e.ledger.Update(ctx, func(tx Tx) error {
		h, err := tx.House()
		if err != nil {
			return err
		}
		next := u.Apply(h.Config)
		if err := next.Validate(); err != nil {
			return err
		}
		h.Config = next
		cfg = next
		return tx.PutHouse(h)
	})
	return cfg, err
}

// SetPaused toggles the global pause. While paused no invitation or open match can
// be created; running matches play on.
func (e *Engine) SetPaused(ctx context.Context, paused bool) error {
	return e.ledger.Update(ctx, func(tx Tx) error {
		h, err := tx.House()
		if err != nil {
			return err
		}
		h.Paused = paused
		return tx.PutHouse(h)
	})
}

// WithdrawFees pays amount out of the house fee balance.
func (e *Engine) WithdrawFees(ctx context.Context, to string, amount uint64) (House, error) {
	var house House
	err := e.ledger.Update(ctx, func(tx Tx) error {
		h, err := tx.House()
		if err != nil {
			return err
		}
		if to == "" {
			return fmt.Errorf("%w: no recipient", ErrInvalidConfig)
		}
		if amount == 0 || amount > h.FeeBalance {
			return ErrInsufficientFees
		}
		h.FeeBalance -= amount
		h.Withdrawals++
		if err := tx.PutHouse(h); err != nil {
			return err
		}
		ref := fmt.Sprintf("fees/%d", h.Withdrawals)
		if err := e.payout(ctx, []Transfer{{To: to, Amount: amount, Memo: "fee withdrawal", Ref: ref}}); err != nil {
			return err
		}
		house = h
		return nil
	})
	return house, err
}
