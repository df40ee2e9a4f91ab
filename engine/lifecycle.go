package engine

import (
	"context"
	"errors"
	"fmt"
)

// Engine drives matches from invitation to settlement. Every exported method is
// one atomic ledger step: it either fully applies or leaves state unchanged.
type Engine struct {
	ledger   Ledger
	treasury Treasury
	clock    Clock
	coins    CoinSource
}

func New(ledger Ledger, treasury Treasury, clock Clock, coins CoinSource) *Engine {
	if clock == nil {
		clock = SystemClock
	}
	return &Engine{ledger: ledger, treasury: treasury, clock: clock, coins: coins}
}

// StakeRef names the stake a player pays into a match.
func StakeRef(matchID uint64) string {
	return fmt.Sprintf("match/%d/stake", matchID)
}

func (e *Engine) collect(ctx context.Context, from string, amount uint64, matchID uint64) error {
	if err := e.treasury.Collect(ctx, from, amount, StakeRef(matchID)); err != nil {
		return fmt.Errorf("%w: collect %d from %s: %v", ErrTreasury, amount, from, err)
	}
	return nil
}

func (e *Engine) payout(ctx context.Context, transfers []Transfer) error {
	if len(transfers) == 0 {
		return nil
	}
	if err := e.treasury.Payout(ctx, transfers); err != nil {
		return fmt.Errorf("%w: payout: %v", ErrTreasury, err)
	}
	return nil
}

// Invite creates a match against opponent, holding the caller's stake until the
// opponent accepts, rejects or the caller withdraws.
func (e *Engine) Invite(ctx context.Context, caller, opponent string, stake uint64) (Match, error) {
	var created Match
	err := e.ledger.Update(ctx, func(tx Tx) error {
		h, err := tx.House()
		if err != nil {
			return err
		}
		if h.Paused {
			return ErrSystemPaused
		}
		if stake != h.Config.StakeCost {
			return ErrInsufficientStake
		}
		if opponent == "" {
			return fmt.Errorf("%w: no opponent given", ErrPlayerNotFound)
		}
		if opponent == caller {
			return ErrSelfPlay
		}

		now := e.clock.Now()
		host, err := ensurePlayer(tx, caller, now)
		if err != nil {
			return err
		}
		guest, err := ensurePlayer(tx, opponent, now)
		if err != nil {
			return err
		}

		h.MatchCount++
		m := newMatch(h.MatchCount, caller, stake, now)
		m.Player2 = opponent
		m.Ships[1].Owner = opponent
		host.Matches = append(host.Matches, m.ID)
		guest.Invitations = append(guest.Invitations, m.ID)

		if err := putAll(tx, &h, []Match{m}, host, guest); err != nil {
			return err
		}
		if err := e.collect(ctx, caller, stake, m.ID); err != nil {
			return err
		}
		created = m
		return nil
	})
	return created, err
}

// Accept pays the invitee's stake and starts the match.
func (e *Engine) Accept(ctx context.Context, caller string, matchID uint64, stake uint64) (Match, error) {
	var started Match
	err := e.ledger.Update(ctx, func(tx Tx) error {
		m, err := tx.Match(matchID)
		if err != nil {
			return err
		}
		if m.Open || caller == "" || m.Player2 != caller {
			return ErrNotInvited
		}
		if m.Status != NotStarted {
			return ErrMatchNotPending
		}
		if stake != m.Stake {
			return ErrInsufficientStake
		}
		h, err := tx.House()
		if err != nil {
			return err
		}

		now := e.clock.Now()
		guest, err := ensurePlayer(tx, caller, now)
		if err != nil {
			return err
		}
		guest.Invitations = removeID(guest.Invitations, m.ID)
		guest.Matches = append(guest.Matches, m.ID)
		m.Value += stake
		e.start(&h, &m, now)

		if err := putAll(tx, &h, []Match{m}, guest); err != nil {
			return err
		}
		if err := e.collect(ctx, caller, stake, m.ID); err != nil {
			return err
		}
		started = m
		return nil
	})
	return started, err
}

// Reject declines an invitation. The inviter's held stake goes to the house.
func (e *Engine) Reject(ctx context.Context, caller string, matchID uint64) (Match, error) {
	var rejected Match
	err := e.ledger.Update(ctx, func(tx Tx) error {
		m, err := tx.Match(matchID)
		if err != nil {
			return err
		}
		if m.Open || caller == "" || m.Player2 != caller {
			return ErrNotInvited
		}
		if m.Status != NotStarted {
			return ErrMatchNotPending
		}
		h, err := tx.House()
		if err != nil {
			return err
		}
		guest, err := tx.Player(caller)
		if err != nil {
			return err
		}

		guest.Invitations = removeID(guest.Invitations, m.ID)
		h.FeeBalance += m.Value
		m.Value = 0
		m.Status = Over
		if err := putAll(tx, &h, []Match{m}, guest); err != nil {
			return err
		}
		rejected = m
		return nil
	})
	return rejected, err
}

// Withdraw lets the creator of a match that has not started take the stake back.
func (e *Engine) Withdraw(ctx context.Context, caller string, matchID uint64) (Match, error) {
	var withdrawn Match
	err := e.ledger.Update(ctx, func(tx Tx) error {
		m, err := tx.Match(matchID)
		if err != nil {
			return err
		}
		if caller == "" || m.Player1 != caller {
			return ErrNotAParticipant
		}
		if m.Status != NotStarted {
			return ErrMatchNotPending
		}
		h, err := tx.House()
		if err != nil {
			return err
		}

		var players []Player
		if !m.Open && m.Player2 != "" {
			guest, err := tx.Player(m.Player2)
			if err != nil {
				return err
			}
			guest.Invitations = removeID(guest.Invitations, m.ID)
			players = append(players, guest)
		}
		if h.OpenSlot == m.ID {
			h.OpenSlot = 0
		}
		refund := Transfer{To: caller, Amount: m.Value, Memo: "withdrawn", Ref: fmt.Sprintf("match/%d/refund", m.ID)}
		m.Value = 0
		m.Status = Over

		if err := putAll(tx, &h, []Match{m}, players...); err != nil {
			return err
		}
		if err := e.payout(ctx, []Transfer{refund}); err != nil {
			return err
		}
		withdrawn = m
		return nil
	})
	return withdrawn, err
}

// JoinOpen either opens the matchmaking slot or, when someone is already
// waiting in it, pairs the caller against them and starts the match.
func (e *Engine) JoinOpen(ctx context.Context, caller string, stake uint64) (Match, error) {
	var joined Match
	err := e.ledger.Update(ctx, func(tx Tx) error {
		h, err := tx.House()
		if err != nil {
			return err
		}
		now := e.clock.Now()

		if h.OpenSlot == 0 {
			if h.Paused {
				return ErrSystemPaused
			}
			if stake != h.Config.StakeCost {
				return ErrInsufficientStake
			}
			host, err := ensurePlayer(tx, caller, now)
			if err != nil {
				return err
			}
			h.MatchCount++
			m := newMatch(h.MatchCount, caller, stake, now)
			m.Open = true
			h.OpenSlot = m.ID
			host.Matches = append(host.Matches, m.ID)
			if err := putAll(tx, &h, []Match{m}, host); err != nil {
				return err
			}
			if err := e.collect(ctx, caller, stake, m.ID); err != nil {
				return err
			}
			joined = m
			return nil
		}

		m, err := tx.Match(h.OpenSlot)
		if err != nil {
			return err
		}
		if m.Player1 == caller {
			return ErrSelfPlay
		}
		if stake != m.Stake {
			return ErrInsufficientStake
		}
		guest, err := ensurePlayer(tx, caller, now)
		if err != nil {
			return err
		}
		guest.Matches = append(guest.Matches, m.ID)
		m.Player2 = caller
		m.Value += stake
		h.OpenSlot = 0
		e.start(&h, &m, now)
		if err := putAll(tx, &h, []Match{m}, guest); err != nil {
			return err
		}
		if err := e.collect(ctx, caller, stake, m.ID); err != nil {
			return err
		}
		joined = m
		return nil
	})
	return joined, err
}

// start places both ships, takes the house fee and hands the first turn to a
// coin flip.
func (e *Engine) start(h *House, m *Match, now int64) {
	side, first := e.coins.Flip(m.ID, now)
	cfg := h.Config
	m.Rules = cfg.Rules

	offset := cfg.Rules.QuadrantSize / 2
	if !side {
		offset = -offset
	}
	m.Ships[0] = Ship{
		Owner:     m.Player1,
		Pos:       Vec{Row: offset, Col: -cfg.Rules.QuadrantSize},
		Torpedoes: cfg.MaxTorpedoes,
		Mines:     cfg.MaxMines,
	}
	m.Ships[1] = Ship{
		Owner:     m.Player2,
		Pos:       Vec{Row: -offset, Col: cfg.Rules.QuadrantSize},
		Torpedoes: cfg.MaxTorpedoes,
		Mines:     cfg.MaxMines,
	}

	fee := m.Value * cfg.FeePercent / 100
	m.Value -= fee
	m.StartFee = fee
	h.FeeBalance += fee

	m.CurrentPlayer = m.Player2
	if first {
		m.CurrentPlayer = m.Player1
	}
	m.Status = Active
	m.LastTurnAt = now
}

// Turn plays the caller's move.
func (e *Engine) Turn(ctx context.Context, caller string, matchID uint64, in TurnInput) (Match, error) {
	return e.advance(ctx, caller, matchID, in, false)
}

// ForceMove plays an idle turn for the current player once they have stalled
// past the timeout. Either participant may call it.
func (e *Engine) ForceMove(ctx context.Context, caller string, matchID uint64) (Match, error) {
	return e.advance(ctx, caller, matchID, TurnInput{}, true)
}

func (e *Engine) advance(ctx context.Context, caller string, matchID uint64, in TurnInput, forced bool) (Match, error) {
	var played Match
	err := e.ledger.Update(ctx, func(tx Tx) error {
		m, err := tx.Match(matchID)
		if err != nil {
			return err
		}
		if m.Status != Active {
			return ErrMatchNotActive
		}
		if _, ok := m.Seat(caller); !ok {
			return ErrNotAParticipant
		}
		now := e.clock.Now()
		mover := caller
		if forced {
			if !timedOut(m, now) {
				return ErrTimeoutNotElapsed
			}
			mover = m.CurrentPlayer
		} else if m.CurrentPlayer != caller {
			return ErrNotYourTurn
		}
		seat, _ := m.Seat(mover)

		outcome, err := resolveTurn(&m, seat, in)
		if err != nil {
			return err
		}
		m.LastTurnAt = now
		m.Turns++
		if outcome == Active {
			m.CurrentPlayer = m.playerAt(1 - seat)
			if err := tx.PutMatch(m); err != nil {
				return err
			}
			played = m
			return nil
		}
		if err := e.finish(ctx, tx, &m, outcome, now); err != nil {
			return err
		}
		played = m
		return nil
	})
	return played, err
}

// ClaimTimeoutDraw ends a stalled match as a draw.
func (e *Engine) ClaimTimeoutDraw(ctx context.Context, caller string, matchID uint64) (Match, error) {
	var drawn Match
	err := e.ledger.Update(ctx, func(tx Tx) error {
		m, err := tx.Match(matchID)
		if err != nil {
			return err
		}
		if m.Status != Active {
			return ErrMatchNotActive
		}
		if _, ok := m.Seat(caller); !ok {
			return ErrNotAParticipant
		}
		now := e.clock.Now()
		if !timedOut(m, now) {
			return ErrTimeoutNotElapsed
		}
		if err := e.finish(ctx, tx, &m, Draw, now); err != nil {
			return err
		}
		drawn = m
		return nil
	})
	return drawn, err
}

// finish settles m and persists both players, the house and the match. The payout
// batch goes out last so a treasury failure discards the whole step.
func (e *Engine) finish(ctx context.Context, tx Tx, m *Match, outcome Status, now int64) error {
	h, err := tx.House()
	if err != nil {
		return err
	}
	p1, err := tx.Player(m.Player1)
	if err != nil {
		return err
	}
	p2, err := tx.Player(m.Player2)
	if err != nil {
		return err
	}
	s, err := settle(m, outcome, h.Config.KFactor, now, &p1, &p2)
	if err != nil {
		return err
	}
	h.FeeBalance += s.Fee
	if err := putAll(tx, &h, []Match{*m}, p1, p2); err != nil {
		return err
	}
	return e.payout(ctx, s.Payouts)
}

func timedOut(m Match, now int64) bool {
	return now-m.LastTurnAt > m.Rules.TimeoutSeconds
}

func newMatch(id uint64, creator string, stake uint64, now int64) Match {
	m := Match{
		ID:        id,
		Player1:   creator,
		Status:    NotStarted,
		Stake:     stake,
		Value:     stake,
		CreatedAt: now,
	}
	m.Ships[0].Owner = creator
	return m
}

func ensurePlayer(tx Tx, id string, now int64) (Player, error) {
	if id == "" {
		return Player{}, ErrNotAParticipant
	}
	p, err := tx.Player(id)
	if errors.Is(err, ErrPlayerNotFound) {
		return newPlayer(id, now), nil
	}
	return p, err
}

func putAll(tx Tx, h *House, matches []Match, players ...Player) error {
	if h != nil {
		if err := tx.PutHouse(*h); err != nil {
			return err
		}
	}
	for _, m := range matches {
		if err := tx.PutMatch(m); err != nil {
			return err
		}
	}
	for _, p := range players {
		if err := tx.PutPlayer(p); err != nil {
			return err
		}
	}
	return nil
}

func removeID(ids []uint64, id uint64) []uint64 {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
