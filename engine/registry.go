package engine

import (
	"context"
	"errors"
	"sort"
)

// Register records a new player explicitly. Paid entry points register
// unknown callers on their own.
func (e *Engine) Register(ctx context.Context, caller string) (Player, error) {
	var p Player
	err := e.ledger.Update(ctx, func(tx Tx) error {
		if caller == "" {
			return ErrNotAParticipant
		}
		if _, err := tx.Player(caller); err == nil {
			return ErrAlreadyRegistered
		} else if !errors.Is(err, ErrPlayerNotFound) {
			return err
		}
		p = newPlayer(caller, e.clock.Now())
		return tx.PutPlayer(p)
	})
	return p, err
}

func (e *Engine) Match(ctx context.Context, id uint64) (Match, error) {
	var m Match
	err := e.ledger.View(ctx, func(tx Tx) error {
		var err error
		m, err = tx.Match(id)
		return err
	})
	return m, err
}

func (e *Engine) Player(ctx context.Context, id string) (Player, error) {
	var p Player
	err := e.ledger.View(ctx, func(tx Tx) error {
		var err error
		p, err = tx.Player(id)
		return err
	})
	return p, err
}

// MatchesOf returns every match the player created or joined, in the order they
// were recorded.
func (e *Engine) MatchesOf(ctx context.Context, id string) ([]Match, error) {
	var out []Match
	err := e.ledger.View(ctx, func(tx Tx) error {
		p, err := tx.Player(id)
		if err != nil {
			return err
		}
		out = make([]Match, 0, len(p.Matches))
		for _, mid := range p.Matches {
			m, err := tx.Match(mid)
			if err != nil {
				return err
			}
			out = append(out, m)
		}
		return nil
	})
	return out, err
}

// Rating is one leaderboard row.
type Rating struct {
	Player string `json:"player"`
	Rating uint32 `json:"rating"`
}

// Ratings lists every known player, highest rating first.
func (e *Engine) Ratings(ctx context.Context) ([]Rating, error) {
	var out []Rating
	err := e.ledger.View(ctx, func(tx Tx) error {
		players, err := tx.Players()
		if err != nil {
			return err
		}
		out = make([]Rating, 0, len(players))
		for _, p := range players {
			out = append(out, Rating{Player: p.ID, Rating: p.Rating})
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].Player < out[j].Player
	})
	return out, err
}

func (e *Engine) House(ctx context.Context) (House, error) {
	var h House
	err := e.ledger.View(ctx, func(tx Tx) error {
		var err error
		h, err = tx.House()
		return err
	})
	return h, err
}
