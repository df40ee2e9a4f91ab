package engine

import (
	"context"
	"time"
)

// Transfer is one outbound payment from the pool or the fee balance. Ref names
// the transition that produced it and is stable across retries.
type Transfer struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
	Memo   string `json:"memo,omitempty"`
	Ref    string `json:"ref,omitempty"`
}

// Treasury moves real value. Collect pulls a stake from a player; Payout sends a batch.
// Either failing aborts the surrounding transition. Collect's ref is stable for a
// given match and player so a retried transition can be deduplicated.
type Treasury interface {
	Collect(ctx context.Context, from string, amount uint64, ref string) error
	Payout(ctx context.Context, transfers []Transfer) error
}

// Clock returns the current time in unix seconds.
type Clock interface {
	Now() int64
}

// CoinSource yields the two start-of-match coin flips: side picks the vertical
// offset of player1, first says whether player1 moves first.
type CoinSource interface {
	Flip(matchID uint64, now int64) (side, first bool)
}

type ClockFunc func() int64

func (f ClockFunc) Now() int64 { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(func() int64 { return time.Now().Unix() })
