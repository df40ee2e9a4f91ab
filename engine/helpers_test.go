package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	alice = "alice"
	bob   = "bob"
	carol = "carol"
)

type fixedClock struct{ now int64 }

func (c *fixedClock) Now() int64 { return c.now }

type scriptedCoins struct{ side, first bool }

func (c scriptedCoins) Flip(uint64, int64) (bool, bool) { return c.side, c.first }

// fakeTreasury records what the engine asked it to move.
type fakeTreasury struct {
	mu          sync.Mutex
	collected   map[string]uint64
	paid        []Transfer
	collectRefs []string
	failCollect error
	failPayout  error
}

func newFakeTreasury() *fakeTreasury {
	return &fakeTreasury{collected: map[string]uint64{}}
}

func (f *fakeTreasury) Collect(_ context.Context, from string, amount uint64, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCollect != nil {
		return f.failCollect
	}
	f.collected[from] += amount
	f.collectRefs = append(f.collectRefs, ref)
	return nil
}

func (f *fakeTreasury) Payout(_ context.Context, transfers []Transfer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPayout != nil {
		return f.failPayout
	}
	f.paid = append(f.paid, transfers...)
	return nil
}

func (f *fakeTreasury) paidTo(id string) uint64 {
	var total uint64
	for _, t := range f.paid {
		if t.To == id {
			total += t.Amount
		}
	}
	return total
}

var errTreasuryDown = errors.New("custody unavailable")

type fixture struct {
	engine   *Engine
	ledger   *MemoryLedger
	treasury *fakeTreasury
	clock    *fixedClock
}

// scenarioConfig makes a pool of 1000 out of two 500 stakes.
func scenarioConfig() Config {
	cfg := DefaultConfig()
	cfg.StakeCost = 500
	return cfg
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		ledger:   NewMemoryLedger(cfg),
		treasury: newFakeTreasury(),
		clock:    &fixedClock{now: 1_700_000_000},
	}
	f.engine = New(f.ledger, f.treasury, f.clock, scriptedCoins{side: true, first: true})
	return f
}

// startMatch has alice invite bob and bob accept. Alice moves first from (5,-10),
// bob sits at (-5,10).
func (f *fixture) startMatch(t *testing.T) Match {
	t.Helper()
	ctx := context.Background()
	h, err := f.engine.House(ctx)
	require.NoError(t, err)
	m, err := f.engine.Invite(ctx, alice, bob, h.Config.StakeCost)
	require.NoError(t, err)
	m, err = f.engine.Accept(ctx, bob, m.ID, h.Config.StakeCost)
	require.NoError(t, err)
	require.Equal(t, Active, m.Status)
	return m
}

// edit rewrites a stored match in place.
func (f *fixture) edit(t *testing.T, id uint64, fn func(m *Match)) {
	t.Helper()
	err := f.ledger.Update(context.Background(), func(tx Tx) error {
		m, err := tx.Match(id)
		if err != nil {
			return err
		}
		fn(&m)
		return tx.PutMatch(m)
	})
	require.NoError(t, err)
}

func (f *fixture) match(t *testing.T, id uint64) Match {
	t.Helper()
	m, err := f.engine.Match(context.Background(), id)
	require.NoError(t, err)
	return m
}

func (f *fixture) player(t *testing.T, id string) Player {
	t.Helper()
	p, err := f.engine.Player(context.Background(), id)
	require.NoError(t, err)
	return p
}

func (f *fixture) house(t *testing.T) House {
	t.Helper()
	h, err := f.engine.House(context.Background())
	require.NoError(t, err)
	return h
}
