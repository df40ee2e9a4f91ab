package engine

import (
	"context"
	"sort"
	"sync"
)

// MemoryLedger keeps everything in process memory. It serves tests and
// single-process deployments without a database.
type MemoryLedger struct {
	mu      sync.Mutex
	house   House
	matches map[uint64]Match
	players map[string]Player
}

func NewMemoryLedger(cfg Config) *MemoryLedger {
	return &MemoryLedger{
		house:   House{Config: cfg},
		matches: make(map[uint64]Match),
		players: make(map[string]Player),
	}
}

func (l *MemoryLedger) Update(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := &memTx{l: l, matches: map[uint64]Match{}, players: map[string]Player{}}
	if err := fn(tx); err != nil {
		return err
	}
	if tx.house != nil {
		l.house = *tx.house
	}
	for id, m := range tx.matches {
		l.matches[id] = m
	}
	for id, p := range tx.players {
		l.players[id] = p
	}
	return nil
}

func (l *MemoryLedger) View(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(&memTx{l: l, readOnly: true})
}

// memTx stages writes until Update commits them.
type memTx struct {
	l        *MemoryLedger
	readOnly bool
	house    *House
	matches  map[uint64]Match
	players  map[string]Player
}

func (t *memTx) House() (House, error) {
	if t.house != nil {
		return *t.house, nil
	}
	return t.l.house, nil
}

func (t *memTx) PutHouse(h House) error {
	if t.readOnly {
		return ErrReadOnly
	}
	t.house = &h
	return nil
}

func (t *memTx) Match(id uint64) (Match, error) {
	if m, ok := t.matches[id]; ok {
		return m.clone(), nil
	}
	m, ok := t.l.matches[id]
	if !ok {
		return Match{}, ErrMatchNotFound
	}
	return m.clone(), nil
}

func (t *memTx) PutMatch(m Match) error {
	if t.readOnly {
		return ErrReadOnly
	}
	t.matches[m.ID] = m.clone()
	return nil
}

func (t *memTx) Player(id string) (Player, error) {
	if p, ok := t.players[id]; ok {
		return p.clone(), nil
	}
	p, ok := t.l.players[id]
	if !ok {
		return Player{}, ErrPlayerNotFound
	}
	return p.clone(), nil
}

func (t *memTx) PutPlayer(p Player) error {
	if t.readOnly {
		return ErrReadOnly
	}
	t.players[p.ID] = p.clone()
	return nil
}

func (t *memTx) Players() ([]Player, error) {
	out := make([]Player, 0, len(t.l.players)+len(t.players))
	for id, p := range t.l.players {
		if _, staged := t.players[id]; staged {
			continue
		}
		out = append(out, p.clone())
	}
	for _, p := range t.players {
		out = append(out, p.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
