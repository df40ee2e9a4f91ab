package engine

import "context"

// Ledger runs every entry point as one atomic step. Update commits the writes made
// through tx only when fn returns nil; View gets a read-only tx.
type Ledger interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
}

// Tx reads and stages records. Getters return copies; nothing is visible to other
// callers until the surrounding Update commits.
type Tx interface {
	House() (House, error)
	PutHouse(h House) error
	Match(id uint64) (Match, error)
	PutMatch(m Match) error
	Player(id string) (Player, error)
	PutPlayer(p Player) error
	Players() ([]Player, error)
}
