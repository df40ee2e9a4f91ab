package services

import (
	"crypto/rand"
	"encoding/binary"
	"log"

	"lukechampine.com/blake3"
)

// SeededCoins derives the start-of-match coin flips from a server secret, the
// match id and the start time. The same inputs always give the same flips, so
// a start can be audited after the fact by whoever holds the secret.
type SeededCoins struct {
	secret []byte
}

// NewSeededCoins uses secret when given; otherwise a random one is generated
// and flips are only reproducible for the life of the process.
func NewSeededCoins(secret string) *SeededCoins {
	if secret != "" {
		return &SeededCoins{secret: []byte(secret)}
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		log.Fatalf("failed to generate coin secret: %v", err)
	}
	log.Println("⚠️  COIN_SECRET not set, using a random per-process secret")
	return &SeededCoins{secret: buf}
}

func (s *SeededCoins) Flip(matchID uint64, now int64) (side, first bool) {
	msg := make([]byte, 0, len(s.secret)+16)
	msg = append(msg, s.secret...)
	msg = binary.BigEndian.AppendUint64(msg, matchID)
	msg = binary.BigEndian.AppendUint64(msg, uint64(now))
	sum := blake3.Sum256(msg)
	return sum[0]&1 == 1, sum[1]&1 == 1
}
