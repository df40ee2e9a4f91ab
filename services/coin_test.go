package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeededCoinsAreReproducible(t *testing.T) {
	a := NewSeededCoins("s3cret")
	b := NewSeededCoins("s3cret")

	for id := uint64(1); id <= 20; id++ {
		s1, f1 := a.Flip(id, 1_700_000_000)
		s2, f2 := b.Flip(id, 1_700_000_000)
		assert.Equal(t, s1, s2)
		assert.Equal(t, f1, f2)
	}
}

func TestSeededCoinsLandBothWays(t *testing.T) {
	coins := NewSeededCoins("s3cret")
	var sides, firsts [2]int
	for id := uint64(1); id <= 200; id++ {
		side, first := coins.Flip(id, int64(id)*7)
		sides[boolIndex(side)]++
		firsts[boolIndex(first)]++
	}
	assert.NotZero(t, sides[0])
	assert.NotZero(t, sides[1])
	assert.NotZero(t, firsts[0])
	assert.NotZero(t, firsts[1])
}

func boolIndex(b bool) int {
	if b {
		return 1
	}
	return 0
}
