package engine

import "fmt"

// FleePayoutPercent is the share of the pool the opponent of a fleeing ship receives.
const FleePayoutPercent = 75

// expectedScore holds the expected score, in percent, of the higher rated player
// for rating gaps bucketed by 25 points, up to RatingGapCutoff.
var expectedScore = [...]int64{
	50, 54, 57, 61, 64, 67, 70, 73, 76, 79,
	81, 83, 85, 87, 88, 90, 91, 92, 93, 94,
	95, 95, 96, 96, 97, 97, 98, 98, 98, 98,
	99, 99, 99,
}

// Split divides the pool for a terminal outcome. The transfers plus the returned
// fee always add up to value.
func Split(outcome Status, value uint64, player1, player2 string) ([]Transfer, uint64) {
	var transfers []Transfer
	pay := func(to string, amount uint64, memo string) {
		if amount > 0 {
			transfers = append(transfers, Transfer{To: to, Amount: amount, Memo: memo})
		}
	}
	switch outcome {
	case Player1Destroyed:
		pay(player2, value, "victory")
		return transfers, 0
	case Player2Destroyed:
		pay(player1, value, "victory")
		return transfers, 0
	case Player1Fled, Player2Fled:
		winner := player1
		if outcome == Player1Fled {
			winner = player2
		}
		share := value * FleePayoutPercent / 100
		pay(winner, share, "opponent fled")
		return transfers, value - share
	case Draw:
		half := value / 2
		pay(player1, half, "draw")
		pay(player2, half, "draw")
		return transfers, value - 2*half
	}
	return nil, value
}

// RatingDelta returns the change for player A after scoring score (0, 50 or 100)
// against B. Player B moves by the negated amount.
func RatingDelta(ratingA, ratingB uint32, score, k int64) int64 {
	gap := int64(ratingA) - int64(ratingB)
	if Abs(gap) > RatingGapCutoff {
		return 0
	}
	expected := expectedScore[Abs(gap)/25]
	if gap < 0 {
		expected = 100 - expected
	}
	return k * (score - expected) / 100
}

func applyDelta(rating uint32, delta int64) uint32 {
	next := int64(rating) + delta
	if next < 0 {
		return 0
	}
	return uint32(next)
}

// settle closes an active match with the given terminal outcome: it zeroes the
// pool, records statistics and ratings on both players and returns the settlement.
// The caller persists the records and issues the payouts.
func settle(m *Match, outcome Status, k int64, now int64, p1, p2 *Player) (Settlement, error) {
	if m.Status != Active {
		return Settlement{}, fmt.Errorf("settle match %d: %w", m.ID, ErrMatchNotActive)
	}
	if !outcome.Terminal() || outcome == Over {
		return Settlement{}, fmt.Errorf("settle match %d with outcome %s", m.ID, outcome)
	}

	payouts, fee := Split(outcome, m.Value, m.Player1, m.Player2)
	for i := range payouts {
		payouts[i].Ref = fmt.Sprintf("match/%d/settle", m.ID)
	}

	score1 := int64(50)
	switch outcome {
	case Player1Destroyed:
		score1 = 0
		p1.Stats.Losses++
		p2.Stats.Victories++
	case Player2Destroyed:
		score1 = 100
		p1.Stats.Victories++
		p2.Stats.Losses++
	case Player1Fled:
		score1 = 0
		p1.Stats.DefaultLosses++
		p2.Stats.DefaultVictories++
	case Player2Fled:
		score1 = 100
		p1.Stats.DefaultVictories++
		p2.Stats.DefaultLosses++
	case Draw:
		p1.Stats.Draws++
		p2.Stats.Draws++
	}

	delta := RatingDelta(p1.Rating, p2.Rating, score1, k)
	changes := [2]RatingChange{
		{MatchID: m.ID, Player: p1.ID, Before: p1.Rating, After: applyDelta(p1.Rating, delta)},
		{MatchID: m.ID, Player: p2.ID, Before: p2.Rating, After: applyDelta(p2.Rating, -delta)},
	}
	p1.Rating = changes[0].After
	p2.Rating = changes[1].After
	p1.RatingHistory = append(p1.RatingHistory, changes[0])
	p2.RatingHistory = append(p2.RatingHistory, changes[1])

	s := Settlement{Outcome: outcome, Payouts: payouts, Fee: fee, Ratings: changes, At: now}
	switch outcome {
	case Player1Destroyed, Player1Fled:
		s.Winner = m.Player2
	case Player2Destroyed, Player2Fled:
		s.Winner = m.Player1
	}

	m.Status = outcome
	m.Value = 0
	m.CurrentPlayer = ""
	m.Result = &s
	return s, nil
}
