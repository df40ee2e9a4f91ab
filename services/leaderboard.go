package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	"duel-arena/engine"

	"github.com/redis/go-redis/v9"
)

const leaderboardKey = "duel:ratings"

// Leaderboard mirrors player ratings into a Redis sorted set so the public
// ratings endpoint does not have to scan the players table.
type Leaderboard struct {
	rdb *redis.Client
}

func NewLeaderboard(redisURL string) (*Leaderboard, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for leaderboard")
	}
	// redis:// or rediss:// with optional user, password, db and query options
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	lb, err := NewLeaderboardFromClient(context.Background(), rdb)
	if err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return lb, nil
}

func NewLeaderboardFromClient(ctx context.Context, rdb *redis.Client) (*Leaderboard, error) {
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Leaderboard{rdb: rdb}, nil
}

func (l *Leaderboard) Close() error {
	if l == nil || l.rdb == nil {
		return nil
	}
	return l.rdb.Close()
}

// Publish replaces the stored ratings with ratings.
func (l *Leaderboard) Publish(ctx context.Context, ratings []engine.Rating) error {
	pipe := l.rdb.TxPipeline()
	pipe.Del(ctx, leaderboardKey)
	if len(ratings) > 0 {
		members := make([]redis.Z, 0, len(ratings))
		for _, r := range ratings {
			members = append(members, redis.Z{Score: float64(r.Rating), Member: r.Player})
		}
		pipe.ZAdd(ctx, leaderboardKey, members...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish leaderboard: %w", err)
	}
	return nil
}

// Top returns up to limit ratings, highest first. Equal ratings are ordered by
// player id, matching engine.Ratings.
func (l *Leaderboard) Top(ctx context.Context, limit int64) ([]engine.Rating, error) {
	if limit <= 0 {
		limit = 100
	}
	zs, err := l.rdb.ZRevRangeWithScores(ctx, leaderboardKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}

	var band []redis.Z
	if int64(len(zs)) == limit {
		// Redis breaks ties by reverse member name, so the cut can split the
		// lowest score band; read that band whole.
		edge := strconv.FormatFloat(zs[len(zs)-1].Score, 'f', -1, 64)
		band, err = l.rdb.ZRangeByScoreWithScores(ctx, leaderboardKey, &redis.ZRangeBy{Min: edge, Max: edge}).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read leaderboard tie band: %w", err)
		}
	}
	return topRatings(zs, band, limit), nil
}

// topRatings merges a reverse range with the full band of its lowest score,
// orders the result like engine.Ratings and cuts it to limit.
func topRatings(zs, band []redis.Z, limit int64) []engine.Rating {
	if len(band) > 0 {
		edge := zs[len(zs)-1].Score
		merged := make([]redis.Z, 0, len(zs)+len(band))
		for _, z := range zs {
			if z.Score != edge {
				merged = append(merged, z)
			}
		}
		zs = append(merged, band...)
	}

	out := make([]engine.Rating, 0, len(zs))
	for _, z := range zs {
		id, ok := z.Member.(string)
		if !ok {
			continue
		}
		out = append(out, engine.Rating{Player: id, Rating: uint32(z.Score)})
	}
	sortRatings(out)
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out
}

// Rank returns the 1-based position of player, or 0 when unranked.
func (l *Leaderboard) Rank(ctx context.Context, player string) (int64, error) {
	rank, err := l.rdb.ZRevRank(ctx, leaderboardKey, player).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rank + 1, nil
}

// Refresh recomputes the ratings from the ledger and publishes them.
func (l *Leaderboard) Refresh(ctx context.Context, e *engine.Engine) error {
	ratings, err := e.Ratings(ctx)
	if err != nil {
		return err
	}
	if err := l.Publish(ctx, ratings); err != nil {
		return err
	}
	log.Printf("[LEADERBOARD] 🏆 Published %d rating(s)", len(ratings))
	return nil
}

// sortRatings breaks the ties Redis orders by reverse member name.
func sortRatings(rs []engine.Rating) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Rating != rs[j].Rating {
			return rs[i].Rating > rs[j].Rating
		}
		return rs[i].Player < rs[j].Player
	})
}
