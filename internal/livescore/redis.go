package livescore

import (
	"context"
	"fmt"

	"github.com/qconnect/qconnect/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisBoard keeps scores in a sorted set so several server processes
// share one board.
type RedisBoard struct {
	rdb *redis.Client
	key string
}

func NewRedisBoard(rdb *redis.Client, key string) *RedisBoard {
	return &RedisBoard{rdb: rdb, key: key}
}

func (b *RedisBoard) Set(ctx context.Context, name string, score int) error {
	if err := b.rdb.ZAdd(ctx, b.key, redis.Z{Score: float64(score), Member: name}).Err(); err != nil {
		return fmt.Errorf("zadd %s: %w", b.key, err)
	}
	return nil
}

func (b *RedisBoard) List(ctx context.Context) ([]models.LiveScore, error) {
	zs, err := b.rdb.ZRevRangeWithScores(ctx, b.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange %s: %w", b.key, err)
	}
	out := make([]models.LiveScore, 0, len(zs))
	for _, z := range zs {
		name, _ := z.Member.(string)
		out = append(out, models.LiveScore{Name: name, Score: int(z.Score)})
	}
	// ties come back in reverse lexical order
	sortScores(out)
	return out, nil
}

// Clear removes the board.
func (b *RedisBoard) Clear(ctx context.Context) error {
	return b.rdb.Del(ctx, b.key).Err()
}
