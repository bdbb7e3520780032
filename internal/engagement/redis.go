package engagement

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisLedger keeps XP balances and streak counters in Redis. Balances live
// in a per-user hash so per-reason breakdowns ride along with the total;
// streaks are plain counters.
type RedisLedger struct {
	client *redis.Client
}

func NewRedisLedger(client *redis.Client) *RedisLedger {
	return &RedisLedger{client: client}
}

func xpKey(userID string) string     { return "engagement:xp:" + userID }
func streakKey(userID string) string { return "engagement:streak:" + userID }

func (l *RedisLedger) Award(ctx context.Context, userID string, amount int, reason string) (int, error) {
	pipe := l.client.TxPipeline()
	total := pipe.HIncrBy(ctx, xpKey(userID), "total", int64(amount))
	pipe.HIncrBy(ctx, xpKey(userID), "reason:"+reason, int64(amount))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("award xp: %w", err)
	}
	return int(total.Val()), nil
}

func (l *RedisLedger) ExtendStreak(ctx context.Context, userID string) (int, error) {
	length, err := l.client.Incr(ctx, streakKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("extend streak: %w", err)
	}
	return int(length), nil
}

func (l *RedisLedger) ResetStreak(ctx context.Context, userID string) error {
	if err := l.client.Del(ctx, streakKey(userID)).Err(); err != nil {
		return fmt.Errorf("reset streak: %w", err)
	}
	return nil
}
