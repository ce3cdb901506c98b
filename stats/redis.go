/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	leaderboardKey   = "quiplash:leaderboard"
	playerKeyPrefix  = "quiplash:player:"
	resultsKey       = "quiplash:results"
	maxStoredResults = 1000
)

// RedisStore keeps a sorted set of total points, a hash of totals per player
// and a capped list of raw round records.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

func OpenRedis(ctx context.Context, addr, password string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	store, err := NewRedis(ctx, client)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	return store, nil
}

// NewRedis wraps an existing client, checking that it can reach the server.
func NewRedis(ctx context.Context, client *redis.Client) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil")
	}

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client, now: time.Now}, nil
}

func (r *RedisStore) RecordRound(ctx context.Context, session string, round int, standings []Standing) error {
	record := Record{
		ID:         uuid.NewString(),
		Session:    session,
		Round:      round,
		Standings:  standings,
		RecordedAt: r.now().UTC(),
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal round record: %w", err)
	}

	pipe := r.client.TxPipeline()

	for _, s := range standings {
		pipe.ZIncrBy(ctx, leaderboardKey, float64(s.Points), s.Name)

		key := playerKeyPrefix + s.Name
		pipe.HIncrBy(ctx, key, "points", int64(s.Points))
		pipe.HIncrBy(ctx, key, "wins", int64(s.Wins))
		pipe.HIncrBy(ctx, key, "rounds", 1)
	}

	pipe.LPush(ctx, resultsKey, raw)
	pipe.LTrim(ctx, resultsKey, 0, maxStoredResults-1)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record round %d of %s: %w", round, session, err)
	}

	return nil
}

func (r *RedisStore) Leaderboard(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		return []Entry{}, nil
	}

	ranked, err := r.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}

	pipe := r.client.Pipeline()
	totals := make([]*redis.MapStringStringCmd, len(ranked))
	for i, z := range ranked {
		totals[i] = pipe.HGetAll(ctx, playerKeyPrefix+fmt.Sprint(z.Member))
	}
	if len(ranked) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("failed to read player totals: %w", err)
		}
	}

	entries := make([]Entry, 0, len(ranked))
	for i, z := range ranked {
		fields := totals[i].Val()
		entries = append(entries, Entry{
			Name:   fmt.Sprint(z.Member),
			Points: int(z.Score),
			Wins:   atoi(fields["wins"]),
			Rounds: atoi(fields["rounds"]),
		})
	}

	return entries, nil
}

// History returns up to limit raw round records, newest first.
func (r *RedisStore) History(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		return []Record{}, nil
	}

	raw, err := r.client.LRange(ctx, resultsKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read round history: %w", err)
	}

	records := make([]Record, 0, len(raw))
	for _, item := range raw {
		var rec Record
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal round record: %w", err)
		}
		records = append(records, rec)
	}

	return records, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
