/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package stats records round results and serves a leaderboard across every
// session the server has hosted.
package stats

import (
	"context"
	"fmt"
	"time"
)

// Standing is one player's result for a single round.
type Standing struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
	Wins   int    `json:"wins"`
}

// Record is a persisted round result.
type Record struct {
	ID         string     `json:"id"`
	Session    string     `json:"session"`
	Round      int        `json:"round"`
	Standings  []Standing `json:"standings"`
	RecordedAt time.Time  `json:"recorded_at"`
}

// Entry is one row of the leaderboard.
type Entry struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
	Wins   int    `json:"wins"`
	Rounds int    `json:"rounds"`
}

type Store interface {
	RecordRound(ctx context.Context, session string, round int, standings []Standing) error
	Leaderboard(ctx context.Context, limit int) ([]Entry, error)
	// History returns up to limit recorded rounds, newest first.
	History(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

const (
	BackendNone   = "none"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

type Config struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
}

// Open connects to the configured backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendNone:
		return NopStore{}, nil
	case BackendRedis:
		return OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
	case BackendSQLite:
		return OpenSQLite(ctx, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown stats backend %q", cfg.Backend)
	}
}

// NopStore discards results and reports an empty leaderboard.
type NopStore struct{}

func (NopStore) RecordRound(context.Context, string, int, []Standing) error { return nil }

func (NopStore) Leaderboard(context.Context, int) ([]Entry, error) { return []Entry{}, nil }

func (NopStore) History(context.Context, int) ([]Record, error) { return []Record{}, nil }

func (NopStore) Close() error { return nil }
