/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Seednode/quipbox/games/quiplash"
	"github.com/Seednode/quipbox/stats"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind           string
	port           int
	prefix         string
	profile        bool
	sessionTimeout time.Duration
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool

	maxPlayers      int
	minPlayers      int
	prompts         string
	receiveTimeout  time.Duration
	responseTimeout time.Duration
	responsesPause  time.Duration
	resultsPause    time.Duration
	seed            int64
	voteTimeout     time.Duration

	statsBackend  string
	redisAddr     string
	redisPassword string
	sqlitePath    string
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.minPlayers < quiplash.DefaultMinPlayers {
		return fmt.Errorf("invalid --min-players (must be at least %d): %d", quiplash.DefaultMinPlayers, c.minPlayers)
	}
	if c.maxPlayers < c.minPlayers {
		return fmt.Errorf("invalid --max-players (must be at least --min-players %d): %d", c.minPlayers, c.maxPlayers)
	}
	for name, d := range map[string]time.Duration{
		"receive-timeout":  c.receiveTimeout,
		"response-timeout": c.responseTimeout,
		"vote-timeout":     c.voteTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("invalid --%s (must be positive): %s", name, d)
		}
	}
	if c.responsesPause < 0 || c.resultsPause < 0 || c.sessionTimeout < 0 {
		return errors.New("pauses and --session-timeout cannot be negative")
	}
	switch c.statsBackend {
	case stats.BackendNone, stats.BackendRedis, stats.BackendSQLite:
	default:
		return fmt.Errorf("invalid --stats-backend (must be one of none, redis, sqlite): %q", c.statsBackend)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func (c *Config) gameConfig() (quiplash.Config, error) {
	gc := quiplash.Config{
		MinPlayers:      c.minPlayers,
		ResponseTimeout: c.responseTimeout,
		VoteTimeout:     c.voteTimeout,
		ResponsesPause:  c.responsesPause,
		ResultsPause:    c.resultsPause,
		Seed:            c.seed,
	}

	if c.prompts != "" {
		prompts, err := quiplash.LoadPrompts(c.prompts)
		if err != nil {
			return gc, err
		}
		gc.Prompts = prompts
	}

	return gc, nil
}

func (c *Config) statsConfig() stats.Config {
	return stats.Config{
		Backend:       c.statsBackend,
		RedisAddr:     c.redisAddr,
		RedisPassword: c.redisPassword,
		SQLitePath:    c.sqlitePath,
	}
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("QUIPBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "quipbox",
		Short:         "Hosts quiplash-style party games over websockets.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, newLogger(cfg, cmd.ErrOrStderr()))
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: QUIPBOX_BIND)")
	fs.IntVar(&cfg.maxPlayers, "max-players", quiplash.DefaultMaxPlayers, "players allowed per game (env: QUIPBOX_MAX_PLAYERS)")
	fs.IntVar(&cfg.minPlayers, "min-players", quiplash.DefaultMinPlayers, "players required to start a round (env: QUIPBOX_MIN_PLAYERS)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: QUIPBOX_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: QUIPBOX_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: QUIPBOX_PROFILE)")
	fs.StringVar(&cfg.prompts, "prompts", "", "file with one prompt per line, replacing the built-in prompts (env: QUIPBOX_PROMPTS)")
	fs.DurationVar(&cfg.receiveTimeout, "receive-timeout", quiplash.DefaultReceiveTimeout, "how long each connection waits for a message before polling again (env: QUIPBOX_RECEIVE_TIMEOUT)")
	fs.StringVar(&cfg.redisAddr, "redis-addr", "localhost:6379", "redis address for --stats-backend redis (env: QUIPBOX_REDIS_ADDR)")
	fs.StringVar(&cfg.redisPassword, "redis-password", "", "redis password for --stats-backend redis (env: QUIPBOX_REDIS_PASSWORD)")
	fs.DurationVar(&cfg.responseTimeout, "response-timeout", quiplash.DefaultResponseTimeout, "time players have to answer their prompts (env: QUIPBOX_RESPONSE_TIMEOUT)")
	fs.DurationVar(&cfg.responsesPause, "responses-pause", quiplash.DefaultResponsesPause, "pause between answering and voting (env: QUIPBOX_RESPONSES_PAUSE)")
	fs.DurationVar(&cfg.resultsPause, "results-pause", quiplash.DefaultResultsPause, "pause after each prompt's results and the scoreboard (env: QUIPBOX_RESULTS_PAUSE)")
	fs.Int64Var(&cfg.seed, "seed", 0, "random seed for player ids and prompts, 0 for a time-based seed (env: QUIPBOX_SEED)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 0, "time before idle game sessions are removed, 0 to keep them (env: QUIPBOX_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.sqlitePath, "sqlite-path", "quipbox.db", "database file for --stats-backend sqlite (env: QUIPBOX_SQLITE_PATH)")
	fs.StringVar(&cfg.statsBackend, "stats-backend", stats.BackendNone, "where round results are stored: none, redis or sqlite (env: QUIPBOX_STATS_BACKEND)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: QUIPBOX_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: QUIPBOX_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: QUIPBOX_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: QUIPBOX_VERSION)")
	fs.DurationVar(&cfg.voteTimeout, "vote-timeout", quiplash.DefaultVoteTimeout, "time players have to vote on each prompt (env: QUIPBOX_VOTE_TIMEOUT)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("quipbox v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
