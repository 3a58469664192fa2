/*
Copyright © 2025 WildSphee <wildsphee@proton.me>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind    string
	port    int
	prefix  string
	tlsCert string
	tlsKey  string
	verbose bool
	profile bool
	version bool

	dataDir       string
	dev           bool
	redisAddress  string
	redisPassword string
	redisDB       int
	questionsPath string
	tokenTTL      time.Duration

	queueTick           time.Duration
	heartbeatInterval   time.Duration
	sweepInterval       time.Duration
	leaderboardInterval time.Duration

	foundDelay    time.Duration
	startDelay    time.Duration
	roundTimeout  time.Duration
	revealDelay   time.Duration
	startLives    int
	questionCount int
	chatMaxLen    int

	eloK            int
	minRating       int
	meanReverting   bool
	meanRating      int
	minK            int
	maxK            int
	recentOpponents int
	fallbackDepth   int
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.startLives < 1 {
		return fmt.Errorf("invalid starting lives: %d", c.startLives)
	}
	if c.questionCount < 1 {
		return fmt.Errorf("invalid questions per match: %d", c.questionCount)
	}
	if c.eloK < 1 {
		return fmt.Errorf("invalid K-factor: %d", c.eloK)
	}
	if c.meanReverting && c.minK > c.maxK {
		return fmt.Errorf("invalid K band: min %d > max %d", c.minK, c.maxK)
	}
	if c.roundTimeout <= 0 || c.revealDelay <= 0 || c.queueTick <= 0 {
		return errors.New("round-timeout, reveal-delay and queue-tick must be positive")
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func (c *Config) ratingPolicy() RatingPolicy {
	return RatingPolicy{
		K:             c.eloK,
		MinRating:     c.minRating,
		MeanReverting: c.meanReverting,
		MeanRating:    c.meanRating,
		MinK:          c.minK,
		MaxK:          c.maxK,
	}
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("TRIVIDUEL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:     "trividuel",
		Short:   "Real-time two-player elimination trivia duels with Elo matchmaking.",
		Args:    cobra.ExactArgs(0),
		Version: releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: TRIVIDUEL_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8765, "port to listen on (env: TRIVIDUEL_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: TRIVIDUEL_PREFIX)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: TRIVIDUEL_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: TRIVIDUEL_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: TRIVIDUEL_VERBOSE)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: TRIVIDUEL_PROFILE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: TRIVIDUEL_VERSION)")

	fs.StringVar(&cfg.dataDir, "data-dir", "data", "directory for accounts and the token signing key (env: TRIVIDUEL_DATA_DIR)")
	fs.BoolVar(&cfg.dev, "dev", false, "use an in-memory player store instead of redis (env: TRIVIDUEL_DEV)")
	fs.StringVar(&cfg.redisAddress, "redis-address", "localhost:6379", "redis host:port for the player store (env: TRIVIDUEL_REDIS_ADDRESS)")
	fs.StringVar(&cfg.redisPassword, "redis-password", "", "redis password (env: TRIVIDUEL_REDIS_PASSWORD)")
	fs.IntVar(&cfg.redisDB, "redis-db", 0, "redis database number (env: TRIVIDUEL_REDIS_DB)")
	fs.StringVar(&cfg.questionsPath, "questions", "questions.csv", "path to the question bank CSV (env: TRIVIDUEL_QUESTIONS)")
	fs.DurationVar(&cfg.tokenTTL, "token-ttl", 24*time.Hour, "lifetime of issued auth tokens (env: TRIVIDUEL_TOKEN_TTL)")

	fs.DurationVar(&cfg.queueTick, "queue-tick", 3*time.Second, "matchmaking tick interval (env: TRIVIDUEL_QUEUE_TICK)")
	fs.DurationVar(&cfg.heartbeatInterval, "heartbeat-interval", 5*time.Second, "websocket keepalive ping interval (env: TRIVIDUEL_HEARTBEAT_INTERVAL)")
	fs.DurationVar(&cfg.sweepInterval, "sweep-interval", 15*time.Second, "liveness sweep interval for ghost eviction (env: TRIVIDUEL_SWEEP_INTERVAL)")
	fs.DurationVar(&cfg.leaderboardInterval, "leaderboard-interval", 10*time.Minute, "leaderboard snapshot refresh interval (env: TRIVIDUEL_LEADERBOARD_INTERVAL)")

	fs.DurationVar(&cfg.foundDelay, "found-delay", 2*time.Second, "delay between match-found and match-start events (env: TRIVIDUEL_FOUND_DELAY)")
	fs.DurationVar(&cfg.startDelay, "start-delay", time.Second, "delay between match-start and the first round (env: TRIVIDUEL_START_DELAY)")
	fs.DurationVar(&cfg.roundTimeout, "round-timeout", 10*time.Second, "answer window per question (env: TRIVIDUEL_ROUND_TIMEOUT)")
	fs.DurationVar(&cfg.revealDelay, "reveal-delay", 2*time.Second, "delay between reveal and the next round (env: TRIVIDUEL_REVEAL_DELAY)")
	fs.IntVar(&cfg.startLives, "start-lives", 3, "lives per player at match start (env: TRIVIDUEL_START_LIVES)")
	fs.IntVar(&cfg.questionCount, "questions-per-match", 10, "questions drawn per match (env: TRIVIDUEL_QUESTIONS_PER_MATCH)")
	fs.IntVar(&cfg.chatMaxLen, "chat-max", 500, "maximum relayed chat message length (env: TRIVIDUEL_CHAT_MAX)")

	fs.IntVar(&cfg.eloK, "elo-k", 32, "Elo K-factor (env: TRIVIDUEL_ELO_K)")
	fs.IntVar(&cfg.minRating, "min-rating", 100, "rating floor (env: TRIVIDUEL_MIN_RATING)")
	fs.BoolVar(&cfg.meanReverting, "mean-reverting", false, "scale K by distance from the mean rating (env: TRIVIDUEL_MEAN_REVERTING)")
	fs.IntVar(&cfg.meanRating, "mean-rating", defaultRating, "mean rating for the mean-reverting policy (env: TRIVIDUEL_MEAN_RATING)")
	fs.IntVar(&cfg.minK, "min-k", 16, "lower K clamp for the mean-reverting policy (env: TRIVIDUEL_MIN_K)")
	fs.IntVar(&cfg.maxK, "max-k", 48, "upper K clamp for the mean-reverting policy (env: TRIVIDUEL_MAX_K)")
	fs.IntVar(&cfg.recentOpponents, "recent-opponents", 4, "recent-opponent history window per player (env: TRIVIDUEL_RECENT_OPPONENTS)")
	fs.IntVar(&cfg.fallbackDepth, "fallback-depth", 2, "queued players required before repeat pairings are allowed (env: TRIVIDUEL_FALLBACK_DEPTH)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("trividuel v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
