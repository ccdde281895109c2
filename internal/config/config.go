// Package config reads server settings from the environment, after an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the server configuration
type Config struct {
	Port  string
	Debug bool

	// RedisURL selects the Redis session store; empty keeps sessions in memory
	RedisURL string
	// LedgerDSN is the sqlite file of the settlement ledger; empty keeps receipts in memory
	LedgerDSN string

	RulesScript string
	RosterURL   string
	PayoutURL   string

	FeeBps    int
	MaxMisses int

	RequireSessionToken bool
	SessionTokenTTL     time.Duration
	WaitingRoomTTL      time.Duration
	JanitorSchedule     string

	PublicURL       string
	OriginAllowlist []string
}

// Load reads files (default ".env") if present, then the environment.
// Variables already set in the environment win over the file.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv reads the configuration from the environment only
func FromEnv() (Config, error) {
	port := getenv("PORT", "8080")
	c := Config{
		Port:                port,
		Debug:               os.Getenv("DEBUG") != "",
		RedisURL:            os.Getenv("REDIS_URL"),
		LedgerDSN:           os.Getenv("LEDGER_DSN"),
		RulesScript:         os.Getenv("RULES_SCRIPT"),
		RosterURL:           os.Getenv("ROSTER_URL"),
		PayoutURL:           os.Getenv("PAYOUT_URL"),
		RequireSessionToken: true,
		JanitorSchedule:     getenv("JANITOR_SCHEDULE", "@every 1m"),
		PublicURL:           strings.TrimRight(getenv("PUBLIC_URL", "http://localhost:"+port), "/"),
		OriginAllowlist:     splitList(getenv("ORIGIN_ALLOWLIST", "http://localhost:"+port+",http://127.0.0.1:"+port)),
	}

	var errs []error
	c.FeeBps = getint("FEE_BPS", 500, &errs)
	c.MaxMisses = getint("MAX_MISSES", 3, &errs)
	c.RequireSessionToken = getbool("REQUIRE_SESSION_TOKEN", true, &errs)
	c.SessionTokenTTL = getduration("SESSION_TOKEN_TTL", 24*time.Hour, &errs)
	c.WaitingRoomTTL = getduration("WAITING_ROOM_TTL", 30*time.Minute, &errs)

	if c.FeeBps < 0 || c.FeeBps >= 10_000 {
		errs = append(errs, fmt.Errorf("FEE_BPS must be in [0, 10000), got %d", c.FeeBps))
	}
	if c.MaxMisses < 1 {
		errs = append(errs, fmt.Errorf("MAX_MISSES must be positive, got %d", c.MaxMisses))
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Addr is the listen address
func (c Config) Addr() string {
	return ":" + c.Port
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getint(k string, d int, errs *[]error) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", k, err))
		return d
	}
	return n
}

func getbool(k string, d bool, errs *[]error) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", k, err))
		return d
	}
	return b
}

// getduration accepts Go durations ("90s") or plain seconds
func getduration(k string, d time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	dur, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", k, err))
		return d
	}
	return dur
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
