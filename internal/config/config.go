// SPDX-License-Identifier: MIT

// Package config loads relay daemon configuration from the environment.
package config

import (
	"fmt"
	"time"
)

// Backend identifiers accepted by YTRELAY_BACKEND.
const (
	BackendYTLib = "ytlib" // in-process extraction library
	BackendYTDLP = "ytdlp" // yt-dlp subprocess
)

// Range policies accepted by YTRELAY_RANGE_POLICY.
const (
	RangeForward = "forward" // forward client Range upstream, answer 206
	RangeIgnore  = "ignore"  // always serve the full body with 200
)

// Config holds the runtime configuration of the relay daemon.
// Precedence is environment over defaults; there is no config file.
type Config struct {
	ListenAddr     string
	Backend        string
	RangePolicy    string
	ResolveTimeout time.Duration
	CookiesPath    string // Netscape cookies.txt for the yt-dlp backend
	YTDLPPath      string
	RedisAddr      string // empty disables the manifest cache
	CacheTTL       time.Duration
	RateLimitRPM   int  // requests per minute per client IP, 0 disables
	TrustProxy     bool // key rate limits by X-Forwarded-For instead of the peer address
}

// FromEnv builds a Config from YTRELAY_* environment variables.
func FromEnv() Config {
	return Config{
		ListenAddr:     ParseString("YTRELAY_LISTEN", ":8080"),
		Backend:        ParseString("YTRELAY_BACKEND", BackendYTLib),
		RangePolicy:    ParseString("YTRELAY_RANGE_POLICY", RangeForward),
		ResolveTimeout: ParseDuration("YTRELAY_RESOLVE_TIMEOUT", 15*time.Second),
		CookiesPath:    ParseString("YTRELAY_COOKIES", ""),
		YTDLPPath:      ParseString("YTRELAY_YTDLP_PATH", "yt-dlp"),
		RedisAddr:      ParseString("YTRELAY_REDIS_ADDR", ""),
		CacheTTL:       ParseDuration("YTRELAY_CACHE_TTL", 5*time.Minute),
		RateLimitRPM:   ParseInt("YTRELAY_RATE_LIMIT_RPM", 120),
		TrustProxy:     ParseBool("YTRELAY_TRUST_PROXY", false),
	}
}

// Validate rejects configurations the daemon cannot run with.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address is required")
	}
	switch c.Backend {
	case BackendYTLib, BackendYTDLP:
	default:
		return fmt.Errorf("unknown backend %q (expected %q or %q)", c.Backend, BackendYTLib, BackendYTDLP)
	}
	switch c.RangePolicy {
	case RangeForward, RangeIgnore:
	default:
		return fmt.Errorf("unknown range policy %q (expected %q or %q)", c.RangePolicy, RangeForward, RangeIgnore)
	}
	if c.ResolveTimeout <= 0 {
		return fmt.Errorf("resolve timeout must be positive")
	}
	return nil
}
