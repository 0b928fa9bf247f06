// Package config provides centralized configuration management.
// Every tunable of the relay, the overlay and the feed generator lives here.
//
// Defaults come from DefaultX() and are overridden by environment variables in XFromEnv().
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// RELAY CONFIGURATION
// =============================================================================

// RelayConfig holds state-feed relay settings.
type RelayConfig struct {
	ListenAddr   string        // WebSocket listen address
	MaxPeers     int           // Registry bound (10 players + 1 spectator/test feed)
	WriteTimeout time.Duration // Per-peer send deadline
	PeerRate     float64       // Inbound messages per second per peer
	PeerBurst    int
	// Browser origins allowed besides localhost; non-browser producers send no Origin
	AllowedOrigins []string
}

// DefaultRelay returns the default relay configuration.
func DefaultRelay() RelayConfig {
	return RelayConfig{
		ListenAddr:   "localhost:27017",
		MaxPeers:     11,
		WriteTimeout: 2 * time.Second,
		PeerRate:     20,
		PeerBurst:    40,
	}
}

// RelayFromEnv returns relay configuration with environment variable overrides.
func RelayFromEnv() RelayConfig {
	cfg := DefaultRelay()

	if addr := os.Getenv("RELAY_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	if n := getEnvInt("RELAY_MAX_PEERS", 0); n > 0 {
		cfg.MaxPeers = n
	}
	if ms := getEnvInt("RELAY_WRITE_TIMEOUT_MS", 0); ms > 0 {
		cfg.WriteTimeout = time.Duration(ms) * time.Millisecond
	}
	if r := getEnvFloat("RELAY_PEER_RATE", 0); r > 0 {
		cfg.PeerRate = r
		cfg.PeerBurst = int(r * 2)
	}
	if origins := os.Getenv("RELAY_ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = splitList(origins)
	}

	return cfg
}

// =============================================================================
// OVERLAY CONFIGURATION
// =============================================================================

// OverlayConfig holds consumer-side settings.
type OverlayConfig struct {
	RelayURL       string        // Relay endpoint the overlay consumes
	HTTPAddr       string        // Frame/control API listen address
	AssetBaseURL   string        // http(s) base URL or directory holding <Name>.png assets
	CanvasSize     int           // Square map canvas edge in pixels
	DefaultMap     string        // Map shown until the UI selects another
	ReconnectDelay time.Duration // Fixed backoff between relay connection attempts
}

// DefaultOverlay returns the default overlay configuration.
func DefaultOverlay() OverlayConfig {
	return OverlayConfig{
		RelayURL:       "ws://localhost:27017/",
		HTTPAddr:       ":8081",
		AssetBaseURL:   "http://127.0.0.1:8080/images/",
		CanvasSize:     1024,
		DefaultMap:     "Ascent",
		ReconnectDelay: 5 * time.Second,
	}
}

// OverlayFromEnv returns overlay configuration with environment variable overrides.
func OverlayFromEnv() OverlayConfig {
	cfg := DefaultOverlay()

	if u := os.Getenv("RELAY_URL"); u != "" {
		cfg.RelayURL = u
	}
	if addr := os.Getenv("OVERLAY_ADDR"); addr != "" {
		cfg.HTTPAddr = addr
	}
	if base := os.Getenv("ASSET_BASE_URL"); base != "" {
		cfg.AssetBaseURL = base
	}
	if size := getEnvInt("CANVAS_SIZE", 0); size > 0 {
		cfg.CanvasSize = size
	}
	if m := os.Getenv("DEFAULT_MAP"); m != "" {
		cfg.DefaultMap = m
	}
	if ms := getEnvInt("RECONNECT_DELAY_MS", 0); ms > 0 {
		cfg.ReconnectDelay = time.Duration(ms) * time.Millisecond
	}

	return cfg
}

// =============================================================================
// FEED GENERATOR CONFIGURATION
// =============================================================================

// FeedConfig holds synthetic producer settings.
type FeedConfig struct {
	RelayURL       string
	Interval       time.Duration // Time between snapshots (nominal cadence is 1/s)
	ReconnectDelay time.Duration
}

// DefaultFeed returns the default feed generator configuration.
func DefaultFeed() FeedConfig {
	return FeedConfig{
		RelayURL:       "ws://localhost:27017/",
		Interval:       time.Second,
		ReconnectDelay: 5 * time.Second,
	}
}

// FeedFromEnv returns feed configuration with environment variable overrides.
func FeedFromEnv() FeedConfig {
	cfg := DefaultFeed()

	if u := os.Getenv("RELAY_URL"); u != "" {
		cfg.RelayURL = u
	}
	if ms := getEnvInt("FEED_INTERVAL_MS", 0); ms > 0 {
		cfg.Interval = time.Duration(ms) * time.Millisecond
	}
	if ms := getEnvInt("RECONNECT_DELAY_MS", 0); ms > 0 {
		cfg.ReconnectDelay = time.Duration(ms) * time.Millisecond
	}

	return cfg
}

// =============================================================================
// DEBUG SERVER CONFIGURATION
// =============================================================================

// DebugConfig holds observability server settings.
type DebugConfig struct {
	Enabled    bool
	ListenAddr string // Localhost only unless ALLOW_DEBUG_EXTERNAL=true
}

// DebugFromEnv returns debug server configuration with environment variable overrides.
func DebugFromEnv(defaultAddr string) DebugConfig {
	cfg := DebugConfig{Enabled: true, ListenAddr: defaultAddr}

	if addr := os.Getenv("DEBUG_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	if os.Getenv("DISABLE_DEBUG_SERVER") == "true" {
		cfg.Enabled = false
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Relay    RelayConfig
	Overlay  OverlayConfig
	Feed     FeedConfig
	LogLevel string
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	return AppConfig{
		Relay:    RelayFromEnv(),
		Overlay:  OverlayFromEnv(),
		Feed:     FeedFromEnv(),
		LogLevel: level,
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
