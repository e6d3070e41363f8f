package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the audiosniff service.
type Config struct {
	// CDP connection settings
	CDPAddress   string
	CDPPort      int
	TabURLFilter string

	// Browser launch
	LaunchBrowser    bool
	BrowserStartURL  string
	BrowserProfile   string
	BrowserLogDir    string
	BrowserCrashDump string
	BrowserHeadless  bool

	// HTTP API
	BindAddr       string
	PortCandidates []string
	AutoFallback   bool

	// Storage
	DataDir     string
	DownloadDir string
	ArchiveDir  string
	RulesFile   string
	Journal     bool

	// Page scanning
	ScanPages bool
	ScanQuiet time.Duration

	// Fetching
	FetchTimeout      time.Duration
	BundleConcurrency int

	// Archive retention
	ArchiveRetention string
	ArchiveMaxAge    time.Duration

	// Forwarding
	NtfyEndpoint string

	// Logging
	LogLevel string
	LogFile  string
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	dataDir := getEnvOrDefault("AUDIOSNIFF_DATA_DIR", "./audiosniff_data")
	cfg := &Config{
		CDPAddress:        getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:           getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9220),
		TabURLFilter:      getEnvOrDefault("AUDIOSNIFF_TAB_URL_FILTER", ""),
		LaunchBrowser:     getEnvBoolOrDefault("AUDIOSNIFF_LAUNCH_BROWSER", false),
		BrowserStartURL:   getEnvOrDefault("AUDIOSNIFF_BROWSER_START_URL", "about:blank"),
		BrowserProfile:    getEnvOrDefault("AUDIOSNIFF_BROWSER_PROFILE", filepath.Join(dataDir, "profile")),
		BrowserLogDir:     getEnvOrDefault("AUDIOSNIFF_BROWSER_LOG_DIR", "logs"),
		BrowserCrashDump:  getEnvOrDefault("AUDIOSNIFF_BROWSER_CRASH_DIR", filepath.Join(dataDir, "crashes")),
		BrowserHeadless:   getEnvBoolOrDefault("AUDIOSNIFF_BROWSER_HEADLESS", false),
		BindAddr:          getEnvOrDefault("AUDIOSNIFF_BIND_ADDR", "127.0.0.1:8190"),
		PortCandidates:    getEnvListOrDefault("AUDIOSNIFF_PORT_CANDIDATES", []string{"127.0.0.1:8191", "127.0.0.1:8192", "127.0.0.1:8193"}),
		AutoFallback:      getEnvBoolOrDefault("AUDIOSNIFF_PORT_AUTO_FALLBACK", true),
		DataDir:           dataDir,
		DownloadDir:       getEnvOrDefault("AUDIOSNIFF_DOWNLOAD_DIR", filepath.Join(dataDir, "downloads")),
		ArchiveDir:        getEnvOrDefault("AUDIOSNIFF_ARCHIVE_DIR", filepath.Join(dataDir, "bundles")),
		RulesFile:         getEnvOrDefault("AUDIOSNIFF_RULES_FILE", ""),
		Journal:           getEnvBoolOrDefault("AUDIOSNIFF_JOURNAL", true),
		ScanPages:         getEnvBoolOrDefault("AUDIOSNIFF_SCAN_PAGES", true),
		ScanQuiet:         getEnvMillisOrDefault("AUDIOSNIFF_SCAN_QUIET_MS", 500),
		FetchTimeout:      getEnvMillisOrDefault("AUDIOSNIFF_FETCH_TIMEOUT_MS", 120000),
		BundleConcurrency: getEnvIntOrDefault("AUDIOSNIFF_BUNDLE_CONCURRENCY", 4),
		ArchiveRetention:  getEnvOrDefault("AUDIOSNIFF_ARCHIVE_RETENTION", "0 3 * * *"),
		ArchiveMaxAge:     time.Duration(getEnvIntOrDefault("AUDIOSNIFF_ARCHIVE_MAX_AGE_HOURS", 168)) * time.Hour,
		NtfyEndpoint:      getEnvOrDefault("AUDIOSNIFF_NTFY_ENDPOINT", ""),
		LogLevel:          strings.ToLower(getEnvOrDefault("AUDIOSNIFF_LOG_LEVEL", "info")),
		LogFile:           getEnvOrDefault("AUDIOSNIFF_LOG_FILE", "logs/audiosniff.log"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.CDPPort <= 0 || c.CDPPort > 65535 {
		return fmt.Errorf("config: CHROMIUM_CDP_PORT out of range: %d", c.CDPPort)
	}
	if c.ScanQuiet < 50*time.Millisecond {
		c.ScanQuiet = 50 * time.Millisecond
	}
	if c.FetchTimeout < time.Second {
		c.FetchTimeout = time.Second
	}
	if c.BundleConcurrency < 1 {
		c.BundleConcurrency = 1
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: AUDIOSNIFF_LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel)
	}
	return nil
}

// GetCDPURL returns the full CDP HTTP endpoint used by chromedp remote allocator.
func (c *Config) GetCDPURL() string {
	return "http://" + c.CDPAddress + ":" + strconv.Itoa(c.CDPPort)
}

// LockFile is the path of the single-instance lock.
func (c *Config) LockFile() string {
	return filepath.Join(c.DataDir, "audiosniff.lock")
}

// JournalDir is where capture journal files are written.
func (c *Config) JournalDir() string {
	return filepath.Join(c.DataDir, "journal")
}

// SlogLevel maps LogLevel to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvMillisOrDefault(key string, defaultMS int) time.Duration {
	return time.Duration(getEnvIntOrDefault(key, defaultMS)) * time.Millisecond
}

func getEnvListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
