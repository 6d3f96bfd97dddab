package config

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
	"vimeodl/internal/fetch"

	"github.com/joho/godotenv"
)

// Environment variables read by FromEnv.
const (
	EnvUserAgent  = "VIMEO_DL_USER_AGENT"
	EnvLogLevel   = "VIMEO_DL_LOG_LEVEL"
	EnvLogFormat  = "VIMEO_DL_LOG_FORMAT"
	EnvTimeout    = "VIMEO_DL_TIMEOUT"
	EnvRetries    = "VIMEO_DL_RETRIES"
	EnvRetryDelay = "VIMEO_DL_RETRY_DELAY"
	EnvFFmpeg     = "VIMEO_DL_FFMPEG"
	EnvHeaders    = "VIMEO_DL_HEADERS"
)

const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Config holds the runtime settings shared by every download.
type Config struct {
	UserAgent   string
	LogLevel    string
	LogFormat   string
	Timeout     time.Duration
	Retries     int
	RetryDelay  time.Duration
	FFmpegPath  string
	HeadersFile string
}

// DefaultUserAgent is the identifying string sent when none is configured.
func DefaultUserAgent(version string) string {
	return "vimeo-dl/" + version
}

// Load reads .env files and sets environment variables. With no paths,
// ".env" is used. A missing file is returned as an error that callers may
// ignore.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// FromEnv builds a Config from the environment, falling back to defaults.
func FromEnv(version string) *Config {
	return &Config{
		UserAgent:   GetEnv(EnvUserAgent, DefaultUserAgent(version)),
		LogLevel:    GetEnv(EnvLogLevel, DefaultLogLevel),
		LogFormat:   GetEnv(EnvLogFormat, DefaultLogFormat),
		Timeout:     GetEnvDuration(EnvTimeout, fetch.DefaultTimeout),
		Retries:     GetEnvInt(EnvRetries, fetch.DefaultRetries),
		RetryDelay:  GetEnvDuration(EnvRetryDelay, fetch.DefaultRetryDelay),
		FFmpegPath:  GetEnv(EnvFFmpeg, ""),
		HeadersFile: GetEnv(EnvHeaders, ""),
	}
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvDuration returns the time.Duration value of the environment variable
// named by key, or fallback if it is unset, empty, or not a valid duration.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return fallback
}

// LoadHeaders reads a JSON object of extra request headers from path.
// An empty path yields no headers.
func LoadHeaders(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read headers file at %s: %w", path, err)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal headers JSON: %w", err)
	}

	headers := make(map[string]string, len(raw))
	for k, v := range raw {
		name := strings.TrimSpace(k)
		if name == "" {
			return nil, fmt.Errorf("invalid empty header name in %s", path)
		}
		headers[http.CanonicalHeaderKey(name)] = v
	}

	return headers, nil
}
