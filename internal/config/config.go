package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by PKGD_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("PKGD_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

// DataDir is where the blob database and key material live.
// Defaults to ./data.
func DataDir() string {
	d := os.Getenv("PKGD_DATA_DIR")
	if d == "" {
		return "data"
	}
	return d
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 7411
	}
	return port
}

// ServerAddr binds loopback only; the API is for on-device collaborators.
func ServerAddr() string {
	host := os.Getenv("SERVER_HOST")
	if host == "" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("%s:%d", host, ServerPort())
}

// DeviceUserID is the owner of this device's graph. The daemon serves a
// single user; the id keys the blob, the key material and the sync state.
func DeviceUserID() string {
	id := os.Getenv("PKGD_USER_ID")
	if id == "" {
		return "local"
	}
	return id
}

// LocalToken authenticates on-device callers of the ingestion API.
func LocalToken() string {
	return os.Getenv("PKGD_LOCAL_TOKEN")
}

// BackendBaseURL is the sync backend that embeds pushed node text.
func BackendBaseURL() string {
	return os.Getenv("BACKEND_BASE_URL")
}

// BackendToken is the bearer token for sync pushes.
func BackendToken() string {
	return os.Getenv("BACKEND_TOKEN")
}

// SessionURL is the websocket endpoint for the live assistant session.
// Empty disables the session channel.
func SessionURL() string {
	return os.Getenv("SESSION_URL")
}

// SyncInterval is how long a successful sync stays fresh before the
// scheduler pushes again. Defaults to 6 hours.
func SyncInterval() time.Duration {
	d, err := time.ParseDuration(os.Getenv("SYNC_INTERVAL"))
	if err != nil || d <= 0 {
		return 6 * time.Hour
	}
	return d
}

// RateLimitRPS returns requests per second limit for the local API.
// Defaults to 50 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 50
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}
