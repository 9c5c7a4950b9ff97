package console

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Default backend origin used when BACKEND_URL is not set. Matches the
// development backend.
const DefaultBackendURL = "http://localhost:8000"

// Config holds everything the console needs to run. All values come from
// the environment (optionally seeded from a .env file); the binary may
// override individual fields from flags.
type Config struct {
	// BackendURL is the call-center backend origin, e.g. "http://localhost:8000".
	BackendURL string

	// LiveKitURL is the LiveKit server URL handed to the SDK together with
	// the session token, e.g. "wss://myproject.livekit.cloud".
	LiveKitURL string

	// Username is the agent's login name sent at registration.
	Username string

	// FullName is the agent's display name sent at registration.
	FullName string

	// LogLevel selects the zap level ("debug", "info", "warn", "error").
	LogLevel string
}

// LoadConfig reads configuration from the environment. A .env file is
// loaded first if one is found in the working directory or up to two
// directories above it, without overriding variables already set.
func LoadConfig() (*Config, error) {
	for _, path := range []string{".env", "../.env", "../../.env"} {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", path, err)
			}
			break
		}
	}

	cfg := &Config{
		BackendURL: getEnvOrDefault("BACKEND_URL", DefaultBackendURL),
		LiveKitURL: os.Getenv("LIVEKIT_URL"),
		Username:   os.Getenv("AGENT_USERNAME"),
		FullName:   os.Getenv("AGENT_FULL_NAME"),
		LogLevel:   getEnvOrDefault("LOG_LEVEL", "info"),
	}
	return cfg, nil
}

// Validate checks that every field required to reach a live session is set.
func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL is required")
	}
	if c.LiveKitURL == "" {
		return fmt.Errorf("LIVEKIT_URL is required")
	}
	if c.Username == "" {
		return fmt.Errorf("AGENT_USERNAME is required")
	}
	return nil
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
