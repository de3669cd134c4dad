package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds runtime settings read from the environment.
type Config struct {
	AnthropicAPIKey string
	ImageAPIKey     string
	ImageBaseURL    string
	ImageModel      string
	DatabasePath    string
	Port            string
	LogMode         string
	LogFile         string
	RedisAddr       string
	RedisChannel    string
	SpeechCreds     string
	TTSCommand      string
	Seed            int64
	CredentialCheck time.Duration
}

// Load reads the configuration from environment variables, applying
// defaults for anything unset.
func Load() Config {
	cfg := Config{
		AnthropicAPIKey: strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")),
		ImageAPIKey:     strings.TrimSpace(os.Getenv("IMAGE_API_KEY")),
		ImageBaseURL:    str("IMAGE_BASE_URL", "https://api.openai.com"),
		ImageModel:      str("IMAGE_MODEL", "gpt-image-1"),
		DatabasePath:    str("DATABASE_PATH", "explorer.db"),
		Port:            str("PORT", "8080"),
		LogMode:         str("LOG_MODE", "dev"),
		LogFile:         strings.TrimSpace(os.Getenv("LOG_FILE")),
		RedisAddr:       strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisChannel:    str("REDIS_CHANNEL", "explorer-events"),
		SpeechCreds:     strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),
		TTSCommand:      str("TTS_COMMAND", "espeak-ng"),
		Seed:            int64(intVal("SEED", 0)),
		CredentialCheck: time.Duration(intVal("CREDENTIAL_CHECK_SECONDS", 3)) * time.Second,
	}
	if cfg.ImageAPIKey == "" {
		cfg.ImageAPIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	return cfg
}

// KeySource returns a function that re-reads name on every call, first
// from envFile (so a key added to .env is picked up without a restart) and
// then from the process environment.
func KeySource(envFile, name string) func() string {
	return func() string {
		if envFile != "" {
			if values, err := godotenv.Read(envFile); err == nil {
				if v := strings.TrimSpace(values[name]); v != "" {
					return v
				}
			}
		}
		return strings.TrimSpace(os.Getenv(name))
	}
}

func str(name, def string) string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	return v
}

func intVal(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
