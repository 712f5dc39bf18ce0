package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config aggregates everything the resolver jobs need. Loaded once in main
// and threaded explicitly into components; no package reads the environment
// after Load returns.
type Config struct {
	DatabaseURL string
	OpenAIKey   string

	// Empirical matching parameters from the source system; overridable but
	// not assumed to be load-bearing business requirements.
	MinScore        float64
	LikelyThreshold float64
	MaybeThreshold  float64
	TokenCutoff     int
	TopK            int

	BatchSize int
	PageSize  int

	LogLevel string
	LogFile  string
}

// Load reads .env (when present) and the process environment.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		MinScore:        getfloat("RESOLVER_MIN_SCORE", 0.5),
		LikelyThreshold: getfloat("RESOLVER_LIKELY_THRESHOLD", 0.5),
		MaybeThreshold:  getfloat("RESOLVER_MAYBE_THRESHOLD", 0.3),
		TokenCutoff:     getint("RESOLVER_TOKEN_CUTOFF", 3),
		TopK:            getint("RESOLVER_TOP_K", 3),
		BatchSize:       getint("RESOLVER_BATCH_SIZE", 200),
		PageSize:        getint("RESOLVER_PAGE_SIZE", 500),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogFile:         getenv("LOG_FILE", "logs/item-resolver.log"),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
