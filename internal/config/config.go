package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port       string
	Env        string
	LogLevel   string
	KBSource   string
	RulesFile  string
	MatchMode  string
	MaxResults int
	// LazyLoad defers loading the knowledge base to the first request.
	LazyLoad    bool
	CORSOrigins []string
	DBMaxConns  int32

	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string
}

var matchModes = map[string]bool{"archetype": true, "keyword": true, "combined": true}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	maxConns := getEnvInt("DB_MAX_CONNS", 4)
	if maxConns < 1 || maxConns > math.MaxInt32 {
		return nil, fmt.Errorf("DB_MAX_CONNS must be between 1 and %d, got %d", math.MaxInt32, maxConns)
	}

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		KBSource:      getEnv("KB_SOURCE", "data/rehab_kb.yaml"),
		RulesFile:     os.Getenv("RULES_FILE"),
		MatchMode:     strings.ToLower(getEnv("MATCH_MODE", "archetype")),
		MaxResults:    getEnvInt("MAX_RESULTS", 5),
		LazyLoad:      getEnvBool("KB_LAZY", false),
		CORSOrigins:   splitList(getEnv("CORS_ORIGINS", "*")),
		DBMaxConns:    int32(maxConns),
		Neo4jUser:     os.Getenv("NEO4J_USER"),
		Neo4jPassword: os.Getenv("NEO4J_PASSWORD"),
		Neo4jDatabase: os.Getenv("NEO4J_DATABASE"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration can start the service.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.KBSource) == "" {
		return fmt.Errorf("KB_SOURCE is required")
	}
	if !matchModes[c.MatchMode] {
		return fmt.Errorf("MATCH_MODE must be archetype, keyword or combined, got %q", c.MatchMode)
	}
	if c.MaxResults < 1 || c.MaxResults > 5 {
		return fmt.Errorf("MAX_RESULTS must be between 1 and 5, got %d", c.MaxResults)
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be positive, got %d", c.DBMaxConns)
	}
	for _, o := range c.CORSOrigins {
		if o != "*" && !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			return fmt.Errorf("CORS_ORIGINS entry %q must be * or an http(s) origin", o)
		}
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(val)); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
