package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// Config holds the configuration for a curator agent
type Config struct {
	// MQTT configuration
	MQTTBroker   string
	MQTTPort     int
	MQTTUser     string
	MQTTPassword string
	MQTTClientID string

	// Redis configuration
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// Postgres configuration. PostgresDSN, when set, replaces the discrete fields.
	PostgresDSN                string
	PostgresHost               string
	PostgresPort               int
	PostgresUser               string
	PostgresPassword           string
	PostgresDB                 string
	PostgresSSLMode            string
	PostgresMaxConnections     int
	PostgresMaxIdleConnections int
	PostgresConnMaxLifetime    time.Duration

	// Service configuration
	ServiceName string
	HealthPort  int
	APIPort     int
	LogLevel    string

	// Collector configuration
	InteractionTopics []string

	// Personalization configuration
	HistoryWindowDays  int
	HistoryLimit       int
	MaxRecommendations int
	CandidateLimit     int
	ProfileCacheTTL    time.Duration

	// Embedding service configuration
	EmbeddingEndpoint   string
	EmbeddingModel      string
	EmbeddingDimensions int

	// Retriever circuit breaker
	RetrieverFailureThreshold uint32
	RetrieverOpenTimeout      time.Duration
	MaxConcurrentRetrievals   int

	// Per-user request limiting
	RateLimitPerMinute int
	RateLimitBurst     int
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		MQTTBroker:   "localhost",
		MQTTPort:     1883,
		MQTTUser:     "",
		MQTTPassword: "",
		MQTTClientID: "",

		RedisHost:     "localhost",
		RedisPort:     6379,
		RedisPassword: "",
		RedisDB:       0,

		PostgresHost:               "localhost",
		PostgresPort:               5432,
		PostgresUser:               "curator",
		PostgresPassword:           "",
		PostgresDB:                 "curator",
		PostgresSSLMode:            "disable",
		PostgresMaxConnections:     10,
		PostgresMaxIdleConnections: 5,
		PostgresConnMaxLifetime:    30 * time.Minute,

		ServiceName: "curator-agent",
		HealthPort:  8080,
		APIPort:     3010,
		LogLevel:    "info",

		InteractionTopics: []string{"curator/interaction/+"},

		HistoryWindowDays:  30,
		HistoryLimit:       50,
		MaxRecommendations: 20,
		CandidateLimit:     60,
		ProfileCacheTTL:    5 * time.Minute,

		EmbeddingEndpoint:   "http://localhost:11434",
		EmbeddingModel:      "nomic-embed-text",
		EmbeddingDimensions: 768,

		RetrieverFailureThreshold: 5,
		RetrieverOpenTimeout:      30 * time.Second,
		MaxConcurrentRetrievals:   8,

		RateLimitPerMinute: 60,
		RateLimitBurst:     10,
	}
}

// LoadFromEnv loads configuration from environment variables with CURATOR_ prefix
func (c *Config) LoadFromEnv() {
	// MQTT configuration
	if v := os.Getenv("CURATOR_MQTT_BROKER"); v != "" {
		c.MQTTBroker = v
	}
	if v := os.Getenv("CURATOR_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.MQTTPort = port
		}
	}
	if v := os.Getenv("CURATOR_MQTT_USER"); v != "" {
		c.MQTTUser = v
	}
	if v := os.Getenv("CURATOR_MQTT_PASSWORD"); v != "" {
		c.MQTTPassword = v
	}
	if v := os.Getenv("CURATOR_MQTT_CLIENT_ID"); v != "" {
		c.MQTTClientID = v
	}

	// Redis configuration
	if v := os.Getenv("CURATOR_REDIS_HOST"); v != "" {
		c.RedisHost = v
	}
	if v := os.Getenv("CURATOR_REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.RedisPort = port
		}
	}
	if v := os.Getenv("CURATOR_REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("CURATOR_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.RedisDB = db
		}
	}

	// Postgres configuration
	if v := os.Getenv("CURATOR_POSTGRES_DSN"); v != "" {
		c.PostgresDSN = v
	}
	if v := os.Getenv("CURATOR_POSTGRES_HOST"); v != "" {
		c.PostgresHost = v
	}
	if v := os.Getenv("CURATOR_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.PostgresPort = port
		}
	}
	if v := os.Getenv("CURATOR_POSTGRES_USER"); v != "" {
		c.PostgresUser = v
	}
	if v := os.Getenv("CURATOR_POSTGRES_PASSWORD"); v != "" {
		c.PostgresPassword = v
	}
	if v := os.Getenv("CURATOR_POSTGRES_DB"); v != "" {
		c.PostgresDB = v
	}
	if v := os.Getenv("CURATOR_POSTGRES_SSLMODE"); v != "" {
		c.PostgresSSLMode = v
	}
	if v := os.Getenv("CURATOR_POSTGRES_MAX_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.PostgresMaxConnections = n
		}
	}
	if v := os.Getenv("CURATOR_POSTGRES_MAX_IDLE_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.PostgresMaxIdleConnections = n
		}
	}
	if v := os.Getenv("CURATOR_POSTGRES_CONN_MAX_LIFETIME"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.PostgresConnMaxLifetime = d
		}
	}

	// Service configuration
	if v := os.Getenv("CURATOR_SERVICE_NAME"); v != "" {
		c.ServiceName = v
	}
	if v := os.Getenv("CURATOR_HEALTH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HealthPort = port
		}
	}
	if v := os.Getenv("CURATOR_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.APIPort = port
		}
	}
	if v := os.Getenv("CURATOR_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}

	// Collector configuration
	if v := os.Getenv("CURATOR_INTERACTION_TOPICS"); v != "" {
		c.InteractionTopics = splitList(v)
	}

	// Personalization configuration
	if v := os.Getenv("CURATOR_HISTORY_WINDOW_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil {
			c.HistoryWindowDays = days
		}
	}
	if v := os.Getenv("CURATOR_HISTORY_LIMIT"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			c.HistoryLimit = limit
		}
	}
	if v := os.Getenv("CURATOR_MAX_RECOMMENDATIONS"); v != "" {
		if max, err := strconv.Atoi(v); err == nil {
			c.MaxRecommendations = max
		}
	}
	if v := os.Getenv("CURATOR_CANDIDATE_LIMIT"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			c.CandidateLimit = limit
		}
	}
	if v := os.Getenv("CURATOR_PROFILE_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.ProfileCacheTTL = d
		}
	}

	// Embedding service configuration
	if v := os.Getenv("CURATOR_EMBEDDING_ENDPOINT"); v != "" {
		c.EmbeddingEndpoint = v
	}
	if v := os.Getenv("CURATOR_EMBEDDING_MODEL"); v != "" {
		c.EmbeddingModel = v
	}
	if v := os.Getenv("CURATOR_EMBEDDING_DIMENSIONS"); v != "" {
		if dims, err := strconv.Atoi(v); err == nil {
			c.EmbeddingDimensions = dims
		}
	}

	// Retriever circuit breaker
	if v := os.Getenv("CURATOR_RETRIEVER_FAILURE_THRESHOLD"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			c.RetrieverFailureThreshold = uint32(n)
		}
	}
	if v := os.Getenv("CURATOR_RETRIEVER_OPEN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.RetrieverOpenTimeout = d
		}
	}

	if v := os.Getenv("CURATOR_MAX_CONCURRENT_RETRIEVALS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxConcurrentRetrievals = n
		}
	}

	// Rate limiting
	if v := os.Getenv("CURATOR_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimitPerMinute = n
		}
	}
	if v := os.Getenv("CURATOR_RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimitBurst = n
		}
	}
}

// LoadFromFlags parses command-line flags and overrides config values
func (c *Config) LoadFromFlags() {
	c.RegisterFlags(pflag.CommandLine)
	pflag.Parse()
}

// RegisterFlags binds every config field to a flag on the given set.
// Split out of LoadFromFlags so commands can add their own flags first.
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	// MQTT flags
	fs.StringVar(&c.MQTTBroker, "mqtt-broker", c.MQTTBroker, "MQTT broker hostname")
	fs.IntVar(&c.MQTTPort, "mqtt-port", c.MQTTPort, "MQTT broker port")
	fs.StringVar(&c.MQTTUser, "mqtt-user", c.MQTTUser, "MQTT username")
	fs.StringVar(&c.MQTTPassword, "mqtt-password", c.MQTTPassword, "MQTT password")
	fs.StringVar(&c.MQTTClientID, "mqtt-client-id", c.MQTTClientID, "MQTT client ID")

	// Redis flags
	fs.StringVar(&c.RedisHost, "redis-host", c.RedisHost, "Redis hostname")
	fs.IntVar(&c.RedisPort, "redis-port", c.RedisPort, "Redis port")
	fs.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	fs.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database number")

	// Postgres flags
	fs.StringVar(&c.PostgresDSN, "postgres-dsn", c.PostgresDSN, "Postgres DSN (overrides host, port, user, password, db and sslmode)")
	fs.StringVar(&c.PostgresHost, "postgres-host", c.PostgresHost, "Postgres hostname")
	fs.IntVar(&c.PostgresPort, "postgres-port", c.PostgresPort, "Postgres port")
	fs.StringVar(&c.PostgresUser, "postgres-user", c.PostgresUser, "Postgres user")
	fs.StringVar(&c.PostgresPassword, "postgres-password", c.PostgresPassword, "Postgres password")
	fs.StringVar(&c.PostgresDB, "postgres-db", c.PostgresDB, "Postgres database name")
	fs.StringVar(&c.PostgresSSLMode, "postgres-sslmode", c.PostgresSSLMode, "Postgres sslmode")
	fs.IntVar(&c.PostgresMaxConnections, "postgres-max-connections", c.PostgresMaxConnections, "Maximum open Postgres connections")
	fs.IntVar(&c.PostgresMaxIdleConnections, "postgres-max-idle-connections", c.PostgresMaxIdleConnections, "Maximum idle Postgres connections")
	fs.DurationVar(&c.PostgresConnMaxLifetime, "postgres-conn-max-lifetime", c.PostgresConnMaxLifetime, "Maximum Postgres connection lifetime")

	// Service flags
	fs.StringVar(&c.ServiceName, "service-name", c.ServiceName, "Service name")
	fs.IntVar(&c.HealthPort, "health-port", c.HealthPort, "Health check HTTP port")
	fs.IntVar(&c.APIPort, "api-port", c.APIPort, "HTTP API port")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")

	// Collector flags
	fs.StringSliceVar(&c.InteractionTopics, "interaction-topics", c.InteractionTopics, "MQTT topics carrying interaction events")

	// Personalization flags
	fs.IntVar(&c.HistoryWindowDays, "history-window-days", c.HistoryWindowDays, "Days of interaction history used to build a profile")
	fs.IntVar(&c.HistoryLimit, "history-limit", c.HistoryLimit, "Maximum interaction records used to build a profile")
	fs.IntVar(&c.MaxRecommendations, "max-recommendations", c.MaxRecommendations, "Maximum recommendations returned per request")
	fs.IntVar(&c.CandidateLimit, "candidate-limit", c.CandidateLimit, "Candidates fetched from the retriever before ranking")
	fs.DurationVar(&c.ProfileCacheTTL, "profile-cache-ttl", c.ProfileCacheTTL, "TTL of cached user profiles")

	// Embedding flags
	fs.StringVar(&c.EmbeddingEndpoint, "embedding-endpoint", c.EmbeddingEndpoint, "Embedding service base URL")
	fs.StringVar(&c.EmbeddingModel, "embedding-model", c.EmbeddingModel, "Embedding model name")
	fs.IntVar(&c.EmbeddingDimensions, "embedding-dimensions", c.EmbeddingDimensions, "Embedding vector dimensions")

	// Retriever flags
	fs.Uint32Var(&c.RetrieverFailureThreshold, "retriever-failure-threshold", c.RetrieverFailureThreshold, "Consecutive retriever failures before the circuit opens")
	fs.DurationVar(&c.RetrieverOpenTimeout, "retriever-open-timeout", c.RetrieverOpenTimeout, "How long the retriever circuit stays open")
	fs.IntVar(&c.MaxConcurrentRetrievals, "max-concurrent-retrievals", c.MaxConcurrentRetrievals, "Retriever calls allowed in flight at once")

	// Rate limit flags
	fs.IntVar(&c.RateLimitPerMinute, "rate-limit-per-minute", c.RateLimitPerMinute, "Recommendation requests per user per minute")
	fs.IntVar(&c.RateLimitBurst, "rate-limit-burst", c.RateLimitBurst, "Recommendation request burst per user")
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT broker is required")
	}
	if c.MQTTPort <= 0 || c.MQTTPort > 65535 {
		return fmt.Errorf("MQTT port must be between 1 and 65535")
	}
	if c.RedisHost == "" {
		return fmt.Errorf("Redis host is required")
	}
	if c.RedisPort <= 0 || c.RedisPort > 65535 {
		return fmt.Errorf("Redis port must be between 1 and 65535")
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("Postgres host is required")
	}
	if c.PostgresPort <= 0 || c.PostgresPort > 65535 {
		return fmt.Errorf("Postgres port must be between 1 and 65535")
	}
	if c.PostgresDB == "" {
		return fmt.Errorf("Postgres database is required")
	}
	if c.HealthPort <= 0 || c.HealthPort > 65535 {
		return fmt.Errorf("Health port must be between 1 and 65535")
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("API port must be between 1 and 65535")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("Service name is required")
	}
	if c.HistoryWindowDays <= 0 {
		return fmt.Errorf("history window must be at least one day")
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("history limit must be positive")
	}
	if c.MaxRecommendations <= 0 {
		return fmt.Errorf("max recommendations must be positive")
	}
	if c.CandidateLimit < c.MaxRecommendations {
		return fmt.Errorf("candidate limit (%d) must be at least max recommendations (%d)",
			c.CandidateLimit, c.MaxRecommendations)
	}
	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive")
	}
	if c.MaxConcurrentRetrievals <= 0 {
		return fmt.Errorf("max concurrent retrievals must be positive")
	}
	if c.RateLimitPerMinute <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit and burst must be positive")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// MQTTAddress returns the full MQTT broker address
func (c *Config) MQTTAddress() string {
	return fmt.Sprintf("tcp://%s:%d", c.MQTTBroker, c.MQTTPort)
}

// RedisAddress returns the full Redis address
func (c *Config) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// PostgresConnectionString returns PostgresDSN when set, otherwise a lib/pq
// key/value connection string
func (c *Config) PostgresConnectionString() string {
	if c.PostgresDSN != "" {
		return c.PostgresDSN
	}
	parts := []string{
		fmt.Sprintf("host=%s", c.PostgresHost),
		fmt.Sprintf("port=%d", c.PostgresPort),
		fmt.Sprintf("dbname=%s", c.PostgresDB),
		fmt.Sprintf("sslmode=%s", c.PostgresSSLMode),
	}
	if c.PostgresUser != "" {
		parts = append(parts, fmt.Sprintf("user=%s", c.PostgresUser))
	}
	if c.PostgresPassword != "" {
		parts = append(parts, fmt.Sprintf("password=%s", c.PostgresPassword))
	}
	return strings.Join(parts, " ")
}

// HistoryWindow returns the interaction history window as a duration
func (c *Config) HistoryWindow() time.Duration {
	return time.Duration(c.HistoryWindowDays) * 24 * time.Hour
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseLogLevel maps a configured level name onto slog's levels
func ParseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
