package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port           string
	Host           string
	Env            string
	AllowedOrigins []string
	LogLevel       string

	// Storage: "mongo" or "memory"
	StoreDriver  string
	MongoURI     string
	DatabaseName string
	MongoTimeout int

	// JWT
	JWTSecret     string
	JWTExpiration int

	// Redis, used for per-user report limits
	RedisAddress    string
	RedisPassword   string
	ReportRateLimit int
	ReportRateTTL   time.Duration

	// Realtime fan-out
	MQTTBroker      string
	MQTTClientID    string
	MQTTTopicPrefix string
	WebhookURL      string
	EventBufferSize int
	EventWorkers    int

	Clustering ClusteringConfig
	Priority   PriorityConfig

	// WorkflowStrict enables the forward-only transition graph.
	WorkflowStrict     bool
	AgingSweepInterval time.Duration
}

type ClusteringConfig struct {
	Enabled      bool
	RadiusMeters float64
	// MinTitleSimilarity is a token overlap ratio in [0,1]; 0 disables the text check.
	MinTitleSimilarity float64
	MaxCandidates      int
}

type PriorityConfig struct {
	EngagementMedium int
	EngagementHigh   int
	EngagementUrgent int
	AgingDays        int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("could not load .env file: %v", err)
	}

	return &Config{
		Port:           getEnv("PORT", "8080"),
		Host:           getEnv("HOST", "0.0.0.0"),
		Env:            getEnv("ENV", "development"),
		AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		LogLevel:       getEnv("LOG_LEVEL", "INFO"),

		StoreDriver:  getEnv("STORE_DRIVER", "mongo"),
		MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DatabaseName: getEnv("DATABASE_NAME", "civic_reporter"),
		MongoTimeout: getEnvAsInt("MONGO_TIMEOUT", 10),

		JWTSecret:     getEnv("JWT_SECRET", "your-secret-key"),
		JWTExpiration: getEnvAsInt("JWT_EXPIRATION", 24), // hours

		RedisAddress:    getEnv("REDIS_ADDRESS", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		ReportRateLimit: getEnvAsInt("REPORT_RATE_LIMIT", 20),
		ReportRateTTL:   getEnvAsDuration("REPORT_RATE_WINDOW", 24*time.Hour),

		MQTTBroker:      getEnv("MQTT_BROKER", ""),
		MQTTClientID:    getEnv("MQTT_CLIENT_ID", "civic-reporter"),
		MQTTTopicPrefix: getEnv("MQTT_TOPIC_PREFIX", "civic/issues"),
		WebhookURL:      getEnv("WEBHOOK_URL", ""),
		EventBufferSize: getEnvAsInt("EVENT_BUFFER_SIZE", 256),
		EventWorkers:    getEnvAsInt("EVENT_WORKERS", 2),

		Clustering: ClusteringConfig{
			Enabled:            getEnvAsBool("CLUSTER_ENABLED", true),
			RadiusMeters:       getEnvAsFloat("CLUSTER_RADIUS_METERS", 100),
			MinTitleSimilarity: getEnvAsFloat("CLUSTER_MIN_TITLE_SIMILARITY", 0),
			MaxCandidates:      getEnvAsInt("CLUSTER_MAX_CANDIDATES", 10),
		},
		Priority: PriorityConfig{
			EngagementMedium: getEnvAsInt("ENGAGEMENT_MEDIUM", 5),
			EngagementHigh:   getEnvAsInt("ENGAGEMENT_HIGH", 10),
			EngagementUrgent: getEnvAsInt("ENGAGEMENT_URGENT", 25),
			AgingDays:        getEnvAsInt("AGING_DAYS", 7),
		},

		WorkflowStrict:     getEnvAsBool("WORKFLOW_STRICT", false),
		AgingSweepInterval: getEnvAsDuration("AGING_SWEEP_INTERVAL", time.Hour),
	}
}

// DefaultClustering returns the clustering settings used when nothing is configured.
func DefaultClustering() ClusteringConfig {
	return ClusteringConfig{Enabled: true, RadiusMeters: 100, MaxCandidates: 10}
}

func DefaultPriority() PriorityConfig {
	return PriorityConfig{EngagementMedium: 5, EngagementHigh: 10, EngagementUrgent: 25, AgingDays: 7}
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
