package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for our application
type Config struct {
	Port                string
	Origin              string
	Environment         string
	LogLevel            string
	CollaboratorTimeout time.Duration
	TransitionPolicy    string
	Firebase            FirebaseConfig
	Store               StoreConfig
	Session             SessionConfig
	Push                PushConfig
	Kafka               KafkaConfig
	S3                  S3Config
}

// FirebaseConfig holds the Firebase project settings
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
	WebAPIKey       string
}

// StoreConfig selects and configures the document store driver
type StoreConfig struct {
	Driver string // firestore, mysql, postgres or memory
	DSN    string
}

// SessionConfig holds the settings for server-issued session tokens
type SessionConfig struct {
	Secret     string
	TTLMinutes int
}

// PushConfig toggles FCM delivery
type PushConfig struct {
	Enabled bool
}

// KafkaConfig holds the activity event sink settings
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// S3Config holds profile photo storage settings
type S3Config struct {
	Bucket        string
	Region        string
	PublicBaseURL string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	sessionTTL, err := strconv.Atoi(getEnv("SESSION_TTL_MINUTES", "720"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL_MINUTES: %w", err)
	}

	timeout, err := time.ParseDuration(getEnv("COLLABORATOR_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid COLLABORATOR_TIMEOUT: %w", err)
	}

	pushEnabled, err := strconv.ParseBool(getEnv("PUSH_ENABLED", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid PUSH_ENABLED: %w", err)
	}

	storeConfig := StoreConfig{
		Driver: strings.ToLower(getEnv("STORE_DRIVER", "firestore")),
		DSN:    getEnv("STORE_DSN", ""),
	}
	switch storeConfig.Driver {
	case "firestore", "memory":
	case "mysql", "postgres":
		if storeConfig.DSN == "" {
			return nil, fmt.Errorf("STORE_DSN is required for store driver %q", storeConfig.Driver)
		}
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", storeConfig.Driver)
	}

	policy := strings.ToLower(getEnv("APPOINTMENT_TRANSITION_POLICY", "override"))
	switch policy {
	case "strict", "override", "permissive":
	default:
		return nil, fmt.Errorf("invalid APPOINTMENT_TRANSITION_POLICY %q", policy)
	}

	s3Config := S3Config{
		Bucket:        getEnv("S3_BUCKET", ""),
		Region:        getEnv("AWS_REGION", ""),
		PublicBaseURL: getEnv("S3_PUBLIC_BASE_URL", ""),
	}
	// Objects are private; photos are only reachable through the CDN base.
	if s3Config.Bucket != "" && s3Config.PublicBaseURL == "" {
		return nil, fmt.Errorf("S3_PUBLIC_BASE_URL is required when S3_BUCKET is set")
	}

	environment := getEnv("APP_ENV", "development")
	sessionSecret := getEnv("SESSION_SECRET", "")
	if sessionSecret == "" {
		if environment == "production" {
			return nil, fmt.Errorf("SESSION_SECRET is required in production")
		}
		sessionSecret = "default_session_secret"
	}

	return &Config{
		Port:                getEnv("PORT", "8080"),
		Origin:              getEnv("ORIGIN", "http://localhost:3000"),
		Environment:         environment,
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		CollaboratorTimeout: timeout,
		TransitionPolicy:    policy,
		Firebase: FirebaseConfig{
			ProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
			CredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
			WebAPIKey:       getEnv("FIREBASE_WEB_API_KEY", ""),
		},
		Store: storeConfig,
		Session: SessionConfig{
			Secret:     sessionSecret,
			TTLMinutes: sessionTTL,
		},
		Push: PushConfig{Enabled: pushEnabled},
		Kafka: KafkaConfig{
			Brokers: splitList(getEnv("KAFKA_BROKERS", "")),
			Topic:   getEnv("KAFKA_ACTIVITY_TOPIC", "healthreach.activity"),
		},
		S3: s3Config,
	}, nil
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
