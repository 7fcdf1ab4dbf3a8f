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
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MQTT (incident notification hand-off)
	MQTTBroker   string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string

	// HTTP
	ListenAddr string

	// Credential storage
	EncryptionKey string

	// Pipeline tuning
	DedupWindow        time.Duration
	StaleThreshold     time.Duration
	HeartbeatBatchSize int
	QueueName          string
	WorkerCount        int

	// Panel client
	PanelConnectTimeout time.Duration
	PanelRequestTimeout time.Duration
	SupportedModels     []string
	WebhookCallbackURL  string

	// Application
	LogLevel string
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	dedupSec, _ := strconv.Atoi(getEnv("DEDUP_WINDOW_SECONDS", "60"))
	staleSec, _ := strconv.Atoi(getEnv("HEARTBEAT_STALE_SECONDS", "600"))
	batchSize, _ := strconv.Atoi(getEnv("HEARTBEAT_BATCH_SIZE", "50"))
	workers, _ := strconv.Atoi(getEnv("WORKER_COUNT", "4"))
	connectSec, _ := strconv.Atoi(getEnv("PANEL_CONNECT_TIMEOUT_SECONDS", "5"))
	requestSec, _ := strconv.Atoi(getEnv("PANEL_REQUEST_TIMEOUT_SECONDS", "30"))

	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "password"),
		DBName:     getEnv("DB_NAME", "panel_bridge"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       redisDB,

		MQTTBroker:   getEnv("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTClientID: getEnv("MQTT_CLIENT_ID", "panel-bridge"),
		MQTTUsername: getEnv("MQTT_USERNAME", ""),
		MQTTPassword: getEnv("MQTT_PASSWORD", ""),

		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),

		EncryptionKey: getEnv("CREDENTIAL_ENCRYPTION_KEY", ""),

		DedupWindow:        time.Duration(dedupSec) * time.Second,
		StaleThreshold:     time.Duration(staleSec) * time.Second,
		HeartbeatBatchSize: batchSize,
		QueueName:          getEnv("QUEUE_NAME", "panel-events"),
		WorkerCount:        workers,

		PanelConnectTimeout: time.Duration(connectSec) * time.Second,
		PanelRequestTimeout: time.Duration(requestSec) * time.Second,
		SupportedModels:     splitList(getEnv("SUPPORTED_MODELS", "AX-PRO,AX-HOME,AX-HYBRID")),
		WebhookCallbackURL:  getEnv("WEBHOOK_CALLBACK_URL", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
