package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures process-level configuration. Empty connection URLs select
// the in-memory adapters so the service runs without infrastructure.
type Config struct {
	Server   Server
	Identity Identity
	Postgres PostgresConfig
	Redis    RedisConfig
	Blob     BlobConfig
	Chain    ChainConfig
	Kafka    KafkaConfig
	Retry    RetryConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr     string
	LogLevel string
}

// Identity configures DIDs and the platform signing key.
type Identity struct {
	Namespace  string
	IssuerName string
	// SigningKeyHex is the secp256k1 private key of the platform issuer.
	SigningKeyHex string
}

type PostgresConfig struct {
	URL          string
	MaxOpenConns int
}

// RedisConfig configures the anchor cache connection.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// BlobConfig configures the MinIO/S3 bucket holding DID document snapshots.
type BlobConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
}

// ChainConfig describes the proof registry contract.
type ChainConfig struct {
	RPCURL          string
	Network         string
	ContractAddress string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// RetryConfig bounds upstream retries and optimistic-concurrency attempts.
type RetryConfig struct {
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	MaxAttempts         uint64
	MaxMutationAttempts int
	SyncQueueSize       int
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:     getEnv("NEURAMARK_ADDR", ":8080"),
			LogLevel: getEnv("NEURAMARK_LOG_LEVEL", "info"),
		},
		Identity: Identity{
			Namespace:  getEnv("NEURAMARK_DID_NAMESPACE", "neuramark"),
			IssuerName: getEnv("NEURAMARK_ISSUER_NAME", "NeuraMark"),
			// Empty means a throwaway key is generated at startup (development only).
			SigningKeyHex: os.Getenv("NEURAMARK_SIGNING_KEY"),
		},
		Postgres: PostgresConfig{
			URL:          os.Getenv("NEURAMARK_DATABASE_URL"),
			MaxOpenConns: getInt("NEURAMARK_DATABASE_MAX_OPEN_CONNS", 10),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("NEURAMARK_REDIS_URL"),
			PoolSize:     getInt("NEURAMARK_REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("NEURAMARK_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("NEURAMARK_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("NEURAMARK_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("NEURAMARK_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Blob: BlobConfig{
			Endpoint:        os.Getenv("NEURAMARK_MINIO_ENDPOINT"),
			AccessKeyID:     getEnv("NEURAMARK_MINIO_ACCESS_KEY", "minioadmin"),
			SecretAccessKey: getEnv("NEURAMARK_MINIO_SECRET_KEY", "minioadmin"),
			Bucket:          getEnv("NEURAMARK_MINIO_BUCKET", "did-documents"),
			UseSSL:          os.Getenv("NEURAMARK_MINIO_SSL") == "true",
		},
		Chain: ChainConfig{
			RPCURL:          os.Getenv("NEURAMARK_CHAIN_RPC_URL"),
			Network:         getEnv("NEURAMARK_CHAIN_NETWORK", "polygon-amoy"),
			ContractAddress: os.Getenv("NEURAMARK_CONTRACT_ADDRESS"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("NEURAMARK_KAFKA_BROKERS")),
			Topic:   getEnv("NEURAMARK_KAFKA_TOPIC", "did-sync-outcomes"),
		},
		Retry: RetryConfig{
			InitialInterval:     getDuration("NEURAMARK_RETRY_INITIAL_INTERVAL", 100*time.Millisecond),
			MaxInterval:         getDuration("NEURAMARK_RETRY_MAX_INTERVAL", 2*time.Second),
			MaxAttempts:         uint64(getInt("NEURAMARK_RETRY_MAX_ATTEMPTS", 4)),
			MaxMutationAttempts: getInt("NEURAMARK_MUTATION_MAX_ATTEMPTS", 5),
			SyncQueueSize:       getInt("NEURAMARK_SYNC_QUEUE_SIZE", 1024),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
