package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr         string
	PostgresURL  string
	Redis        RedisConfig
	KafkaBrokers []string
	AuditTopic   string
}

// RedisConfig holds connection settings for the optional redis-backed
// activity stats store. An empty URL means redis is not configured and the
// in-memory store is used.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("STRATUM_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	var brokers []string
	if raw := os.Getenv("STRATUM_KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}

	auditTopic := os.Getenv("STRATUM_AUDIT_TOPIC")
	if auditTopic == "" {
		auditTopic = "stratum.transaction.audit"
	}

	return Server{
		Addr:        addr,
		PostgresURL: os.Getenv("STRATUM_POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("STRATUM_REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		KafkaBrokers: brokers,
		AuditTopic:   auditTopic,
	}
}
