package config

import (
	"encoding/hex"
	"fmt"
	"strings"

	"trustcore/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	validators := []func() error{
		func() error { return validateServer(cfg.Server) },
		func() error { return validateBroker(cfg.Broker) },
		func() error { return validateDatabase(cfg.Database) },
		func() error { return validateAnchoring(cfg.Anchoring, cfg.Database.Redis) },
		func() error { return validateBlockchain(cfg.Blockchain) },
		func() error { return validateWebhook(cfg.Webhook) },
	}

	for _, validate := range validators {
		if err := validate(); err != nil {
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

// validateBroker accepts an empty type: the service then runs without event ingestion or plugin delivery.
func validateBroker(cfg BrokerConfig) error {
	switch cfg.Type {
	case "":
		return nil
	case constants.BrokerTypeKafka:
		return validateKafka(cfg.Kafka)
	default:
		return &ValidationError{
			Field:   "broker.type",
			Message: fmt.Sprintf("unknown broker type: %s (supported: kafka)", cfg.Type),
		}
	}
}

func validateKafka(cfg KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one Kafka broker is required",
		}
	}

	for i, broker := range cfg.Brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("broker.kafka.brokers[%d]", i),
				Message: "broker address cannot be empty",
			}
		}
	}

	if cfg.GroupID == "" {
		return &ValidationError{
			Field:   "broker.kafka.group_id",
			Message: "Kafka consumer group ID is required",
		}
	}

	return validateRetry("broker.kafka.retry", cfg.Retry)
}

func validateRetry(field string, cfg RetryConfig) error {
	if cfg.MaxAttempts < 0 {
		return &ValidationError{
			Field:   field + ".max_attempts",
			Message: "max_attempts must be non-negative",
		}
	}

	if cfg.InitialInterval < 0 || cfg.MaxInterval < 0 {
		return &ValidationError{
			Field:   field,
			Message: "intervals must be non-negative",
		}
	}

	if cfg.MaxInterval > 0 && cfg.InitialInterval > 0 && cfg.MaxInterval < cfg.InitialInterval {
		return &ValidationError{
			Field:   field + ".max_interval",
			Message: "max_interval must be greater than or equal to initial_interval",
		}
	}

	if cfg.Multiplier < 0 {
		return &ValidationError{
			Field:   field + ".multiplier",
			Message: "multiplier must be non-negative",
		}
	}

	return nil
}

func validateDatabase(cfg DatabaseConfig) error {
	if err := validatePostgres(cfg.Postgres); err != nil {
		return err
	}

	if cfg.Redis.Host != "" || cfg.Redis.Port > 0 {
		if err := validateRedis(cfg.Redis); err != nil {
			return err
		}
	}

	if cfg.MongoDB.URI != "" {
		if err := validateMongoDB(cfg.MongoDB); err != nil {
			return err
		}
	}

	return nil
}

func validatePostgres(cfg PostgresConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.postgres.host",
			Message: "PostgreSQL host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.postgres.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.User == "" {
		return &ValidationError{
			Field:   "database.postgres.user",
			Message: "PostgreSQL user is required",
		}
	}

	if cfg.DBName == "" {
		return &ValidationError{
			Field:   "database.postgres.dbname",
			Message: "PostgreSQL database name is required",
		}
	}

	validSSLModes := map[string]bool{
		"disable": true, "allow": true, "prefer": true,
		"require": true, "verify-ca": true, "verify-full": true,
	}
	if cfg.SSLMode != "" && !validSSLModes[strings.ToLower(cfg.SSLMode)] {
		return &ValidationError{
			Field:   "database.postgres.sslmode",
			Message: fmt.Sprintf("invalid SSL mode: %s (valid: disable, allow, prefer, require, verify-ca, verify-full)", cfg.SSLMode),
		}
	}

	return nil
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.redis.host",
			Message: "Redis host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	return nil
}

func validateMongoDB(cfg MongoDBConfig) error {
	if !strings.HasPrefix(cfg.URI, "mongodb://") && !strings.HasPrefix(cfg.URI, "mongodb+srv://") {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "MongoDB URI must start with mongodb:// or mongodb+srv://",
		}
	}

	if cfg.Database == "" {
		return &ValidationError{
			Field:   "database.mongodb.database",
			Message: "MongoDB database name is required",
		}
	}

	return nil
}

func validateAnchoring(cfg AnchoringConfig, redis RedisConfig) error {
	if cfg.Window <= 0 {
		return &ValidationError{
			Field:   "anchoring.window",
			Message: "window must be positive",
		}
	}

	if cfg.Enabled && cfg.Schedule == "" {
		return &ValidationError{
			Field:   "anchoring.schedule",
			Message: "schedule is required when anchoring is enabled",
		}
	}

	switch strings.ToLower(cfg.Cache.Type) {
	case constants.CacheTypeLRU:
	case constants.CacheTypeRedis, constants.CacheTypeTiered:
		if redis.Host == "" {
			return &ValidationError{
				Field:   "anchoring.cache.type",
				Message: fmt.Sprintf("cache type %s requires database.redis", cfg.Cache.Type),
			}
		}
	default:
		return &ValidationError{
			Field:   "anchoring.cache.type",
			Message: fmt.Sprintf("invalid cache type: %s (valid: lru, redis, tiered)", cfg.Cache.Type),
		}
	}

	if cfg.Cache.Size < 0 {
		return &ValidationError{
			Field:   "anchoring.cache.size",
			Message: "cache size must be non-negative",
		}
	}

	return nil
}

func validateBlockchain(cfg BlockchainConfig) error {
	if !cfg.Enabled {
		return nil
	}

	if !strings.HasPrefix(cfg.Endpoint, "http://") && !strings.HasPrefix(cfg.Endpoint, "https://") {
		return &ValidationError{
			Field:   "blockchain.endpoint",
			Message: "endpoint must be an http(s) URL when blockchain anchoring is enabled",
		}
	}

	if cfg.Timeout <= 0 {
		return &ValidationError{
			Field:   "blockchain.timeout",
			Message: "timeout must be positive",
		}
	}

	return validateRetry("blockchain.retry", cfg.Retry)
}

func validateWebhook(cfg WebhookConfig) error {
	if cfg.Timeout <= 0 {
		return &ValidationError{
			Field:   "webhook.timeout",
			Message: "timeout must be positive",
		}
	}

	if cfg.AEADKey == "" {
		return nil
	}

	key, err := hex.DecodeString(cfg.AEADKey)
	if err != nil || len(key) != 32 {
		return &ValidationError{
			Field:   "webhook.aead_key",
			Message: "aead_key must be 64 hex characters",
		}
	}

	return nil
}
