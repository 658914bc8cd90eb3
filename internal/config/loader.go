package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"trustcore/internal/constants"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout_seconds", "15s")
	viper.SetDefault("server.write_timeout_seconds", "15s")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("broker.kafka.input_topic", constants.DefaultInputTopic)
	viper.SetDefault("broker.kafka.plugin_topic_prefix", constants.DefaultPluginTopicPrefix)
	viper.SetDefault("broker.kafka.retry.max_attempts", 3)
	viper.SetDefault("broker.kafka.retry.initial_interval", "1s")
	viper.SetDefault("broker.kafka.retry.max_interval", "30s")
	viper.SetDefault("broker.kafka.retry.multiplier", 2.0)

	viper.SetDefault("anchoring.schedule", constants.DefaultAnchorSchedule)
	viper.SetDefault("anchoring.window", constants.DefaultAnchorWindow)
	viper.SetDefault("anchoring.lock_ttl", constants.DefaultWindowLockTTL)
	viper.SetDefault("anchoring.cache.type", constants.CacheTypeLRU)
	viper.SetDefault("anchoring.cache.size", constants.DefaultProofCacheSize)
	viper.SetDefault("anchoring.cache.ttl", constants.DefaultProofCacheTTL)

	viper.SetDefault("blockchain.timeout", constants.DefaultBlockchainTimeout)
	viper.SetDefault("blockchain.retry.max_attempts", 3)
	viper.SetDefault("blockchain.retry.initial_interval", "500ms")
	viper.SetDefault("blockchain.retry.max_interval", "5s")
	viper.SetDefault("blockchain.retry.multiplier", 2.0)

	viper.SetDefault("webhook.timeout", constants.DefaultHTTPTimeout)
	viper.SetDefault("webhook.user_agent", constants.WebhookUserAgent)
}

func bindEnvVariables() {
	viper.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.group_id", "BROKER_KAFKA_GROUP_ID")
	viper.BindEnv("broker.kafka.input_topic", "BROKER_KAFKA_INPUT_TOPIC")
	viper.BindEnv("broker.kafka.anchor_events_topic", "BROKER_KAFKA_ANCHOR_EVENTS_TOPIC")
	viper.BindEnv("broker.kafka.dlq_topic", "BROKER_KAFKA_DLQ_TOPIC")

	viper.BindEnv("database.postgres.host", "DATABASE_POSTGRES_HOST")
	viper.BindEnv("database.postgres.port", "DATABASE_POSTGRES_PORT")
	viper.BindEnv("database.postgres.user", "DATABASE_POSTGRES_USER")
	viper.BindEnv("database.postgres.password", "DATABASE_POSTGRES_PASSWORD")
	viper.BindEnv("database.postgres.dbname", "DATABASE_POSTGRES_DBNAME")
	viper.BindEnv("database.postgres.sslmode", "DATABASE_POSTGRES_SSLMODE")
	viper.BindEnv("database.run_migrations", "DATABASE_RUN_MIGRATIONS")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("database.mongodb.uri", "DATABASE_MONGODB_URI")
	viper.BindEnv("database.mongodb.database", "DATABASE_MONGODB_DATABASE")

	viper.BindEnv("server.port", "SERVER_PORT")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("anchoring.enabled", "ANCHORING_ENABLED")
	viper.BindEnv("anchoring.schedule", "ANCHORING_SCHEDULE")
	viper.BindEnv("anchoring.best_effort_proof_scan", "ANCHORING_BEST_EFFORT_PROOF_SCAN")

	viper.BindEnv("blockchain.enabled", "BLOCKCHAIN_ENABLED")
	viper.BindEnv("blockchain.endpoint", "BLOCKCHAIN_ENDPOINT")
	viper.BindEnv("blockchain.api_key", "BLOCKCHAIN_API_KEY")

	viper.BindEnv("webhook.aead_key", "WEBHOOK_AEAD_KEY")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
}

func applyEnvOverrides(cfg *Config) error {
	if brokersEnv := viper.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}

	if otlpEndpoint := viper.GetString("TRACING_OTLP_ENDPOINT"); otlpEndpoint != "" {
		cfg.Tracing.OTLP.Endpoint = otlpEndpoint
	}

	return nil
}
