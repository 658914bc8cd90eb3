package constants

import "time"

const (
	ServiceName = "trust-service"
)

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout       = 10 * time.Second
	DefaultBlockchainTimeout = 15 * time.Second
	WebhookUserAgent         = "trust-service-webhook/1.0"
)

const (
	CacheKeyPrefixProof      = "proof:"
	CacheKeyPrefixWindowLock = "anchor:window:"
)

const (
	BrokerTypeKafka = "kafka"
)

const (
	DefaultInputTopic        = "trust_events"
	DefaultAnchorEventsTopic = "anchor_batch_events"
	DefaultPluginTopicPrefix = "plugin."
)

const (
	DefaultMongoDBName      = "trust"
	PluginsCollection       = "plugins"
	DefaultProofCacheSize   = 10000
	DefaultProofCacheTTL    = 24 * time.Hour
	DefaultWindowLockTTL    = 5 * time.Minute
	DefaultAnchorWindow     = time.Hour
	DefaultAnchorSchedule   = "5 * * * *"
	DefaultSeedDebounce     = 250 * time.Millisecond
	AllocationPercentTotal  = 100.0
	AllocationPercentSlack  = 0.01
	RuleSourcePrefix        = "rule:"
	AuditEntityTypeRule     = "trust_rule"
	DefaultAuditActor       = "system"
	SeedAuditActor          = "rule-seeder"
	ActorHeader             = "X-Actor"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)

const (
	CacheTypeLRU    = "lru"
	CacheTypeRedis  = "redis"
	CacheTypeTiered = "tiered"
)
