package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Security   SecurityConfig   `mapstructure:"security"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	MaxConnections int           `mapstructure:"max_connections"`
	MaxIdleTime    time.Duration `mapstructure:"max_idle_time"`
	MaxLifetime    time.Duration `mapstructure:"max_lifetime"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type RedisConfig struct {
	Hot  RedisInstanceConfig `mapstructure:"hot"`  // sessions, rate limiting
	Warm RedisInstanceConfig `mapstructure:"warm"` // recommendation results
}

type RedisInstanceConfig struct {
	URL        string        `mapstructure:"url"`
	MaxRetries int           `mapstructure:"max_retries"`
	PoolSize   int           `mapstructure:"pool_size"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type KafkaConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	Brokers       []string `mapstructure:"brokers"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
	Topics        struct {
		Evidence    string `mapstructure:"evidence"`
		EvidenceDLQ string `mapstructure:"evidence_dlq"`
	} `mapstructure:"topics"`
}

type AuthConfig struct {
	JWTSecret string            `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration     `mapstructure:"token_ttl"`
	APIKeys   map[string]string `mapstructure:"api_keys"` // key -> tier
	RateLimit RateLimitConfig   `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Default int           `mapstructure:"default"`
	Premium int           `mapstructure:"premium"`
	Window  time.Duration `mapstructure:"window"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EngineConfig holds every tunable threshold of the recommendation pipeline.
// DefaultEngineConfig documents the defaults.
type EngineConfig struct {
	Updater         UpdaterConfig        `mapstructure:"updater"`
	Scoring         ScoringConfig        `mapstructure:"scoring"`
	Clustering      ClusteringConfig     `mapstructure:"clustering"`
	Filter          FilterConfig         `mapstructure:"filter"`
	Representatives RepresentativeConfig `mapstructure:"representatives"`
	Diversity       DiversityConfig      `mapstructure:"diversity"`
	Explanation     ExplanationConfig    `mapstructure:"explanation"`
	Caching         CachingConfig        `mapstructure:"caching"`
	DefaultCount    int                  `mapstructure:"default_count"`
}

type UpdaterConfig struct {
	// FirstObservationCap bounds the confidence of a dimension's first update.
	FirstObservationCap float64 `mapstructure:"first_observation_cap"`
	// AccumulationRate scales how far each further event moves confidence toward 1.
	AccumulationRate float64 `mapstructure:"accumulation_rate"`
	ConfidenceCap    float64 `mapstructure:"confidence_cap"`
	RatingMin        float64 `mapstructure:"rating_min"`
	RatingMax        float64 `mapstructure:"rating_max"`
	PositiveWeight   float64 `mapstructure:"positive_weight"`
	NegativeWeight   float64 `mapstructure:"negative_weight"`
	LikeStrength     float64 `mapstructure:"like_strength"`
	DislikeStrength  float64 `mapstructure:"dislike_strength"`
	NeutralStrength  float64 `mapstructure:"neutral_strength"`
}

type ScoringConfig struct {
	UseConfidence   bool    `mapstructure:"use_confidence"`
	UseImportance   bool    `mapstructure:"use_importance"`
	PopularityBonus float64 `mapstructure:"popularity_bonus"`
	// MoodWeight is the share of the final score given to mood relevance
	// when a request names a mood.
	MoodWeight float64 `mapstructure:"mood_weight"`
}

type ClusteringConfig struct {
	// AxisBuckets is the number of buckets per linear axis.
	AxisBuckets int `mapstructure:"axis_buckets"`
	// Tone bands are fractions of the tone axis half-range.
	ToneNeutralBand float64 `mapstructure:"tone_neutral_band"`
	ToneStrongBand  float64 `mapstructure:"tone_strong_band"`
}

type FilterConfig struct {
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	ImportanceThreshold float64 `mapstructure:"importance_threshold"`
	MatchDistance       float64 `mapstructure:"match_distance"`
	ColdStartLimit      int     `mapstructure:"cold_start_limit"`
}

type RepresentativeConfig struct {
	PerBucket       int `mapstructure:"per_bucket"`
	MinBucketSpread int `mapstructure:"min_bucket_spread"`
}

type DiversityConfig struct {
	SecondPickThreshold float64 `mapstructure:"second_pick_threshold"`
}

type ExplanationConfig struct {
	StrongMatchThreshold float64 `mapstructure:"strong_match_threshold"`
	MaxReasons           int     `mapstructure:"max_reasons"`
	// Seed for phrasing selection. Zero means a fixed default seed.
	Seed int64 `mapstructure:"seed"`
}

type CachingConfig struct {
	BucketCacheSize    int           `mapstructure:"bucket_cache_size"`
	RecommendationsTTL time.Duration `mapstructure:"recommendations_ttl"`
}

type CatalogConfig struct {
	RegistryPath          string        `mapstructure:"registry_path"`
	QuestionBankPath      string        `mapstructure:"question_bank_path"`
	EnrichmentBatchSize   int           `mapstructure:"enrichment_batch_size"`
	EnrichmentConcurrency int           `mapstructure:"enrichment_concurrency"`
	EnrichmentTimeout     time.Duration `mapstructure:"enrichment_timeout"`
}

type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Port        string `mapstructure:"port"`
	MetricsPath string `mapstructure:"metrics_path"`
}

type SecurityConfig struct {
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// DefaultEngineConfig returns the engine defaults used when no configuration
// file overrides them.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Updater: UpdaterConfig{
			FirstObservationCap: 0.5,
			AccumulationRate:    0.5,
			ConfidenceCap:       0.95,
			RatingMin:           1,
			RatingMax:           10,
			PositiveWeight:      0.6,
			NegativeWeight:      0.4,
			LikeStrength:        0.8,
			DislikeStrength:     0.8,
			NeutralStrength:     0,
		},
		Scoring: ScoringConfig{
			UseConfidence:   true,
			UseImportance:   true,
			PopularityBonus: 0.03,
			MoodWeight:      0.2,
		},
		Clustering: ClusteringConfig{
			AxisBuckets:     4,
			ToneNeutralBand: 0.1,
			ToneStrongBand:  0.5,
		},
		Filter: FilterConfig{
			ConfidenceThreshold: 0.4,
			ImportanceThreshold: 0.6,
			MatchDistance:       0.3,
			ColdStartLimit:      500,
		},
		Representatives: RepresentativeConfig{
			PerBucket:       3,
			MinBucketSpread: 4,
		},
		Diversity: DiversityConfig{
			SecondPickThreshold: 0.7,
		},
		Explanation: ExplanationConfig{
			StrongMatchThreshold: 0.75,
			MaxReasons:           3,
		},
		Caching: CachingConfig{
			BucketCacheSize:    10000,
			RecommendationsTTL: 15 * time.Minute,
		},
		DefaultCount: 10,
	}
}

func Load() (*Config, error) {
	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	// Set defaults
	setDefaults()

	// Environment variable overrides
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional, continue with env vars and defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "development")

	// Database defaults
	viper.SetDefault("database.max_connections", 25)
	viper.SetDefault("database.max_idle_time", "15m")
	viper.SetDefault("database.max_lifetime", "1h")
	viper.SetDefault("database.connect_timeout", "10s")

	// Redis defaults
	viper.SetDefault("redis.hot.max_retries", 3)
	viper.SetDefault("redis.hot.pool_size", 10)
	viper.SetDefault("redis.hot.timeout", "5s")
	viper.SetDefault("redis.warm.max_retries", 3)
	viper.SetDefault("redis.warm.pool_size", 5)
	viper.SetDefault("redis.warm.timeout", "10s")

	// Kafka defaults
	viper.SetDefault("kafka.enabled", false)
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.consumer_group", "profile-updaters")
	viper.SetDefault("kafka.topics.evidence", "profile-evidence")
	viper.SetDefault("kafka.topics.evidence_dlq", "profile-evidence-dlq")

	// Auth defaults
	viper.SetDefault("auth.token_ttl", "24h")
	viper.SetDefault("auth.api_keys", map[string]string{
		"demo-free-key":       "free",
		"demo-premium-key":    "premium",
		"demo-enterprise-key": "enterprise",
	})
	viper.SetDefault("auth.rate_limit.default", 1000)
	viper.SetDefault("auth.rate_limit.premium", 10000)
	viper.SetDefault("auth.rate_limit.window", "1h")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	// Engine defaults
	d := DefaultEngineConfig()
	viper.SetDefault("engine.default_count", d.DefaultCount)

	viper.SetDefault("engine.updater.first_observation_cap", d.Updater.FirstObservationCap)
	viper.SetDefault("engine.updater.accumulation_rate", d.Updater.AccumulationRate)
	viper.SetDefault("engine.updater.confidence_cap", d.Updater.ConfidenceCap)
	viper.SetDefault("engine.updater.rating_min", d.Updater.RatingMin)
	viper.SetDefault("engine.updater.rating_max", d.Updater.RatingMax)
	viper.SetDefault("engine.updater.positive_weight", d.Updater.PositiveWeight)
	viper.SetDefault("engine.updater.negative_weight", d.Updater.NegativeWeight)
	viper.SetDefault("engine.updater.like_strength", d.Updater.LikeStrength)
	viper.SetDefault("engine.updater.dislike_strength", d.Updater.DislikeStrength)
	viper.SetDefault("engine.updater.neutral_strength", d.Updater.NeutralStrength)

	viper.SetDefault("engine.scoring.use_confidence", d.Scoring.UseConfidence)
	viper.SetDefault("engine.scoring.use_importance", d.Scoring.UseImportance)
	viper.SetDefault("engine.scoring.popularity_bonus", d.Scoring.PopularityBonus)
	viper.SetDefault("engine.scoring.mood_weight", d.Scoring.MoodWeight)

	viper.SetDefault("engine.clustering.axis_buckets", d.Clustering.AxisBuckets)
	viper.SetDefault("engine.clustering.tone_neutral_band", d.Clustering.ToneNeutralBand)
	viper.SetDefault("engine.clustering.tone_strong_band", d.Clustering.ToneStrongBand)

	viper.SetDefault("engine.filter.confidence_threshold", d.Filter.ConfidenceThreshold)
	viper.SetDefault("engine.filter.importance_threshold", d.Filter.ImportanceThreshold)
	viper.SetDefault("engine.filter.match_distance", d.Filter.MatchDistance)
	viper.SetDefault("engine.filter.cold_start_limit", d.Filter.ColdStartLimit)

	viper.SetDefault("engine.representatives.per_bucket", d.Representatives.PerBucket)
	viper.SetDefault("engine.representatives.min_bucket_spread", d.Representatives.MinBucketSpread)

	viper.SetDefault("engine.diversity.second_pick_threshold", d.Diversity.SecondPickThreshold)

	viper.SetDefault("engine.explanation.strong_match_threshold", d.Explanation.StrongMatchThreshold)
	viper.SetDefault("engine.explanation.max_reasons", d.Explanation.MaxReasons)
	viper.SetDefault("engine.explanation.seed", d.Explanation.Seed)

	viper.SetDefault("engine.caching.bucket_cache_size", d.Caching.BucketCacheSize)
	viper.SetDefault("engine.caching.recommendations_ttl", "15m")

	// Catalog defaults
	viper.SetDefault("catalog.enrichment_batch_size", 50)
	viper.SetDefault("catalog.enrichment_concurrency", 8)
	viper.SetDefault("catalog.enrichment_timeout", "5s")

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.port", "9090")
	viper.SetDefault("monitoring.metrics_path", "/metrics")

	// Security defaults
	viper.SetDefault("security.cors.allowed_origins", []string{"*"})
	viper.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	viper.SetDefault("security.cors.allowed_headers", []string{"*"})
}
