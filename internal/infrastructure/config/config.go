package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/barterloop/backend/internal/domain/barter"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Engine    EngineConfig
	Proposal  ProposalConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
	TrustedProxies    []string
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// EngineConfig holds cycle discovery tuning knobs
type EngineConfig struct {
	MaxCycleLength  int           // longest chain considered (participants)
	TopKPerNode     int           // edges kept per item after scoring
	MinCycleScore   float64       // cycles below this mean score are dropped
	RelevanceFloor  float64       // edges below this score never enter the graph
	ImbalanceRatio  float64       // max |net| as a fraction of average item value
	MaxResults      int           // candidates returned per discovery call
	DiscoveryBudget time.Duration // per-request search budget
	GraphCacheTTL   time.Duration // how long a cached graph snapshot stays valid
}

// ProposalConfig holds proposal lifecycle settings
type ProposalConfig struct {
	TTL           time.Duration // acceptance window before a proposal expires
	LockTTL       time.Duration // item lock lifetime; must outlive the TTL
	SweepInterval time.Duration // how often expired proposals are reaped
	SweepBatch    int           // proposals reaped per sweep pass
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	DBTraceEnabled    bool    // Enable database query tracing (otelgorm)
	ProfilingEnabled  bool    // Enable Pyroscope continuous profiling
	PyroscopeAddress  string  // Pyroscope server address (e.g., "http://pyroscope:4040")
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with BARTER_ prefix (e.g., BARTER_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("BARTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
		},
		Engine: EngineConfig{
			MaxCycleLength:  v.GetInt("engine.max_cycle_length"),
			TopKPerNode:     v.GetInt("engine.top_k_per_node"),
			MinCycleScore:   v.GetFloat64("engine.min_cycle_score"),
			RelevanceFloor:  v.GetFloat64("engine.relevance_floor"),
			ImbalanceRatio:  v.GetFloat64("engine.imbalance_ratio"),
			MaxResults:      v.GetInt("engine.max_results"),
			DiscoveryBudget: v.GetDuration("engine.discovery_budget"),
			GraphCacheTTL:   v.GetDuration("engine.graph_cache_ttl"),
		},
		Proposal: ProposalConfig{
			TTL:           v.GetDuration("proposal.ttl"),
			LockTTL:       v.GetDuration("proposal.lock_ttl"),
			SweepInterval: v.GetDuration("proposal.sweep_interval"),
			SweepBatch:    v.GetInt("proposal.sweep_batch"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			ProfilingEnabled:  v.GetBool("telemetry.profiling_enabled"),
			PyroscopeAddress:  v.GetString("telemetry.pyroscope_address"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "barterloop-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "barterloop"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 10 << 20 // 10MB
	}
	// NOTE: CORS origins are intentionally not given a default fallback to "*".
	// An empty list means no cross-origin requests are allowed until explicitly configured.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 100
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	// Engine defaults mirror the domain constants so an empty config
	// section behaves exactly like the engine's own fallbacks
	if cfg.Engine.MaxCycleLength == 0 {
		cfg.Engine.MaxCycleLength = barter.DefaultMaxCycleLength
	}
	if cfg.Engine.TopKPerNode == 0 {
		cfg.Engine.TopKPerNode = barter.DefaultTopKPerNode
	}
	if cfg.Engine.MinCycleScore == 0 {
		cfg.Engine.MinCycleScore = barter.DefaultMinCycleScore
	}
	if cfg.Engine.RelevanceFloor == 0 {
		cfg.Engine.RelevanceFloor = barter.DefaultRelevanceFloor
	}
	if cfg.Engine.ImbalanceRatio == 0 {
		cfg.Engine.ImbalanceRatio = barter.DefaultMaxImbalanceRatio
	}
	if cfg.Engine.MaxResults == 0 {
		cfg.Engine.MaxResults = barter.DefaultMaxResults
	}
	if cfg.Engine.DiscoveryBudget == 0 {
		cfg.Engine.DiscoveryBudget = 2 * time.Second
	}
	if cfg.Engine.GraphCacheTTL == 0 {
		cfg.Engine.GraphCacheTTL = 30 * time.Second
	}
	// Proposal defaults
	if cfg.Proposal.TTL == 0 {
		cfg.Proposal.TTL = 48 * time.Hour
	}
	if cfg.Proposal.LockTTL == 0 {
		// The lock outlives the proposal so the expiry sweep always finds
		// the items still held and can release them itself.
		cfg.Proposal.LockTTL = 72 * time.Hour
	}
	if cfg.Proposal.SweepInterval == 0 {
		cfg.Proposal.SweepInterval = 5 * time.Minute
	}
	if cfg.Proposal.SweepBatch == 0 {
		cfg.Proposal.SweepBatch = 100
	}
	// Telemetry defaults
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0 // 100% in development
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "barterloop-backend"
	}
	if cfg.Telemetry.PyroscopeAddress == "" {
		cfg.Telemetry.PyroscopeAddress = "http://localhost:4040"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Engine.MaxCycleLength < 2 || c.Engine.MaxCycleLength > 8 {
		return fmt.Errorf("engine.max_cycle_length must be between 2 and 8, got %d", c.Engine.MaxCycleLength)
	}
	if c.Engine.MinCycleScore < 0 || c.Engine.MinCycleScore > 1 {
		return fmt.Errorf("engine.min_cycle_score must be between 0.0 and 1.0, got %f", c.Engine.MinCycleScore)
	}
	if c.Engine.RelevanceFloor < 0 || c.Engine.RelevanceFloor > 1 {
		return fmt.Errorf("engine.relevance_floor must be between 0.0 and 1.0, got %f", c.Engine.RelevanceFloor)
	}
	if c.Engine.ImbalanceRatio <= 0 || c.Engine.ImbalanceRatio > 1 {
		return fmt.Errorf("engine.imbalance_ratio must be in (0.0, 1.0], got %f", c.Engine.ImbalanceRatio)
	}

	if c.Proposal.LockTTL < c.Proposal.TTL {
		return fmt.Errorf("proposal.lock_ttl (%s) must be at least proposal.ttl (%s)",
			c.Proposal.LockTTL, c.Proposal.TTL)
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// RedisAddr returns the host:port address for the Redis client
func (r *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
