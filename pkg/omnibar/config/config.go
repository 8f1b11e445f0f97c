// Package config assembles the omnibar server from a ServerConfig.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-omnibar/pkg/omnibar"
	"github.com/tendant/simple-omnibar/pkg/omnibar/drafts"
	"github.com/tendant/simple-omnibar/pkg/omnibar/fetch"
	"github.com/tendant/simple-omnibar/pkg/omnibar/objectkey"
	"github.com/tendant/simple-omnibar/pkg/omnibar/posts"
	"github.com/tendant/simple-omnibar/pkg/omnibar/repo/memory"
	repopg "github.com/tendant/simple-omnibar/pkg/omnibar/repo/postgres"
	fsstorage "github.com/tendant/simple-omnibar/pkg/omnibar/storage/fs"
	memorystorage "github.com/tendant/simple-omnibar/pkg/omnibar/storage/memory"
	s3storage "github.com/tendant/simple-omnibar/pkg/omnibar/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:         "8080",
		Environment:  "development",
		DatabaseType: "memory",
		DBSchema:     "omnibar",
		Storage: StorageBackendConfig{
			Type:   "memory",
			Config: map[string]interface{}{},
		},
		KeyGenerator:       "git-like",
		MaxTextLength:      omnibar.DefaultMaxTextLength,
		MaxImageDimension:  posts.DefaultMaxDimension,
		FetchTimeout:       omnibar.DefaultFetchTimeout,
		MaxFetchBytes:      fetch.DefaultMaxBytes,
		IdleTimeout:        30 * time.Minute,
		EnableRemoteFetch:  true,
		EnableEventLogging: true,
	}
}

// ServerConfig represents server configuration for the omnibar service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"
	DBSchema     string // Postgres schema to use (default: omnibar)
	AutoMigrate  bool   // Create tables on startup (postgres only)

	// Image storage configuration
	Storage      StorageBackendConfig
	KeyGenerator string // "git-like", "flat"

	// Composition limits
	MaxTextLength     int
	MaxImageDimension int
	FetchTimeout      time.Duration
	MaxFetchBytes     int64
	IdleTimeout       time.Duration // Compositions unused this long are canceled, saving drafts

	// Access control, both optional
	JWTSecret    string // HS256 key; when set the author comes from the token's sub claim
	APIKeySHA256 string // hex SHA-256 of the API key required on /api/v1

	// Server options
	EnableRemoteFetch  bool
	EnableEventLogging bool
}

// StorageBackendConfig represents configuration for the image storage backend
type StorageBackendConfig struct {
	Type   string // "memory", "fs", "s3"
	Config map[string]interface{}
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}

	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	switch c.Storage.Type {
	case "memory", "fs", "s3":
	default:
		return fmt.Errorf("unsupported storage backend type: %s", c.Storage.Type)
	}

	if c.KeyGenerator != "git-like" && c.KeyGenerator != "flat" {
		return fmt.Errorf("key_generator must be 'git-like' or 'flat', got: %s", c.KeyGenerator)
	}

	if c.MaxTextLength <= 0 {
		return errors.New("max_text_length must be positive")
	}
	if c.MaxImageDimension <= 0 {
		return errors.New("max_image_dimension must be positive")
	}
	if c.FetchTimeout <= 0 {
		return errors.New("fetch_timeout must be positive")
	}
	if c.MaxFetchBytes <= 0 {
		return errors.New("max_fetch_bytes must be positive")
	}
	if c.IdleTimeout <= 0 {
		return errors.New("idle_timeout must be positive")
	}

	return nil
}

// Services holds the collaborators every composition of a server shares.
type Services struct {
	Repository omnibar.Repository
	Blobs      omnibar.BlobStore
	Drafts     omnibar.DraftStore
	Submitter  omnibar.Submitter
	Fetcher    omnibar.Fetcher
	EventSink  omnibar.EventSink

	config *ServerConfig
	logger *slog.Logger
	pool   *pgxpool.Pool
}

// CompositionOptions returns the options a new composition is created with.
func (s *Services) CompositionOptions() []omnibar.Option {
	options := []omnibar.Option{
		omnibar.WithSubmitter(s.Submitter),
		omnibar.WithDraftStore(s.Drafts),
		omnibar.WithEventSink(s.EventSink),
		omnibar.WithLogger(s.logger),
		omnibar.WithMaxTextLength(s.config.MaxTextLength),
		omnibar.WithFetchTimeout(s.config.FetchTimeout),
	}
	if s.Fetcher != nil {
		options = append(options, omnibar.WithFetcher(s.Fetcher))
	}
	return options
}

// Close releases the database pool, if any.
func (s *Services) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// BuildServices creates the shared collaborators from the server configuration
func (c *ServerConfig) BuildServices(ctx context.Context, logger *slog.Logger) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}

	repo, pool, err := c.buildRepository(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}

	blobs, err := c.buildStorageBackend(c.Storage)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, fmt.Errorf("failed to build storage backend %s: %w", c.Storage.Type, err)
	}

	keys := c.buildKeyGenerator()

	s := &Services{
		Repository: repo,
		Blobs:      blobs,
		Drafts:     drafts.New(repo, blobs, drafts.WithKeyGenerator(keys), drafts.WithLogger(logger)),
		Submitter: posts.New(repo, blobs,
			posts.WithKeyGenerator(keys),
			posts.WithMaxDimension(uint(c.MaxImageDimension)),
			posts.WithLogger(logger),
		),
		EventSink: omnibar.NewNoopEventSink(),
		config:    c,
		logger:    logger,
		pool:      pool,
	}

	// Draft images come back as blob references; remote URLs only when enabled.
	blobFetcher := fetch.NewBlobFetcher(blobs)
	if c.EnableRemoteFetch {
		web := fetch.NewHTTPFetcher(fetch.WithMaxBytes(c.MaxFetchBytes), fetch.WithLogger(logger))
		s.Fetcher = fetch.NewRouter(blobFetcher, web)
	} else {
		s.Fetcher = fetch.NewRouter(blobFetcher, nil)
	}

	if c.EnableEventLogging {
		s.EventSink = omnibar.NewLoggingEventSink(logger)
	}

	return s, nil
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context) (omnibar.Repository, *pgxpool.Pool, error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), nil, nil
	case "postgres":
		if c.DatabaseURL == "" {
			return nil, nil, errors.New("database_url is required for postgres")
		}
		cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		schema := c.DBSchema
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			if schema == "" {
				return nil
			}
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		if c.AutoMigrate {
			if err := c.migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		return repopg.NewWithPool(pool), pool, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

func (c *ServerConfig) migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if c.DBSchema != "" {
		if _, err := pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{c.DBSchema}.Sanitize()); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	if err := repopg.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// PingPostgres verifies connectivity to Postgres and optionally sets search_path for the session.
// It fails if the schema (when provided) does not exist.
func PingPostgres(databaseURL, schema string) error {
	if databaseURL == "" {
		return errors.New("database_url is required")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("failed to create pgx pool: %w", err)
	}
	defer pool.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// buildStorageBackend creates a BlobStore based on the backend configuration
func (c *ServerConfig) buildStorageBackend(config StorageBackendConfig) (omnibar.BlobStore, error) {
	switch config.Type {
	case "memory":
		return memorystorage.New(), nil

	case "fs":
		return fsstorage.New(fsstorage.Config{
			BaseDir: getString(config.Config, "base_dir", "./data/images"),
		})

	case "s3":
		return s3storage.New(s3storage.Config{
			Region:                 getString(config.Config, "region", "us-east-1"),
			Bucket:                 getString(config.Config, "bucket", ""),
			AccessKeyID:            getString(config.Config, "access_key_id", ""),
			SecretAccessKey:        getString(config.Config, "secret_access_key", ""),
			Endpoint:               getString(config.Config, "endpoint", ""),
			UsePathStyle:           getBool(config.Config, "use_path_style", false),
			EnableSSE:              getBool(config.Config, "enable_sse", false),
			SSEAlgorithm:           getString(config.Config, "sse_algorithm", "AES256"),
			SSEKMSKeyID:            getString(config.Config, "sse_kms_key_id", ""),
			CreateBucketIfNotExist: getBool(config.Config, "create_bucket_if_not_exist", false),
		})

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", config.Type)
	}
}

func (c *ServerConfig) buildKeyGenerator() objectkey.Generator {
	if c.KeyGenerator == "flat" {
		return objectkey.NewFlatGenerator()
	}
	return objectkey.NewRecommendedGenerator()
}

func getString(config map[string]interface{}, key string, defaultValue string) string {
	if value, exists := config[key]; exists {
		if str, ok := value.(string); ok {
			return str
		}
	}
	return defaultValue
}

func getBool(config map[string]interface{}, key string, defaultValue bool) bool {
	if value, exists := config[key]; exists {
		switch v := value.(type) {
		case bool:
			return v
		case string:
			if parsed, err := strconv.ParseBool(v); err == nil {
				return parsed
			}
		}
	}
	return defaultValue
}
