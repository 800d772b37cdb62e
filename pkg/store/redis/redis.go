package redis

import (
	"context"
	"fmt"
	"time"

	"atm-ledger/pkg/store"

	"github.com/redis/rueidis"
)

// Backend stores each ledger document as one Redis string under KeyPrefix.
type Backend struct {
	client rueidis.Client
	name   string
	config Config
}

// Config configures the Redis document backend.
type Config struct {
	Name string
	// Addr is the Redis server address for single node mode.
	// For cluster mode, use ClusterAddrs instead.
	// Examples: "localhost:6379", "redis.example.com:6379"
	Addr string
	// ClusterAddrs is a list of Redis cluster node addresses.
	// If set, cluster mode is enabled automatically.
	ClusterAddrs []string
	Username     string
	Password     string
	// DB is the Redis database number (0-15).
	// Note: In cluster mode, only DB 0 is supported.
	DB           int
	KeyPrefix    string
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	// SentinelMasterSet is the master set name when SentinelAddrs is set.
	SentinelMasterSet string
	// SentinelAddrs is a list of Redis Sentinel addresses.
	// If set, sentinel mode is enabled.
	SentinelAddrs    []string
	SentinelUsername string
	SentinelPassword string
}

// DefaultConfig returns a single-node configuration on localhost.
func DefaultConfig() Config {
	return Config{
		Name:         "redis",
		Addr:         "localhost:6379",
		DB:           0,
		KeyPrefix:    "ledger:",
		DialTimeout:  5 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// ClusterConfig returns a configuration for Redis Cluster mode.
func ClusterConfig(clusterAddrs []string, password string) Config {
	config := DefaultConfig()
	config.ClusterAddrs = clusterAddrs
	config.Password = password
	config.Addr = "" // Clear single node address
	config.DB = 0    // Cluster only supports DB 0
	return config
}

// SentinelConfig returns a configuration for Redis Sentinel mode.
func SentinelConfig(sentinelAddrs []string, masterSet, password string) Config {
	config := DefaultConfig()
	config.SentinelAddrs = sentinelAddrs
	config.SentinelMasterSet = masterSet
	config.Password = password
	config.Addr = "" // Clear single node address
	return config
}

// initAddress picks the seed addresses for the configured mode.
func (c Config) initAddress() ([]string, error) {
	switch {
	case len(c.ClusterAddrs) > 0:
		return c.ClusterAddrs, nil
	case len(c.SentinelAddrs) > 0:
		return c.SentinelAddrs, nil
	case c.Addr != "":
		return []string{c.Addr}, nil
	default:
		return nil, fmt.Errorf("redis: no addresses configured (set Addr, ClusterAddrs, or SentinelAddrs)")
	}
}

// New connects to Redis and pings it.
func New(config Config) (*Backend, error) {
	if config.Name == "" {
		config.Name = "redis"
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = 5 * time.Second
	}

	initAddress, err := config.initAddress()
	if err != nil {
		return nil, err
	}

	clientOpts := rueidis.ClientOption{
		InitAddress:      initAddress,
		Username:         config.Username,
		Password:         config.Password,
		SelectDB:         config.DB,
		ConnWriteTimeout: config.WriteTimeout,
		// Documents are read back right after being written; skip client-side caching
		DisableCache: true,
	}

	if len(config.SentinelAddrs) > 0 {
		clientOpts.Sentinel = rueidis.SentinelOption{
			MasterSet: config.SentinelMasterSet,
			Username:  config.SentinelUsername,
			Password:  config.SentinelPassword,
		}
	}

	client, err := rueidis.NewClient(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("redis: failed to create client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: failed to ping server: %w", err)
	}

	return &Backend{
		client: client,
		name:   config.Name,
		config: config,
	}, nil
}

// Name returns the configured backend name.
func (b *Backend) Name() string {
	return b.name
}

// Read returns the document stored under KeyPrefix+document.
func (b *Backend) Read(ctx context.Context, document string) ([]byte, error) {
	cmd := b.client.B().Get().Key(b.key(document)).Build()
	resp := b.client.Do(ctx, cmd)

	if err := resp.Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, store.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	data, err := resp.AsBytes()
	if err != nil {
		return nil, fmt.Errorf("redis get: failed to read response: %w", err)
	}
	return data, nil
}

// Write replaces the document. Documents never expire.
func (b *Backend) Write(ctx context.Context, document string, data []byte) error {
	cmd := b.client.B().Set().Key(b.key(document)).Value(rueidis.BinaryString(data)).Build()
	if err := b.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes documents. Used to reset a ledger.
func (b *Backend) Delete(ctx context.Context, documents ...string) error {
	if len(documents) == 0 {
		return nil
	}

	keys := make([]string, len(documents))
	for i, doc := range documents {
		keys[i] = b.key(doc)
	}

	cmd := b.client.B().Del().Key(keys...).Build()
	if err := b.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (b *Backend) Ping(ctx context.Context) error {
	cmd := b.client.B().Ping().Build()
	if err := b.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close closes the client.
func (b *Backend) Close() error {
	b.client.Close()
	return nil
}

func (b *Backend) key(document string) string {
	return b.config.KeyPrefix + document
}
