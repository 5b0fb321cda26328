package responsecache

import (
	"fmt"
	"os"
	"time"

	"github.com/always-cache/response-cache/cache"
	cachekey "github.com/always-cache/response-cache/pkg/cache-key"
	cacheprofile "github.com/always-cache/response-cache/pkg/cache-profile"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML configuration of the response cache.
type FileConfig struct {
	// Defaults to true when omitted.
	Enabled             *bool              `yaml:"enabled"`
	AddCacheTimeHeader  bool               `yaml:"addCacheTimeHeader"`
	CacheTimeHeaderName string             `yaml:"cacheTimeHeaderName"`
	Lifetime            time.Duration      `yaml:"lifetime"`
	MaxLifetime         time.Duration      `yaml:"maxLifetime"`
	MaxBodySize         int64              `yaml:"maxBodySize"`
	CacheRedirects      bool               `yaml:"cacheRedirects"`
	ExcludePaths        []string           `yaml:"excludePaths"`
	DisabledPaths       []string           `yaml:"disabledPaths"`
	KeyHeaders          []string           `yaml:"keyHeaders"`
	Rules               cacheprofile.Rules `yaml:"rules"`
	Store               StoreConfig        `yaml:"store"`
}

type StoreConfig struct {
	// sqlite, memory or redis
	Driver string `yaml:"driver"`
	// SQLite file name. In-memory database if empty.
	Path string `yaml:"path"`
	// Redis address.
	Addr string `yaml:"addr"`
	// Key prefix.
	Prefix string `yaml:"prefix"`
	// Maximum entries of the memory store.
	MaxEntries int `yaml:"maxEntries"`
	// Retries of failed store calls. Zero disables retrying.
	Retries uint64 `yaml:"retries"`
}

// Load reads the YAML configuration file.
func Load(filename string) (FileConfig, error) {
	var config FileConfig
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = yaml.Unmarshal(configBytes, &config)
	return config, err
}

func (c FileConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Profile returns the caching profile described by the configuration.
func (c FileConfig) Profile() cacheprofile.Profile {
	return cacheprofile.New(cacheprofile.Options{
		Enabled:         c.IsEnabled(),
		DisabledPaths:   c.DisabledPaths,
		ExcludePaths:    c.ExcludePaths,
		CacheRedirects:  c.CacheRedirects,
		MaxBodySize:     c.MaxBodySize,
		DefaultLifetime: c.Lifetime,
		MaxLifetime:     c.MaxLifetime,
		Rules:           c.Rules,
	})
}

// Hasher returns the key hasher described by the configuration.
func (c FileConfig) Hasher() cachekey.Hasher {
	h := cachekey.NewDefaultHasher(c.KeyHeaders...)
	h.Prefix = c.Store.Prefix
	return h
}

// NewStore opens the configured store. The returned function releases it.
func (c FileConfig) NewStore() (cache.Store, func() error, error) {
	var store cache.Store
	closeStore := func() error { return nil }

	switch c.Store.Driver {
	case "", "sqlite":
		s, err := cache.NewSQLiteCache(c.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		store, closeStore = s, s.Close
	case "memory":
		store = cache.NewMemCache(c.Store.MaxEntries)
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: c.Store.Addr})
		store, closeStore = cache.NewRedisCache(client, c.Store.Prefix), client.Close
	default:
		return nil, nil, fmt.Errorf("unsupported store driver: %s", c.Store.Driver)
	}

	if c.Store.Retries > 0 {
		store = cache.NewRetryStore(store, c.Store.Retries, 0)
	}
	return store, closeStore, nil
}

// Config returns the response cache configuration using store.
// Logger, token source and metrics are left to the caller.
func (c FileConfig) Config(store cache.Store) Config {
	return Config{
		Store:               store,
		Hasher:              c.Hasher(),
		Profile:             c.Profile(),
		AddCacheTimeHeader:  c.AddCacheTimeHeader,
		CacheTimeHeaderName: c.CacheTimeHeaderName,
	}
}
