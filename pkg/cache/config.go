package cache

import "time"

// RedisOption configures Redis cache.
type RedisOption func(*RedisConfig)

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	URL          string // redis:// or rediss:// URL; takes precedence over Host/Port
	Host         string
	Port         int
	Username     string
	Password     string
	DB           int
	TLS          bool
	PoolSize     int
	PoolTimeout  time.Duration
	MinIdleConns int
	Prefix       string
}

// WithRedisURL sets a connection URL.
func WithRedisURL(url string) RedisOption {
	return func(c *RedisConfig) {
		c.URL = url
	}
}

// WithRedisHost sets Redis host.
func WithRedisHost(host string) RedisOption {
	return func(c *RedisConfig) {
		c.Host = host
	}
}

// WithRedisPort sets Redis port.
func WithRedisPort(port int) RedisOption {
	return func(c *RedisConfig) {
		c.Port = port
	}
}

// WithRedisAuth sets the ACL username and password.
func WithRedisAuth(username, password string) RedisOption {
	return func(c *RedisConfig) {
		c.Username = username
		c.Password = password
	}
}

// WithRedisDB sets Redis database number.
func WithRedisDB(db int) RedisOption {
	return func(c *RedisConfig) {
		c.DB = db
	}
}

// WithRedisTLS enables TLS for host/port connections.
func WithRedisTLS(enabled bool) RedisOption {
	return func(c *RedisConfig) {
		c.TLS = enabled
	}
}

// WithRedisPool sets connection pool settings.
func WithRedisPool(poolSize, minIdleConns int, timeout time.Duration) RedisOption {
	return func(c *RedisConfig) {
		c.PoolSize = poolSize
		c.MinIdleConns = minIdleConns
		c.PoolTimeout = timeout
	}
}

// WithRedisPrefix sets key prefix. Empty means keys are stored as given.
func WithRedisPrefix(prefix string) RedisOption {
	return func(c *RedisConfig) {
		c.Prefix = prefix
	}
}

// MemoryOption configures Memory cache.
type MemoryOption func(*MemoryConfig)

// MemoryConfig holds memory cache configuration.
type MemoryConfig struct {
	MaxSize int
}

// WithMemoryMaxSize sets max cache size.
func WithMemoryMaxSize(size int) MemoryOption {
	return func(c *MemoryConfig) {
		c.MaxSize = size
	}
}

// FileOption configures File cache.
type FileOption func(*FileConfig)

// FileConfig holds file cache configuration.
type FileConfig struct {
	Dir      string
	FileMode uint32
}

// WithFileMode sets the permission bits of written files.
func WithFileMode(mode uint32) FileOption {
	return func(c *FileConfig) {
		c.FileMode = mode
	}
}
