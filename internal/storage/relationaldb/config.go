package relationaldb

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config contains database configuration settings
type Config struct {
	// Database connection settings
	Driver           string `json:"driver" yaml:"driver"`
	ConnectionString string `json:"connection_string" yaml:"connection_string"`
	Host             string `json:"host" yaml:"host"`
	Port             int    `json:"port" yaml:"port"`
	Database         string `json:"database" yaml:"database"`
	Username         string `json:"username" yaml:"username"`
	Password         string `json:"password" yaml:"password"`
	SSLMode          string `json:"ssl_mode" yaml:"ssl_mode"`

	// Connection pool settings
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" yaml:"conn_max_idle_time"`

	// Transaction settings
	DefaultTimeout time.Duration `json:"default_timeout" yaml:"default_timeout"`

	// Retry settings for contended transactions
	MaxRetries int           `json:"max_retries" yaml:"max_retries"`
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay"`

	// Feature flags
	EnableWALMode     bool `json:"enable_wal_mode" yaml:"enable_wal_mode"`
	EnableForeignKeys bool `json:"enable_foreign_keys" yaml:"enable_foreign_keys"`
}

// NewConfig creates a new Config with sensible defaults
func NewConfig() *Config {
	return &Config{
		Driver:            "sqlite3",
		Database:          "booms.db",
		SSLMode:           "prefer",
		MaxOpenConns:      25,
		MaxIdleConns:      5,
		ConnMaxLifetime:   time.Hour,
		ConnMaxIdleTime:   time.Minute * 15,
		DefaultTimeout:    time.Second * 30,
		MaxRetries:        3,
		RetryDelay:        time.Millisecond * 100,
		EnableWALMode:     true,
		EnableForeignKeys: true,
	}
}

// PostgresConfig creates a PostgreSQL-specific configuration
func PostgresConfig() *Config {
	config := NewConfig()
	config.Driver = "postgres"
	config.Host = "localhost"
	config.Port = 5432
	config.Database = "booms"
	config.Username = "booms"
	return config
}

// SQLiteConfig creates a SQLite-specific configuration
func SQLiteConfig(dbPath string) *Config {
	config := NewConfig()
	config.Driver = "sqlite3"
	config.Database = dbPath
	config.MaxOpenConns = 1 // SQLite limitation
	config.MaxIdleConns = 1
	return config
}

// FromDatabaseURL builds a config from a DATABASE_URL-style string.
// postgres:// URLs select the postgres driver, anything else is treated
// as a SQLite file path.
func FromDatabaseURL(databaseURL string) *Config {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		config := PostgresConfig()
		config.ConnectionString = databaseURL
		return config
	}
	return SQLiteConfig(strings.TrimPrefix(databaseURL, "sqlite://"))
}

// Validate checks the configuration for common errors
func (c *Config) Validate() error {
	switch c.Driver {
	case "postgres", "postgresql":
		c.Driver = "postgres"
	case "sqlite3", "sqlite":
		c.Driver = "sqlite3"
	default:
		return fmt.Errorf("%w: %s", ErrInvalidDriver, c.Driver)
	}

	if c.Driver == "postgres" && c.ConnectionString == "" {
		if c.Host == "" {
			return ErrMissingHost
		}
		if c.Port <= 0 || c.Port > 65535 {
			return ErrInvalidPort
		}
		if c.Database == "" {
			return ErrMissingDatabase
		}
		if c.Username == "" {
			return ErrMissingUsername
		}
		switch c.SSLMode {
		case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
		default:
			return fmt.Errorf("invalid SSL mode: %s", c.SSLMode)
		}
	}
	if c.Driver == "sqlite3" && c.Database == "" && c.ConnectionString == "" {
		return ErrMissingDatabase
	}

	if c.MaxOpenConns < 0 {
		return ErrInvalidMaxOpenConns
	}
	if c.MaxIdleConns < 0 {
		return ErrInvalidMaxIdleConns
	}
	if c.MaxIdleConns > c.MaxOpenConns && c.MaxOpenConns > 0 {
		return ErrMaxIdleExceedsMaxOpen
	}
	if c.DefaultTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}
	if c.RetryDelay < 0 {
		return ErrInvalidRetryDelay
	}

	return nil
}

// BuildConnectionString builds a connection string from the config
func (c *Config) BuildConnectionString() (string, error) {
	if c.ConnectionString != "" {
		return c.ConnectionString, nil
	}

	switch c.Driver {
	case "postgres":
		return c.buildPostgresConnectionString()
	case "sqlite3":
		return c.buildSQLiteConnectionString()
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidDriver, c.Driver)
	}
}

func (c *Config) buildPostgresConnectionString() (string, error) {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	params.Set("connect_timeout", "30")
	params.Set("application_name", "boomsd")

	hostPort := c.Host
	if c.Port != 0 && c.Port != 5432 {
		hostPort += fmt.Sprintf(":%d", c.Port)
	}

	userInfo := ""
	if c.Username != "" {
		userInfo = c.Username
		if c.Password != "" {
			userInfo += ":" + c.Password
		}
		userInfo += "@"
	}

	return fmt.Sprintf("postgres://%s%s/%s?%s", userInfo, hostPort, c.Database, params.Encode()), nil
}

// buildSQLiteConnectionString emits the modernc.org/sqlite DSN form:
// pragmas ride along as _pragma query parameters.
func (c *Config) buildSQLiteConnectionString() (string, error) {
	dsn := c.Database

	params := make([]string, 0, 5)
	if c.EnableWALMode {
		params = append(params, "_pragma=journal_mode(WAL)")
	}
	if c.EnableForeignKeys {
		params = append(params, "_pragma=foreign_keys(1)")
	}
	params = append(params,
		"_pragma=synchronous(NORMAL)",
		"_pragma=busy_timeout(5000)",
		"_time_format=sqlite")

	return dsn + "?" + strings.Join(params, "&"), nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// WithConnectionString returns a new config with the specified connection string
func (c *Config) WithConnectionString(connStr string) *Config {
	clone := c.Clone()
	clone.ConnectionString = connStr
	return clone
}

// WithTimeout returns a new config with the specified default timeout
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	clone := c.Clone()
	clone.DefaultTimeout = timeout
	return clone
}

// WithRetrySettings returns a new config with the specified retry settings
func (c *Config) WithRetrySettings(maxRetries int, delay time.Duration) *Config {
	clone := c.Clone()
	clone.MaxRetries = maxRetries
	clone.RetryDelay = delay
	return clone
}

// String returns a string representation of the config (with password redacted)
func (c *Config) String() string {
	clone := c.Clone()
	if clone.Password != "" {
		clone.Password = "***"
	}
	return fmt.Sprintf("Config{Driver: %s, Host: %s, Port: %d, Database: %s}",
		clone.Driver, clone.Host, clone.Port, clone.Database)
}
