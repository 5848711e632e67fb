package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	HTTPAddr          string        `mapstructure:"http_addr" yaml:"http_addr"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	MaxLineBytes      int           `mapstructure:"max_line_bytes" yaml:"max_line_bytes"`
	DuplicateLogin    string        `mapstructure:"duplicate_login" yaml:"duplicate_login"`
	BcryptCost        int           `mapstructure:"bcrypt_cost" yaml:"bcrypt_cost"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	WSEnabled         bool          `mapstructure:"ws_enabled" yaml:"ws_enabled"`
	// EnforceSender drops routed lines whose sender field is not the sending login.
	EnforceSender bool `mapstructure:"enforce_sender" yaml:"enforce_sender"`

	// Admin API token settings. An empty secret disables /api.
	AdminJWTSecret   string `mapstructure:"admin_jwt_secret" yaml:"admin_jwt_secret"`
	AdminJWTIssuer   string `mapstructure:"admin_jwt_issuer" yaml:"admin_jwt_issuer"`
	AdminJWTAudience string `mapstructure:"admin_jwt_audience" yaml:"admin_jwt_audience"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":1234",
		HTTPAddr:          ":8080",
		DatabasePath:      "linechat.db",
		LogLevel:          "info",
		WriteTimeout:      10 * time.Second,
		MaxLineBytes:      64 * 1024,
		DuplicateLogin:    "reject",
		BcryptCost:        10,
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		WSEnabled:         true,
		AdminJWTIssuer:    "linechat-server",
		AdminJWTAudience:  "linechat-admin",
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// Boolean fields (WSEnabled, EnforceSender) are never copied: a false in other
// cannot be told apart from unset, so they come only from file and env.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.HTTPAddr != "" {
		c.HTTPAddr = other.HTTPAddr
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.IdleTimeout != 0 {
		c.IdleTimeout = other.IdleTimeout
	}
	if other.WriteTimeout != 0 {
		c.WriteTimeout = other.WriteTimeout
	}
	if other.MaxLineBytes != 0 {
		c.MaxLineBytes = other.MaxLineBytes
	}
	if other.DuplicateLogin != "" {
		c.DuplicateLogin = other.DuplicateLogin
	}
	if other.BcryptCost != 0 {
		c.BcryptCost = other.BcryptCost
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.AdminJWTSecret != "" {
		c.AdminJWTSecret = other.AdminJWTSecret
	}
	if other.AdminJWTIssuer != "" {
		c.AdminJWTIssuer = other.AdminJWTIssuer
	}
	if other.AdminJWTAudience != "" {
		c.AdminJWTAudience = other.AdminJWTAudience
	}
}
