package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	JWTSecret         string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer         string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience       string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	// LoginRateLimit caps login attempts per minute; zero disables the cap.
	LoginRateLimit int `mapstructure:"login_rate_limit" yaml:"login_rate_limit"`

	// RingTimeout is how long an unanswered call rings before it is
	// marked missed.
	RingTimeout time.Duration `mapstructure:"ring_timeout" yaml:"ring_timeout"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		DatabasePath:      "callwire.db",
		JWTSecret:         "change-me",
		JWTIssuer:         "callwire",
		JWTAudience:       "callwire",
		LogLevel:          "info",
		LoginRateLimit:    30,
		RingTimeout:       45 * time.Second,
	}
}
