package config

import "time"

// RelayConfig is the root configuration for a relay instance.
type RelayConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Router   RouterConfig   `yaml:"router"`
	Database DatabaseConfig `yaml:"database"`
	History  HistoryConfig  `yaml:"history"`
	Health   HealthConfig   `yaml:"health"`
}

// InstanceConfig identifies this relay.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ServerConfig holds the WebSocket listener settings.
type ServerConfig struct {
	Addr   string `yaml:"addr"`
	WSPath string `yaml:"ws_path"`
}

// AuthConfig points at the identity verification source.
type AuthConfig struct {
	TokensPath string `yaml:"tokens_path"`
}

// GatewayConfig holds Connection Gateway settings.
type GatewayConfig struct {
	OutboxSize      int           `yaml:"outbox_size"`
	EventBufferSize int           `yaml:"event_buffer_size"`
	JoinGrace       time.Duration `yaml:"join_grace"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	PingInterval    time.Duration `yaml:"ping_interval"`
	PongTimeout     time.Duration `yaml:"pong_timeout"`
	ReadLimit       int64         `yaml:"read_limit"`
}

// RouterConfig holds Event Router settings.
type RouterConfig struct {
	HistoryBufferSize int `yaml:"history_buffer_size"`
}

// DatabaseConfig holds the history database connection.
type DatabaseConfig struct {
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// HistoryConfig holds history writer settings.
type HistoryConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// HealthConfig holds the health endpoint settings.
type HealthConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
