package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultAddr              = ":5001"
	DefaultWSPath            = "/ws"
	DefaultOutboxSize        = 256
	DefaultEventBufferSize   = 4096
	DefaultJoinGrace         = 30 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultPingInterval      = 30 * time.Second
	DefaultPongTimeout       = 60 * time.Second
	DefaultReadLimit         = 8192
	DefaultHistoryBufferSize = 1024
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 10
	DefaultMinConns          = 2
	DefaultBatchSize         = 500
	DefaultFlushInterval     = 2 * time.Second
	DefaultHealthPort        = 8080
	DefaultHealthPath        = "/healthz"
)

func (c *RelayConfig) applyDefaults() {
	// Server defaults
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.WSPath == "" {
		c.Server.WSPath = DefaultWSPath
	}

	// Gateway defaults
	if c.Gateway.OutboxSize == 0 {
		c.Gateway.OutboxSize = DefaultOutboxSize
	}
	if c.Gateway.EventBufferSize == 0 {
		c.Gateway.EventBufferSize = DefaultEventBufferSize
	}
	if c.Gateway.JoinGrace == 0 {
		c.Gateway.JoinGrace = DefaultJoinGrace
	}
	if c.Gateway.WriteTimeout == 0 {
		c.Gateway.WriteTimeout = DefaultWriteTimeout
	}
	if c.Gateway.PingInterval == 0 {
		c.Gateway.PingInterval = DefaultPingInterval
	}
	if c.Gateway.PongTimeout == 0 {
		c.Gateway.PongTimeout = DefaultPongTimeout
	}
	if c.Gateway.ReadLimit == 0 {
		c.Gateway.ReadLimit = DefaultReadLimit
	}

	// Router defaults
	if c.Router.HistoryBufferSize == 0 {
		c.Router.HistoryBufferSize = DefaultHistoryBufferSize
	}

	// Database defaults
	applyDBDefaults(&c.Database.Postgres)

	// History defaults
	if c.History.BatchSize == 0 {
		c.History.BatchSize = DefaultBatchSize
	}
	if c.History.FlushInterval == 0 {
		c.History.FlushInterval = DefaultFlushInterval
	}

	// Health defaults
	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
	if c.Health.Path == "" {
		c.Health.Path = DefaultHealthPath
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
