package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-relay
server:
  addr: ":6001"
  ws_path: /ws
auth:
  tokens_path: tokens.yaml
database:
  postgres:
    host: localhost
    port: 5432
    name: test_db
    user: testuser
    password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-relay" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-relay")
	}
	if cfg.Server.Addr != ":6001" {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, ":6001")
	}
	if cfg.Auth.TokensPath != "tokens.yaml" {
		t.Errorf("Auth.TokensPath = %q, want %q", cfg.Auth.TokensPath, "tokens.yaml")
	}
	if cfg.Database.Postgres.Host != "localhost" {
		t.Errorf("Database.Postgres.Host = %q, want %q", cfg.Database.Postgres.Host, "localhost")
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")

	yaml := `
instance:
  id: test-relay
auth:
  tokens_path: tokens.yaml
database:
  postgres:
    host: localhost
    name: test_db
    user: testuser
    password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Postgres.Password != "secret123" {
		t.Errorf("Database.Postgres.Password = %q, want %q", cfg.Database.Postgres.Password, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: test-relay
auth:
  tokens_path: tokens.yaml
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.Server.Addr != DefaultAddr {
		t.Errorf("Server.Addr = %q, want default %q", cfg.Server.Addr, DefaultAddr)
	}
	if cfg.Server.WSPath != DefaultWSPath {
		t.Errorf("Server.WSPath = %q, want default %q", cfg.Server.WSPath, DefaultWSPath)
	}
	if cfg.Gateway.OutboxSize != DefaultOutboxSize {
		t.Errorf("Gateway.OutboxSize = %d, want default %d", cfg.Gateway.OutboxSize, DefaultOutboxSize)
	}
	if cfg.Gateway.JoinGrace != DefaultJoinGrace {
		t.Errorf("Gateway.JoinGrace = %v, want default %v", cfg.Gateway.JoinGrace, DefaultJoinGrace)
	}
	if cfg.Router.HistoryBufferSize != DefaultHistoryBufferSize {
		t.Errorf("Router.HistoryBufferSize = %d, want default %d", cfg.Router.HistoryBufferSize, DefaultHistoryBufferSize)
	}
	if cfg.Database.Postgres.Port != DefaultDBPort {
		t.Errorf("Database.Postgres.Port = %d, want default %d", cfg.Database.Postgres.Port, DefaultDBPort)
	}
	if cfg.History.FlushInterval != DefaultFlushInterval {
		t.Errorf("History.FlushInterval = %v, want default %v", cfg.History.FlushInterval, DefaultFlushInterval)
	}
	if cfg.Health.Port != DefaultHealthPort {
		t.Errorf("Health.Port = %d, want default %d", cfg.Health.Port, DefaultHealthPort)
	}
}

func TestValidate(t *testing.T) {
	valid := func() RelayConfig {
		cfg := RelayConfig{
			Instance: InstanceConfig{ID: "test"},
			Auth:     AuthConfig{TokensPath: "tokens.yaml"},
		}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		cfg     func() RelayConfig
		wantErr string
	}{
		{
			name:    "missing instance id",
			cfg:     func() RelayConfig { return RelayConfig{} },
			wantErr: "instance.id is required",
		},
		{
			name: "missing tokens path",
			cfg: func() RelayConfig {
				return RelayConfig{Instance: InstanceConfig{ID: "test"}}
			},
			wantErr: "auth.tokens_path is required",
		},
		{
			name: "zero outbox size",
			cfg: func() RelayConfig {
				cfg := valid()
				cfg.Gateway.OutboxSize = -1
				return cfg
			},
			wantErr: "gateway.outbox_size must be >= 1",
		},
		{
			name: "history enabled without database host",
			cfg: func() RelayConfig {
				cfg := valid()
				cfg.History.Enabled = true
				return cfg
			},
			wantErr: "database.postgres.host is required",
		},
		{
			name: "history enabled without database password",
			cfg: func() RelayConfig {
				cfg := valid()
				cfg.History.Enabled = true
				cfg.Database.Postgres.Host = "localhost"
				cfg.Database.Postgres.Name = "db"
				cfg.Database.Postgres.User = "user"
				return cfg
			},
			wantErr: "database.postgres.password is required",
		},
		{
			name: "min_conns exceeds max_conns",
			cfg: func() RelayConfig {
				cfg := valid()
				cfg.History.Enabled = true
				cfg.Database.Postgres = DBConfig{
					Host: "localhost", Name: "db", User: "user", Password: "pass",
					MaxConns: 5, MinConns: 10,
				}
				return cfg
			},
			wantErr: "database.postgres.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name: "bad health port",
			cfg: func() RelayConfig {
				cfg := valid()
				cfg.Health.Port = 70000
				return cfg
			},
			wantErr: "health.port must be between 1 and 65535, got 70000",
		},
		{
			name:    "valid without history",
			cfg:     valid,
			wantErr: "",
		},
		{
			name: "valid with history",
			cfg: func() RelayConfig {
				cfg := valid()
				cfg.History = HistoryConfig{Enabled: true, BatchSize: 500, FlushInterval: time.Second}
				cfg.Database.Postgres = DBConfig{
					Host: "localhost", Name: "db", User: "user", Password: "pass",
					MaxConns: 10, MinConns: 2,
				}
				return cfg
			},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg()
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
