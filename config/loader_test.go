// 配置加载器测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, 60, cfg.Parser.UnfencedLookahead)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "briefkit.yaml")

	yamlContent := `
server:
  http_port: 8888
  read_timeout: 60s
  cors_allowed_origins: ["https://app.example.com"]

session:
  ttl: 2h
  auto_advance: false

parser:
  strict_signature: true
  memo_size: 64

compression:
  fallback_keep: 12
  tokenizer: tiktoken

store:
  type: redis
  key_prefix: "bk:"

redis:
  addr: "redis.example.com:6379"
  password: "secret"
  db: 1

log:
  level: "debug"
  format: "console"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.CORSAllowedOrigins)

	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.False(t, cfg.Session.AutoAdvance)
	assert.Equal(t, time.Minute, cfg.Session.CleanupInterval)

	assert.True(t, cfg.Parser.StrictSignature)
	assert.Equal(t, 64, cfg.Parser.MemoSize)
	assert.Equal(t, 60, cfg.Parser.UnfencedLookahead)

	assert.Equal(t, 12, cfg.Compression.FallbackKeep)
	assert.Equal(t, 10, cfg.Compression.MinMessages)
	assert.Equal(t, "tiktoken", cfg.Compression.Tokenizer)

	assert.Equal(t, "redis", cfg.Store.Type)
	assert.Equal(t, "bk:", cfg.Store.KeyPrefix)
	assert.Equal(t, "redis.example.com:6379", cfg.Redis.Addr)
	assert.Equal(t, 1, cfg.Redis.DB)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoader_MissingFileKeepsDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath(filepath.Join(t.TempDir(), "absent.yaml")).Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoader_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server: [unclosed"), 0644))

	_, err := NewLoader().WithConfigPath(configPath).Load()
	assert.Error(t, err)
}

func TestLoader_EnvOverrides(t *testing.T) {
	t.Setenv("BRIEFKIT_SERVER_HTTP_PORT", "9000")
	t.Setenv("BRIEFKIT_SESSION_TTL", "45m")
	t.Setenv("BRIEFKIT_SESSION_AUTO_ADVANCE", "false")
	t.Setenv("BRIEFKIT_PARSER_UNFENCED_LOOKAHEAD", "120")
	t.Setenv("BRIEFKIT_STORE_TYPE", "file")
	t.Setenv("BRIEFKIT_TELEMETRY_SAMPLE_RATE", "0.5")
	t.Setenv("BRIEFKIT_LOG_OUTPUT_PATHS", "stdout, /var/log/briefkit.log")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, 45*time.Minute, cfg.Session.TTL)
	assert.False(t, cfg.Session.AutoAdvance)
	assert.Equal(t, 120, cfg.Parser.UnfencedLookahead)
	assert.Equal(t, "file", cfg.Store.Type)
	assert.InDelta(t, 0.5, cfg.Telemetry.SampleRate, 1e-9)
	assert.Equal(t, []string{"stdout", "/var/log/briefkit.log"}, cfg.Log.OutputPaths)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "briefkit.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("store:\n  type: redis\n"), 0644))
	t.Setenv("APP_STORE_TYPE", "mongo")

	cfg, err := NewLoader().WithConfigPath(configPath).WithEnvPrefix("APP").Load()
	require.NoError(t, err)
	assert.Equal(t, "mongo", cfg.Store.Type)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("BRIEFKIT_SESSION_TTL", "forever")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BRIEFKIT_SESSION_TTL")
}

func TestLoader_Validators(t *testing.T) {
	cfg, err := NewLoader().WithValidator(func(c *Config) error { return c.Validate() }).Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	t.Setenv("BRIEFKIT_STORE_TYPE", "etcd")
	_, err = NewLoader().WithValidator(func(c *Config) error { return c.Validate() }).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store type")
}

// --- Validate 测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad http port", func(c *Config) { c.Server.HTTPPort = 0 }, "invalid HTTP port"},
		{"same ports", func(c *Config) { c.Server.MetricsPort = c.Server.HTTPPort }, "metrics port must differ"},
		{"negative ttl", func(c *Config) { c.Session.TTL = -time.Second }, "session ttl"},
		{"negative lookahead", func(c *Config) { c.Parser.UnfencedLookahead = -1 }, "unfenced_lookahead"},
		{"unknown tokenizer", func(c *Config) { c.Compression.Tokenizer = "bpe" }, "unknown tokenizer"},
		{"file without dir", func(c *Config) { c.Store.Type = "file"; c.Store.BaseDir = "" }, "base_dir"},
		{"redis without addr", func(c *Config) { c.Store.Type = "redis"; c.Redis.Addr = "" }, "redis addr"},
		{"bad driver", func(c *Config) { c.Store.Type = "database"; c.Database.Driver = "oracle" }, "unsupported database driver"},
		{"mongo without uri", func(c *Config) { c.Store.Type = "mongo"; c.Mongo.URI = "" }, "mongo uri"},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "invalid log level"},
		{"bad sample rate", func(c *Config) { c.Telemetry.SampleRate = 2 }, "sample_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.HTTPPort = -1
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid HTTP port")
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	pg := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", pg.DSN())

	my := DatabaseConfig{Driver: "mysql", Host: "db", Port: 3306, User: "u", Password: "p", Name: "n"}
	assert.Equal(t, "u:p@tcp(db:3306)/n?parseTime=true", my.DSN())

	lite := DatabaseConfig{Driver: "sqlite", Name: "/tmp/briefkit.db"}
	assert.Equal(t, "/tmp/briefkit.db", lite.DSN())

	assert.Empty(t, (&DatabaseConfig{Driver: "oracle"}).DSN())
}

func TestMustLoad_PanicsOnBadFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unclosed flow sequence", "server: [unclosed"},
		{"port is not a number", "server:\n  http_port: not-a-number"},
		{"session section is a scalar", "session: 30m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "bad.yaml")
			require.NoError(t, os.WriteFile(configPath, []byte(tt.content), 0644))

			_, err := NewLoader().WithConfigPath(configPath).Load()
			require.Error(t, err)
			assert.Panics(t, func() { MustLoad(configPath) })
		})
	}
}
