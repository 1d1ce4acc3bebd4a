package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRequireEnv(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		value     string
		shouldSet bool
		wantPanic bool
	}{
		{
			name:      "variable set",
			key:       "TEST_VAR",
			value:     "test_value",
			shouldSet: true,
			wantPanic: false,
		},
		{
			name:      "variable not set",
			key:       "TEST_VAR_MISSING",
			shouldSet: false,
			wantPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldSet {
				if err := os.Setenv(tt.key, tt.value); err != nil {
					t.Fatalf("failed to set env var: %v", err)
				}
				defer func() {
					if err := os.Unsetenv(tt.key); err != nil {
						t.Errorf("failed to unset env var: %v", err)
					}
				}()
			}

			if tt.wantPanic {
				defer func() {
					if r := recover(); r == nil {
						t.Errorf("requireEnv() should have panicked")
					}
				}()
			}

			result := requireEnv(tt.key)
			if !tt.wantPanic && result != tt.value {
				t.Errorf("requireEnv() = %v, want %v", result, tt.value)
			}
		})
	}
}

func TestMustDuration(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      time.Duration
		expected time.Duration
	}{
		{
			name:     "valid duration",
			key:      "TEST_DURATION",
			value:    "5s",
			def:      1 * time.Second,
			expected: 5 * time.Second,
		},
		{
			name:     "invalid duration uses default",
			key:      "TEST_DURATION_INVALID",
			value:    "invalid",
			def:      10 * time.Second,
			expected: 10 * time.Second,
		},
		{
			name:     "missing variable uses default",
			key:      "TEST_DURATION_MISSING",
			value:    "",
			def:      15 * time.Second,
			expected: 15 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				if err := os.Setenv(tt.key, tt.value); err != nil {
					t.Fatalf("failed to set env var: %v", err)
				}
				defer func() {
					if err := os.Unsetenv(tt.key); err != nil {
						t.Errorf("failed to unset env var: %v", err)
					}
				}()
			}

			result := mustDuration(tt.key, tt.def)
			if result != tt.expected {
				t.Errorf("mustDuration() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMustBool(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      bool
		expected bool
	}{
		{
			name:     "true value",
			key:      "TEST_BOOL",
			value:    "true",
			def:      false,
			expected: true,
		},
		{
			name:     "false value",
			key:      "TEST_BOOL_FALSE",
			value:    "false",
			def:      true,
			expected: false,
		},
		{
			name:     "invalid value uses default",
			key:      "TEST_BOOL_INVALID",
			value:    "invalid",
			def:      true,
			expected: true,
		},
		{
			name:     "missing variable uses default",
			key:      "TEST_BOOL_MISSING",
			value:    "",
			def:      false,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				if err := os.Setenv(tt.key, tt.value); err != nil {
					t.Fatalf("failed to set env var: %v", err)
				}
				defer func() {
					if err := os.Unsetenv(tt.key); err != nil {
						t.Errorf("failed to unset env var: %v", err)
					}
				}()
			}

			result := mustBool(tt.key, tt.def)
			if result != tt.expected {
				t.Errorf("mustBool() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gallery.yaml")
	content := `
base_url: https://gallery.example.com/blobs/
storage: sqlite
publish_attempts: 7
allowed_hosts:
  - gallery.example.com
  - localhost:8080
drop_dir:
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	values, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	want := map[string]string{
		"base_url":         "https://gallery.example.com/blobs/",
		"storage":          "sqlite",
		"publish_attempts": "7",
		"allowed_hosts":    "gallery.example.com,localhost:8080",
	}
	if len(values) != len(want) {
		t.Errorf("LoadFile() = %v, want %v", values, want)
	}
	for k, v := range want {
		if values[k] != v {
			t.Errorf("LoadFile()[%s] = %q, want %q", k, values[k], v)
		}
	}
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "nested.yaml")
	if err := os.WriteFile(nested, []byte("redis:\n  addr: x\n"), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	broken := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(broken, []byte("a: [unterminated"), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	for _, path := range []string{filepath.Join(dir, "missing.yaml"), nested, broken} {
		if _, err := LoadFile(path); err == nil {
			t.Errorf("LoadFile(%s) error = nil", filepath.Base(path))
		}
	}
}

func TestEnvOverridesFile(t *testing.T) {
	fileValues = map[string]string{"feed_title": "From file", "reload_interval": "1m"}
	defer func() { fileValues = nil }()
	t.Setenv("GALLERY_FEED_TITLE", "From env")

	if got := getenv("GALLERY_FEED_TITLE", "default"); got != "From env" {
		t.Errorf("getenv() = %q, want env value", got)
	}
	if got := mustDuration("GALLERY_RELOAD_INTERVAL", time.Hour); got != time.Minute {
		t.Errorf("mustDuration() = %v, want file value", got)
	}
	if got := getenv("GALLERY_FEED_ID", "default"); got != "default" {
		t.Errorf("getenv() = %q, want default", got)
	}
}

func validConfig() *Config {
	return &Config{
		ListenPort:      ":8080",
		LogLevel:        "info",
		BaseURL:         "https://gallery.example.com/blobs/",
		FeedName:        "atom.xml",
		PublishAttempts: 5,
		MaxUploadBytes:  1 << 20,
		StorageBackend:  BackendMemory,
		NSQWorkers:      1,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "bad base url", mutate: func(c *Config) { c.BaseURL = "not a url" }, wantErr: "BaseURL"},
		{name: "unknown backend", mutate: func(c *Config) { c.StorageBackend = "s3" }, wantErr: "StorageBackend"},
		{name: "redis without addr", mutate: func(c *Config) { c.StorageBackend = BackendRedis }, wantErr: "RedisAddr"},
		{name: "redis without password", mutate: func(c *Config) {
			c.StorageBackend = BackendRedis
			c.RedisAddr = "localhost:6379"
			c.RedisPasswordRequired = true
		}, wantErr: "RedisPassword"},
		{name: "redis without password allowed", mutate: func(c *Config) {
			c.StorageBackend = BackendRedis
			c.RedisAddr = "localhost:6379"
		}},
		{name: "sqlite without path", mutate: func(c *Config) { c.StorageBackend = BackendSQLite }, wantErr: "SQLitePath"},
		{name: "nsq without topic", mutate: func(c *Config) { c.NSQDAddr = "localhost:4150" }, wantErr: "NSQTopic"},
		{name: "zero attempts", mutate: func(c *Config) { c.PublishAttempts = 0 }, wantErr: "PublishAttempts"},
		{name: "token not a bcrypt hash", mutate: func(c *Config) { c.UploadTokenHash = "secret" }, wantErr: "UploadTokenHash"},
		{name: "bad cidr", mutate: func(c *Config) { c.AllowedCIDRS = []string{"10.0.0.0/8", "intranet"} }, wantErr: "AllowedCIDRS"},
		{name: "cidrs and ips", mutate: func(c *Config) { c.AllowedCIDRS = []string{"10.0.0.0/8", "::1"} }},
		{name: "token hash", mutate: func(c *Config) {
			c.UploadTokenHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gallery.yaml")
	if err := os.WriteFile(path, []byte("base_url: https://gallery.example.com/\nstorage: SQLite\n"), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	defer func() { fileValues = nil }()
	t.Setenv("GALLERY_CONFIG_FILE", path)
	t.Setenv("GALLERY_SQLITE_PATH", filepath.Join(t.TempDir(), "gallery.db"))
	t.Setenv("GALLERY_ALLOWED_CIDRS", "10.0.0.0/8, 127.0.0.1")

	cfg := Load()
	if cfg.BaseURL != "https://gallery.example.com/" || cfg.StorageBackend != BackendSQLite {
		t.Errorf("Load() = %+v", cfg)
	}
	if len(cfg.AllowedCIDRS) != 2 || cfg.FeedName != "atom.xml" || cfg.PublishAttempts != 5 {
		t.Errorf("Load() defaults = %+v", cfg)
	}
}

func TestLoadPanicsWithoutBaseURL(t *testing.T) {
	t.Setenv("GALLERY_BASE_URL", "")
	t.Setenv("GALLERY_CONFIG_FILE", "")
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Load() should have panicked")
		}
	}()
	Load()
}
