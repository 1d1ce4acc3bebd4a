package config

import (
	"fmt"
	"log"
	"net/netip"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// EnvPrefix is stripped from variable names to find their key in the config
// file: GALLERY_BASE_URL reads base_url.
const EnvPrefix = "GALLERY_"

var bcryptHash = regexp.MustCompile(`^\$2[aby]?\$\d{2}\$[./A-Za-z0-9]{53}$`)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Gallery
	BaseURL         string        // public URL packages and icons are served from (ex: https://gallery.domain.ext/blobs/)
	FeedID          string        // feed <id> for new feeds
	FeedTitle       string        // feed <title> for new feeds
	FeedName        string        // store name of the feed (default: atom.xml)
	PublishAttempts int           // compare-and-swap rounds before giving up
	PublishBackoff  time.Duration // base wait between rounds
	MaxUploadBytes  int64         // largest accepted package body
	UploadTokenHash string        // bcrypt hash of the upload bearer token (empty = no token)
	ReloadInterval  time.Duration // interval to reload the catalog from the store
	DropDir         string        // watched folder for .vsix files (empty = disabled)
	DropDebounce    time.Duration // quiet period before a dropped file is published

	// Storage
	StorageBackend string // memory | redis | sqlite
	SQLitePath     string // sqlite database file

	// NSQ (empty NSQDAddr = publish inline)
	NSQDAddr     string   // ex: "localhost:4150"
	NSQLookupd   []string // consumer discovery, falls back to NSQDAddr
	NSQTopic     string
	NSQChannel   string
	NSQWorkers   int
	NSQAttempts  int
	NSQTimeout   time.Duration
	NSQConsumers bool // run consumers in this process

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	AllowedHosts   []string      // optional, restrict access to specific Host headers
	AllowedCIDRS   []string      // optional, restrict access to specific IP (e.g. "1.2.3.4, 5.6.7.8")
	TrustProxy     bool          // true => trust X-Forwarded-For headers (e.g. cloudflared)
	CORSOrigins    []string      // allowed CORS origins for the read API
	UploadBurst    int           // upload rate limit bucket size per IP
	UploadPerMin   int           // upload refill rate per IP
	RequestTimeout time.Duration // per-request timeout for the API
}

// fileValues holds the defaults read from GALLERY_CONFIG_FILE.
var fileValues map[string]string

func Load() *Config {
	if path := os.Getenv(EnvPrefix + "CONFIG_FILE"); path != "" {
		values, err := LoadFile(path)
		if err != nil {
			panic(fmt.Sprintf("❌ FATAL: %v", err))
		}
		fileValues = values
	}

	cfg := &Config{
		// Server settings
		ListenPort:      getenv("GALLERY_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("GALLERY_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("GALLERY_REQUEST_TIMEOUT", 30*time.Second),

		// Logging
		LogLevel:  getenv("GALLERY_LOG_LEVEL", "info"),
		PrettyLog: mustBool("GALLERY_PRETTY_LOG", true),

		// Gallery
		BaseURL:         requireEnv("GALLERY_BASE_URL"),
		FeedID:          getenv("GALLERY_FEED_ID", "Gallery"),
		FeedTitle:       getenv("GALLERY_FEED_TITLE", "Gallery"),
		FeedName:        getenv("GALLERY_FEED_NAME", "atom.xml"),
		PublishAttempts: getenvInt("GALLERY_PUBLISH_ATTEMPTS", 5),
		PublishBackoff:  mustDuration("GALLERY_PUBLISH_BACKOFF", 50*time.Millisecond),
		MaxUploadBytes:  int64(getenvInt("GALLERY_MAX_UPLOAD_BYTES", 64<<20)),
		UploadTokenHash: getenv("GALLERY_UPLOAD_TOKEN_HASH", ""),
		ReloadInterval:  mustDuration("GALLERY_RELOAD_INTERVAL", 5*time.Minute),
		DropDir:         getenv("GALLERY_DROP_DIR", ""),
		DropDebounce:    mustDuration("GALLERY_DROP_DEBOUNCE", 500*time.Millisecond),

		// Storage
		StorageBackend: strings.ToLower(getenv("GALLERY_STORAGE", BackendMemory)),
		SQLitePath:     getenv("GALLERY_SQLITE_PATH", "/data/gallery.db"),

		// NSQ
		NSQDAddr:     getenv("GALLERY_NSQD_ADDR", ""),
		NSQLookupd:   splitAndTrim(getenv("GALLERY_NSQLOOKUPD_ADDRS", "")),
		NSQTopic:     getenv("GALLERY_NSQ_TOPIC", "gallery-publish"),
		NSQChannel:   getenv("GALLERY_NSQ_CHANNEL", "gallery"),
		NSQWorkers:   getenvInt("GALLERY_NSQ_WORKERS", 1),
		NSQAttempts:  getenvInt("GALLERY_NSQ_MAX_ATTEMPTS", 10),
		NSQTimeout:   mustDuration("GALLERY_NSQ_TIMEOUT", 30*time.Second),
		NSQConsumers: mustBool("GALLERY_NSQ_CONSUME", true),

		// Redis settings
		RedisAddr:             getenv("GALLERY_REDIS_ADDR", ""),
		RedisUser:             getenv("GALLERY_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("GALLERY_REDIS_PASSWORD_REQUIRED", true),
		RedisPassword:         getenv("GALLERY_REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("GALLERY_REDIS_DB", 0),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("GALLERY_ALLOWED_HOSTS", "")),
		AllowedCIDRS: parseAllowedIPs(getenv("GALLERY_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("GALLERY_TRUST_PROXY", true),
		CORSOrigins:  splitAndTrim(getenv("GALLERY_CORS_ORIGINS", "*")),
		UploadBurst:  getenvInt("GALLERY_UPLOAD_BURST", 10),
		UploadPerMin: getenvInt("GALLERY_UPLOAD_PER_MIN", 30),
	}

	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("❌ FATAL: invalid configuration: %v", err))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", cfg.Redacted())
	}

	return cfg
}

// Validate checks cross-field constraints Load cannot express with defaults.
func (c *Config) Validate() error {
	redis := c.StorageBackend == BackendRedis
	return validation.ValidateStruct(c,
		validation.Field(&c.ListenPort, validation.Required),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.FeedName, validation.Required),
		validation.Field(&c.PublishAttempts, validation.Min(1)),
		validation.Field(&c.MaxUploadBytes, validation.Min(int64(1))),
		validation.Field(&c.StorageBackend, validation.Required, validation.In(BackendMemory, BackendRedis, BackendSQLite)),
		validation.Field(&c.SQLitePath, validation.When(c.StorageBackend == BackendSQLite, validation.Required)),
		validation.Field(&c.RedisAddr, validation.When(redis, validation.Required)),
		validation.Field(&c.RedisPassword, validation.When(redis && c.RedisPasswordRequired, validation.Required)),
		validation.Field(&c.NSQTopic, validation.When(c.NSQDAddr != "", validation.Required)),
		validation.Field(&c.NSQChannel, validation.When(c.NSQDAddr != "" && c.NSQConsumers, validation.Required)),
		validation.Field(&c.NSQWorkers, validation.Min(1)),
		validation.Field(&c.UploadTokenHash, validation.When(c.UploadTokenHash != "", validation.Match(bcryptHash))),
		validation.Field(&c.AllowedCIDRS, validation.Each(validation.By(ipOrCIDR))),
	)
}

func ipOrCIDR(value interface{}) error {
	s, _ := value.(string)
	if _, err := netip.ParsePrefix(s); err == nil {
		return nil
	}
	if _, err := netip.ParseAddr(s); err == nil {
		return nil
	}
	return fmt.Errorf("%q is neither an IP nor a CIDR", s)
}

// Redacted returns a copy safe to log.
func (c *Config) Redacted() Config {
	cp := *c
	if cp.RedisPassword != "" {
		cp.RedisPassword = "***REDACTED***"
	}
	if cp.RedisUser != "" {
		cp.RedisUser = "***REDACTED***"
	}
	if cp.UploadTokenHash != "" {
		cp.UploadTokenHash = "***REDACTED***"
	}
	return cp
}

// LoadFile reads a YAML config file into flat defaults. Keys are the variable
// names without the GALLERY_ prefix, lower-cased; lists become comma separated.
func LoadFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		key := strings.ToLower(strings.TrimSpace(k))
		switch val := v.(type) {
		case nil:
			continue
		case []interface{}:
			parts := make([]string, 0, len(val))
			for _, item := range val {
				parts = append(parts, fmt.Sprint(item))
			}
			values[key] = strings.Join(parts, ",")
		case map[string]interface{}:
			return nil, fmt.Errorf("config file %s: key %q must be a scalar or a list", path, k)
		default:
			values[key] = fmt.Sprint(val)
		}
	}
	return values, nil
}

// helpers

// lookup reads key from the environment, then from the config file.
func lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fileValues[strings.ToLower(strings.TrimPrefix(key, EnvPrefix))]
}

func getenv(key, def string) string {
	if v := lookup(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := lookup(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := lookup(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := lookup(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := lookup(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
