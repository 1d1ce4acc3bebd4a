package deps

import (
	"net/http"
	"time"

	"github.com/MrSnakeDoc/gallery/internal/catalog"
	"github.com/MrSnakeDoc/gallery/internal/logger"
	"github.com/MrSnakeDoc/gallery/internal/messaging"
	"github.com/MrSnakeDoc/gallery/internal/metrics"
	"github.com/MrSnakeDoc/gallery/internal/publisher"
	"github.com/MrSnakeDoc/gallery/internal/store"
)

// Enqueuer hands a stored package to the publish workers.
type Enqueuer interface {
	Enqueue(blob string) (messaging.PublishEvent, error)
	Ping() error
}

// EventStream serves live publish notices.
type EventStream interface {
	http.Handler
	Clients() int
}

type Deps struct {
	Logger          logger.Logger
	StartTime       time.Time
	Version         string
	Commit          string
	BuildDate       string
	GoVersion       string
	TimeNow         func() time.Time     // for testing, defaults to time.Now
	AllowedHosts    []string             // Host headers allowed to access the server
	AllowedCIDRS    []string             // IPs allowed to access upload and infra endpoints
	TrustProxy      bool                 // true if running behind a trusted reverse proxy (e.g., cloudflared)
	CORSOrigins     []string             // origins allowed to call the read API from a browser
	RequestTimeout  time.Duration        // per-request timeout, uploads excluded
	StorageBackend  string               // name of the configured store, for /infra
	Store           store.Store          // blob store holding packages, icons and the feed
	Publisher       *publisher.Publisher // merges packages into the feed
	Catalog         *catalog.Index       // parsed feed for the read API
	Producer        Enqueuer             // nil => uploads are merged inline
	Events          EventStream          // nil => /api/events disabled
	Metrics         *metrics.Metrics     // nil => /metrics disabled
	ReloadTrigger   chan struct{}        // Channel to trigger a catalog reload
	UploadTokenHash string               // bcrypt hash of the upload bearer token, empty = open
	MaxUploadBytes  int64                // largest accepted package body
	UploadBurst     int                  // upload rate limit bucket size per IP
	UploadPerMin    int                  // upload refill rate per IP
}
