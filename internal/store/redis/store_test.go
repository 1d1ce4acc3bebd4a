package redis

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/gallery/internal/store/storetest"
)

// TestStore needs a disposable Redis database: GALLERY_TEST_REDIS_ADDR
// (ex: localhost:6379). The selected database is flushed.
func TestStore(t *testing.T) {
	addr := os.Getenv("GALLERY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("GALLERY_TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	ctx := context.Background()
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("FlushDB() error = %v", err)
	}
	s := NewStore(client)
	t.Cleanup(func() { _ = s.Close() })

	storetest.Run(t, s)
}

func TestExtractBlobName(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		want    string
		wantErr bool
	}{
		{name: "blob key", key: BlobKey("atom.xml"), want: "atom.xml"},
		{name: "prefix only", key: KeyPrefixBlob, wantErr: true},
		{name: "other prefix", key: "homepage:service:x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractBlobName(tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExtractBlobName(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ExtractBlobName(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}
