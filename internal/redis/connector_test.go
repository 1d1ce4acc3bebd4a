package redis

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/MrSnakeDoc/gallery/internal/config"
	"github.com/MrSnakeDoc/gallery/internal/logger"
)

func validOptions() ConnectOptions {
	return ConnectOptions{
		Addr:           "127.0.0.1:1",
		ConnectTimeout: 200 * time.Millisecond,
		RetryInterval:  20 * time.Millisecond,
		MaxWait:        50 * time.Millisecond,
		PingTimeout:    50 * time.Millisecond,
		DialTimeout:    50 * time.Millisecond,
		WarnThreshold:  1,
	}
}

func TestConnectOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(o *ConnectOptions)
		wantErr string
	}{
		{name: "valid", mutate: func(*ConnectOptions) {}},
		{name: "no addr", mutate: func(o *ConnectOptions) { o.Addr = "" }, wantErr: "Addr"},
		{name: "no connect timeout", mutate: func(o *ConnectOptions) { o.ConnectTimeout = 0 }, wantErr: "ConnectTimeout"},
		{name: "no retry interval", mutate: func(o *ConnectOptions) { o.RetryInterval = 0 }, wantErr: "RetryInterval"},
		{name: "no max wait", mutate: func(o *ConnectOptions) { o.MaxWait = 0 }, wantErr: "MaxWait"},
		{name: "no ping timeout", mutate: func(o *ConnectOptions) { o.PingTimeout = 0 }, wantErr: "PingTimeout"},
		{name: "negative threshold", mutate: func(o *ConnectOptions) { o.WarnThreshold = -1 }, wantErr: "WarnThreshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := validOptions()
			tt.mutate(&opts)
			err := opts.Validate()
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

func TestBackoff(t *testing.T) {
	b := &backoff{next: time.Second, max: 5 * time.Second}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := b.wait(); got != w {
			t.Errorf("wait #%d = %v, want %v", i+1, got, w)
		}
	}
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	opts := validOptions()
	opts.Addr = ""
	if _, err := New(context.Background(), opts, logger.Nop()); err == nil {
		t.Fatal("New() error = nil without an address")
	}
}

func TestNewGivesUp(t *testing.T) {
	start := time.Now()
	client, err := New(context.Background(), validOptions(), logger.Nop())
	if err == nil {
		_ = client.Close()
		t.Fatal("New() error = nil for an unreachable address")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("New() took %v, want about the connect timeout", elapsed)
	}
}

func TestNewHonoursContext(t *testing.T) {
	opts := validOptions()
	opts.ConnectTimeout = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := New(ctx, opts, logger.Nop()); err == nil {
		t.Fatal("New() error = nil after the context expired")
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{RedisAddr: "redis:6379", RedisDB: 3, RedisPoolSize: 7, RedisConnectTimeout: time.Second}
	opts := OptionsFromConfig(cfg)
	if opts.Addr != "redis:6379" || opts.RedisDB != 3 || opts.PoolSize != 7 || opts.ConnectTimeout != time.Second {
		t.Errorf("OptionsFromConfig() = %+v", opts)
	}
}
