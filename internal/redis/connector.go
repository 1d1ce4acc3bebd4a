package redis

import (
	"context"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/gallery/internal/config"
	"github.com/MrSnakeDoc/gallery/internal/logger"
)

// ConnectOptions defines the Redis client and how hard New tries to reach it.
type ConnectOptions struct {
	Addr         string // ex: "localhost:6379"
	User         string
	Password     string
	RedisDB      int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int

	ConnectTimeout time.Duration // total budget for the first successful ping (ex: 30s)
	RetryInterval  time.Duration // first wait between pings, doubled on each failure (ex: 2s)
	MaxWait        time.Duration // cap for the wait between pings (ex: 10s)
	PingTimeout    time.Duration // per ping (ex: 2s)
	WarnThreshold  int           // failed pings logged as warnings before escalating to errors
}

// OptionsFromConfig maps the Redis settings of cfg.
func OptionsFromConfig(cfg *config.Config) ConnectOptions {
	return ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		RedisDB:        cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}
}

func (o ConnectOptions) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.Addr, validation.Required),
		validation.Field(&o.ConnectTimeout, validation.Required, validation.Min(time.Duration(0))),
		validation.Field(&o.RetryInterval, validation.Required, validation.Min(time.Duration(0))),
		validation.Field(&o.MaxWait, validation.Required, validation.Min(time.Duration(0))),
		validation.Field(&o.PingTimeout, validation.Required, validation.Min(time.Duration(0))),
		validation.Field(&o.WarnThreshold, validation.Min(0)),
	)
}

func (o ConnectOptions) clientOptions() *redis.Options {
	return &redis.Options{
		Addr:         o.Addr,
		Username:     o.User,
		Password:     o.Password,
		DB:           o.RedisDB,
		DialTimeout:  o.DialTimeout,
		ReadTimeout:  o.ReadTimeout,
		WriteTimeout: o.WriteTimeout,
		PoolSize:     o.PoolSize,
	}
}

// New creates a Redis client and pings it until it answers, ConnectTimeout
// elapses or ctx is cancelled. The client is closed on failure.
func New(ctx context.Context, opts ConnectOptions, log logger.Logger) (*redis.Client, error) {
	if err := opts.Validate(); err != nil {
		log.Error("invalid redis options", logger.Error(err))
		return nil, fmt.Errorf("redis options: %w", err)
	}

	client := redis.NewClient(opts.clientOptions())
	if err := waitForPing(ctx, client, opts, log); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// backoff doubles the wait between attempts up to max.
type backoff struct {
	next time.Duration
	max  time.Duration
}

func (b *backoff) wait() time.Duration {
	d := b.next
	b.next *= 2
	if b.next > b.max {
		b.next = b.max
	}
	return d
}

func waitForPing(parent context.Context, client *redis.Client, opts ConnectOptions, log logger.Logger) error {
	ctx, cancel := context.WithTimeout(parent, opts.ConnectTimeout)
	defer cancel()

	addr := logger.String("addr", opts.Addr)
	log.Info("connecting to redis", addr, logger.Duration("timeout", opts.ConnectTimeout))

	start := time.Now()
	bo := &backoff{next: opts.RetryInterval, max: opts.MaxWait}

	for attempt := 1; ; attempt++ {
		pingCtx, pingCancel := context.WithTimeout(ctx, opts.PingTimeout)
		err := client.Ping(pingCtx).Err()
		pingCancel()

		if err == nil {
			if attempt > 1 {
				log.Warn("connected to redis after retry", addr,
					logger.Int("attempts", attempt),
					logger.Duration("elapsed", time.Since(start)))
			} else {
				log.Info("connected to redis", addr)
			}
			return nil
		}

		wait := bo.wait()
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Error("redis store unavailable - giving up", addr,
				logger.Int("attempts", attempt),
				logger.Duration("timeout", opts.ConnectTimeout),
				logger.Error(err))
			return fmt.Errorf("redis unavailable at %s after %d attempts (timeout: %v): %w",
				opts.Addr, attempt, opts.ConnectTimeout, err)
		case <-timer.C:
		}

		fields := []logger.Field{addr,
			logger.Int("attempt", attempt),
			logger.Duration("next_retry_in", wait),
			logger.Error(err)}
		switch {
		case timeLeft(ctx) < 10*time.Second:
			log.Error("redis still down - retrying but timeout approaching",
				append(fields, logger.Duration("remaining", timeLeft(ctx)))...)
		case attempt <= opts.WarnThreshold:
			log.Warn("redis connection failed, retrying", fields...)
		default:
			log.Error("redis still unavailable - connection attempts failing", fields...)
		}
	}
}

// timeLeft returns the remaining time before context deadline.
func timeLeft(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0
	}
	return time.Until(deadline)
}
