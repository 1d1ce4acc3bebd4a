package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nsqio/go-nsq"

	"github.com/MrSnakeDoc/gallery/internal/gallery"
	"github.com/MrSnakeDoc/gallery/internal/logger"
	"github.com/MrSnakeDoc/gallery/internal/store"
)

// ConsumerConfig defines NSQ consume configuration.
type ConsumerConfig struct {
	NSQLookup []string // nsqlookupd HTTP addresses; takes precedence over NSQD
	NSQD      string   // nsqd TCP address used when no lookupd is configured
	Topic     string
	Channel   string
	Prefetch  int
	Workers   int
	Attempts  uint16
	Timeout   time.Duration // per message
}

// Processor merges a stored package. *publisher.Publisher implements it.
type Processor interface {
	PublishStored(ctx context.Context, blob string) (*gallery.Result, error)
}

type messageHandler struct {
	processor Processor
	timeout   time.Duration
	log       logger.Logger
}

// HandleMessage implements nsq.Handler. Returning nil FINs the message, an
// error REQueues it.
func (h *messageHandler) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	ev, err := DecodePublishEvent(m.Body)
	if err != nil {
		h.log.Error("dropping undecodable message", logger.Error(err))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if _, err := h.processor.PublishStored(ctx, ev.Blob); err != nil {
		if permanent(err) {
			h.log.Error("dropping publish event",
				logger.String("event_id", ev.ID.String()),
				logger.String("blob", ev.Blob),
				logger.Error(err))
			return nil
		}
		h.log.Warn("publish event failed, requeueing",
			logger.String("event_id", ev.ID.String()),
			logger.String("blob", ev.Blob),
			logger.Int("attempt", int(m.Attempts)),
			logger.Error(err))
		return err
	}
	return nil
}

// permanent reports errors a retry cannot fix.
func permanent(err error) bool {
	return errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, store.ErrInvalidName) ||
		errors.Is(err, gallery.ErrInvalidPackage) ||
		errors.Is(err, gallery.ErrInvalidManifest) ||
		errors.Is(err, gallery.ErrInvalidRequest)
}

// Consumer feeds publish events to a Processor.
type Consumer struct {
	consumer *nsq.Consumer
	cfg      ConsumerConfig
	log      logger.Logger
}

func NewConsumer(cfg ConsumerConfig, processor Processor, log logger.Logger) (*Consumer, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = cfg.Workers
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	nsqCfg := nsq.NewConfig()
	nsqCfg.MaxInFlight = cfg.Prefetch
	if cfg.Attempts > 0 {
		nsqCfg.MaxAttempts = cfg.Attempts
	}

	c, err := nsq.NewConsumer(cfg.Topic, cfg.Channel, nsqCfg)
	if err != nil {
		return nil, fmt.Errorf("create nsq consumer: %w", err)
	}
	c.SetLogger(newNSQLogger(log), nsq.LogLevelWarning)
	c.AddConcurrentHandlers(&messageHandler{processor: processor, timeout: cfg.Timeout, log: log}, cfg.Workers)

	return &Consumer{consumer: c, cfg: cfg, log: log}, nil
}

// Start connects to nsqlookupd, or straight to nsqd when no lookupd is set.
func (c *Consumer) Start() error {
	if len(c.cfg.NSQLookup) > 0 {
		return c.consumer.ConnectToNSQLookupds(c.cfg.NSQLookup)
	}
	return c.consumer.ConnectToNSQD(c.cfg.NSQD)
}

// Stop drains in-flight messages and waits for the handlers to return.
func (c *Consumer) Stop() {
	c.consumer.Stop()
	<-c.consumer.StopChan
}
