package messaging

import (
	"fmt"
	"time"

	"github.com/nsqio/go-nsq"

	"github.com/MrSnakeDoc/gallery/internal/logger"
)

// ProducerConfig defines NSQ publish configuration.
type ProducerConfig struct {
	Host  string // nsqd TCP address, ex: "localhost:4150"
	Topic string
}

// Producer publishes events to a single topic.
type Producer struct {
	producer *nsq.Producer
	topic    string
	log      logger.Logger
}

// NewProducer connects to nsqd and checks it answers.
func NewProducer(cfg ProducerConfig, log logger.Logger) (*Producer, error) {
	p, err := nsq.NewProducer(cfg.Host, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("create nsq producer: %w", err)
	}
	p.SetLogger(newNSQLogger(log), nsq.LogLevelWarning)
	if err := p.Ping(); err != nil {
		p.Stop()
		return nil, fmt.Errorf("nsqd unavailable at %s: %w", cfg.Host, err)
	}
	return &Producer{producer: p, topic: cfg.Topic, log: log}, nil
}

// Enqueue asks a worker to merge the stored package blob.
func (p *Producer) Enqueue(blob string) (PublishEvent, error) {
	ev := NewPublishEvent(blob, time.Now())
	body, err := ev.Marshal()
	if err != nil {
		return ev, fmt.Errorf("encode publish event: %w", err)
	}
	if err := p.producer.Publish(p.topic, body); err != nil {
		return ev, fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	p.log.Debug("publish event queued",
		logger.String("event_id", ev.ID.String()),
		logger.String("blob", blob))
	return ev, nil
}

func (p *Producer) Ping() error { return p.producer.Ping() }

func (p *Producer) Stop() { p.producer.Stop() }
