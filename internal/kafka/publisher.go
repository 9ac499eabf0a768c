package kafka

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/IBM/sarama"
	"github.com/trophy-arena/internal/config"
	"github.com/trophy-arena/internal/domain"
)

// Publisher emits match conclusion events to Kafka. Publishing is
// asynchronous and never blocks the caller; a full input buffer drops
// the event with a warning.
type Publisher struct {
	producer sarama.AsyncProducer
	topic    string
	logger   *slog.Logger
	wg       sync.WaitGroup
	done     chan struct{}
}

// NewPublisher creates a new match event publisher
func NewPublisher(cfg *config.KafkaConfig, logger *slog.Logger) (*Publisher, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Flush.Frequency = cfg.FlushInterval
	saramaConfig.Producer.Flush.Messages = cfg.FlushMessages
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("creating kafka producer: %w", err)
	}

	p := &Publisher{
		producer: producer,
		topic:    cfg.Topic,
		logger:   logger,
		done:     make(chan struct{}),
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for range producer.Successes() {
		}
	}()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for err := range producer.Errors() {
			p.logger.Error("kafka publish failed", "topic", p.topic, "error", err)
		}
	}()

	return p, nil
}

// PublishMatchEvent publishes a concluded match. Events are keyed by
// match ID so replays of the same match land on one partition.
func (p *Publisher) PublishMatchEvent(event domain.MatchEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to marshal match event", "match_id", event.MatchID, "error", err)
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.MatchID),
		Value: sarama.ByteEncoder(data),
	}

	select {
	case p.producer.Input() <- msg:
	case <-p.done:
	default:
		p.logger.Warn("kafka input buffer full, dropping event", "match_id", event.MatchID)
	}
}

// Close flushes pending events and shuts the producer down
func (p *Publisher) Close() error {
	close(p.done)
	p.producer.AsyncClose()
	p.wg.Wait()
	return nil
}
