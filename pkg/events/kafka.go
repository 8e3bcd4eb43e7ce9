package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// KafkaConfig selects the brokers and topic for the notification stream
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// KafkaBus publishes and consumes envelopes on one Kafka topic
type KafkaBus struct {
	writer *kafka.Writer
	reader *kafka.Reader
	logger *logrus.Logger
}

// NewKafkaBus creates a bus. Alerts and websocket clients live in each
// instance's memory, so every instance reads the whole topic in a consumer
// group of its own derived from GroupID. A new group starts at the newest
// offset; a restarted instance with the same hostname resumes where it stopped.
func NewKafkaBus(cfg KafkaConfig, logger *logrus.Logger) *KafkaBus {
	host, err := os.Hostname()
	if err != nil {
		host = ""
	}
	group := instanceGroupID(cfg.GroupID, host)
	logger.WithField("group_id", group).Debug("Kafka relay consumer group")

	return &KafkaBus{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:           cfg.Brokers,
			GroupID:           group,
			StartOffset:       kafka.LastOffset,
			Topic:             cfg.Topic,
			HeartbeatInterval: 3 * time.Second,
			SessionTimeout:    30 * time.Second,
		}),
		logger: logger,
	}
}

// Publish writes evt keyed by booking id so one booking's events stay ordered
func (b *KafkaBus) Publish(ctx context.Context, evt Event) error {
	msg, err := encodeMessage(evt)
	if err != nil {
		return err
	}

	if err := b.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	b.logger.WithFields(logrus.Fields{
		"event_id":   evt.ID,
		"kind":       evt.Kind,
		"booking_id": evt.BookingID,
	}).Debug("Published notification event")

	return nil
}

// Subscribe reads the topic until ctx is done. Undecodable messages are logged
// and skipped.
func (b *KafkaBus) Subscribe(ctx context.Context, handler Handler) error {
	for {
		msg, err := b.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		evt, err := decodeMessage(msg)
		if err != nil {
			b.logger.WithError(err).WithField("offset", msg.Offset).Warn("Skipping malformed notification event")
			continue
		}

		if err := handler(ctx, evt); err != nil {
			return err
		}
	}
}

// Close flushes the writer and leaves the consumer group
func (b *KafkaBus) Close() error {
	return errors.Join(b.writer.Close(), b.reader.Close())
}

// instanceGroupID names this instance's consumer group. Without a hostname a
// random suffix is used, which leaves an abandoned group behind on restart.
func instanceGroupID(base, host string) string {
	if host == "" {
		host = uuid.NewString()
	}
	return base + "-" + host
}

func encodeMessage(evt Event) (kafka.Message, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	key := evt.BookingID
	if key == "" {
		key = evt.ID
	}

	return kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  evt.CreatedAt,
	}, nil
}

func decodeMessage(msg kafka.Message) (Event, error) {
	var evt Event
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	if evt.ID == "" {
		return Event{}, errors.New("event has no id")
	}
	return evt, nil
}
