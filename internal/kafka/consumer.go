package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Domenick1991/travelbooking/internal/logger"
	"github.com/segmentio/kafka-go"
)

type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers []string, groupID, topic string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:           brokers,
			GroupID:           groupID,
			Topic:             topic,
			HeartbeatInterval: 3 * time.Second,
			SessionTimeout:    30 * time.Second,
		}),
	}
}

func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

// ConsumeVaultEvents decodes each message as a VaultEvent and hands it to
// handler. Undecodable messages are skipped. It returns when ctx is done.
func (c *Consumer) ConsumeVaultEvents(ctx context.Context, handler func(context.Context, VaultEvent) error) error {
	log := logger.GetLogger("kafka.consumer")
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		event, ok := DecodeVaultEvent(msg.Value)
		if !ok {
			log.Warnw("skipping undecodable vault event", "offset", msg.Offset, "partition", msg.Partition)
			continue
		}
		if err := handler(ctx, event); err != nil {
			return err
		}
	}
}

func DecodeVaultEvent(value []byte) (VaultEvent, bool) {
	var event VaultEvent
	if err := json.Unmarshal(value, &event); err != nil || event.Type == "" {
		return VaultEvent{}, false
	}
	return event, true
}
