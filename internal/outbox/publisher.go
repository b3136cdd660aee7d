package outbox

import (
	"context"
	"strings"
	"time"

	"orderengine/internal/domain/model"

	"github.com/segmentio/kafka-go"
)

const headerEventID = "event_id"

// 送信先を差し替えられるように
type Publisher interface {
	Publish(ctx context.Context, events []model.OutboxEvent) error
	Close() error
}

type KafkaPublisher struct {
	w      *kafka.Writer
	prefix string
}

// topicはメッセージごとに付けるのでWriterには持たせない
func NewKafkaPublisher(brokers []string, topicPrefix string) *KafkaPublisher {
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			BatchTimeout:           50 * time.Millisecond,
		},
		prefix: strings.TrimSpace(topicPrefix),
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, events []model.OutboxEvent) error {
	if len(events) == 0 {
		return nil
	}
	return p.w.WriteMessages(ctx, toMessages(events, p.prefix)...)
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

// 同じkeyは同じパーティションに載るので注文ごとの順序は保たれる
func toMessages(events []model.OutboxEvent, prefix string) []kafka.Message {
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		msgs = append(msgs, kafka.Message{
			Topic:   prefix + ev.Topic,
			Key:     []byte(ev.Key),
			Value:   []byte(ev.Payload),
			Time:    ev.CreatedAt.UTC(),
			Headers: []kafka.Header{{Key: headerEventID, Value: []byte(ev.EventID)}},
		})
	}
	return msgs
}
