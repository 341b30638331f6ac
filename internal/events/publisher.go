package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
)

const (
	BrokerKafka    = "kafka"
	BrokerRabbitMQ = "rabbitmq"
	BrokerLog      = "log"
)

// Publisher доставляет один сериализованный конверт, key - id заказа для партиционирования
type Publisher interface {
	Publish(ctx context.Context, key string, payload []byte) error
	Close() error
}

type KafkaPublisher struct {
	w *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, key string, payload []byte) error {
	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now(),
	})
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

type RabbitPublisher struct {
	conn     *amqp.Connection
	exchange string
}

func NewRabbitPublisher(url, exchange string) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &RabbitPublisher{conn: conn, exchange: exchange}, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, key string, payload []byte) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	return ch.PublishWithContext(ctx, p.exchange, "orders."+key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         payload,
	})
}

func (p *RabbitPublisher) Close() error {
	return p.conn.Close()
}

// LogPublisher только пишет события в лог, используется без брокера
type LogPublisher struct {
	log *slog.Logger
}

func NewLogPublisher(log *slog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, key string, payload []byte) error {
	p.log.Info("event published", slog.String("key", key), slog.String("payload", string(payload)))
	return nil
}

func (p *LogPublisher) Close() error { return nil }
