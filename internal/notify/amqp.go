package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

// OneTimeCodeMessage is published for an external mail worker to deliver.
type OneTimeCodeMessage struct {
	Address   string    `json:"address"`
	Code      string    `json:"code"`
	Timestamp time.Time `json:"timestamp"`
}

// publisher is the part of *amqp091.Channel used to publish.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// AMQPSender hands codes to a message broker instead of mailing them itself.
type AMQPSender struct {
	conn         *amqp091.Connection
	channel      publisher
	closeChannel func() error
	exchangeName string
	queueName    string
	logger       *slog.Logger
}

// NewAMQPSender dials url and declares a durable direct exchange bound to a
// durable queue of the same routing key.
func NewAMQPSender(url, exchangeName, queueName string, logger *slog.Logger) (*AMQPSender, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declare(channel, exchangeName, queueName); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return &AMQPSender{
		conn:         conn,
		channel:      channel,
		closeChannel: channel.Close,
		exchangeName: exchangeName,
		queueName:    queueName,
		logger:       logger,
	}, nil
}

func declare(ch *amqp091.Channel, exchangeName, queueName string) error {
	if err := ch.ExchangeDeclare(exchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(queueName, queueName, exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

func (s *AMQPSender) SendOneTimeCode(ctx context.Context, address, code string) error {
	if address == "" {
		return ErrNoAddress
	}

	body, err := json.Marshal(OneTimeCodeMessage{Address: address, Code: code, Timestamp: time.Now()})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	msgID := uuid.NewString()
	err = s.channel.PublishWithContext(ctx,
		s.exchangeName,
		s.queueName,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    msgID,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	s.logger.InfoContext(ctx, "published one-time code message",
		"message_id", msgID,
		"exchange", s.exchangeName,
		"queue", s.queueName)
	return nil
}

// Close releases the channel and connection.
func (s *AMQPSender) Close() error {
	if s.closeChannel != nil {
		s.closeChannel()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
