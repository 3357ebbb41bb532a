// Package events publishes ledger transaction events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"walletledger/internal/models"

	"github.com/segmentio/kafka-go"
)

// TransactionEvent is the message emitted whenever a transaction is recorded
// or changes status.
type TransactionEvent struct {
	TransactionID string     `json:"transaction_id"`
	Kind          string     `json:"kind"`
	Status        string     `json:"status"`
	Amount        int64      `json:"amount"`
	Currency      string     `json:"currency"`
	AccountID     *uint      `json:"account_id,omitempty"`
	FromAccountID *uint      `json:"from_account_id,omitempty"`
	ToAccountID   *uint      `json:"to_account_id,omitempty"`
	ExternalRef   string     `json:"external_ref,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	SettledAt     *time.Time `json:"settled_at,omitempty"`
}

// NewTransactionEvent snapshots a transaction.
func NewTransactionEvent(txn *models.Transaction) TransactionEvent {
	return TransactionEvent{
		TransactionID: txn.ID,
		Kind:          txn.Kind,
		Status:        txn.Status,
		Amount:        txn.Amount,
		Currency:      txn.Currency,
		AccountID:     txn.AccountID,
		FromAccountID: txn.FromAccountID,
		ToAccountID:   txn.ToAccountID,
		ExternalRef:   txn.ExternalRef,
		FailureReason: txn.FailureReason,
		CreatedAt:     txn.CreatedAt,
		SettledAt:     txn.SettledAt,
	}
}

// Publisher emits transaction events.
type Publisher interface {
	PublishTransaction(ctx context.Context, txn *models.Transaction) error
	Close() error
}

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures the Kafka writer.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

// KafkaPublisher writes events keyed by transaction ID so every status
// change of a transaction lands on the same partition.
type KafkaPublisher struct {
	writer MessageWriter
}

func NewKafkaPublisher(cfg KafkaConfig) *KafkaPublisher {
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}
	return NewKafkaPublisherWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: batchTimeout,
	})
}

func NewKafkaPublisherWithWriter(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) PublishTransaction(ctx context.Context, txn *models.Transaction) error {
	payload, err := json.Marshal(NewTransactionEvent(txn))
	if err != nil {
		return fmt.Errorf("failed to marshal transaction event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(txn.ID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(txn.Kind)},
			{Key: "status", Value: []byte(txn.Status)},
		},
		Time: time.Now().UTC(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish transaction event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishTransaction(context.Context, *models.Transaction) error { return nil }
func (NopPublisher) Close() error                                                  { return nil }
