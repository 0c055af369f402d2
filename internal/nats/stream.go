package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/channeldesk/dialog-engine/internal/model"
)

const (
	// StreamName is the name of the dialog audit stream.
	StreamName = "DIALOG"

	// SubjectPrefix is the prefix for all dialog audit subjects.
	SubjectPrefix = "dialog"

	// OutboundPrefix is the prefix for per-channel outbound delivery
	// subjects consumed by the wire adapters.
	OutboundPrefix = "outbound"
)

// StreamManager handles JetStream stream operations for the dialog engine.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream ensures the dialog stream exists with proper configuration.
// It covers both the audit subjects and the outbound delivery subjects so
// wire adapters replay missed sends after downtime.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	// Check if stream exists
	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil // Stream already exists
	}

	// Create stream
	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name: StreamName,
		Subjects: []string{
			fmt.Sprintf("%s.>", SubjectPrefix),
			fmt.Sprintf("%s.>", OutboundPrefix),
		},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      365 * 24 * time.Hour,
		MaxBytes:    100 * 1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		DenyDelete:  true,
		DenyPurge:   true,
		Description: "Dialog engine audit records and outbound deliveries",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// AuditSubject returns the subject for an audit record.
func AuditSubject(key model.ConversationKey, kind model.AuditKind) string {
	return fmt.Sprintf("%s.%s.%s.%s.%s", SubjectPrefix, key.TenantID, key.ChannelID, key.ContactID, kind)
}

// HandoffSubject returns the subject for a tenant's handoff requests.
func HandoffSubject(tenantID string) string {
	return fmt.Sprintf("%s.handoff.%s", SubjectPrefix, tenantID)
}

// OutboundSubject returns the delivery subject a channel's wire adapter
// subscribes to.
func OutboundSubject(key model.ConversationKey) string {
	return fmt.Sprintf("%s.%s.%s.%s", OutboundPrefix, key.ChannelID, key.TenantID, key.ContactID)
}

// ConversationFilter returns the filter subject for all audit records of a
// conversation.
func ConversationFilter(key model.ConversationKey) string {
	return fmt.Sprintf("%s.%s.%s.%s.>", SubjectPrefix, key.TenantID, key.ChannelID, key.ContactID)
}

// PublishAudit publishes an audit record to JetStream.
func (m *StreamManager) PublishAudit(ctx context.Context, record *model.AuditRecord) (uint64, error) {
	subject := AuditSubject(record.Key, record.Kind)

	data, err := json.Marshal(record)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal audit record: %w", err)
	}

	ack, err := m.client.JetStream().Publish(ctx, subject, data)
	if err != nil {
		return 0, fmt.Errorf("failed to publish audit record: %w", err)
	}

	return ack.Sequence, nil
}

// Publish publishes an arbitrary payload to a subject within the stream.
func (m *StreamManager) Publish(ctx context.Context, subject string, v any) (uint64, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal payload: %w", err)
	}

	ack, err := m.client.JetStream().Publish(ctx, subject, data)
	if err != nil {
		return 0, fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	return ack.Sequence, nil
}

// GetAuditRecords retrieves audit records for a conversation starting
// after a sequence, via an ephemeral consumer.
func (m *StreamManager) GetAuditRecords(ctx context.Context, key model.ConversationKey, afterSequence uint64, limit int) ([]model.AuditRecord, uint64, bool, error) {
	js := m.client.JetStream()

	consumerConfig := jetstream.ConsumerConfig{
		FilterSubject: ConversationFilter(key),
		AckPolicy:     jetstream.AckNonePolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	}

	if afterSequence > 0 {
		consumerConfig.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		consumerConfig.OptStartSeq = afterSequence + 1
	}

	consumer, err := js.CreateConsumer(ctx, StreamName, consumerConfig)
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to create consumer: %w", err)
	}

	var records []model.AuditRecord
	var lastSequence uint64

	batch, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to fetch audit records: %w", err)
	}

	for msg := range batch.Messages() {
		var record model.AuditRecord
		if err := json.Unmarshal(msg.Data(), &record); err != nil {
			continue
		}

		meta, err := msg.Metadata()
		if err == nil {
			record.Sequence = meta.Sequence.Stream
			lastSequence = meta.Sequence.Stream
		}

		records = append(records, record)
	}

	if batch.Error() != nil && batch.Error() != context.DeadlineExceeded {
		return nil, 0, false, fmt.Errorf("batch error: %w", batch.Error())
	}

	hasMore := len(records) == limit

	return records, lastSequence, hasMore, nil
}
