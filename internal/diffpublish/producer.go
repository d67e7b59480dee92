// Package diffpublish optionally ships each cycle's per-coordinate diff
// report to Kafka, implementing scheduler.Publisher. Publishing is
// entirely optional: a nil Publisher in the scheduler disables it.
package diffpublish

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"

	"github.com/route-beacon/routecache/internal/diffengine"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl"
	"go.uber.org/zap"
)

// Producer publishes diff reports to a single Kafka topic, keyed by
// device so a consumer can partition by device for ordering.
type Producer struct {
	client *kgo.Client
	topic  string
	logger *zap.Logger
}

func NewProducer(brokers []string, topic, clientID string, tlsCfg *tls.Config, saslMech sasl.Mechanism, logger *zap.Logger) (*Producer, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.DefaultProduceTopic(topic),
	}
	if tlsCfg != nil {
		opts = append(opts, kgo.DialTLSConfig(tlsCfg))
	}
	if saslMech != nil {
		opts = append(opts, kgo.SASL(saslMech))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("diffpublish: new client: %w", err)
	}
	return &Producer{client: client, topic: topic, logger: logger}, nil
}

// Publish encodes one coordinate's diff report as JSON and produces it
// synchronously; the scheduler waits for it, logs a warning on failure,
// and carries on with the cycle (spec: publishing has no bearing on the
// snapshot/diff persistence contract).
func (p *Producer) Publish(ctx context.Context, device string, report diffengine.CoordinateReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("diffpublish: marshal report: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(device),
		Value: payload,
	}

	results := p.client.ProduceSync(ctx, record)
	if err := results.FirstErr(); err != nil {
		return fmt.Errorf("diffpublish: produce: %w", err)
	}
	return nil
}

func (p *Producer) Close() {
	p.client.Close()
}
