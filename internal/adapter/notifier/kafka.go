// Package notifier implements the outbound notifier.send(target, payload)
// collaborator (SPEC_FULL.md §6) over Kafka/Redpanda using twmb/franz-go.
// The outbox relay is the only caller: delivery is at-least-once. The outbox
// row's Dispatched flag, not a transactional producer, records completion, so
// a crash between "message acked" and "row marked dispatched" produces the
// record again on the next relay pass.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/wholesalehub/orderbackbone/internal/domain"
)

// KafkaNotifier publishes outbox payloads to a single topic, keyed by the
// outbox row's dispatch target name (not by recipient vendor).
type KafkaNotifier struct {
	client *kgo.Client
	topic  string
}

// NewKafkaNotifier constructs a KafkaNotifier and ensures its topic exists.
func NewKafkaNotifier(brokers []string, topic string) (*KafkaNotifier, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no seed brokers provided")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic name cannot be empty")
	}

	kotelTracer := kotel.NewTracer(kotel.TracerProvider(otel.GetTracerProvider()))
	kotelService := kotel.NewKotel(kotel.WithTracer(kotelTracer))

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequestRetries(10),
		kgo.ProducerBatchMaxBytes(1_000_000),
		kgo.WithHooks(kotelService.Hooks()...),
	)
	if err != nil {
		return nil, fmt.Errorf("redpanda client: %w", err)
	}

	if err := ensureTopic(context.Background(), client, topic, 6, 1); err != nil {
		slog.Warn("failed to ensure notifier topic exists, it may already be present", slog.String("topic", topic), slog.Any("error", err))
	}

	return &KafkaNotifier{client: client, topic: topic}, nil
}

// Send implements domain.Notifier: it produces one record synchronously,
// using target as the partitioning key so all records for one dispatch
// target land on the same partition in produce order.
func (n *KafkaNotifier) Send(ctx domain.Context, target string, payload []byte) error {
	record := &kgo.Record{
		Topic: n.topic,
		Key:   []byte(target),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "target", Value: []byte(target)},
		},
	}

	result := n.client.ProduceSync(ctx, record)
	if err := result.FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", n.topic, err)
	}
	return nil
}

// Close releases the underlying Kafka client.
func (n *KafkaNotifier) Close() error {
	if n.client != nil {
		n.client.Close()
	}
	return nil
}

func ensureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32, replicationFactor int16) error {
	req := kmsg.NewCreateTopicsRequest()
	req.TimeoutMillis = int32(30 * time.Second / time.Millisecond)

	topicReq := kmsg.NewCreateTopicsRequestTopic()
	topicReq.Topic = topic
	topicReq.NumPartitions = partitions
	topicReq.ReplicationFactor = replicationFactor
	req.Topics = append(req.Topics, topicReq)

	resp, err := client.Request(ctx, &req)
	if err != nil {
		return fmt.Errorf("create topics request: %w", err)
	}
	createResp, ok := resp.(*kmsg.CreateTopicsResponse)
	if !ok {
		return fmt.Errorf("unexpected response type %T", resp)
	}
	for _, t := range createResp.Topics {
		const topicAlreadyExists = 36
		if t.ErrorCode != 0 && t.ErrorCode != topicAlreadyExists {
			msg := ""
			if t.ErrorMessage != nil {
				msg = *t.ErrorMessage
			}
			return fmt.Errorf("create topic %s: %s (code %d)", t.Topic, msg, t.ErrorCode)
		}
	}
	return nil
}
