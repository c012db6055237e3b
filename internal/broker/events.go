package appkafka

import (
	"context"
	"encoding/json"
	"fmt"

	"example.com/popular/internal/models"
	"github.com/segmentio/kafka-go"
)

// EdgePublisher writes committed edge events to Kafka as JSON, keyed by the
// acting entity.
type EdgePublisher struct {
	writer KafkaWriter
}

func NewEdgePublisher(w KafkaWriter) *EdgePublisher {
	return &EdgePublisher{writer: w}
}

func (p *EdgePublisher) Publish(ctx context.Context, ev models.EdgeEvent) error {
	msg, err := EncodeEdgeEvent(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *EdgePublisher) Close() error {
	return p.writer.Close()
}

// EncodeEdgeEvent builds the Kafka message for ev.
func EncodeEdgeEvent(ev models.EdgeEvent) (kafka.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode edge event: %w", err)
	}
	return kafka.Message{
		Key:     []byte(ev.From),
		Value:   data,
		Headers: []kafka.Header{{Key: "kind", Value: []byte(ev.Kind)}},
		Time:    ev.At,
	}, nil
}

// DecodeEdgeEvent parses a message written by EdgePublisher.
func DecodeEdgeEvent(msg kafka.Message) (models.EdgeEvent, error) {
	var ev models.EdgeEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return ev, fmt.Errorf("decode edge event: %w", err)
	}
	if ev.Kind == "" || ev.From == "" || ev.To == "" {
		return ev, fmt.Errorf("decode edge event: missing kind or endpoints")
	}
	return ev, nil
}
