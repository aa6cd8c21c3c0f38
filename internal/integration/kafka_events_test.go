//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/urban-heat-viewer/internal/adapter/kafka"
	"github.com/couchcryptid/urban-heat-viewer/internal/config"
	"github.com/couchcryptid/urban-heat-viewer/internal/domain"
	"github.com/couchcryptid/urban-heat-viewer/internal/events"
	"github.com/couchcryptid/urban-heat-viewer/internal/observability"
)

const testEventsTopic = "test-viewer-activity"

type publishedEvent struct {
	Event   domain.ViewerEvent
	Key     string
	Headers map[string]string
}

func readEvent(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedEvent {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from events topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var event domain.ViewerEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	return publishedEvent{Event: event, Key: string(msg.Key), Headers: headers}
}

// TestEmitterPublishesToKafka runs the emitter against a real broker and
// reads the events back in order.
func TestEmitterPublishesToKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testEventsTopic)

	cfg := &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaEventsTopic:   testEventsTopic,
		BatchSize:          2,
		BatchFlushInterval: 100 * time.Millisecond,
	}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	emitter := events.NewEmitter(writer, cfg.BatchSize, cfg.BatchFlushInterval, discardLogger(), metrics)

	runCtx, stop := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- emitter.Run(runCtx) }()

	occurred := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	value := 91.25
	emitter.Emit(domain.ViewerEvent{
		Type:       domain.EventOverlaySelected,
		OverlayID:  "overlay-1",
		URL:        "https://x/b_Relative.pmtiles",
		Palette:    "relative_colors",
		OccurredAt: occurred,
	})
	emitter.Emit(domain.ViewerEvent{
		Type:       domain.EventPixelInspected,
		OverlayID:  "overlay-1",
		URL:        "https://x/b_Relative.pmtiles",
		Palette:    "relative_colors",
		Value:      &value,
		OccurredAt: occurred.Add(time.Second),
	})

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testEventsTopic,
		GroupID:     fmt.Sprintf("test-events-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	first := readEvent(ctx, t, consumer)
	second := readEvent(ctx, t, consumer)

	stop()
	require.NoError(t, <-errCh)

	assert.Equal(t, "overlay-1", first.Key)
	assert.Equal(t, domain.EventOverlaySelected, first.Event.Type)
	assert.Equal(t, "overlay_selected", first.Headers["event_type"])
	assert.Equal(t, occurred.Format(time.RFC3339), first.Headers["occurred_at"])

	assert.Equal(t, domain.EventPixelInspected, second.Event.Type)
	require.NotNil(t, second.Event.Value)
	assert.InDelta(t, 91.25, *second.Event.Value, 1e-9)
}
