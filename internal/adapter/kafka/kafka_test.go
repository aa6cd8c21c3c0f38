package kafka

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/urban-heat-viewer/internal/config"
	"github.com/couchcryptid/urban-heat-viewer/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 7, 1, 15, 10, 0, 0, time.UTC)
	v := 87.123
	event := domain.ViewerEvent{
		Type:       domain.EventPixelInspected,
		OverlayID:  "overlay-3",
		URL:        "https://x/LST_Relative.pmtiles",
		Palette:    "relative_colors",
		Value:      &v,
		OccurredAt: now,
	}

	msg, err := serializeToMessage(event)
	require.NoError(t, err)

	assert.Equal(t, []byte("overlay-3"), msg.Key)
	assert.Equal(t, now, msg.Time)
	assert.JSONEq(t, `{
		"type": "pixel_inspected",
		"overlay_id": "overlay-3",
		"url": "https://x/LST_Relative.pmtiles",
		"palette": "relative_colors",
		"value": 87.123,
		"occurred_at": "2024-07-01T15:10:00Z"
	}`, string(msg.Value))
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte("pixel_inspected"), msg.Headers[0].Value)
	assert.Equal(t, "occurred_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)
}

func TestSerializeToMessage_OmitsEmptyValue(t *testing.T) {
	msg, err := serializeToMessage(domain.ViewerEvent{Type: domain.EventOverlaySelected, OverlayID: "overlay-1"})
	require.NoError(t, err)
	assert.NotContains(t, string(msg.Value), `"value"`)
	assert.NotContains(t, string(msg.Value), `"palette"`)
}

func TestWriter_PublishBatchEmpty(t *testing.T) {
	cfg := &config.Config{KafkaBrokers: []string{"localhost:1"}, KafkaEventsTopic: "viewer-activity"}
	w := NewWriter(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = w.Close() })

	require.NoError(t, w.PublishBatch(context.Background(), nil))
}
