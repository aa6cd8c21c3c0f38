package domain

import "time"

// EventType names a viewer activity.
type EventType string

const (
	EventOverlaySelected EventType = "overlay_selected"
	EventPixelInspected  EventType = "pixel_inspected"
)

// ViewerEvent is one entry of the activity stream.
type ViewerEvent struct {
	Type       EventType `json:"type"`
	OverlayID  string    `json:"overlay_id"`
	URL        string    `json:"url"`
	Palette    string    `json:"palette,omitempty"`
	Value      *float64  `json:"value,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventSink accepts activity events. Implementations must not block the caller.
type EventSink interface {
	Emit(event ViewerEvent)
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Emit(ViewerEvent) {}
