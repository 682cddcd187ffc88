package models

import "encoding/json"

// EventType tags a frame on the analysis progress stream.
type EventType string

// The closed set of recognized progress frame types. Anything else
// decodes as EventUnknown and is ignored, keeping the stream contract
// forward-compatible.
const (
	EventStageStart      EventType = "stage_start"
	EventStageComplete   EventType = "stage_complete"
	EventBatchStart      EventType = "batch_start"
	EventURLStart        EventType = "url_start"
	EventURLSuccess      EventType = "url_success"
	EventURLFailed       EventType = "url_failed"
	EventParsingComplete EventType = "parsing_complete"
	EventComplete        EventType = "complete"
	EventError           EventType = "error"
	EventHeartbeat       EventType = "heartbeat"
	EventUnknown         EventType = "unknown"
)

// ProgressEvent is one decoded frame from the progress stream.
type ProgressEvent struct {
	Type EventType `json:"type"`

	// Progress is the server-reported percentage, present on batch/url
	// frames. Nil when the frame carries no progress figure.
	Progress *float64 `json:"progress_percent,omitempty"`

	// Stage names the backend sub-stage on stage_start/stage_complete.
	Stage string `json:"stage,omitempty"`

	// URL identifies the page on url_* frames.
	URL string `json:"url,omitempty"`

	// Message carries the error text on error frames.
	Message string `json:"message,omitempty"`
}

// DecodeProgressEvent parses one frame payload. Unrecognized types are
// normalized to EventUnknown rather than rejected.
func DecodeProgressEvent(data []byte) (ProgressEvent, error) {
	var ev ProgressEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ProgressEvent{}, err
	}
	switch ev.Type {
	case EventStageStart, EventStageComplete, EventBatchStart,
		EventURLStart, EventURLSuccess, EventURLFailed,
		EventParsingComplete, EventComplete, EventError, EventHeartbeat:
	default:
		ev.Type = EventUnknown
	}
	return ev, nil
}

// Terminal reports whether the frame ends the stream.
func (e ProgressEvent) Terminal() bool {
	switch e.Type {
	case EventParsingComplete, EventComplete, EventError:
		return true
	}
	return false
}
