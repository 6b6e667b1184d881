package model

import "time"

// WebSocket event kinds
const (
	EventTypeConnected = "connected"
	EventTypeProgress  = "progress"
	EventTypeResult    = "result"
	EventTypeError     = "error"
	EventTypeCancelled = "cancelled"
	EventTypePing      = "ping"
	EventTypePong      = "pong"
)

// Async error classification codes carried on error events
const (
	ErrCodeTimeout             = "TIMEOUT"
	ErrCodeTemplateFetchFailed = "TEMPLATE_FETCH_FAILED"
	ErrCodePersistenceFailed   = "PERSISTENCE_FAILED"
	ErrCodeProcessingError     = "PROCESSING_ERROR"
)

// Event is one message on a job's progress stream. Events are ephemeral:
// delivered at most once per consumer connection, never persisted.
type Event struct {
	Type      string          `json:"type"`
	ProjectID string          `json:"project_id,omitempty"`
	Progress  int             `json:"progress,omitempty"`
	Message   string          `json:"message,omitempty"`
	ErrorCode string          `json:"error_code,omitempty"`
	Result    *GenerateResult `json:"result,omitempty"`
	Timestamp float64         `json:"timestamp,omitempty"`
}

func newEvent(eventType, projectID string) Event {
	return Event{
		Type:      eventType,
		ProjectID: projectID,
		Timestamp: float64(time.Now().UnixMilli()) / 1000.0,
	}
}

// ProgressEvent builds a progress update
func ProgressEvent(projectID string, progress int, message string) Event {
	ev := newEvent(EventTypeProgress, projectID)
	ev.Progress = progress
	ev.Message = message
	return ev
}

// ResultEvent builds the terminal success event
func ResultEvent(projectID string, result *GenerateResult) Event {
	ev := newEvent(EventTypeResult, projectID)
	ev.Message = "Clip generation completed successfully!"
	ev.Result = result
	return ev
}

// ErrorEvent builds a terminal failure event with a classification code
func ErrorEvent(projectID, code, message string) Event {
	ev := newEvent(EventTypeError, projectID)
	ev.ErrorCode = code
	ev.Message = message
	return ev
}

// CancelledEvent builds the terminal cancellation event
func CancelledEvent(projectID string) Event {
	ev := newEvent(EventTypeCancelled, projectID)
	ev.Message = "Task was cancelled by user"
	return ev
}

// ConnectedEvent confirms a consumer attached to a stream
func ConnectedEvent(projectID string) Event {
	ev := newEvent(EventTypeConnected, projectID)
	ev.Message = "Connected to clip generation stream"
	return ev
}
