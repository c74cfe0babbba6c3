// Package wire defines the event framing shared with the comic backend.
//
// Frames are JSON objects carrying an event name and an opaque payload.
// The backend has grown several spellings for what is semantically one
// job lifecycle (generation_progress vs full_process_progress and so
// on); Normalize collapses them into a single internal event tagged by
// stage and kind so the session state machine never sees the raw names.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Frame is one message on the duplex channel in either direction.
type Frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client-sent event names.
const (
	EventAuthenticate     = "authenticate"
	EventProcessNovel     = "process_novel"
	EventStartGeneration  = "start_comics_generation"
	EventCancelGeneration = "cancel_generation"
)

// Server-sent event names.
const (
	EventAuthResult          = "authentication_result"
	EventConnectionStatus    = "connection_status"
	EventProcessStatus       = "process_status"
	EventTextComplete        = "text_processing_complete"
	EventFullTextComplete    = "full_process_text_complete"
	EventProcessError        = "process_error"
	EventGenerationStatus    = "generation_status"
	EventFullProcessStatus   = "full_process_status"
	EventGenerationProgress  = "generation_progress"
	EventFullProgress        = "full_process_progress"
	EventGenerationComplete  = "comics_generation_complete"
	EventFullProcessComplete = "full_process_complete"
	EventGenerationError     = "generation_error"
	EventFullProcessError    = "full_process_error"
)

// Stage identifies which half of the job lifecycle an event belongs to.
type Stage string

const (
	StageAuth        Stage = "auth"
	StageChannel     Stage = "channel"
	StageRecognition Stage = "recognition"
	StageGeneration  Stage = "generation"
)

// Kind is the normalized event type within a stage.
type Kind string

const (
	KindResult   Kind = "result"
	KindStatus   Kind = "status"
	KindProgress Kind = "progress"
	KindComplete Kind = "complete"
	KindError    Kind = "error"
	KindUnknown  Kind = "unknown"
)

// ErrUnknownEvent reports a server event with no normalization rule.
var ErrUnknownEvent = errors.New("wire: unknown event")

// Event is the single internal event shape consumed by the session.
type Event struct {
	Stage   Stage
	Kind    Kind
	Name    string // original wire name, for logging
	Payload json.RawMessage
}

var normalization = map[string]struct {
	stage Stage
	kind  Kind
}{
	EventAuthResult:          {StageAuth, KindResult},
	EventConnectionStatus:    {StageChannel, KindStatus},
	EventProcessStatus:       {StageRecognition, KindStatus},
	EventTextComplete:        {StageRecognition, KindComplete},
	EventFullTextComplete:    {StageRecognition, KindComplete},
	EventProcessError:        {StageRecognition, KindError},
	EventGenerationStatus:    {StageGeneration, KindStatus},
	EventFullProcessStatus:   {StageGeneration, KindStatus},
	EventGenerationProgress:  {StageGeneration, KindProgress},
	EventFullProgress:        {StageGeneration, KindProgress},
	EventGenerationComplete:  {StageGeneration, KindComplete},
	EventFullProcessComplete: {StageGeneration, KindComplete},
	EventGenerationError:     {StageGeneration, KindError},
	EventFullProcessError:    {StageGeneration, KindError},
}

// Normalize maps a raw frame onto the internal event shape.
// Unknown events return ErrUnknownEvent; callers log and drop them.
func Normalize(f Frame) (Event, error) {
	rule, ok := normalization[f.Event]
	if !ok {
		return Event{Kind: KindUnknown, Name: f.Event, Payload: f.Payload},
			fmt.Errorf("%w: %q", ErrUnknownEvent, f.Event)
	}
	return Event{Stage: rule.stage, Kind: rule.kind, Name: f.Event, Payload: f.Payload}, nil
}

// NewFrame marshals payload into a frame ready for sending.
func NewFrame(event string, payload any) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return Frame{Event: event, Payload: raw}, nil
}
