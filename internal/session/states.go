package session

import "fmt"

// RecognitionState is the per-chapter recognition lifecycle.
type RecognitionState string

const (
	RecognitionIdle       RecognitionState = "idle"
	RecognitionRunning    RecognitionState = "recognizing"
	RecognitionRecognized RecognitionState = "recognized"
	RecognitionFailed     RecognitionState = "failed"
	RecognitionCancelled  RecognitionState = "cancelled"
)

var recognitionTransitions = map[RecognitionState][]RecognitionState{
	RecognitionIdle:       {RecognitionRunning},
	RecognitionRunning:    {RecognitionRecognized, RecognitionFailed, RecognitionCancelled},
	RecognitionRecognized: {RecognitionRunning},
	RecognitionFailed:     {RecognitionRunning},
	RecognitionCancelled:  {RecognitionRunning},
}

func (s RecognitionState) transition(next RecognitionState) (RecognitionState, error) {
	for _, allowed := range recognitionTransitions[s] {
		if allowed == next {
			return next, nil
		}
	}
	return s, fmt.Errorf("session: invalid recognition transition %s -> %s", s, next)
}

// GenerationState is the per-job generation lifecycle.
type GenerationState string

const (
	GenerationIdle       GenerationState = "idle"
	GenerationConnecting GenerationState = "connecting"
	GenerationRunning    GenerationState = "generating"
	GenerationCompleted  GenerationState = "completed"
	GenerationError      GenerationState = "error"
)

var generationTransitions = map[GenerationState][]GenerationState{
	GenerationIdle:       {GenerationConnecting},
	GenerationConnecting: {GenerationRunning, GenerationCompleted, GenerationError, GenerationIdle},
	GenerationRunning:    {GenerationCompleted, GenerationError, GenerationIdle},
	GenerationCompleted:  {},
	GenerationError:      {},
}

func (s GenerationState) transition(next GenerationState) (GenerationState, error) {
	for _, allowed := range generationTransitions[s] {
		if allowed == next {
			return next, nil
		}
	}
	return s, fmt.Errorf("session: invalid generation transition %s -> %s", s, next)
}
