package session

import "github.com/kriswu/inkstone/internal/storyboard"

// Notification is a session event delivered to the UI layer.
type Notification interface{ notification() }

// RecognitionResult reports a settled recognition. Fallback marks a
// storyboard synthesized by the local splitter; Job.ProcessID is then
// empty and generation needs a successful re-run first.
type RecognitionResult struct {
	ChapterID string
	Job       *storyboard.Job
	Sections  []storyboard.Section
	Fallback  bool
	Reason    string // backend failure that forced the fallback, if any
}

// RecognitionFault reports a recognition that could not settle at all.
type RecognitionFault struct {
	ChapterID string
	Reason    string
}

// GenerationProgressed carries the latest progress snapshot. Snapshots
// replace each other in arrival order; no monotonicity is implied.
type GenerationProgressed struct {
	ProcessID string
	Progress  storyboard.Progress
}

// GalleryReady carries the final ordered image list.
type GalleryReady struct {
	ProcessID string
	Images    []storyboard.ComicImage
}

// GenerationFailed reports a terminal generation error. The last
// progress snapshot stays queryable for diagnosis.
type GenerationFailed struct {
	ProcessID string
	Reason    string
	Timeout   bool
}

// GenerationCancelled confirms a client-side cancellation.
type GenerationCancelled struct {
	ProcessID string
}

// StatusMessage is a human-readable stage announcement.
type StatusMessage struct {
	Stage   string
	Message string
}

// ConnectionLost reports channel failure before any reconnect attempt.
type ConnectionLost struct {
	Err error
}

// Reconnected reports a successful reconnect + re-authentication.
type Reconnected struct {
	Attempt int
}

func (RecognitionResult) notification()    {}
func (RecognitionFault) notification()     {}
func (GenerationProgressed) notification() {}
func (GalleryReady) notification()         {}
func (GenerationFailed) notification()     {}
func (GenerationCancelled) notification()  {}
func (StatusMessage) notification()        {}
func (ConnectionLost) notification()       {}
func (Reconnected) notification()          {}

// notify delivers without blocking; the protocol never stalls on a
// slow UI.
func (s *Session) notify(n Notification) {
	select {
	case s.notes <- n:
	default:
		s.logger.Debug("notification dropped, consumer lagging")
	}
}
