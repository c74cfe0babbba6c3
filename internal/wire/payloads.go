package wire

import "encoding/json"

// AuthRequest is the client credential handshake payload.
type AuthRequest struct {
	SessionToken string `json:"session_token"`
}

// AuthResult reports the outcome of the credential handshake.
type AuthResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ProcessNovelRequest asks the backend to recognize a chapter's storyboard.
// ChapterID is echoed back so completions can be reconciled per chapter.
type ProcessNovelRequest struct {
	NovelText string `json:"novel_text"`
	ChapterID string `json:"chapter_id,omitempty"`
}

// TextProcessingResult is the recognition completion payload.
type TextProcessingResult struct {
	ProcessID              string            `json:"process_id"`
	ChapterID              string            `json:"chapter_id,omitempty"`
	ScenesCount            int               `json:"scenes_count"`
	ScenesDetail           []string          `json:"scenes_detail"`
	CharacterConsistency   map[string]string `json:"character_consistency"`
	EnvironmentConsistency map[string]string `json:"environment_consistency"`
	Message                string            `json:"message,omitempty"`
}

// StartGenerationRequest kicks off image generation for a recognized job.
// The consistency maps and scene list are sent back because the user may
// have edited them after recognition.
type StartGenerationRequest struct {
	ProcessID              string            `json:"process_id"`
	CharacterConsistency   map[string]string `json:"character_consistency,omitempty"`
	EnvironmentConsistency map[string]string `json:"environment_consistency,omitempty"`
	ScenesDetail           []string          `json:"scenes_detail,omitempty"`
}

// CancelGenerationRequest is the best-effort upstream cancellation.
type CancelGenerationRequest struct {
	ProcessID string `json:"process_id"`
}

// StatusPayload is a human-readable stage announcement.
type StatusPayload struct {
	Status    string `json:"status,omitempty"`
	Message   string `json:"message,omitempty"`
	Step      int    `json:"step,omitempty"`
	ProcessID string `json:"process_id,omitempty"`
}

// ProgressPayload is one generation progress tick.
type ProgressPayload struct {
	Step      int    `json:"step"`
	Total     int    `json:"total"`
	Message   string `json:"message,omitempty"`
	ProcessID string `json:"process_id,omitempty"`
}

// ComicResult is one per-scene generation result. Backend revisions
// disagree on the URL key, so all three spellings are accepted.
type ComicResult struct {
	ImageURL     string `json:"image_url,omitempty"`
	URL          string `json:"url,omitempty"`
	ImageURLAlt  string `json:"imageUrl,omitempty"`
	SceneIndex   int    `json:"scene_index,omitempty"`
	OriginalURL  string `json:"original_url,omitempty"`
	ErrorMessage string `json:"error,omitempty"`
}

// BestURL returns the first non-empty URL spelling.
func (r ComicResult) BestURL() string {
	for _, u := range []string{r.ImageURL, r.URL, r.ImageURLAlt} {
		if u != "" {
			return u
		}
	}
	return ""
}

// GenerationComplete is the terminal generation payload.
type GenerationComplete struct {
	ProcessID    string        `json:"process_id"`
	ComicResults []ComicResult `json:"comic_results"`
	TotalScenes  int           `json:"total_scenes,omitempty"`
	Message      string        `json:"message,omitempty"`
}

// ErrorPayload carries a backend-reported failure.
type ErrorPayload struct {
	Error     string `json:"error"`
	ProcessID string `json:"process_id,omitempty"`
}

// DecodePayload unmarshals an event payload into dst, tolerating a nil
// payload (left as the zero value).
func DecodePayload(e Event, dst any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, dst)
}
