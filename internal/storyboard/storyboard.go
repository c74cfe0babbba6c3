// Package storyboard defines the job and scene model produced by
// storyboard recognition, plus the local text splitters used when the
// backend returns no usable scene data.
package storyboard

import (
	"fmt"
	"math"
)

// Job correlates one recognition+generation workflow. ProcessID is
// backend-issued and is the sole valid correlation key for generation
// events concerning this unit of work.
type Job struct {
	ProcessID              string            `json:"process_id"`
	ChapterID              string            `json:"chapter_id"`
	SceneCount             int               `json:"scene_count"`
	CharacterConsistency   map[string]string `json:"character_consistency,omitempty"`
	EnvironmentConsistency map[string]string `json:"environment_consistency,omitempty"`
	// ScenesDetail order is significant: it is the canonical scene
	// ordering for the whole workflow.
	ScenesDetail []string `json:"scenes_detail"`
}

// Section is one recognized scene of a chapter's storyboard. Title,
// Detail and Dialogue may be hand-edited before generation.
type Section struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Detail   string `json:"detail"`
	Dialogue string `json:"dialogue,omitempty"`
}

// Progress is the transient generation progress snapshot. It is
// overwritten on every progress event; no monotonicity is assumed.
type Progress struct {
	Current int
	Total   int
	Message string
}

// Percentage is round(current/total*100), or 0 when total is unset.
func (p Progress) Percentage() int {
	if p.Total <= 0 {
		return 0
	}
	return int(math.Round(float64(p.Current) / float64(p.Total) * 100))
}

// ComicImage is one generated scene image. SceneIndex is 1-based.
type ComicImage struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	SceneIndex  int    `json:"scene_index"`
	Description string `json:"description,omitempty"`
}

const titleRunes = 24

// truncateTitle keeps the first 24 runes so CJK text is not cut
// mid-character.
func truncateTitle(s string) string {
	r := []rune(s)
	if len(r) <= titleRunes {
		return s
	}
	return string(r[:titleRunes])
}

// SectionsFromScenes builds the storyboard for a chapter from the
// job's ordered scene descriptions. IDs are s-1..s-N.
func SectionsFromScenes(scenes []string) []Section {
	sections := make([]Section, 0, len(scenes))
	for i, detail := range scenes {
		sections = append(sections, Section{
			ID:     fmt.Sprintf("s-%d", i+1),
			Title:  truncateTitle(detail),
			Detail: detail,
		})
	}
	return sections
}
