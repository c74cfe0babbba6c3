package storyboard

import (
	"fmt"
	"regexp"
	"strings"
)

// maxFallbackShots caps the local heuristic so a long unrecognized
// chapter does not explode into hundreds of one-line scenes.
const maxFallbackShots = 12

var shotSeparator = regexp.MustCompile(`[。！？!?\n]+`)

// SplitShots is the local recognition fallback: the chapter text is
// split on sentence-terminal punctuation and newlines, capped at 12
// scenes. Heading lines are narration framing, not scenes, and are
// dropped. It always yields at least one scene for non-empty input,
// even a single unterminated sentence.
func SplitShots(text string) []Section {
	parts := shotSeparator.Split(text, -1)
	shots := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t == "" || chapterHeading.MatchString(t) {
			continue
		}
		shots = append(shots, t)
	}
	if len(shots) > maxFallbackShots {
		shots = shots[:maxFallbackShots]
	}
	if len(shots) == 0 {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		shots = []string{trimmed}
	}

	sections := make([]Section, 0, len(shots))
	for i, shot := range shots {
		title := truncateTitle(shot)
		if title == "" {
			title = fmt.Sprintf("镜头 %d", i+1)
		}
		sections = append(sections, Section{
			ID:     fmt.Sprintf("s-%d", i+1),
			Title:  title,
			Detail: shot,
		})
	}
	return sections
}

// Chapter is a titled unit of novel text, the unit of recognition.
type Chapter struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Content  string    `json:"content"`
	Sections []Section `json:"sections,omitempty"`
}

// chapterHeading matches conventional Chinese chapter headings such as
// 第一章 / 第十二节 / 第三卷 / 第五回.
var chapterHeading = regexp.MustCompile(`^第.{1,9}[章节卷回]`)

// SplitChapters splits raw novel text into chapters on heading lines.
// The first line always opens a chapter so headingless text still
// imports. Non-heading lines become both body content and provisional
// section titles (24 runes), replaced wholesale once recognition runs.
func SplitChapters(text string) []Chapter {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var chapters []Chapter
	var current *Chapter
	var body []string

	flush := func() {
		if current == nil {
			return
		}
		current.Content = strings.TrimSpace(strings.Join(body, "\n"))
		chapters = append(chapters, *current)
		current = nil
		body = nil
	}

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if chapterHeading.MatchString(trimmed) || i == 0 {
			flush()
			title := trimmed
			if title == "" {
				title = fmt.Sprintf("章节 %d", len(chapters)+1)
			}
			current = &Chapter{
				ID:    fmt.Sprintf("ch-%d", len(chapters)+1),
				Title: title,
			}
			continue
		}
		if current == nil {
			continue
		}
		body = append(body, line)
		if trimmed != "" {
			current.Sections = append(current.Sections, Section{
				ID:    fmt.Sprintf("s-%d", len(current.Sections)+1),
				Title: truncateTitle(trimmed),
			})
		}
	}
	flush()
	return chapters
}
