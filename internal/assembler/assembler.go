// Package assembler turns raw generation results into an ordered
// gallery. The backend spells image URLs several ways and sometimes
// omits scene indices, so assembly sanitizes, orders and annotates
// before anything reaches the display layer.
package assembler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kriswu/inkstone/internal/storyboard"
	"github.com/kriswu/inkstone/internal/wire"
)

// SanitizeURL normalizes a URL value pulled out of a result payload.
// Whitespace is trimmed and one layer of quoting is stripped. Anything
// that is not a string yields the empty string.
func SanitizeURL(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}

// Assemble builds the gallery from a completion payload. Results are
// ordered by scene index ascending with arrival order breaking ties;
// results without an index take their arrival position. Descriptions
// come from the storyboard scene details when the index lines up.
// Results with no usable URL are dropped, as are exact duplicates.
func Assemble(results []wire.ComicResult, scenesDetail []string) []storyboard.ComicImage {
	images := make([]storyboard.ComicImage, 0, len(results))
	seen := make(map[string]bool, len(results))

	for i, res := range results {
		url := SanitizeURL(res.BestURL())
		if url == "" {
			continue
		}
		idx := res.SceneIndex
		if idx <= 0 {
			idx = i + 1
		}
		key := fmt.Sprintf("%d|%s", idx, url)
		if seen[key] {
			continue
		}
		seen[key] = true

		img := storyboard.ComicImage{URL: url, SceneIndex: idx}
		if idx >= 1 && idx <= len(scenesDetail) {
			img.Description = scenesDetail[idx-1]
		}
		images = append(images, img)
	}

	sort.SliceStable(images, func(a, b int) bool {
		return images[a].SceneIndex < images[b].SceneIndex
	})
	for i := range images {
		images[i].ID = fmt.Sprintf("img-%d", i+1)
	}
	return images
}
