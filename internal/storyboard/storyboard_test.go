package storyboard

import (
	"fmt"
	"strings"
	"testing"
)

func TestProgress_Percentage(t *testing.T) {
	tests := []struct {
		name     string
		progress Progress
		want     int
	}{
		{name: "zero total", progress: Progress{Current: 3, Total: 0}, want: 0},
		{name: "negative total", progress: Progress{Current: 3, Total: -1}, want: 0},
		{name: "half", progress: Progress{Current: 1, Total: 2}, want: 50},
		{name: "rounds up", progress: Progress{Current: 2, Total: 3}, want: 67},
		{name: "rounds down", progress: Progress{Current: 1, Total: 3}, want: 33},
		{name: "complete", progress: Progress{Current: 5, Total: 5}, want: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.progress.Percentage(); got != tt.want {
				t.Errorf("Percentage() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSectionsFromScenes_OrderedIDs(t *testing.T) {
	scenes := []string{"scene one", "scene two", "scene three", "scene four", "scene five"}
	sections := SectionsFromScenes(scenes)

	if len(sections) != 5 {
		t.Fatalf("got %d sections, want 5", len(sections))
	}
	for i, s := range sections {
		wantID := fmt.Sprintf("s-%d", i+1)
		if s.ID != wantID {
			t.Errorf("section[%d].ID = %q, want %q", i, s.ID, wantID)
		}
		if s.Detail != scenes[i] {
			t.Errorf("section[%d].Detail = %q, want %q", i, s.Detail, scenes[i])
		}
	}
}

func TestSectionsFromScenes_TitleTruncation(t *testing.T) {
	long := strings.Repeat("长", 40)
	sections := SectionsFromScenes([]string{long})
	if got := len([]rune(sections[0].Title)); got != 24 {
		t.Errorf("title length = %d runes, want 24", got)
	}
	if sections[0].Detail != long {
		t.Error("detail must keep the full scene text")
	}
}

func TestSplitShots(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantCount  int
		wantTitles []string
	}{
		{
			name:       "chinese punctuation",
			text:       "第一章\n他走了。他哭了。",
			wantCount:  2,
			wantTitles: []string{"他走了", "他哭了"},
		},
		{
			name:      "single unterminated sentence",
			text:      "一个没有标点的句子",
			wantCount: 1,
		},
		{
			name:       "heading segment mid-text dropped",
			text:       "他走了。第三章\n他哭了。",
			wantCount:  2,
			wantTitles: []string{"他走了", "他哭了"},
		},
		{
			name:      "heading-only text still yields a scene",
			text:      "第二章 重逢",
			wantCount: 1,
		},
		{
			name:      "mixed punctuation",
			text:      "Run! Hide? 继续走。\n下一幕",
			wantCount: 4,
		},
		{
			name:      "caps at twelve",
			text:      strings.Repeat("一句。", 30),
			wantCount: 12,
		},
		{
			name:      "whitespace only segments dropped",
			text:      "。。。  \n  他来了。",
			wantCount: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sections := SplitShots(tt.text)
			if len(sections) != tt.wantCount {
				t.Fatalf("SplitShots() = %d sections, want %d", len(sections), tt.wantCount)
			}
			for i, s := range sections {
				if s.ID != fmt.Sprintf("s-%d", i+1) {
					t.Errorf("section[%d].ID = %q", i, s.ID)
				}
			}
			for i, want := range tt.wantTitles {
				if sections[i].Title != want {
					t.Errorf("section[%d].Title = %q, want %q", i, sections[i].Title, want)
				}
			}
		})
	}
}

func TestSplitShots_FallbackBounds(t *testing.T) {
	// Any non-empty input yields between 1 and 12 scenes.
	inputs := []string{
		"x",
		"。",
		"第一章\n他走了。他哭了。",
		strings.Repeat("句子。", 100),
		"line one\nline two\nline three",
	}
	for _, in := range inputs {
		got := len(SplitShots(in))
		if got < 1 || got > 12 {
			t.Errorf("SplitShots(%q) = %d sections, want 1..12", in, got)
		}
	}
}

func TestSplitChapters(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantCount  int
		wantTitles []string
	}{
		{
			name:       "two heading chapters",
			text:       "第一章 开端\n他走了。\n第二章 重逢\n他回来了。",
			wantCount:  2,
			wantTitles: []string{"第一章 开端", "第二章 重逢"},
		},
		{
			name:      "headingless text becomes one chapter",
			text:      "just some text\nmore text",
			wantCount: 1,
		},
		{
			name:       "juan and hui headings",
			text:       "第一卷 风起\n内容甲\n第三回 落幕\n内容乙",
			wantCount:  2,
			wantTitles: []string{"第一卷 风起", "第三回 落幕"},
		},
		{
			name:      "empty input",
			text:      "   \n ",
			wantCount: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chapters := SplitChapters(tt.text)
			if len(chapters) != tt.wantCount {
				t.Fatalf("SplitChapters() = %d chapters, want %d", len(chapters), tt.wantCount)
			}
			for i, want := range tt.wantTitles {
				if chapters[i].Title != want {
					t.Errorf("chapter[%d].Title = %q, want %q", i, chapters[i].Title, want)
				}
			}
		})
	}
}

func TestSplitChapters_BodyAndSections(t *testing.T) {
	chapters := SplitChapters("第一章 开端\n他走了。\n\n他哭了。")
	if len(chapters) != 1 {
		t.Fatalf("got %d chapters", len(chapters))
	}
	ch := chapters[0]
	if ch.ID != "ch-1" {
		t.Errorf("ID = %q, want ch-1", ch.ID)
	}
	if !strings.Contains(ch.Content, "他走了。") || !strings.Contains(ch.Content, "他哭了。") {
		t.Errorf("content missing body lines: %q", ch.Content)
	}
	if len(ch.Sections) != 2 {
		t.Fatalf("got %d provisional sections, want 2", len(ch.Sections))
	}
	if ch.Sections[0].ID != "s-1" || ch.Sections[1].ID != "s-2" {
		t.Errorf("section ids = %q, %q", ch.Sections[0].ID, ch.Sections[1].ID)
	}
}
