package assembler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kriswu/inkstone/internal/proxy"
	"github.com/kriswu/inkstone/internal/storyboard"
	"github.com/kriswu/inkstone/internal/wire"
)

func TestSanitizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"plain", "https://x.test/a.png", "https://x.test/a.png"},
		{"whitespace", "  https://x.test/a.png\n", "https://x.test/a.png"},
		{"double quoted", `"https://x.test/a.png"`, "https://x.test/a.png"},
		{"single quoted", "'https://x.test/a.png'", "https://x.test/a.png"},
		{"quoted with space", `" https://x.test/a.png "`, "https://x.test/a.png"},
		{"empty", "", ""},
		{"nil", nil, ""},
		{"number", 42, ""},
		{"map", map[string]string{"url": "x"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeURL(tt.in); got != tt.want {
				t.Errorf("SanitizeURL(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestAssembleOrdersBySceneIndex(t *testing.T) {
	// Results arrive out of order; the gallery must come back 1..3.
	results := []wire.ComicResult{
		{ImageURL: "https://x.test/3.png", SceneIndex: 3},
		{ImageURL: "https://x.test/1.png", SceneIndex: 1},
		{ImageURL: "https://x.test/2.png", SceneIndex: 2},
	}
	details := []string{"开场", "冲突", "结局"}

	images := Assemble(results, details)
	if len(images) != 3 {
		t.Fatalf("got %d images, want 3", len(images))
	}
	for i, img := range images {
		if img.SceneIndex != i+1 {
			t.Errorf("image %d has scene index %d, want %d", i, img.SceneIndex, i+1)
		}
		if img.Description != details[i] {
			t.Errorf("image %d description %q, want %q", i, img.Description, details[i])
		}
		if want := "img-" + string(rune('1'+i)); img.ID != want {
			t.Errorf("image %d id %q, want %q", i, img.ID, want)
		}
	}
}

func TestAssemblePositionalFallback(t *testing.T) {
	results := []wire.ComicResult{
		{URL: "https://x.test/a.png"},
		{URL: "https://x.test/b.png"},
	}
	images := Assemble(results, nil)
	if len(images) != 2 {
		t.Fatalf("got %d images, want 2", len(images))
	}
	if images[0].SceneIndex != 1 || images[1].SceneIndex != 2 {
		t.Errorf("scene indices %d,%d, want 1,2", images[0].SceneIndex, images[1].SceneIndex)
	}
	if images[0].URL != "https://x.test/a.png" {
		t.Errorf("arrival order not preserved: %q first", images[0].URL)
	}
}

func TestAssembleDropsUnusable(t *testing.T) {
	results := []wire.ComicResult{
		{ImageURL: "https://x.test/a.png", SceneIndex: 1},
		{SceneIndex: 2}, // no URL at all
		{ImageURL: "https://x.test/a.png", SceneIndex: 1}, // duplicate
		{ImageURLAlt: "https://x.test/c.png", SceneIndex: 3},
	}
	images := Assemble(results, nil)
	if len(images) != 2 {
		t.Fatalf("got %d images, want 2", len(images))
	}
	if images[0].URL != "https://x.test/a.png" || images[1].URL != "https://x.test/c.png" {
		t.Errorf("unexpected gallery %v", images)
	}
}

func TestAssembleStableTieBreak(t *testing.T) {
	results := []wire.ComicResult{
		{ImageURL: "https://x.test/first.png", SceneIndex: 2},
		{ImageURL: "https://x.test/second.png", SceneIndex: 2},
	}
	images := Assemble(results, nil)
	if len(images) != 2 {
		t.Fatalf("got %d images, want 2", len(images))
	}
	if images[0].URL != "https://x.test/first.png" {
		t.Errorf("tie not broken by arrival order: %q first", images[0].URL)
	}
}

func TestResolveAllRewritesToDataURIs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("img"))
	}))
	defer srv.Close()

	res := NewResolver(proxy.New(5*time.Second, time.Minute, nil), time.Millisecond, nil)
	in := []storyboard.ComicImage{
		{ID: "img-1", URL: srv.URL + "/1.png", SceneIndex: 1},
		{ID: "img-2", URL: "data:image/png;base64,AAAA", SceneIndex: 2},
	}
	out := res.ResolveAll(context.Background(), in)

	if !strings.HasPrefix(out[0].URL, "data:image/png;base64,") {
		t.Errorf("remote image not resolved: %q", out[0].URL)
	}
	if out[1].URL != in[1].URL {
		t.Errorf("data URI should pass through untouched, got %q", out[1].URL)
	}
	if in[0].URL == out[0].URL {
		t.Error("input slice must not share backing with output")
	}
}

func TestResolveAllKeepsURLOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	res := NewResolver(proxy.New(5*time.Second, time.Minute, nil), time.Millisecond, nil)
	url := srv.URL + "/broken.png"
	out := res.ResolveAll(context.Background(), []storyboard.ComicImage{{ID: "img-1", URL: url}})
	if out[0].URL != url {
		t.Errorf("failed fetch should keep original URL, got %q", out[0].URL)
	}
}
