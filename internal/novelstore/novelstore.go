// Package novelstore persists imported novels as JSON files under the
// data directory, one file per novel named "{id}__{slug}.json". The
// slug exists only to make the directory browsable; the id part is
// authoritative.
package novelstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kriswu/inkstone/internal/storyboard"
)

// Novel is one stored work with its chapters and recognition results.
type Novel struct {
	ID        string               `json:"id"`
	Title     string               `json:"title"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
	Chapters  []storyboard.Chapter `json:"chapters"`

	// Jobs holds the last successful recognition per chapter id, so a
	// recognized storyboard survives restarts.
	Jobs map[string]*storyboard.Job `json:"jobs,omitempty"`

	// Galleries holds the last completed generation per chapter id.
	Galleries map[string][]storyboard.ComicImage `json:"galleries,omitempty"`
}

// Store reads and writes novels in dir.
type Store struct {
	dir string
}

// Open ensures dir exists and returns a store over it.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string { return s.dir }

// NewID issues a sortable novel id: a timestamp prefix keeps List
// ordering cheap, the uuid suffix keeps ids unique.
func NewID() string {
	return time.Now().Format("20060102150405") + "-" + uuid.New().String()[:8]
}

const slugMax = 60

// slugify makes a title safe as a filename component. Spaces become
// dashes, filesystem-hostile runes are dropped, length capped at 60.
func slugify(title string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(title) {
		switch {
		case r == ' ' || r == '\t':
			b.WriteRune('-')
		case strings.ContainsRune(`/\:*?"<>|`, r) || r < 0x20:
			// dropped
		default:
			b.WriteRune(r)
		}
	}
	slug := b.String()
	if runes := []rune(slug); len(runes) > slugMax {
		slug = string(runes[:slugMax])
	}
	if slug == "" {
		slug = "untitled"
	}
	return slug
}

func (s *Store) fileFor(n *Novel) string {
	return filepath.Join(s.dir, n.ID+"__"+slugify(n.Title)+".json")
}

// filesFor returns every file carrying the id prefix, so renames can
// clean up stale slugs.
func (s *Store) filesFor(id string) ([]string, error) {
	return filepath.Glob(filepath.Join(s.dir, id+"__*.json"))
}

// Save writes a new novel. The id must be unset; Save assigns one.
func (s *Store) Save(n *Novel) error {
	if n.ID != "" {
		return fmt.Errorf("novel already has id %s, use Update", n.ID)
	}
	n.ID = NewID()
	now := time.Now()
	n.CreatedAt = now
	n.UpdatedAt = now
	return s.write(n)
}

// Update rewrites an existing novel, removing any file left under a
// previous title's slug.
func (s *Store) Update(n *Novel) error {
	if n.ID == "" {
		return fmt.Errorf("novel has no id")
	}
	stale, err := s.filesFor(n.ID)
	if err != nil {
		return fmt.Errorf("list novel files: %w", err)
	}
	n.UpdatedAt = time.Now()
	if err := s.write(n); err != nil {
		return err
	}
	current := s.fileFor(n)
	for _, f := range stale {
		if f != current {
			os.Remove(f)
		}
	}
	return nil
}

func (s *Store) write(n *Novel) error {
	data, err := json.MarshalIndent(n, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal novel: %w", err)
	}
	if err := os.WriteFile(s.fileFor(n), data, 0o644); err != nil {
		return fmt.Errorf("write novel: %w", err)
	}
	return nil
}

// Load reads one novel by id.
func (s *Store) Load(id string) (*Novel, error) {
	files, err := s.filesFor(id)
	if err != nil {
		return nil, fmt.Errorf("list novel files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("novel %s not found", id)
	}
	data, err := os.ReadFile(files[0])
	if err != nil {
		return nil, fmt.Errorf("read novel: %w", err)
	}
	var n Novel
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("decode novel %s: %w", id, err)
	}
	return &n, nil
}

// List returns all novels, newest first. Files that fail to decode
// are skipped rather than sinking the whole listing.
func (s *Store) List() ([]*Novel, error) {
	files, err := filepath.Glob(filepath.Join(s.dir, "*__*.json"))
	if err != nil {
		return nil, fmt.Errorf("list data dir: %w", err)
	}
	novels := make([]*Novel, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		var n Novel
		if err := json.Unmarshal(data, &n); err != nil {
			continue
		}
		novels = append(novels, &n)
	}
	sort.Slice(novels, func(a, b int) bool {
		return novels[a].ID > novels[b].ID
	})
	return novels, nil
}

// Delete removes the novel file and its assets directory.
func (s *Store) Delete(id string) error {
	files, err := s.filesFor(id)
	if err != nil {
		return fmt.Errorf("list novel files: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("novel %s not found", id)
	}
	for _, f := range files {
		if err := os.Remove(f); err != nil {
			return fmt.Errorf("remove novel: %w", err)
		}
	}
	os.RemoveAll(filepath.Join(s.dir, "assets", id))
	return nil
}

// SaveCharacterImage stores a character reference image under
// assets/{novelID}/characters/ and returns its path.
func (s *Store) SaveCharacterImage(novelID, name string, data []byte) (string, error) {
	dir := filepath.Join(s.dir, "assets", novelID, "characters")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create assets dir: %w", err)
	}
	path := filepath.Join(dir, slugify(name)+".png")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write character image: %w", err)
	}
	return path, nil
}
