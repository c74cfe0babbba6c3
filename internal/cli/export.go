package cli

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kriswu/inkstone/internal/assembler"
	"github.com/kriswu/inkstone/internal/proxy"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <novel> <chapter>",
	Short: "Export a chapter's generated images to files",
	Long: `Write a chapter's generated comic images to a directory.
Remote images are fetched through the image proxy; images that cannot
be fetched are listed with their URLs instead.

Examples:
  inkstone export "遮天" 1 --out ./comics
  inkstone export "遮天" ch-2`,
	Args: cobra.ExactArgs(2),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", ".", "output directory")
}

func runExport(cmd *cobra.Command, args []string) error {
	novel, idx, err := findChapter(args[0], args[1])
	if err != nil {
		return err
	}
	chapter := novel.Chapters[idx]

	gallery := novel.Galleries[chapter.ID]
	if len(gallery) == 0 {
		return fmt.Errorf("no generated images for %q, run 'inkstone generate' first", chapter.Title)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	resolver := assembler.NewResolver(proxy.New(0, cfg.ProxyCacheTTL, logger), 200*time.Millisecond, logger)
	resolved := resolver.ResolveAll(ctx, gallery)

	dir := filepath.Join(exportOut, fmt.Sprintf("%s-%s", novel.ID, chapter.ID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	written := 0
	for _, img := range resolved {
		data, ext, ok := decodeDataURI(img.URL)
		if !ok {
			fmt.Fprintf(os.Stderr, "Warning: could not fetch scene %d, original URL: %s\n", img.SceneIndex, img.URL)
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("scene-%02d%s", img.SceneIndex, ext))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write image: %w", err)
		}
		written++
	}

	fmt.Printf("Exported %d/%d images to %s\n", written, len(resolved), dir)
	return nil
}

// decodeDataURI extracts the bytes and a file extension from a base64
// data URI.
func decodeDataURI(uri string) ([]byte, string, bool) {
	if !strings.HasPrefix(uri, "data:") {
		return nil, "", false
	}
	meta, b64, found := strings.Cut(strings.TrimPrefix(uri, "data:"), ";base64,")
	if !found {
		return nil, "", false
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, "", false
	}

	ext := ".png"
	switch meta {
	case "image/jpeg":
		ext = ".jpg"
	case "image/gif":
		ext = ".gif"
	case "image/webp":
		ext = ".webp"
	}
	return data, ext, true
}
