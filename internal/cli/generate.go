package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/kriswu/inkstone/internal/session"
	"github.com/kriswu/inkstone/internal/storyboard"
)

var generateJSON bool

var generateCmd = &cobra.Command{
	Use:   "generate <novel> <chapter>",
	Short: "Generate comic images for a recognized chapter",
	Long: `Generate comic images for a chapter. The chapter is recognized
first when no stored storyboard exists. Progress streams live; Ctrl+C
cancels the job.

With --json the progress UI is skipped and the finished gallery is
printed as JSON.

Examples:
  inkstone generate "遮天" 1
  inkstone generate "遮天" ch-2 --json > gallery.json`,
	Args: cobra.ExactArgs(2),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().BoolVar(&generateJSON, "json", false, "print the gallery as JSON instead of the progress UI")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	novel, idx, err := findChapter(args[0], args[1])
	if err != nil {
		return err
	}
	chapter := novel.Chapters[idx]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	job := novel.Jobs[chapter.ID]
	if job == nil || job.ProcessID == "" {
		fmt.Fprintf(os.Stderr, "No stored storyboard, recognizing %q first...\n", chapter.Title)
		outcome, err := s.RecognizeWait(ctx, chapter.ID, chapter.Content)
		if err != nil {
			return fmt.Errorf("recognize chapter: %w", err)
		}
		if outcome.Fallback {
			return fmt.Errorf("backend could not recognize the chapter (%s); generation needs a successful recognition", outcome.Reason)
		}
		job = outcome.Job
		novel.Chapters[idx].Sections = outcome.Sections
		if novel.Jobs == nil {
			novel.Jobs = make(map[string]*storyboard.Job)
		}
		novel.Jobs[chapter.ID] = job
		if err := store.Update(novel); err != nil {
			return fmt.Errorf("store storyboard: %w", err)
		}
	}

	if err := s.Generate(job); err != nil {
		return fmt.Errorf("start generation: %w", err)
	}

	var images []storyboard.ComicImage
	if generateJSON {
		images, err = waitForGallery(ctx, s, job.ProcessID)
	} else {
		images, err = RunGenerationProgress(s, job.ProcessID)
	}
	if err != nil {
		return err
	}
	if images == nil {
		// Cancelled.
		return nil
	}

	if novel.Galleries == nil {
		novel.Galleries = make(map[string][]storyboard.ComicImage)
	}
	novel.Galleries[chapter.ID] = images
	if err := store.Update(novel); err != nil {
		return fmt.Errorf("store gallery: %w", err)
	}

	if generateJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(images)
	}
	fmt.Printf("Stored %d images for %q. Use 'inkstone export' to write files.\n", len(images), chapter.Title)
	return nil
}

// waitForGallery consumes notifications without a UI until the job
// settles.
func waitForGallery(ctx context.Context, s *session.Session, processID string) ([]storyboard.ComicImage, error) {
	for {
		select {
		case <-ctx.Done():
			s.CancelGeneration(processID)
			return nil, ctx.Err()
		case n := <-s.Notifications():
			switch v := n.(type) {
			case session.GenerationProgressed:
				if v.ProcessID == processID {
					fmt.Fprintf(os.Stderr, "progress %d/%d %s\n", v.Progress.Current, v.Progress.Total, v.Progress.Message)
				}
			case session.GalleryReady:
				if v.ProcessID == processID {
					return v.Images, nil
				}
			case session.GenerationFailed:
				if v.ProcessID == processID {
					return nil, fmt.Errorf("generation failed: %s", v.Reason)
				}
			}
		}
	}
}
