package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/kriswu/inkstone/internal/storyboard"
)

var recognizeJSON bool

var recognizeCmd = &cobra.Command{
	Use:   "recognize <novel> <chapter>",
	Short: "Recognize a chapter's storyboard",
	Long: `Send a chapter to the backend for storyboard recognition and
store the result. The chapter may be given as an id or a 1-based index.

When the backend cannot produce a storyboard the text is split locally
instead; such a fallback storyboard cannot be used for generation
until a re-run succeeds.

Examples:
  inkstone recognize "遮天" 1
  inkstone recognize 20260828120000-abcd1234 ch-2 --json`,
	Args: cobra.ExactArgs(2),
	RunE: runRecognize,
}

func init() {
	recognizeCmd.Flags().BoolVar(&recognizeJSON, "json", false, "print the storyboard as JSON")
}

func runRecognize(cmd *cobra.Command, args []string) error {
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

	fmt.Fprintf(os.Stderr, "Recognizing %q...\n", chapter.Title)
	outcome, err := s.RecognizeWait(ctx, chapter.ID, chapter.Content)
	if err != nil {
		return fmt.Errorf("recognize chapter: %w", err)
	}

	novel.Chapters[idx].Sections = outcome.Sections
	if novel.Jobs == nil {
		novel.Jobs = make(map[string]*storyboard.Job)
	}
	novel.Jobs[chapter.ID] = outcome.Job
	if err := store.Update(novel); err != nil {
		return fmt.Errorf("store storyboard: %w", err)
	}

	if recognizeJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			ChapterID string               `json:"chapter_id"`
			Fallback  bool                 `json:"fallback"`
			Reason    string               `json:"reason,omitempty"`
			Job       *storyboard.Job      `json:"job"`
			Sections  []storyboard.Section `json:"sections"`
		}{chapter.ID, outcome.Fallback, outcome.Reason, outcome.Job, outcome.Sections})
	}

	if outcome.Fallback {
		fmt.Printf("Backend unavailable (%s), storyboard built locally:\n\n", outcome.Reason)
	} else {
		fmt.Printf("Storyboard for %q (%d scenes):\n\n", chapter.Title, len(outcome.Sections))
	}
	for i, sec := range outcome.Sections {
		fmt.Printf("%2d. %s\n", i+1, sec.Title)
		if verbose {
			fmt.Printf("    %s\n", sec.Detail)
		}
	}
	if outcome.Fallback {
		fmt.Println("\nRe-run recognize before generating; local storyboards cannot be generated.")
	}
	return nil
}
