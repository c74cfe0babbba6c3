package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kriswu/inkstone/internal/novelstore"
	"github.com/kriswu/inkstone/internal/storyboard"
)

var importTitle string

var importCmd = &cobra.Command{
	Use:   "import <file.txt | ->",
	Short: "Import a novel text file",
	Long: `Import a plain-text novel, splitting it into chapters on
conventional headings (第一章 / 第二节 and so on). Use "-" to read
from stdin.

Examples:
  inkstone import zhetian.txt
  cat novel.txt | inkstone import - --title "遮天"`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVarP(&importTitle, "title", "t", "", "novel title (defaults to the file name)")
}

func runImport(cmd *cobra.Command, args []string) error {
	var text string
	switch args[0] {
	case "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = string(data)
	default:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read novel file: %w", err)
		}
		text = string(data)
	}

	chapters := storyboard.SplitChapters(text)
	if len(chapters) == 0 {
		return fmt.Errorf("no text to import")
	}

	title := importTitle
	if title == "" {
		if args[0] == "-" {
			title = "untitled"
		} else {
			title = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		}
	}

	novel := &novelstore.Novel{Title: title, Chapters: chapters}
	if err := store.Save(novel); err != nil {
		return fmt.Errorf("save novel: %w", err)
	}

	fmt.Printf("Imported %q: %d chapters (id %s)\n", title, len(chapters), novel.ID)
	if verbose {
		for i, ch := range chapters {
			fmt.Printf("  %2d. %s (%d provisional scenes)\n", i+1, ch.Title, len(ch.Sections))
		}
	}
	return nil
}
