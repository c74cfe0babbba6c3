package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List imported novels",
	Long: `List imported novels, newest first.

Examples:
  inkstone list
  inkstone list -v`,
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	novels, err := store.List()
	if err != nil {
		return fmt.Errorf("list novels: %w", err)
	}

	if len(novels) == 0 {
		fmt.Println("No novels imported yet. Use 'inkstone import <file>'.")
		return nil
	}

	fmt.Printf("Novels (%d):\n\n", len(novels))
	for _, n := range novels {
		recognized := 0
		for _, job := range n.Jobs {
			if job != nil && job.ProcessID != "" {
				recognized++
			}
		}
		fmt.Printf("- %s  (%d chapters, %d recognized)\n", n.Title, len(n.Chapters), recognized)
		fmt.Printf("  id: %s\n", n.ID)
		if verbose {
			for i, ch := range n.Chapters {
				mark := ""
				if job := n.Jobs[ch.ID]; job != nil && job.ProcessID != "" {
					mark = " [recognized]"
				}
				fmt.Printf("    %2d. %s%s\n", i+1, ch.Title, mark)
			}
		}
	}
	return nil
}
