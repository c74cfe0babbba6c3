package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <novel>",
	Short: "Delete an imported novel",
	Long: `Delete a novel by id or title, including its stored images.

Requires confirmation unless --force is used.

Examples:
  inkstone delete 20260828120000-abcd1234
  inkstone delete "遮天" --force`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "skip confirmation")
}

func runDelete(cmd *cobra.Command, args []string) error {
	novels, err := store.List()
	if err != nil {
		return fmt.Errorf("list novels: %w", err)
	}
	var id, title string
	for _, n := range novels {
		if n.ID == args[0] || n.Title == args[0] {
			id, title = n.ID, n.Title
			break
		}
	}
	if id == "" {
		return fmt.Errorf("novel %q not found", args[0])
	}

	if !deleteForce {
		fmt.Printf("Delete %q and all its generated images? [y/N] ", title)
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if answer := strings.ToLower(strings.TrimSpace(line)); answer != "y" && answer != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := store.Delete(id); err != nil {
		return fmt.Errorf("delete novel: %w", err)
	}
	fmt.Printf("Deleted %q.\n", title)
	return nil
}
