package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/inlay-dev/inlay/pkg/history"
	"github.com/inlay-dev/inlay/pkg/utils"
)

var historyCmd = &cobra.Command{
	Use:   "history <file>",
	Short: "List recorded revisions for a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		revs, err := store.Revisions(args[0], limit)
		if err != nil {
			return err
		}
		if len(revs) == 0 {
			fmt.Println("no revisions recorded")
			return nil
		}
		for _, r := range revs {
			status := ""
			if r.Reverted {
				status = " (reverted)"
			}
			fmt.Printf("%s  %s  %s  provider=%s%s\n",
				r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Strategy, r.Provider, status)
		}
		return nil
	},
}

var revertCmd = &cobra.Command{
	Use:   "revert <revision-id>",
	Short: "Restore a file to the state before a revision",
	Long: `Writes the revision's original text back to its target file.

Examples:
  inlay history main.go            # find the revision ID
  inlay revert 01J8X2K4...         # undo it`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		if show, _ := cmd.Flags().GetBool("diff"); show {
			diff, err := store.Diff(args[0])
			if err != nil {
				return err
			}
			fmt.Print(diff)
			return nil
		}
		if err := store.Revert(args[0]); err != nil {
			return err
		}
		fmt.Printf("reverted %s\n", args[0])
		return nil
	},
}

func openHistory() (*history.Store, error) {
	return history.Open(filepath.Join(utils.StateDir(), "history.db"))
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum revisions to list (0 for all)")
	revertCmd.Flags().Bool("diff", false, "show the revision diff instead of reverting")
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(revertCmd)
}
