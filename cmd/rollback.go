package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"revsync/internal/history"
	"revsync/internal/rollback"
	"revsync/internal/util"
)

var (
	rollbackLatest   bool
	rollbackReupload bool
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback <path>",
	Short: "Restore a file from a historical snapshot",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openSession(rollbackReupload)
		if err != nil {
			util.Default.Printf("❌ %v\n", err)
			return
		}
		defer s.close()

		abs, err := filepath.Abs(args[0])
		if err != nil {
			util.Default.Printf("❌ %v\n", err)
			return
		}

		eng := rollback.New(s.hist, s.sync)
		choose := selectEntry
		if rollbackLatest {
			choose = func(entries []history.Entry) (int, bool) { return 0, true }
		}
		if err := eng.RollbackFile(abs, choose, rollbackReupload); err != nil {
			util.Default.Printf("❌ Rollback failed: %v\n", err)
			return
		}
		util.Default.Printf("✅ Restored %s\n", args[0])
	},
}

var rollbackBatchCmd = &cobra.Command{
	Use:   "batch <path>...",
	Short: "Restore each given file to its most recent snapshot",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openSession(false)
		if err != nil {
			util.Default.Printf("❌ %v\n", err)
			return
		}
		defer s.close()

		paths := make([]string, 0, len(args))
		for _, a := range args {
			abs, err := filepath.Abs(a)
			if err != nil {
				util.Default.Printf("❌ %v\n", err)
				return
			}
			paths = append(paths, abs)
		}

		eng := rollback.New(s.hist, nil)
		printResult("Rollback", eng.RollbackBatch(paths))
	},
}

// selectEntry shows a newest-first snapshot menu and returns the pick.
// Aborting the menu declines the rollback.
func selectEntry(entries []history.Entry) (int, bool) {
	items := make([]string, len(entries))
	for i, e := range entries {
		items[i] = fmt.Sprintf("%s  %s v%d  %d bytes",
			e.Timestamp.Format("2006-01-02 15:04:05"), e.Op, e.Version, e.Size)
	}

	util.Default.Suspend()
	defer util.Default.Resume()
	sel := promptui.Select{
		Label: "Restore which snapshot",
		Items: items,
		Size:  10,
	}
	i, _, err := sel.Run()
	if err != nil {
		return 0, false
	}
	return i, true
}

func init() {
	rollbackCmd.Flags().BoolVar(&rollbackLatest, "latest", false, "restore the most recent snapshot without asking")
	rollbackCmd.Flags().BoolVar(&rollbackReupload, "reupload", false, "re-upload the restored file afterwards")
	rollbackCmd.AddCommand(rollbackBatchCmd)
	rootCmd.AddCommand(rollbackCmd)
}
