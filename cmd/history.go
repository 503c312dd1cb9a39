package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"revsync/internal/util"
)

var historyCmd = &cobra.Command{
	Use:   "history [path]",
	Short: "Show transfer history",
	Long:  `List committed transfer history, for one file or for everything.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openSession(false)
		if err != nil {
			util.Default.Printf("❌ %v\n", err)
			return
		}
		defer s.close()

		entries := s.hist.AllEntries()
		if len(args) == 1 {
			abs, err := filepath.Abs(args[0])
			if err != nil {
				util.Default.Printf("❌ %v\n", err)
				return
			}
			entries = s.hist.HistoryForFile(abs)
		}
		if len(entries) == 0 {
			util.Default.Println("No history recorded.")
			return
		}
		for _, e := range entries {
			util.Default.Printf("%s  %-8s  v%-3d  %8d bytes  %s\n",
				e.Timestamp.Format("2006-01-02 15:04:05"), e.Op, e.Version, e.Size, relOrSelf(s, e.LocalPath))
		}
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all snapshots and reset the history index",
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openSession(false)
		if err != nil {
			util.Default.Printf("❌ %v\n", err)
			return
		}
		defer s.close()

		if !(cliPrompter{}).Confirm("Delete ALL history snapshots? This cannot be undone") {
			util.Default.Println("⏭️  Skipped")
			return
		}
		if err := s.hist.ClearHistory(); err != nil {
			util.Default.Printf("❌ Failed to clear history: %v\n", err)
			return
		}
		util.Default.Println("🗑️  History cleared")
	},
}

func init() {
	historyCmd.AddCommand(historyClearCmd)
	rootCmd.AddCommand(historyCmd)
}
