package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"revsync/internal/util"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Transfer files between local and remote",
}

var pushCmd = &cobra.Command{
	Use:   "push <path>",
	Short: "Upload a file or folder to the remote",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openSession(true)
		if err != nil {
			util.Default.Printf("❌ %v\n", err)
			return
		}
		defer s.close()

		target := args[0]
		info, err := os.Stat(target)
		if err != nil {
			util.Default.Printf("❌ %v\n", err)
			return
		}
		if info.IsDir() {
			printResult("Push", s.sync.UploadFolder(cmd.Context(), target))
			return
		}
		printResult("Push", s.sync.UploadFile(target))
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull <path>",
	Short: "Download a file or folder from the remote",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openSession(true)
		if err != nil {
			util.Default.Printf("❌ %v\n", err)
			return
		}
		defer s.close()

		target := args[0]
		// an existing local file pulls one file; anything else (directory,
		// or a path that only exists remotely) pulls a folder
		if info, statErr := os.Stat(target); statErr == nil && !info.IsDir() {
			printResult("Pull", s.sync.DownloadFile(target))
			return
		}
		printResult("Pull", s.sync.DownloadFolder(cmd.Context(), target))
	},
}

var syncAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Push the entire local tree to the remote",
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openSession(true)
		if err != nil {
			util.Default.Printf("❌ %v\n", err)
			return
		}
		defer s.close()

		printResult("Sync", s.sync.SyncAll(cmd.Context()))
	},
}

var syncRmCmd = &cobra.Command{
	Use:   "rm <path>",
	Short: "Delete the remote counterpart of a local path",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openSession(true)
		if err != nil {
			util.Default.Printf("❌ %v\n", err)
			return
		}
		defer s.close()

		printResult("Remove", s.sync.DeleteRemote(args[0]))
	},
}

var syncMvCmd = &cobra.Command{
	Use:   "mv <old> <new>",
	Short: "Rename the remote counterpart after a local rename",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openSession(true)
		if err != nil {
			util.Default.Printf("❌ %v\n", err)
			return
		}
		defer s.close()

		printResult("Move", s.sync.MoveRemote(args[0], args[1]))
	},
}

var syncResetCacheCmd = &cobra.Command{
	Use:   "reset-cache",
	Short: "Clear the skip-cache so the next full sync retransfers everything",
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openSession(false)
		if err != nil {
			util.Default.Printf("❌ %v\n", err)
			return
		}
		defer s.close()

		if s.sync.Cache == nil {
			util.Default.Println("❌ Sync cache unavailable")
			return
		}
		if err := s.sync.Cache.Reset(); err != nil {
			util.Default.Printf("❌ Failed to reset cache: %v\n", err)
			return
		}
		util.Default.Println("🗑️  Sync cache cleared")
	},
}

func init() {
	syncCmd.AddCommand(pushCmd, pullCmd, syncAllCmd, syncRmCmd, syncMvCmd, syncResetCacheCmd)
	rootCmd.AddCommand(syncCmd)
}
