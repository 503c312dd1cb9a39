package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"revsync/internal/events"
	"revsync/internal/scheduler"
	"revsync/internal/util"
	"revsync/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the local tree and auto-upload saved files",
	Long: `Watch the local sync root for file saves. Each save schedules a debounced
upload of that file; rapid successive saves of the same file collapse into
one transfer. Requires sync.auto_upload to be enabled.`,
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openSession(true)
		if err != nil {
			util.Default.Printf("❌ %v\n", err)
			return
		}
		defer s.close()

		if !s.cfg.Sync.AutoUpload {
			util.Default.Println("❌ sync.auto_upload is disabled in revsync.yaml")
			return
		}

		// watch mode never blocks on overwrite prompts
		s.sync.Prompter = nil

		sched := scheduler.New(
			s.cfg.AutoUploadDelay(),
			true,
			s.sync.Resolver(),
			s.sync.Matcher(),
			func(localPath string) {
				res := s.sync.UploadFile(localPath)
				if res.Success {
					util.Default.Printf("⬆️  Uploaded %s\n", relOrSelf(s, localPath))
				} else {
					util.Default.Printf("❌ Upload of %s failed: %s\n", relOrSelf(s, localPath), joinErrors(res.Errors))
				}
			},
		)
		defer sched.Close()

		if err := events.GlobalBus.Subscribe(events.EventFileSaved, sched.Notify); err != nil {
			util.Default.Printf("❌ Failed to subscribe scheduler: %v\n", err)
			return
		}
		defer events.GlobalBus.Unsubscribe(events.EventFileSaved, sched.Notify)

		w := watch.NewWatcher(s.cfg.LocalPath)
		if err := w.Start(); err != nil {
			util.Default.Printf("❌ Failed to start watcher: %v\n", err)
			return
		}
		defer w.Stop()

		util.Default.Printf("👀 Watching %s (debounce %s) — Ctrl+C to stop\n",
			s.cfg.LocalPath, s.cfg.AutoUploadDelay())

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case <-cmd.Context().Done():
		case <-sigCh:
		}
		util.Default.Println("\n⏹ Shutting down watcher")
		events.GlobalBus.Publish(events.EventShutdownRequested, "watch command")
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
