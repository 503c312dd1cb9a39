package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"revsync/cmd"
	"revsync/internal/config"
	"revsync/internal/events"
	"revsync/internal/util"
)

func main() {
	// Redirect the standard logger to a file under the state dir when a
	// workspace exists; terminal output goes through util.Default only.
	if config.ConfigExists() {
		logDir := filepath.Join(config.StateDirName, "logs")
		if err := os.MkdirAll(logDir, 0755); err == nil {
			if f, err := os.OpenFile(filepath.Join(logDir, "revsync.log"),
				os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
				defer f.Close()
				log.SetOutput(f)
				log.SetFlags(log.LstdFlags | log.Lmicroseconds)
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	shutdown := make(chan struct{})
	var shutdownOnce sync.Once

	// Components request shutdown via the event bus; cancel the command
	// tree and give it a bounded window to unwind.
	events.GlobalBus.Subscribe(events.EventShutdownRequested, func(reason string) {
		log.Printf("shutdown requested: %s", reason)
		cancel()
		shutdownOnce.Do(func() { close(shutdown) })
	})

	go func() {
		_ = cmd.ExecuteContext(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-shutdown:
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			log.Println("timeout waiting for command shutdown, forcing exit")
			util.Default.ClearLine()
			os.Exit(1)
		}
	}
	util.Default.ClearLine()
}
