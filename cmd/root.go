package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"revsync/internal/config"
	"revsync/internal/history"
	"revsync/internal/sshclient"
	"revsync/internal/syncer"
	"revsync/internal/util"
)

var rootCmd = &cobra.Command{
	Use:   "revsync",
	Short: "Versioned remote sync tool",
	Long: `revsync synchronizes a local file tree with a remote directory over SSH
while keeping a versioned backup history of every transferred file, so any
prior state can be restored.`,
	Run: func(cmd *cobra.Command, args []string) {
		cwd, _ := os.Getwd()
		util.Default.Printf("You are in: %s\n", cwd)
		if !config.ConfigExists() {
			util.Default.Println("Config file not found")
			util.Default.Println("Run 'revsync init' to create revsync.yaml in this directory.")
			return
		}
		_ = cmd.Help()
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the CLI with a cancellation context threaded through
// every bulk operation.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// cliPrompter asks yes/no questions through promptui. Declining is a normal
// skip, never an error.
type cliPrompter struct{}

func (cliPrompter) Confirm(question string) bool {
	util.Default.Suspend()
	defer util.Default.Resume()
	prompt := promptui.Prompt{Label: question, IsConfirm: true}
	_, err := prompt.Run()
	return err == nil
}

// session bundles the wired components every command needs for the active
// profile. All singletons (connection, history store, engine) are built
// here, once, and passed down explicitly.
type session struct {
	cfg     *config.Config
	profile *config.Profile
	client  *sshclient.SSHClient
	hist    *history.Manager
	sync    *syncer.Syncer
}

// openSession loads the config, resolves the active profile and wires the
// engine. withTransport controls whether the SSH connection is established;
// history-only commands skip it.
func openSession(withTransport bool) (*session, error) {
	if !config.ConfigExists() {
		return nil, fmt.Errorf("no %s found; run 'revsync init' first", config.ConfigFileName)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	profile, err := cfg.Active()
	if err != nil {
		return nil, err
	}

	// history-only commands never touch the connection, so auth material
	// is only gathered when a transport is actually requested
	var client *sshclient.SSHClient
	if withTransport {
		if profile.Password == "" && profile.PrivateKey == "" {
			util.Default.Printf("Password for %s@%s: ", profile.Username, profile.Host)
			pw, err := term.ReadPassword(int(os.Stdin.Fd()))
			util.Default.Println()
			if err != nil {
				return nil, fmt.Errorf("failed to read password: %v", err)
			}
			profile.Password = string(pw)
		}
		client, err = sshclient.NewSSHClient(profile)
		if err != nil {
			return nil, err
		}
		if err := client.Connect(); err != nil {
			return nil, err
		}
		util.Default.Printf("🔗 Connected to %s@%s\n", profile.Username, profile.Host)
	}

	store := history.NewStore(cfg.HistoryDir(), cfg.Retention)
	hist := history.NewManager(store, profile.Name)

	s := syncer.New(cfg, profile, client, hist)
	s.Prompter = cliPrompter{}
	s.Progress = func(done, total int, rel string) {
		util.Default.StatusLine("🔄 [%d/%d] %s", done, total, rel)
	}
	if cache, err := syncer.NewFileCache(cfg.CacheDBPath()); err != nil {
		util.Default.Printf("⚠️  Sync cache unavailable: %v\n", err)
	} else {
		s.Cache = cache
	}

	return &session{cfg: cfg, profile: profile, client: client, hist: hist, sync: s}, nil
}

func (s *session) close() {
	if s.client != nil {
		_ = s.client.Close()
	}
}

// printResult renders a sync/rollback result in the shared format.
func printResult(label string, res syncer.Result) {
	util.Default.ClearLine()
	if res.Success {
		util.Default.Printf("✅ %s complete: %d files processed\n", label, res.FilesProcessed)
	} else {
		util.Default.Printf("❌ %s finished with errors: %d files processed, %d errors\n",
			label, res.FilesProcessed, len(res.Errors))
	}
	for _, e := range res.Errors {
		util.Default.Printf("   - %s\n", e)
	}
}

func relOrSelf(s *session, p string) string {
	if rel, err := s.sync.Resolver().Rel(p); err == nil {
		return rel
	}
	return p
}

func joinErrors(errs []string) string {
	return strings.Join(errs, "; ")
}
