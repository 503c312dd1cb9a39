package cmd

import (
	"os"
	"testing"

	"revsync/internal/config"
)

// History-only commands must not gather auth material or dial anything: a
// profile with neither password nor key opens fine without a transport.
func TestOpenSessionWithoutTransportSkipsAuth(t *testing.T) {
	dir := t.TempDir()
	oldwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir failed: %v", err)
	}
	t.Cleanup(func() { os.Chdir(oldwd) })

	cfg := &config.Config{
		LocalPath:     dir,
		ActiveProfile: "test",
		Profiles: []config.Profile{{
			Name: "test", Host: "h", Port: "22", Username: "u",
			RemotePath: "/srv/app",
		}},
	}
	if err := cfg.Save(config.ConfigFileName); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	s, err := openSession(false)
	if err != nil {
		t.Fatalf("openSession failed: %v", err)
	}
	defer s.close()

	if s.client != nil {
		t.Errorf("history-only session built a transport client")
	}
	if s.hist == nil || s.sync == nil {
		t.Errorf("session missing history and sync wiring")
	}
}
