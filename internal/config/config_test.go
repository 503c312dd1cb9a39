package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	p := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return p
}

func TestLoadValidConfig(t *testing.T) {
	dir := t.TempDir()
	p := writeConfig(t, dir, `
active_profile: staging
profiles:
  - name: staging
    host: staging.example.com
    username: deploy
    private_key: /tmp/id_rsa
    remote_path: /srv/app
    excludes:
      - "*.log"
retention:
  max_versions: 5
  max_age_days: 14
sync:
  confirm_overwrite: true
  auto_upload: true
  auto_upload_delay_ms: 250
`)

	cfg, err := LoadFrom(p)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.LocalPath != dir {
		t.Errorf("LocalPath = %q, expected config dir %q", cfg.LocalPath, dir)
	}

	profile, err := cfg.Active()
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if profile.Name != "staging" || profile.Port != "22" {
		t.Errorf("unexpected profile: %+v (port should default to 22)", profile)
	}
	if cfg.Retention.MaxVersions != 5 || cfg.Retention.MaxAgeDays != 14 {
		t.Errorf("unexpected retention: %+v", cfg.Retention)
	}
	if cfg.AutoUploadDelay().Milliseconds() != 250 {
		t.Errorf("AutoUploadDelay = %v, expected 250ms", cfg.AutoUploadDelay())
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	base := func() *Config {
		return &Config{
			Profiles: []Profile{
				{Name: "a", Host: "h", Username: "u", Port: "22", RemotePath: "/srv"},
			},
		}
	}

	cases := []struct {
		desc   string
		mutate func(*Config)
	}{
		{"duplicate names", func(c *Config) {
			c.Profiles = append(c.Profiles, c.Profiles[0])
		}},
		{"missing host", func(c *Config) { c.Profiles[0].Host = "" }},
		{"missing username", func(c *Config) { c.Profiles[0].Username = "" }},
		{"missing remote path", func(c *Config) { c.Profiles[0].RemotePath = "" }},
		{"bad port", func(c *Config) { c.Profiles[0].Port = "ssh" }},
		{"unknown active profile", func(c *Config) { c.ActiveProfile = "nope" }},
		{"negative retention", func(c *Config) { c.Retention.MaxVersions = -1 }},
		{"negative delay", func(c *Config) { c.Sync.AutoUploadDelayMs = -5 }},
	}
	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			c := base()
			tc.mutate(c)
			if err := c.Validate(); err == nil {
				t.Errorf("expected validation error for %s", tc.desc)
			}
		})
	}
}

func TestActiveWithoutProfile(t *testing.T) {
	c := &Config{}
	if _, err := c.Active(); err != ErrNoActiveProfile {
		t.Fatalf("expected ErrNoActiveProfile, got %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.LocalPath = dir

	p := filepath.Join(dir, ConfigFileName)
	if err := cfg.Save(p); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := LoadFrom(p)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if loaded.ActiveProfile != cfg.ActiveProfile {
		t.Errorf("active profile lost in round trip")
	}
	if len(loaded.Profiles) != len(cfg.Profiles) {
		t.Errorf("profiles lost in round trip")
	}
}

func TestStatePaths(t *testing.T) {
	c := &Config{LocalPath: filepath.FromSlash("/work/project")}
	if c.StateDir() != filepath.FromSlash("/work/project/.revsync") {
		t.Errorf("StateDir = %q", c.StateDir())
	}
	if c.HistoryDir() != filepath.FromSlash("/work/project/.revsync/history") {
		t.Errorf("HistoryDir = %q", c.HistoryDir())
	}
}
