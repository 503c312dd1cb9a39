package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

const ConfigFileName = "revsync.yaml"

// StateDirName is the directory beside the config that holds history
// snapshots, the index and the sync cache. Always excluded from sync.
const StateDirName = ".revsync"

// ErrNoActiveProfile is returned when an operation needs a connection target
// but the config names none.
var ErrNoActiveProfile = errors.New("no active profile configured")

// Config is the whole revsync.yaml file.
type Config struct {
	LocalPath     string    `yaml:"local_path"`
	ActiveProfile string    `yaml:"active_profile"`
	Profiles      []Profile `yaml:"profiles"`
	Retention     Retention `yaml:"retention"`
	Sync          Policy    `yaml:"sync"`
}

// Profile is one remote connection target. Auth is either a password or a
// private key (with optional passphrase); when both are set the key wins.
type Profile struct {
	Name       string   `yaml:"name"`
	Host       string   `yaml:"host"`
	Port       string   `yaml:"port"`
	Username   string   `yaml:"username"`
	Password   string   `yaml:"password,omitempty"`
	PrivateKey string   `yaml:"private_key,omitempty"`
	Passphrase string   `yaml:"passphrase,omitempty"`
	RemotePath string   `yaml:"remote_path"`
	Excludes   []string `yaml:"excludes,omitempty"`
}

// Retention caps history per local file. Zero disables the respective cap.
type Retention struct {
	MaxVersions int `yaml:"max_versions"`
	MaxAgeDays  int `yaml:"max_age_days"`
}

// Policy holds the sync tunables.
type Policy struct {
	ConfirmOverwrite  bool `yaml:"confirm_overwrite"`
	AutoUpload        bool `yaml:"auto_upload"`
	AutoUploadDelayMs int  `yaml:"auto_upload_delay_ms"`
}

var portRe = regexp.MustCompile(`^[0-9]+$`)

// ConfigExists checks whether revsync.yaml exists in the current directory.
func ConfigExists() bool {
	_, err := os.Stat(ConfigFileName)
	return err == nil
}

// Load reads and validates revsync.yaml from the current directory.
func Load() (*Config, error) {
	return LoadFrom(ConfigFileName)
}

// LoadFrom reads and validates a config file at the given path. LocalPath is
// made absolute (defaulting to the config file's directory) so every
// component downstream can rely on it.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %v", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %v", err)
	}

	if cfg.LocalPath == "" {
		cfg.LocalPath = filepath.Dir(path)
	}
	abs, err := filepath.Abs(cfg.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve local_path: %v", err)
	}
	cfg.LocalPath = abs

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config as YAML to the given path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %v", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks structural consistency: unique profile names, numeric
// ports, required connection fields, and that active_profile (when set)
// names a known profile.
func (c *Config) Validate() error {
	seen := map[string]bool{}
	for i := range c.Profiles {
		p := &c.Profiles[i]
		if p.Name == "" {
			return fmt.Errorf("profile %d: name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate profile name: %s", p.Name)
		}
		seen[p.Name] = true
		if p.Host == "" {
			return fmt.Errorf("profile %s: host is required", p.Name)
		}
		if p.Username == "" {
			return fmt.Errorf("profile %s: username is required", p.Name)
		}
		if p.Port == "" {
			p.Port = "22"
		}
		if !portRe.MatchString(p.Port) {
			return fmt.Errorf("profile %s: invalid port %q", p.Name, p.Port)
		}
		if p.RemotePath == "" {
			return fmt.Errorf("profile %s: remote_path is required", p.Name)
		}
	}
	if c.ActiveProfile != "" && !seen[c.ActiveProfile] {
		return fmt.Errorf("active_profile %q does not match any profile", c.ActiveProfile)
	}
	if c.Retention.MaxVersions < 0 {
		return fmt.Errorf("retention.max_versions must be >= 0")
	}
	if c.Retention.MaxAgeDays < 0 {
		return fmt.Errorf("retention.max_age_days must be >= 0")
	}
	if c.Sync.AutoUploadDelayMs < 0 {
		return fmt.Errorf("sync.auto_upload_delay_ms must be >= 0")
	}
	return nil
}

// Active returns the profile named by active_profile, or ErrNoActiveProfile.
func (c *Config) Active() (*Profile, error) {
	if c.ActiveProfile == "" {
		return nil, ErrNoActiveProfile
	}
	for i := range c.Profiles {
		if c.Profiles[i].Name == c.ActiveProfile {
			return &c.Profiles[i], nil
		}
	}
	return nil, ErrNoActiveProfile
}

// StateDir returns the on-disk state directory under the local root.
func (c *Config) StateDir() string {
	return filepath.Join(c.LocalPath, StateDirName)
}

// HistoryDir returns the directory holding the history index and snapshots.
func (c *Config) HistoryDir() string {
	return filepath.Join(c.StateDir(), "history")
}

// CacheDBPath returns the sqlite file used by the sync skip-cache.
func (c *Config) CacheDBPath() string {
	return filepath.Join(c.StateDir(), "file_cache.db")
}

// AutoUploadDelay returns the debounce delay as a duration, defaulting to
// one second when unset.
func (c *Config) AutoUploadDelay() time.Duration {
	if c.Sync.AutoUploadDelayMs <= 0 {
		return time.Second
	}
	return time.Duration(c.Sync.AutoUploadDelayMs) * time.Millisecond
}

// Default returns the template config written by `revsync init`.
func Default() *Config {
	return &Config{
		ActiveProfile: "default",
		Profiles: []Profile{
			{
				Name:       "default",
				Host:       "example.com",
				Port:       "22",
				Username:   "user",
				PrivateKey: "~/.ssh/id_rsa",
				RemotePath: "/var/www/project",
				Excludes:   []string{"*.log", "node_modules", ".git"},
			},
		},
		Retention: Retention{MaxVersions: 10, MaxAgeDays: 30},
		Sync: Policy{
			ConfirmOverwrite:  true,
			AutoUpload:        false,
			AutoUploadDelayMs: 1000,
		},
	}
}
