package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/teamcutter/apkx/internal/logger"
)

const (
	BackendSQLite = "sqlite"
	BackendJSON   = "json"
)

type Config struct {
	HomeDir      string `toml:"home_dir"`
	CacheDir     string `toml:"cache_dir"`
	StateFile    string `toml:"state_file"`
	ManifestFile string `toml:"manifest_file"`
	StateBackend string `toml:"state_backend"`
	OutputSuffix string `toml:"output_suffix"`
	LibDir       string `toml:"lib_dir"`
	NativeSuffix string `toml:"native_suffix"`
	LogLevel     string `toml:"log_level"`
	FetchTimeout string `toml:"fetch_timeout"`
}

func DefaultPath() string {
	return filepath.Join(defaultHome(), "config.toml")
}

func defaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".apkx")
}

func DefaultConfig() *Config {
	return defaultsFor(defaultHome())
}

func defaultsFor(base string) *Config {
	return &Config{
		HomeDir:      base,
		CacheDir:     filepath.Join(base, "cache"),
		StateFile:    filepath.Join(base, "state.db"),
		ManifestFile: filepath.Join(base, "history.json"),
		StateBackend: BackendSQLite,
		OutputSuffix: "_unpacked",
		LibDir:       "lib",
		NativeSuffix: ".so",
		LogLevel:     "info",
		FetchTimeout: "1h",
	}
}

// Load reads path, or DefaultPath when empty. A missing file yields defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.rebase(md)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// rebase moves the paths the file left unset under a custom home_dir.
func (c *Config) rebase(md toml.MetaData) {
	if !md.IsDefined("home_dir") {
		return
	}
	base := defaultsFor(c.HomeDir)
	if !md.IsDefined("cache_dir") {
		c.CacheDir = base.CacheDir
	}
	if !md.IsDefined("state_file") {
		c.StateFile = base.StateFile
	}
	if !md.IsDefined("manifest_file") {
		c.ManifestFile = base.ManifestFile
	}
}

func Save(cfg *Config, path string) error {
	if path == "" {
		path = DefaultPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func (c *Config) Validate() error {
	switch c.StateBackend {
	case BackendSQLite, BackendJSON:
	default:
		return fmt.Errorf("unknown state backend %q", c.StateBackend)
	}

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}

	if _, err := c.Timeout(); err != nil {
		return err
	}

	return nil
}

func (c *Config) Timeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.FetchTimeout)
	if err != nil {
		return 0, fmt.Errorf("fetch_timeout: %w", err)
	}
	return d, nil
}

func (c *Config) Level() logger.Level {
	level, _ := logger.ParseLevel(c.LogLevel)
	return level
}
