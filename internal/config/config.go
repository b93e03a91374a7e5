// Package config manages YAML-based configuration and CLI flags.
package config

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for astrohub
type Config struct {
	// Root the pattern is resolved against; empty means the working directory.
	Root string `yaml:"root,omitempty" json:"root,omitempty"`
	// GitRef, when set, reads Root as a git repository at that ref.
	GitRef string `yaml:"git_ref,omitempty" json:"git_ref,omitempty"`
	// Pattern is the glob selecting files and directories to collect.
	Pattern string `yaml:"pattern" json:"pattern"`

	Port       int      `yaml:"port" json:"port"`
	Watch      bool     `yaml:"watch" json:"watch"`
	Open       bool     `yaml:"open" json:"open"`
	Extensions []string `yaml:"extensions" json:"extensions"`
	Exclude    []string `yaml:"exclude" json:"exclude"`
	SortFields []string `yaml:"sort_fields,omitempty" json:"sort_fields,omitempty"`
	Join       string   `yaml:"join,omitempty" json:"join,omitempty"`

	// Internal: path to config file for saving
	configPath string
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Pattern:    ".",
		Port:       8080,
		Watch:      true,
		Open:       false,
		Extensions: []string{".fits", ".fit", ".fts"},
		Exclude:    []string{".git", ".svn", "*.tmp"},
		SortFields: []string{"DATE-OBS", "MJD-OBS", "JD"},
		Join:       ", ",
	}
}

// GetConfigDir returns the config directory path
func GetConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/astrohub"
	}
	return filepath.Join(home, ".config", "astrohub")
}

// GetConfigPath returns the full path to the config file
func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// Load loads configuration from file and command line flags
func Load() (*Config, error) {
	return LoadArgs(flag.CommandLine, os.Args[1:])
}

// LoadArgs is Load with an explicit flag set and argument list.
func LoadArgs(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := DefaultConfig()

	// Allow `astrohub serve --pattern ...`
	if len(args) > 0 && args[0] == "serve" {
		args = args[1:]
	}

	// Define command line flags with sentinel values to detect if set
	pattern := fs.String("pattern", "", "Glob of data files or directories")
	root := fs.String("root", "", "Directory the pattern is resolved against")
	gitRef := fs.String("git-ref", "", "Read root as a git repository at this ref")
	port := fs.Int("port", 0, "HTTP server port")
	sortFields := fs.String("sort", "", "Comma-separated header fields to sort by")
	watch := fs.Bool("watch", true, "Reload when files change")
	open := fs.Bool("open", false, "Open browser on startup")
	configFile := fs.String("config", "", "Configuration file path")

	fs.StringVar(pattern, "p", "", "Glob of data files or directories (shorthand)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *pattern == "" && fs.NArg() > 0 {
		*pattern = fs.Arg(0)
	}

	// Determine config file path
	var cfgPath string
	if *configFile != "" {
		cfgPath = *configFile
	} else {
		globalConfig := GetConfigPath()
		if _, err := os.Stat(globalConfig); err == nil {
			cfgPath = globalConfig
		} else if _, err := os.Stat("astrohub.yaml"); err == nil {
			cfgPath = "astrohub.yaml"
		}
	}

	if cfgPath != "" {
		if err := cfg.loadFromFile(cfgPath); err != nil && *configFile != "" {
			// Only return error if user explicitly specified config file
			return nil, err
		}
		cfg.configPath = cfgPath
	} else {
		cfg.configPath = GetConfigPath()
	}

	// Command line flags override config file (only if explicitly set)
	if *pattern != "" {
		cfg.Pattern = *pattern
	}
	if *root != "" {
		cfg.Root = *root
	}
	if *gitRef != "" {
		cfg.GitRef = *gitRef
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *sortFields != "" {
		cfg.SortFields = splitList(*sortFields)
	}
	cfg.Watch = *watch
	cfg.Open = *open

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// Save saves the current configuration to the config file
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.New("no config file path set")
	}
	if err := os.MkdirAll(filepath.Dir(c.configPath), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(c.configPath, data, 0644)
}

// GetConfigFilePath returns the path to the config file
func (c *Config) GetConfigFilePath() string {
	return c.configPath
}

// SetConfigFilePath changes where Save writes
func (c *Config) SetConfigFilePath(path string) {
	c.configPath = path
}

// SetSortFields replaces the default sort fields
func (c *Config) SetSortFields(fields []string) {
	c.SortFields = append([]string(nil), fields...)
}

// IsExcluded checks if a path should be excluded
func (c *Config) IsExcluded(path string) bool {
	base := filepath.Base(path)
	for _, exclude := range c.Exclude {
		if matched, _ := filepath.Match(exclude, base); matched {
			return true
		}
	}
	return false
}

// IsDataFile checks if a file has a supported data file extension
func (c *Config) IsDataFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range c.Extensions {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}
