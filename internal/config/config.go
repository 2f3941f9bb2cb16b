// Package config loads dirstore CLI configuration.
//
// Sources are layered, highest priority last:
//  1. built-in defaults
//  2. a YAML file (--config, or dirstore.yaml / dirstore.yml in the working directory)
//  3. DIRSTORE_* environment variables
//  4. command-line flags that were explicitly set
//
// The merged result is checked against an embedded CUE schema before use.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

//go:embed schema.cue
var schemaCUE string

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "DIRSTORE_"

// Defaults.
const (
	DefaultRoot             = ".dirstore"
	DefaultFormat           = "text"
	DefaultLogLevel         = "warn"
	DefaultLogFormat        = "text"
	DefaultLockTimeout      = 5 * time.Second
	DefaultLockPollInterval = 10 * time.Millisecond
	DefaultWatchDebounce    = 50 * time.Millisecond
)

// Config is the merged CLI configuration.
type Config struct {
	Root      string         `koanf:"root"`
	Format    string         `koanf:"format"`
	Verbose   bool           `koanf:"verbose"`
	LogLevel  string         `koanf:"log_level"`
	LogFormat string         `koanf:"log_format"`
	Lock      LockConfig     `koanf:"lock"`
	Snapshot  SnapshotConfig `koanf:"snapshot"`
	Watch     WatchConfig    `koanf:"watch"`

	// File is the config file that was read, if any.
	File string `koanf:"-"`
}

// LockConfig tunes per-key locking.
type LockConfig struct {
	Timeout      time.Duration `koanf:"timeout"`
	PollInterval time.Duration `koanf:"poll_interval"`
}

// SnapshotConfig tunes export and import.
type SnapshotConfig struct {
	// Workers bounds parallel record reads during export. Zero means one
	// per CPU.
	Workers int `koanf:"workers"`
}

// WatchConfig tunes the change watcher.
type WatchConfig struct {
	Debounce time.Duration `koanf:"debounce"`
}

// knownKeys lists every flattened key a config source may set.
var knownKeys = []string{
	"root", "format", "verbose", "log_level", "log_format",
	"lock.timeout", "lock.poll_interval",
	"snapshot.workers",
	"watch.debounce",
}

// flagKeys maps flag names to config keys where they differ from the
// kebab-to-snake rule.
var flagKeys = map[string]string{
	"lock-timeout": "lock.timeout",
}

func defaults() map[string]any {
	return map[string]any{
		"root":               DefaultRoot,
		"format":             DefaultFormat,
		"verbose":            false,
		"log_level":          DefaultLogLevel,
		"log_format":         DefaultLogFormat,
		"lock.timeout":       DefaultLockTimeout.String(),
		"lock.poll_interval": DefaultLockPollInterval.String(),
		"snapshot.workers":   0,
		"watch.debounce":     DefaultWatchDebounce.String(),
	}
}

// findConfigFile returns the file to read. Priority: explicit path >
// dirstore.yaml > dirstore.yml.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"dirstore.yaml", "dirstore.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// envKey maps DIRSTORE_LOCK_POLL_INTERVAL to lock.poll_interval.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, section := range []string{"lock", "snapshot", "watch"} {
		if rest, ok := strings.CutPrefix(key, section+"_"); ok {
			return section + "." + rest
		}
	}
	return key
}

// Load merges all configuration sources. flags may be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	used := findConfigFile(cfgFile)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// 3. Environment
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			if !slices.Contains(knownKeys, key) {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	for _, key := range k.Keys() {
		if !slices.Contains(knownKeys, key) {
			return nil, fmt.Errorf("unknown configuration key %q", key)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = used

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg against the embedded schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := ctx.Encode(c.schemaView())
	if err := v.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// schemaView is the config in the shape the schema describes.
func (c *Config) schemaView() map[string]any {
	return map[string]any{
		"root":       c.Root,
		"format":     c.Format,
		"verbose":    c.Verbose,
		"log_level":  c.LogLevel,
		"log_format": c.LogFormat,
		"lock": map[string]any{
			"timeout":       int64(c.Lock.Timeout),
			"poll_interval": int64(c.Lock.PollInterval),
		},
		"snapshot": map[string]any{
			"workers": c.Snapshot.Workers,
		},
		"watch": map[string]any{
			"debounce": int64(c.Watch.Debounce),
		},
	}
}
