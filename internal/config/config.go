// Package config loads dicetest settings from dicetest.ini and DICETEST_*
// environment variables. The file is optional; the environment wins over
// the file, and the file wins over dicetest.DefaultSettings.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shipq/dicetest/dicetest"
	"github.com/shipq/dicetest/inifile"
	"github.com/shipq/dicetest/internal/project"
	"github.com/shipq/dicetest/logging"
	"github.com/shipq/dicetest/prng"
)

// ConfigFilename is the name of the config file.
const ConfigFilename = project.ConfigFilename

// Environment variables. Each overrides the matching dicetest.ini key.
const (
	EnvSeed           = "DICETEST_SEED"
	EnvTrials         = "DICETEST_TRIALS"
	EnvSize           = "DICETEST_SIZE"
	EnvMaxShrinks     = "DICETEST_MAX_SHRINKS"
	EnvWorkers        = "DICETEST_WORKERS"
	EnvTimeout        = "DICETEST_TIMEOUT"
	EnvMode           = "DICETEST_MODE"
	EnvDebug          = "DICETEST_DEBUG"
	EnvDebugProperty  = "DICETEST_DEBUG_PROPERTY"
	EnvRegressionsURL = "DICETEST_REGRESSIONS_URL"
	EnvLog            = "DICETEST_LOG"
	EnvLogLevel       = "DICETEST_LOG_LEVEL"
)

// ErrInvalidConfig wraps every malformed file or environment value.
var ErrInvalidConfig = errors.New("invalid dicetest configuration")

// Config holds the merged configuration.
type Config struct {
	// ConfigDir is the directory holding dicetest.ini, or the directory
	// Load was asked about when there is no file.
	ConfigDir string

	// FromFile reports whether a dicetest.ini was read.
	FromFile bool

	Run         RunConfig
	Regressions RegressionsConfig
	Log         LogConfig

	// Properties holds [property.<name>] overrides keyed by name.
	Properties map[string]PropertyConfig
}

// RunConfig holds the [run] section.
type RunConfig struct {
	Trials        int
	Size          int
	Seed          *prng.Seed
	MaxShrinks    int
	ShrinkReseeds int
	Workers       int
	Timeout       time.Duration
	Mode          dicetest.Mode

	// DebugProperty limits DICETEST_DEBUG to one property. Other
	// properties run in FallbackMode.
	DebugProperty string
	FallbackMode  dicetest.Mode
}

// RegressionsConfig holds the [regressions] section.
type RegressionsConfig struct {
	// URL selects a regression store (see package dburl). Empty disables
	// the persistent store.
	URL string

	// Codes are replayed for every property, on top of stored ones.
	Codes []dicetest.RunCode

	// Record saves new failures to the store. Default: true.
	Record bool
}

// LogConfig holds the [log] section.
type LogConfig struct {
	Format logging.Format
	Level  slog.Level
}

// PropertyConfig overrides [run] for one named property. Nil fields
// inherit, so an explicit 0 (max_shrinks = 0) still applies.
type PropertyConfig struct {
	Trials     *int
	Size       *int
	MaxShrinks *int
	Skip       bool
}

// Load reads configuration for dir, searching upward for dicetest.ini
// (see package project). If dir is empty, the current directory is used.
func Load(dir string) (*Config, error) {
	return LoadEnv(dir, os.Getenv)
}

// LoadEnv is Load with an explicit environment lookup.
func LoadEnv(dir string, getenv func(string) string) (*Config, error) {
	root, found, err := project.FindRoot(dir)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if found {
		f, err := inifile.ParseFile(root.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse %s: %w", ErrInvalidConfig, ConfigFilename, err)
		}
		cfg.ConfigDir = root.Dir
		cfg.FromFile = true
		if err := cfg.apply(f); err != nil {
			return nil, err
		}
	} else {
		if dir == "" {
			dir, err = os.Getwd()
			if err != nil {
				return nil, fmt.Errorf("failed to get current directory: %w", err)
			}
		}
		cfg.ConfigDir, _ = filepath.Abs(dir)
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	if err := cfg.Settings("").Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	for name := range cfg.Properties {
		if err := cfg.Settings(name).Validate(); err != nil {
			return nil, fmt.Errorf("%w: [property.%s]: %w", ErrInvalidConfig, name, err)
		}
	}
	return cfg, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	d := dicetest.DefaultSettings()
	return &Config{
		Run: RunConfig{
			Trials:        d.Trials,
			Size:          d.Size,
			MaxShrinks:    d.MaxShrinks,
			ShrinkReseeds: d.ShrinkReseeds,
			Workers:       d.Workers,
		},
		Regressions: RegressionsConfig{Record: true},
		Log:         LogConfig{Format: logging.FormatOff, Level: slog.LevelInfo},
		Properties:  make(map[string]PropertyConfig),
	}
}

// Settings returns engine settings for the named property. The Logger
// field is left nil; see Logger.
func (c *Config) Settings(property string) dicetest.Settings {
	s := dicetest.DefaultSettings()
	s.Trials = c.Run.Trials
	s.Size = c.Run.Size
	s.Seed = c.Run.Seed
	s.MaxShrinks = c.Run.MaxShrinks
	s.ShrinkReseeds = c.Run.ShrinkReseeds
	s.Workers = c.Run.Workers
	s.Timeout = c.Run.Timeout
	s.Regressions = append([]dicetest.RunCode(nil), c.Regressions.Codes...)

	if p, ok := c.Properties[property]; ok && property != "" {
		if p.Trials != nil {
			s.Trials = *p.Trials
		}
		if p.Size != nil {
			s.Size = *p.Size
		}
		if p.MaxShrinks != nil {
			s.MaxShrinks = *p.MaxShrinks
		}
	}
	return s
}

// Mode returns the run mode for the named property. A run code from
// DICETEST_DEBUG only replays the property DICETEST_DEBUG_PROPERTY names,
// or every property when that is unset.
func (c *Config) Mode(property string) dicetest.Mode {
	if c.Run.Mode.Kind == dicetest.ModeDebug && c.Run.DebugProperty != "" && c.Run.DebugProperty != property {
		return c.Run.FallbackMode
	}
	return c.Run.Mode
}

// Skipped reports whether the named property is marked skip.
func (c *Config) Skipped(property string) bool {
	return c.Properties[property].Skip
}

// Logger returns a logger for the [log] settings writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	return logging.New(c.Log.Format, c.Log.Level, w)
}

func (c *Config) apply(f *inifile.File) error {
	if err := parseRunSection(f.Section("run"), &c.Run); err != nil {
		return err
	}
	if err := parseRegressionsSection(f.Section("regressions"), &c.Regressions); err != nil {
		return err
	}
	if err := parseLogSection(f.Section("log"), &c.Log); err != nil {
		return err
	}
	return parsePropertySections(f, c.Properties)
}

// parseRunSection parses the [run] section.
func parseRunSection(s *inifile.Section, cfg *RunConfig) error {
	for key, dst := range map[string]*int{
		"trials":         &cfg.Trials,
		"size":           &cfg.Size,
		"max_shrinks":    &cfg.MaxShrinks,
		"shrink_reseeds": &cfg.ShrinkReseeds,
		"workers":        &cfg.Workers,
	} {
		v, ok, err := s.Int(key)
		if err != nil {
			return fileError(err)
		}
		if ok {
			*dst = v
		}
	}

	if v, ok, err := s.Duration("timeout"); err != nil {
		return fileError(err)
	} else if ok {
		cfg.Timeout = v
	}

	if v := s.Get("seed"); v != "" {
		seed := prng.ParseSeedOrLabel(v)
		cfg.Seed = &seed
	}

	if v := s.Get("mode"); v != "" {
		mode, err := dicetest.ParseMode(v)
		if err != nil {
			return fmt.Errorf("%w: %s: run.mode: %w", ErrInvalidConfig, ConfigFilename, err)
		}
		cfg.Mode = mode
	}
	return nil
}

// parseRegressionsSection parses the [regressions] section. code may repeat.
func parseRegressionsSection(s *inifile.Section, cfg *RegressionsConfig) error {
	cfg.URL = s.Get("url")

	for _, raw := range s.GetAll("code") {
		code, err := dicetest.ParseRunCode(raw)
		if err != nil {
			return fmt.Errorf("%w: %s: regressions.code: %w", ErrInvalidConfig, ConfigFilename, err)
		}
		cfg.Codes = append(cfg.Codes, code)
	}

	if v, ok, err := s.Bool("record"); err != nil {
		return fileError(err)
	} else if ok {
		cfg.Record = v
	}
	return nil
}

// parseLogSection parses the [log] section.
func parseLogSection(s *inifile.Section, cfg *LogConfig) error {
	if v := s.Get("format"); v != "" {
		format, err := logging.ParseFormat(v)
		if err != nil {
			return fmt.Errorf("%w: %s: log.format: %w", ErrInvalidConfig, ConfigFilename, err)
		}
		cfg.Format = format
	}
	if v := s.Get("level"); v != "" {
		level, err := logging.ParseLevel(v)
		if err != nil {
			return fmt.Errorf("%w: %s: log.level: %w", ErrInvalidConfig, ConfigFilename, err)
		}
		cfg.Level = level
	}
	return nil
}

// parsePropertySections parses [property.<name>] sections.
func parsePropertySections(f *inifile.File, props map[string]PropertyConfig) error {
	sections := f.SectionsWithPrefix("property.")
	for i := range sections {
		s := &sections[i]
		name := strings.TrimPrefix(s.Name, "property.")
		if name == "" {
			return fmt.Errorf("%w: %s: [property.] needs a property name", ErrInvalidConfig, ConfigFilename)
		}

		var p PropertyConfig
		for key, dst := range map[string]**int{
			"trials":      &p.Trials,
			"size":        &p.Size,
			"max_shrinks": &p.MaxShrinks,
		} {
			v, ok, err := s.Int(key)
			if err != nil {
				return fileError(err)
			}
			if ok {
				*dst = &v
			}
		}
		skip, _, err := s.Bool("skip")
		if err != nil {
			return fileError(err)
		}
		p.Skip = skip
		props[name] = p
	}
	return nil
}

func fileError(err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, ConfigFilename, err)
}

// applyEnv applies DICETEST_* overrides.
func (c *Config) applyEnv(getenv func(string) string) error {
	for name, dst := range map[string]*int{
		EnvTrials:     &c.Run.Trials,
		EnvSize:       &c.Run.Size,
		EnvMaxShrinks: &c.Run.MaxShrinks,
		EnvWorkers:    &c.Run.Workers,
	} {
		if v := getenv(name); v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return envError(name, v, err)
			}
			*dst = n
		}
	}

	if v := getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return envError(EnvTimeout, v, err)
		}
		c.Run.Timeout = d
	}

	if v := getenv(EnvSeed); v != "" {
		seed := prng.ParseSeedOrLabel(v)
		c.Run.Seed = &seed
	}

	if v := getenv(EnvMode); v != "" {
		mode, err := dicetest.ParseMode(v)
		if err != nil {
			return envError(EnvMode, v, err)
		}
		c.Run.Mode = mode
	}

	levelSet := false
	if v := getenv(EnvLogLevel); v != "" {
		level, err := logging.ParseLevel(v)
		if err != nil {
			return envError(EnvLogLevel, v, err)
		}
		c.Log.Level = level
		levelSet = true
	}
	if v := getenv(EnvLog); v != "" {
		format, err := logging.ParseFormat(v)
		if err != nil {
			return envError(EnvLog, v, err)
		}
		c.Log.Format = format
	}

	// DICETEST_DEBUG=<code> is what failure messages print. It replays
	// that code with per-draw logging.
	if v := getenv(EnvDebug); v != "" {
		code, err := dicetest.ParseRunCode(strings.TrimSpace(v))
		if err != nil {
			return envError(EnvDebug, v, err)
		}
		c.Run.FallbackMode = c.Run.Mode
		c.Run.Mode = dicetest.Debug(code)
		c.Run.DebugProperty = getenv(EnvDebugProperty)
		if !levelSet {
			c.Log.Level = slog.LevelDebug
		}
		if c.Log.Format == logging.FormatOff {
			c.Log.Format = logging.FormatText
		}
	}

	if v := getenv(EnvRegressionsURL); v != "" {
		c.Regressions.URL = v
	}
	return nil
}

func envError(name, value string, err error) error {
	var ne *strconv.NumError
	if errors.As(err, &ne) {
		err = ne.Err
	}
	return fmt.Errorf("%w: %s=%q: %w", ErrInvalidConfig, name, value, err)
}
