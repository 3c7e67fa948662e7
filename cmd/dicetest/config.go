package main

import (
	"maps"
	"slices"
	"strconv"

	"github.com/shipq/dicetest/cli"
	"github.com/shipq/dicetest/dburl"
)

// runConfig prints the configuration go test would use from here.
func runConfig(args []string, projectPath string, out *cli.Output) int {
	if len(args) != 0 {
		return out.Error("usage: dicetest config")
	}

	cfg, err := loadConfig(projectPath)
	if err != nil {
		return out.Errorf("%v", err)
	}

	source := "defaults and environment"
	if cfg.FromFile {
		source = cfg.ConfigDir
	}
	seed := "fresh per run"
	if cfg.Run.Seed != nil {
		seed = cfg.Run.Seed.String()
	}
	regressions := "disabled"
	if cfg.Regressions.URL != "" {
		regressions = dburl.Redact(cfg.Regressions.URL)
	}
	timeout := "none"
	if cfg.Run.Timeout > 0 {
		timeout = cfg.Run.Timeout.String()
	}

	out.Infof("source:         %s", source)
	out.Infof("mode:           %s", cfg.Run.Mode)
	out.Infof("seed:           %s", seed)
	out.Infof("trials:         %d", cfg.Run.Trials)
	out.Infof("size:           %d", cfg.Run.Size)
	out.Infof("max shrinks:    %d", cfg.Run.MaxShrinks)
	out.Infof("shrink reseeds: %d", cfg.Run.ShrinkReseeds)
	out.Infof("workers:        %d", cfg.Run.Workers)
	out.Infof("timeout:        %s", timeout)
	out.Infof("regressions:    %s", regressions)
	out.Infof("log:            %s (%s)", cfg.Log.Format, cfg.Log.Level)
	for _, name := range slices.Sorted(maps.Keys(cfg.Properties)) {
		s := cfg.Settings(name)
		out.Infof("property %q: trials %d, size %d, max shrinks %d, skip %v",
			name, s.Trials, s.Size, s.MaxShrinks, cfg.Skipped(name))
	}
	return 0
}

func itoa(n int) string { return strconv.Itoa(n) }

func utoa(n uint64) string { return strconv.FormatUint(n, 10) }
