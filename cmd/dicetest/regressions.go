package main

import (
	"context"
	"errors"
	"slices"

	"github.com/shipq/dicetest/cli"
	"github.com/shipq/dicetest/dburl"
	"github.com/shipq/dicetest/internal/config"
	"github.com/shipq/dicetest/regression"
)

var errNoStore = errors.New("no regression store configured (set [regressions] url in " +
	config.ConfigFilename + " or " + config.EnvRegressionsURL + ")")

// runRegressions implements "dicetest regressions list|clear".
func runRegressions(args []string, projectPath string, out *cli.Output) int {
	if len(args) == 0 {
		return out.Error("usage: dicetest regressions list | clear <property>... | clear --all [--force]")
	}

	var clear clearArgs
	switch args[0] {
	case "list":
	case "clear":
		var err error
		if clear, err = parseClearArgs(args[1:]); err != nil {
			return out.Errorf("%v", err)
		}
	default:
		return out.Errorf("unknown regressions subcommand %q", args[0])
	}

	url, err := storeURL(projectPath)
	if err != nil {
		return out.Errorf("%v", err)
	}
	// Same guard as a database reset: wiping a shared store takes --force.
	if clear.all && !clear.force && !dburl.IsLocalhost(url) {
		return out.Errorf("refusing to clear every regression in non-local store %s (use --force)", dburl.Redact(url))
	}

	ctx := context.Background()
	store, err := regression.Open(ctx, url)
	if err != nil {
		return out.Errorf("%v", err)
	}
	defer store.Close()

	if args[0] == "list" {
		return listRegressions(ctx, store, out)
	}
	return clearRegressions(ctx, store, clear, out)
}

func storeURL(projectPath string) (string, error) {
	cfg, err := loadConfig(projectPath)
	if err != nil {
		return "", err
	}
	if cfg.Regressions.URL == "" {
		return "", errNoStore
	}
	return dburl.ResolveRelative(cfg.Regressions.URL, cfg.ConfigDir), nil
}

func listRegressions(ctx context.Context, store regression.Store, out *cli.Output) int {
	entries, err := store.List(ctx)
	if err != nil {
		return out.Errorf("%v", err)
	}
	if len(entries) == 0 {
		out.Info("No regressions recorded.")
		return 0
	}

	rows := [][]string{{"PROPERTY", "RECORDED", "CODE", "FAILURE"}}
	for _, e := range entries {
		rows = append(rows, []string{
			e.Property,
			e.CreatedAt.Format("2006-01-02 15:04"),
			e.Code.String(),
			e.Detail,
		})
	}
	if err := out.Table(rows); err != nil {
		return out.Errorf("%v", err)
	}
	return 0
}

type clearArgs struct {
	properties []string
	all        bool
	force      bool
}

func parseClearArgs(args []string) (clearArgs, error) {
	var c clearArgs
	for _, arg := range args {
		switch arg {
		case "--all":
			c.all = true
		case "--force", "-f":
			c.force = true
		default:
			c.properties = append(c.properties, arg)
		}
	}
	switch {
	case c.all && len(c.properties) > 0:
		return c, errors.New("--all takes no property names")
	case !c.all && len(c.properties) == 0:
		return c, errors.New("usage: dicetest regressions clear <property>... | --all [--force]")
	}
	return c, nil
}

func clearRegressions(ctx context.Context, store regression.Store, args clearArgs, out *cli.Output) int {
	properties := args.properties
	if args.all {
		entries, err := store.List(ctx)
		if err != nil {
			return out.Errorf("%v", err)
		}
		for _, e := range entries {
			if !slices.Contains(properties, e.Property) {
				properties = append(properties, e.Property)
			}
		}
	}

	total := 0
	for _, p := range properties {
		n, err := store.Delete(ctx, p)
		if err != nil {
			return out.Errorf("%v", err)
		}
		if n == 0 && !args.all {
			out.Warnf("no regressions recorded for %q", p)
		}
		total += n
	}
	out.Successf("Deleted %d regression(s)", total)
	return 0
}
