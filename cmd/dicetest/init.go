package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shipq/dicetest/cli"
	"github.com/shipq/dicetest/dicetest"
	"github.com/shipq/dicetest/inifile"
	"github.com/shipq/dicetest/internal/config"
	"github.com/shipq/dicetest/internal/project"
)

// dataDir holds the default sqlite regression store.
const dataDir = ".dicetest"

// runInit writes a dicetest.ini with the default settings and ignores the
// data directory in .gitignore.
func runInit(args []string, projectPath string, out *cli.Output) int {
	force := false
	for _, arg := range args {
		switch arg {
		case "--force", "-f":
			force = true
		default:
			return out.Errorf("unknown init flag %q", arg)
		}
	}

	dir, err := initDir(projectPath)
	if err != nil {
		return out.Errorf("%v", err)
	}

	path := filepath.Join(dir, config.ConfigFilename)
	if _, err := os.Stat(path); err == nil && !force {
		return out.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := defaultFile().WriteFile(path); err != nil {
		return out.Errorf("failed to write %s: %v", path, err)
	}
	out.Successf("Created %s", path)

	updated, err := ensureGitignore(dir)
	if err != nil {
		out.Warnf("failed to update .gitignore: %v", err)
	} else if updated {
		out.Info("  Updated .gitignore")
	}
	return 0
}

// initDir is --project when given, else where the config search would
// look first (see project.MustResolve).
func initDir(projectPath string) (string, error) {
	if projectPath == "" {
		return project.MustResolve("")
	}
	dir, err := filepath.Abs(projectPath)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return "", fmt.Errorf("project path is not a directory: %s", projectPath)
	}
	return dir, nil
}

func defaultFile() *inifile.File {
	d := dicetest.DefaultSettings()
	f := &inifile.File{}
	f.Set("run", "trials", strconv.Itoa(d.Trials))
	f.Set("run", "size", strconv.Itoa(d.Size))
	f.Set("run", "max_shrinks", strconv.Itoa(d.MaxShrinks))
	f.Set("run", "shrink_reseeds", strconv.Itoa(d.ShrinkReseeds))
	f.Set("run", "workers", strconv.Itoa(d.Workers))
	f.Set("regressions", "url", "sqlite:"+dataDir+"/regressions.db")
	f.Set("regressions", "record", "true")
	f.Set("log", "format", "off")
	f.Set("log", "level", "info")
	return f
}

// ensureGitignore adds the data directory to .gitignore. It reports
// whether the file changed.
func ensureGitignore(dir string) (bool, error) {
	gitignorePath := filepath.Join(dir, ".gitignore")
	entry := dataDir + "/"

	content, err := os.ReadFile(gitignorePath)
	if err != nil && !os.IsNotExist(err) {
		return false, err
	}

	if err == nil {
		for _, line := range strings.Split(string(content), "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == entry || trimmed == dataDir || trimmed == "/"+entry || trimmed == "/"+dataDir {
				return false, nil
			}
		}
	}

	var newContent string
	if len(content) == 0 {
		newContent = "# dicetest regression store\n" + entry + "\n"
	} else {
		existing := string(content)
		if !strings.HasSuffix(existing, "\n") {
			existing += "\n"
		}
		newContent = existing + "\n# dicetest regression store\n" + entry + "\n"
	}

	if err := os.WriteFile(gitignorePath, []byte(newContent), 0644); err != nil {
		return false, err
	}
	return true, nil
}
