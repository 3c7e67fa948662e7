// Package project locates the dicetest.ini that applies to a directory.
//
// The search walks upward from the start directory and stops at the first
// directory holding dicetest.ini. It never leaves the enclosing Go module:
// the directory with go.mod is the last one checked, so a stray file in a
// parent checkout does not leak into an unrelated module's tests.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// ConfigFilename is the name of the dicetest config file.
	ConfigFilename = "dicetest.ini"

	GoModFile = "go.mod"
)

var (
	// ErrNotFound is returned when no dicetest.ini can be found.
	ErrNotFound = errors.New("dicetest.ini not found")

	// ErrNotInModule is returned when no go.mod encloses the directory.
	ErrNotInModule = errors.New("not in a Go module (no go.mod found)")
)

// Root describes a located config file.
type Root struct {
	// Dir is the absolute path to the directory holding dicetest.ini.
	Dir string

	// ConfigPath is the absolute path to dicetest.ini.
	ConfigPath string
}

// FindRoot searches upward from startDir for dicetest.ini. If startDir is
// empty, the current working directory is used.
//
// Returns (nil, false, nil) when nothing is found. Returns an error only for
// filesystem errors.
func FindRoot(startDir string) (*Root, bool, error) {
	absDir, err := absStart(startDir)
	if err != nil {
		return nil, false, err
	}

	dir := absDir
	for {
		configPath := filepath.Join(dir, ConfigFilename)
		info, err := os.Stat(configPath)
		if err == nil && !info.IsDir() {
			return &Root{Dir: dir, ConfigPath: configPath}, true, nil
		}
		if err != nil && !os.IsNotExist(err) {
			return nil, false, fmt.Errorf("failed to check %s: %w", configPath, err)
		}

		if HasGoMod(dir) {
			return nil, false, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, false, nil
		}
		dir = parent
	}
}

// Resolve is FindRoot, but not finding a config file is an error.
func Resolve(startDir string) (*Root, error) {
	root, found, err := FindRoot(startDir)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w\n"+
			"  Run 'dicetest init' to create one, or use --project to specify the directory",
			ErrNotFound)
	}
	return root, nil
}

// ResolveWithOverride returns the root at override if it is non-empty,
// requiring override to be a directory holding dicetest.ini. Otherwise it
// searches upward from the current directory.
func ResolveWithOverride(override string) (*Root, error) {
	if override == "" {
		return Resolve("")
	}

	absDir, err := filepath.Abs(override)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project path: %w", err)
	}

	info, err := os.Stat(absDir)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("project path does not exist: %s", override)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to access project path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project path is not a directory: %s", override)
	}

	configPath := filepath.Join(absDir, ConfigFilename)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w in %s", ErrNotFound, override)
	} else if err != nil {
		return nil, fmt.Errorf("failed to access config file: %w", err)
	}

	return &Root{Dir: absDir, ConfigPath: configPath}, nil
}

// MustResolve returns the directory a config file applies from: the found
// root, else the enclosing module root, else startDir itself. It is what
// `dicetest init` writes into.
func MustResolve(startDir string) (string, error) {
	root, found, err := FindRoot(startDir)
	if err != nil {
		return "", err
	}
	if found {
		return root.Dir, nil
	}
	if dir, err := FindModuleRoot(startDir); err == nil {
		return dir, nil
	}
	return absStart(startDir)
}

// FindModuleRoot walks up from startDir looking for go.mod.
func FindModuleRoot(startDir string) (string, error) {
	dir, err := absStart(startDir)
	if err != nil {
		return "", err
	}

	for {
		if HasGoMod(dir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNotInModule
		}
		dir = parent
	}
}

// HasGoMod returns true if the given directory contains a go.mod file.
func HasGoMod(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, GoModFile))
	return err == nil
}

func absStart(startDir string) (string, error) {
	if startDir == "" {
		var err error
		startDir, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
	}
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	return abs, nil
}
