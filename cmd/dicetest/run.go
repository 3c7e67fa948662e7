package main

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"

	"github.com/shipq/dicetest/cli"
	"github.com/shipq/dicetest/internal/config"
	"github.com/shipq/dicetest/internal/project"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = ""

// run dispatches commands and returns an exit code.
func run(args []string) int {
	return runWithOutput(args, os.Stdout, os.Stderr)
}

// runWithOutput dispatches commands with custom output writers.
func runWithOutput(args []string, stdout, stderr io.Writer) int {
	out := &cli.Output{Stdout: stdout, Stderr: stderr}

	var projectPath string
	var remaining []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if arg == "--project" {
			if i+1 >= len(args) {
				return out.Error("--project requires a path argument")
			}
			projectPath = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--project=") {
			projectPath = strings.TrimPrefix(arg, "--project=")
			continue
		}

		remaining = args[i:]
		break
	}

	if len(remaining) == 0 {
		printHelp(stdout)
		return 0
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]

	switch cmd {
	case "help", "--help", "-h":
		printHelp(stdout)
		return 0

	case "version", "--version", "-v":
		printVersion(stdout)
		return 0

	case "init":
		return runInit(cmdArgs, projectPath, out)

	case "decode":
		return runDecode(cmdArgs, out)

	case "config":
		return runConfig(cmdArgs, projectPath, out)

	case "regressions":
		return runRegressions(cmdArgs, projectPath, out)

	default:
		fmt.Fprintf(stderr, "error: unknown command %q\n\n", cmd)
		printHelp(stderr)
		return 1
	}
}

// loadConfig loads configuration for the --project directory, or by
// searching upward from the working directory.
func loadConfig(projectPath string) (*config.Config, error) {
	if projectPath == "" {
		return config.Load("")
	}
	root, err := project.ResolveWithOverride(projectPath)
	if err != nil {
		return nil, err
	}
	return config.Load(root.Dir)
}

// printHelp prints the top-level help message.
func printHelp(w io.Writer) {
	help := `dicetest - Property test run codes and regressions

Usage:
  dicetest <command> [arguments]

Commands:
  init [--force]                Create dicetest.ini in the module root
  decode <code>                 Show what a run code replays
  config                        Show the effective configuration
  regressions list              List recorded regressions
  regressions clear <property>  Delete the regressions of a property
  regressions clear --all       Delete every recorded regression
                                (--force for a non-local store)
  help                          Show this help message
  version                       Show version information

Global Flags:
  --project <path>  Directory holding dicetest.ini (default: search upward)
  --help, -h        Show this help message
  --version, -v     Show version information

Examples:
  # Replay a failure printed by go test
  DICETEST_DEBUG=<code> go test -run TestSort ./...

  dicetest decode <code>
  dicetest regressions clear "sort is idempotent"
`
	fmt.Fprint(w, help)
}

// printVersion prints the version string.
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "dicetest version %s\n", version())
}

func version() string {
	if Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}
