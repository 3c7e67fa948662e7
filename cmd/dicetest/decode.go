package main

import (
	"strings"

	"github.com/shipq/dicetest/cli"
	"github.com/shipq/dicetest/dicetest"
	"github.com/shipq/dicetest/internal/config"
)

// runDecode prints the fields of a run code. It accepts the code alone or
// as printed in failure messages (DICETEST_DEBUG=<code>, debug:<code>).
func runDecode(args []string, out *cli.Output) int {
	if len(args) != 1 {
		return out.Error("usage: dicetest decode <code>")
	}

	raw := strings.TrimSpace(args[0])
	raw = strings.TrimPrefix(raw, config.EnvDebug+"=")
	raw = strings.TrimPrefix(raw, "debug:")

	code, err := dicetest.ParseRunCode(raw)
	if err != nil {
		return out.Errorf("%v", err)
	}

	out.Infof("seed:   %s", code.Seed)
	out.Infof("trial:  %d", code.Trial)
	out.Infof("size:   %d", code.Size)
	out.Infof("caps:   %d", len(code.Caps))
	if len(code.Caps) > 0 {
		rows := [][]string{{"  PATH", "SIZE", "SALT"}}
		for _, c := range code.Caps {
			rows = append(rows, []string{"  " + c.Path.String(), itoa(c.Size), utoa(c.Salt)})
		}
		if err := out.Table(rows); err != nil {
			return out.Errorf("%v", err)
		}
	}
	return 0
}
