// Command dicetest inspects run codes and manages the regression store of
// a dicetest project.
package main

import "os"

func main() {
	os.Exit(run(os.Args[1:]))
}
