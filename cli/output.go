// Package cli holds the terminal output helpers of the dicetest command.
package cli

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
)

// Output writes user-facing messages. Info and Success go to Stdout;
// warnings and errors go to Stderr.
type Output struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Std returns an Output over the process's standard streams.
func Std() *Output {
	return &Output{Stdout: os.Stdout, Stderr: os.Stderr}
}

// Info prints an informational message to stdout.
func (o *Output) Info(msg string) {
	fmt.Fprintln(o.Stdout, msg)
}

// Infof prints a formatted informational message to stdout.
func (o *Output) Infof(format string, args ...any) {
	fmt.Fprintf(o.Stdout, format+"\n", args...)
}

// Success prints a success message to stdout.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.Stdout, "✓", msg)
}

// Successf prints a formatted success message to stdout.
func (o *Output) Successf(format string, args ...any) {
	fmt.Fprintf(o.Stdout, "✓ "+format+"\n", args...)
}

// Warn prints a warning message to stderr.
func (o *Output) Warn(msg string) {
	fmt.Fprintln(o.Stderr, "warning:", msg)
}

// Warnf prints a formatted warning message to stderr.
func (o *Output) Warnf(format string, args ...any) {
	fmt.Fprintf(o.Stderr, "warning: "+format+"\n", args...)
}

// Error prints an error message to stderr and returns exit code 1.
func (o *Output) Error(msg string) int {
	fmt.Fprintln(o.Stderr, "error:", msg)
	return 1
}

// Errorf prints a formatted error message to stderr and returns exit code 1.
func (o *Output) Errorf(format string, args ...any) int {
	fmt.Fprintf(o.Stderr, "error: "+format+"\n", args...)
	return 1
}

// Table writes rows as aligned columns to stdout. The first row is the
// header.
func (o *Output) Table(rows [][]string) error {
	tw := tabwriter.NewWriter(o.Stdout, 0, 4, 2, ' ', 0)
	for _, row := range rows {
		for i, cell := range row {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, cell)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
