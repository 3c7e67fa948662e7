// Package check runs dicetest properties from go test.
//
// Settings come from dicetest.ini and DICETEST_* variables (see
// internal/config). A failing property reports its shrunk value and the
// run code that reproduces it:
//
//	DICETEST_DEBUG=<code> DICETEST_DEBUG_PROPERTY='<property>' go test -run TestSort ./...
//
// When [regressions] url is set, failures are recorded there and replayed
// before any random trial on later runs.
package check

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/shipq/dicetest/dburl"
	"github.com/shipq/dicetest/dicetest"
	"github.com/shipq/dicetest/internal/config"
	"github.com/shipq/dicetest/logging"
	"github.com/shipq/dicetest/prng"
	"github.com/shipq/dicetest/proptest"
	"github.com/shipq/dicetest/regression"
)

var loadConfig = sync.OnceValues(func() (*config.Config, error) {
	return config.Load("")
})

// Option customizes a single check.
type Option func(*runner)

// WithConfig replaces the configuration loaded from dicetest.ini and the
// environment.
func WithConfig(cfg *config.Config) Option {
	return func(r *runner) { r.cfg = cfg }
}

// WithStore replaces the regression store named by the configuration.
func WithStore(s regression.Store) Option {
	return func(r *runner) { r.store = s }
}

// WithMode overrides the configured mode.
func WithMode(m dicetest.Mode) Option {
	return func(r *runner) { r.mode = &m }
}

// WithSettings edits the engine settings after configuration is applied.
func WithSettings(f func(*dicetest.Settings)) Option {
	return func(r *runner) { r.edits = append(r.edits, f) }
}

// Trials sets the number of trials.
func Trials(n int) Option {
	return WithSettings(func(s *dicetest.Settings) { s.Trials = n })
}

type runner struct {
	cfg   *config.Config
	store regression.Store
	mode  *dicetest.Mode
	edits []func(*dicetest.Settings)
	fatal bool
}

// Check runs pred against values of gen and reports a failure through t.
// The returned report is nil if the check could not start.
//
// Example:
//
//	check.Check(t, "sort is idempotent", proptest.Slice(proptest.Int()), func(xs []int) error {
//	    once := slices.Sorted(slices.Values(xs))
//	    if !slices.Equal(once, slices.Sorted(slices.Values(once))) {
//	        return errors.New("second sort changed the slice")
//	    }
//	    return nil
//	})
func Check[T any](t testing.TB, name string, gen proptest.Gen[T], pred func(T) error, opts ...Option) *dicetest.Report {
	t.Helper()
	return run(t, name, dicetest.ForAll(gen, pred), opts)
}

// MustCheck is like Check but calls t.Fatal instead of t.Error on failure.
func MustCheck[T any](t testing.TB, name string, gen proptest.Gen[T], pred func(T) error, opts ...Option) *dicetest.Report {
	t.Helper()
	return run(t, name, dicetest.ForAll(gen, pred), append(opts, func(r *runner) { r.fatal = true }))
}

// QuickCheck runs a boolean property.
//
// Example:
//
//	check.QuickCheck(t, "abs is non-negative", proptest.Int(), func(n int) bool {
//	    return abs(n) >= 0
//	})
func QuickCheck[T any](t testing.TB, name string, gen proptest.Gen[T], pred func(T) bool, opts ...Option) *dicetest.Report {
	t.Helper()
	return run(t, name, dicetest.Holds(gen, pred), opts)
}

// ForAll runs a boolean property for the given number of trials.
func ForAll[T any](t testing.TB, name string, trials int, gen proptest.Gen[T], pred func(T) bool) *dicetest.Report {
	t.Helper()
	return run(t, name, dicetest.Holds(gen, pred), []Option{Trials(trials)})
}

// ForAll2 runs a property over two independent values.
func ForAll2[A, B any](t testing.TB, name string, ga proptest.Gen[A], gb proptest.Gen[B], pred func(A, B) bool, opts ...Option) *dicetest.Report {
	t.Helper()
	gen := proptest.Zip(ga, gb)
	return run(t, name, dicetest.Holds(gen, func(p proptest.Pair[A, B]) bool {
		return pred(p.First, p.Second)
	}), opts)
}

// ForAll3 runs a property over three independent values.
func ForAll3[A, B, C any](t testing.TB, name string, ga proptest.Gen[A], gb proptest.Gen[B], gc proptest.Gen[C], pred func(A, B, C) bool, opts ...Option) *dicetest.Report {
	t.Helper()
	gen := proptest.Zip3(ga, gb, gc)
	return run(t, name, dicetest.Holds(gen, func(v proptest.Triple[A, B, C]) bool {
		return pred(v.First, v.Second, v.Third)
	}), opts)
}

// Replay runs the single trial code describes, with per-draw logging, and
// fails t if it still fails.
func Replay[T any](t testing.TB, name, code string, gen proptest.Gen[T], pred func(T) error, opts ...Option) *dicetest.Report {
	t.Helper()
	rc, err := dicetest.ParseRunCode(code)
	if err != nil {
		t.Fatalf("dicetest %q: %v", name, err)
		return nil
	}
	return run(t, name, dicetest.ForAll(gen, pred), append(opts, WithMode(dicetest.Debug(rc))))
}

// RunCodes replays each code as its own subtest. Useful for pinning known
// failures in source.
func RunCodes[T any](t *testing.T, name string, codes []string, gen proptest.Gen[T], pred func(T) error, opts ...Option) {
	t.Helper()
	for _, code := range codes {
		t.Run(code, func(t *testing.T) {
			Replay(t, name, code, gen, pred, opts...)
		})
	}
}

// Benchmark generates b.N values of gen, each from a fresh context.
func Benchmark[T any](b *testing.B, gen proptest.Gen[T]) {
	size := dicetest.DefaultSettings().Size
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		gen.Generate(proptest.NewContext(prng.Seed(i), size))
	}
}

func run(t testing.TB, name string, prop dicetest.Property, opts []Option) *dicetest.Report {
	t.Helper()

	r := &runner{}
	for _, opt := range opts {
		opt(r)
	}
	if r.cfg == nil {
		cfg, err := loadConfig()
		if err != nil {
			t.Fatalf("dicetest %q: %v", name, err)
			return nil
		}
		r.cfg = cfg
	}
	if r.cfg.Skipped(name) {
		t.Skipf("dicetest %q: skipped by %s", name, config.ConfigFilename)
		return nil
	}

	mode := r.cfg.Mode(name)
	if r.mode != nil {
		mode = *r.mode
	}

	ctx := t.Context()
	settings := r.cfg.Settings(name)
	settings.Logger = r.cfg.Logger(logWriter{t})
	if mode.Kind == dicetest.ModeDebug && r.cfg.Log.Format == logging.FormatOff {
		settings.Logger = logging.New(logging.FormatText, slog.LevelDebug, logWriter{t})
	}
	for _, edit := range r.edits {
		edit(&settings)
	}

	store := r.openStore(ctx, t, name)
	if store != nil && mode.Kind == dicetest.ModeRepeatedly {
		codes, err := store.Load(ctx, name)
		if err != nil {
			t.Logf("dicetest %q: loading regressions: %v", name, err)
		}
		settings.Regressions = append(settings.Regressions, codes...)
	}

	engine, err := dicetest.New(settings)
	if err != nil {
		t.Fatalf("dicetest %q: %v", name, err)
		return nil
	}
	report, err := engine.Run(ctx, mode, prop)
	if err != nil {
		t.Fatalf("dicetest %q: %v", name, err)
		return nil
	}

	switch report.Status {
	case dicetest.StatusFail:
		if store != nil && r.cfg.Regressions.Record && mode.Kind != dicetest.ModeDebug {
			if err := store.Save(ctx, name, report.Code, report.Failure.String()); err != nil {
				t.Logf("dicetest %q: recording regression: %v", name, err)
			}
		}
		msg := FailureMessage(name, t.Name(), report)
		if r.fatal {
			t.Fatal(msg)
		} else {
			t.Error(msg)
		}
	case dicetest.StatusExhausted:
		t.Logf("dicetest %q: budget ended after %d of %d trials, none failed", name, report.Trials, settings.Trials)
	}
	return report
}

func (r *runner) openStore(ctx context.Context, t testing.TB, name string) regression.Store {
	if r.store != nil {
		return r.store
	}
	url := r.cfg.Regressions.URL
	if url == "" {
		return nil
	}
	s, err := regression.Open(ctx, dburl.ResolveRelative(url, r.cfg.ConfigDir))
	if err != nil {
		t.Logf("dicetest %q: regression store unavailable: %v", name, err)
		return nil
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// FailureMessage renders a failed report the way Check reports it.
func FailureMessage(property, testName string, r *dicetest.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "dicetest %q %s", property, r.Failure.Kind)
	if r.Mode.Kind == dicetest.ModeDebug {
		b.WriteString(" on replay")
	} else if r.Regressions > 0 && r.Trials == 0 {
		b.WriteString(" on a recorded regression")
	} else {
		fmt.Fprintf(&b, " after %d trials", r.Trials)
	}
	fmt.Fprintf(&b, " (seed %s)\n", r.Seed)

	fmt.Fprintf(&b, "  value:     %s\n", r.ValueString())
	if r.Shrinks > 0 {
		fmt.Fprintf(&b, "  original:  %+v (shrunk in %d steps, size %d -> %d)\n",
			r.OriginalValue, r.Shrinks, r.OriginalMetric, r.Metric)
	}
	fmt.Fprintf(&b, "  detail:    %s\n", r.Failure.Detail)
	fmt.Fprintf(&b, "  reproduce: %s=%s %s=%s go test -run '^%s$'",
		config.EnvDebug, r.Code, config.EnvDebugProperty, shellQuote(property), testName)
	return b.String()
}

// shellQuote single-quotes s for a POSIX shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// logWriter sends each log record to t.Log.
type logWriter struct {
	t testing.TB
}

func (w logWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
