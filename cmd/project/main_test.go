package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"projector/internal/config"
	"projector/internal/dataset"
	apperrors "projector/internal/errors"
	"projector/internal/logging"
	"projector/internal/metrics"
	"projector/internal/metrics/datadog"
	"projector/internal/pipeline"
	"projector/pkg/records"
)

// fakeRunner records calls and returns a configurable result.
type fakeRunner struct {
	err   error
	calls atomic.Int64

	mu      sync.Mutex
	lastCfg config.Pipeline
}

func (r *fakeRunner) Run(_ context.Context, p config.Pipeline) (pipeline.Result, error) {
	r.calls.Add(1)
	r.mu.Lock()
	r.lastCfg = p
	r.mu.Unlock()
	if r.err != nil {
		return pipeline.Result{}, r.err
	}
	ds := dataset.Create([]records.Record{{"a": 1.0}, {"a": 2.0}}, []string{"a"}, "")
	return pipeline.Result{RunID: "run-1", Dataset: ds, Written: 2}, nil
}

// fakeMetricsBackend is a closable no-op backend.
type fakeMetricsBackend struct {
	closeErr error
	closed   atomic.Int64
}

func (b *fakeMetricsBackend) IncCounter(string, float64, metrics.Labels)       {}
func (b *fakeMetricsBackend) ObserveHistogram(string, float64, metrics.Labels) {}
func (b *fakeMetricsBackend) Flush() error                                     { return nil }
func (b *fakeMetricsBackend) Close() error {
	b.closed.Add(1)
	return b.closeErr
}

func validPipeline() config.Pipeline {
	return config.Pipeline{
		Job:    "job1",
		Source: config.Source{Path: "iris.csv"},
		Output: config.Output{Path: "out.csv"},
	}
}

func discardLogger(config.Logging, io.Writer) (*slog.Logger, io.Closer, error) {
	return logging.Discard(), io.NopCloser(nil), nil
}

func TestRunMain_UsageErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		args          []string
		wantStderrSub string
	}{
		{"missing_config_flag", []string{}, "usage: project -config"},
		{"empty_config_value", []string{"-config", "   "}, "usage: project -config"},
		{"unknown_flag_is_usage_error", []string{"-nope"}, "flag provided but not defined"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var stdout, stderr bytes.Buffer
			code := runMain(context.Background(), tc.args, &stdout, &stderr, appDeps{
				loadConfig: func(string) (config.Pipeline, error) {
					t.Fatalf("loadConfig must not be called on usage errors")
					return config.Pipeline{}, nil
				},
				newLogger: func(config.Logging, io.Writer) (*slog.Logger, io.Closer, error) {
					t.Fatalf("newLogger must not be called on usage errors")
					return nil, nil, nil
				},
				initMetrics: func(context.Context, string, config.Metrics) (func(), error) {
					t.Fatalf("initMetrics must not be called on usage errors")
					return func() {}, nil
				},
				newRunner: func(*slog.Logger) runner {
					t.Fatalf("newRunner must not be called on usage errors")
					return &fakeRunner{}
				},
			})

			if code != 2 {
				t.Fatalf("exit code=%d, want 2; stderr=%q", code, stderr.String())
			}
			if !strings.Contains(stderr.String(), tc.wantStderrSub) {
				t.Fatalf("stderr=%q, want contains %q", stderr.String(), tc.wantStderrSub)
			}
			if stdout.Len() != 0 {
				t.Fatalf("stdout=%q, want empty", stdout.String())
			}
		})
	}
}

func TestRunMain_FullFlow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		loadErr          error
		pipeline         *config.Pipeline
		initMetricsErr   error
		runErr           error
		wantCode         int
		wantStderrSub    string
		wantStdout       string
		wantRunnerCalls  int64
		wantCleanupCalls int64
	}{
		{
			name:          "load_config_error",
			loadErr:       apperrors.NewConfigError("read config cfg.yaml", errors.New("no such file")),
			wantCode:      2,
			wantStderrSub: "load config:",
		},
		{
			name:          "invalid_config",
			pipeline:      &config.Pipeline{Output: config.Output{Path: "out.csv"}},
			wantCode:      2,
			wantStderrSub: "configuration is invalid",
		},
		{
			name:           "init_metrics_error",
			initMetricsErr: errors.New("metrics unavailable"),
			wantCode:       1,
			wantStderrSub:  "init metrics:",
		},
		{
			name:             "runner_error_runs_cleanup",
			runErr:           fmt.Errorf("sink: %w", apperrors.NewStorageError("insert", errors.New("db failed"))),
			wantCode:         1,
			wantStderrSub:    "run:",
			wantRunnerCalls:  1,
			wantCleanupCalls: 1,
		},
		{
			name:             "runner_validation_error_is_2",
			runErr:           fmt.Errorf("export: %w", apperrors.NewValidationError("unknown format")),
			wantCode:         2,
			wantStderrSub:    "run:",
			wantRunnerCalls:  1,
			wantCleanupCalls: 1,
		},
		{
			name:             "success",
			wantCode:         0,
			wantStdout:       "ok run_id=run-1 rows=2 written=2\n",
			wantRunnerCalls:  1,
			wantCleanupCalls: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var stdout, stderr bytes.Buffer
			fr := &fakeRunner{err: tc.runErr}
			var cleanupCalls atomic.Int64

			deps := appDeps{
				loadConfig: func(path string) (config.Pipeline, error) {
					if path != "cfg.yaml" {
						t.Fatalf("loadConfig path=%q, want cfg.yaml", path)
					}
					if tc.loadErr != nil {
						return config.Pipeline{}, tc.loadErr
					}
					if tc.pipeline != nil {
						return *tc.pipeline, nil
					}
					return validPipeline(), nil
				},
				newLogger: discardLogger,
				initMetrics: func(_ context.Context, jobName string, m config.Metrics) (func(), error) {
					if jobName != "job1" {
						t.Fatalf("jobName=%q, want job1", jobName)
					}
					if m.Backend != "none" {
						t.Fatalf("backend=%q, want none from the flag", m.Backend)
					}
					if tc.initMetricsErr != nil {
						return func() {}, tc.initMetricsErr
					}
					return func() { cleanupCalls.Add(1) }, nil
				},
				newRunner: func(*slog.Logger) runner { return fr },
			}

			code := runMain(context.Background(),
				[]string{"-config", "cfg.yaml", "-metrics-backend", "none"},
				&stdout, &stderr, deps)

			if code != tc.wantCode {
				t.Fatalf("exit code=%d, want %d; stderr=%q", code, tc.wantCode, stderr.String())
			}
			if tc.wantStderrSub != "" && !strings.Contains(stderr.String(), tc.wantStderrSub) {
				t.Fatalf("stderr=%q, want contains %q", stderr.String(), tc.wantStderrSub)
			}
			if got := stdout.String(); got != tc.wantStdout {
				t.Fatalf("stdout=%q, want %q", got, tc.wantStdout)
			}
			if got := fr.calls.Load(); got != tc.wantRunnerCalls {
				t.Fatalf("runner calls=%d, want %d", got, tc.wantRunnerCalls)
			}
			if got := cleanupCalls.Load(); got != tc.wantCleanupCalls {
				t.Fatalf("cleanup calls=%d, want %d", got, tc.wantCleanupCalls)
			}
		})
	}
}

func TestRunMain_ValidateOnly(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	fr := &fakeRunner{}
	code := runMain(context.Background(), []string{"-config", "cfg.yaml", "-validate"}, &stdout, &stderr, appDeps{
		loadConfig: func(string) (config.Pipeline, error) { return validPipeline(), nil },
		newLogger:  discardLogger,
		initMetrics: func(context.Context, string, config.Metrics) (func(), error) {
			t.Fatalf("initMetrics must not be called with -validate")
			return func() {}, nil
		},
		newRunner: func(*slog.Logger) runner { return fr },
	})

	if code != 0 {
		t.Fatalf("exit code=%d, want 0; stderr=%q", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "configuration is valid: cfg.yaml") {
		t.Fatalf("stdout=%q", stdout.String())
	}
	if fr.calls.Load() != 0 {
		t.Fatalf("runner called with -validate")
	}
}

func TestRunMain_VerboseSetsDebugLevel(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	var gotLevel string
	code := runMain(context.Background(), []string{"-config", "cfg.yaml", "-v"}, &stdout, &stderr, appDeps{
		loadConfig: func(string) (config.Pipeline, error) { return validPipeline(), nil },
		newLogger: func(cfg config.Logging, out io.Writer) (*slog.Logger, io.Closer, error) {
			gotLevel = cfg.Level
			return discardLogger(cfg, out)
		},
		initMetrics: func(context.Context, string, config.Metrics) (func(), error) { return func() {}, nil },
		newRunner:   func(*slog.Logger) runner { return &fakeRunner{} },
	})
	if code != 0 {
		t.Fatalf("exit code=%d; stderr=%q", code, stderr.String())
	}
	if gotLevel != "debug" {
		t.Fatalf("log level=%q, want debug", gotLevel)
	}
}

func TestRunMain_EndToEndIris(t *testing.T) {
	t.Parallel()

	iris, err := filepath.Abs(filepath.Join("..", "..", "testdata", "iris.csv"))
	if err != nil {
		t.Fatalf("abs: %v", err)
	}
	dir := t.TempDir()
	out := filepath.Join(dir, "iris.json")
	cfg := filepath.Join(dir, "pipeline.yaml")
	doc := strings.Join([]string{
		"job: iris",
		"source:",
		"  path: " + iris,
		"map:",
		"  - input: sepal length",
		"    output: sepalNorm",
		"    fn: linear",
		"    args: [0, 1]",
		"  - input: species",
		"    output: species",
		"output:",
		"  path: " + out,
		"",
	}, "\n")
	if err := os.WriteFile(cfg, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var stdout, stderr bytes.Buffer
	code := runMain(context.Background(), []string{"-config", cfg, "-metrics-backend", "none"}, &stdout, &stderr, defaultDeps())
	if code != 0 {
		t.Fatalf("exit code=%d; stderr=%q", code, stderr.String())
	}
	if !strings.HasPrefix(stdout.String(), "ok run_id=") || !strings.Contains(stdout.String(), "rows=150") {
		t.Fatalf("stdout=%q", stdout.String())
	}

	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.HasPrefix(string(b), "[\n  {\"sepalNorm\":") {
		t.Fatalf("output=%q", string(b[:min(len(b), 80)]))
	}
}

// The initMetrics tests swap package seams, so they do not run in parallel.

func TestInitMetrics_None_DoesNotMutateGlobalState(t *testing.T) {
	oldSet := setMetricsBackend
	defer func() { setMetricsBackend = oldSet }()
	setMetricsBackend = func(metrics.Backend) {
		t.Fatalf("setMetricsBackend must not be called for none")
	}

	for _, name := range []string{"", "none", "noop"} {
		cleanup, err := initMetrics(context.Background(), "job", config.Metrics{Backend: name})
		if err != nil {
			t.Fatalf("initMetrics(%q) err=%v", name, err)
		}
		if cleanup == nil {
			t.Fatalf("cleanup=nil, want non-nil")
		}
		cleanup()
	}
}

func TestInitMetrics_Datadog_WiresBackendAndCloses(t *testing.T) {
	b := &fakeMetricsBackend{}
	var (
		newCalls atomic.Int64
		set      []metrics.Backend
		gotOpts  datadog.Options
	)

	oldNew, oldSet, oldLog := newDatadogBackend, setMetricsBackend, logPrintf
	defer func() { newDatadogBackend, setMetricsBackend, logPrintf = oldNew, oldSet, oldLog }()

	newDatadogBackend = func(_ context.Context, opts datadog.Options) (metricsBackend, error) {
		newCalls.Add(1)
		gotOpts = opts
		return b, nil
	}
	setMetricsBackend = func(mb metrics.Backend) { set = append(set, mb) }
	var logged bytes.Buffer
	logPrintf = func(format string, v ...any) { fmt.Fprintf(&logged, format, v...) }

	cleanup, err := initMetrics(context.Background(), "jobA", config.Metrics{Backend: "datadog", Tags: []string{"team:data"}})
	if err != nil {
		t.Fatalf("initMetrics err=%v", err)
	}
	if gotOpts.JobName != "jobA" {
		t.Fatalf("JobName=%q, want jobA", gotOpts.JobName)
	}
	if len(gotOpts.Tags) == 0 || gotOpts.Tags[0] != "team:data" {
		t.Fatalf("Tags=%v, want team:data first", gotOpts.Tags)
	}
	if newCalls.Load() != 1 || len(set) != 1 || set[0] != b {
		t.Fatalf("new calls=%d set=%v", newCalls.Load(), set)
	}

	cleanup()
	if b.closed.Load() != 1 {
		t.Fatalf("backend closed=%d, want 1", b.closed.Load())
	}
	if len(set) != 2 || set[1] != nil {
		t.Fatalf("cleanup must restore the nop backend; set=%v", set)
	}
	if logged.Len() != 0 {
		t.Fatalf("unexpected log output: %q", logged.String())
	}
}

func TestInitMetrics_Datadog_CloseErrorIsLogged(t *testing.T) {
	b := &fakeMetricsBackend{closeErr: errors.New("flush failed")}

	oldNew, oldSet, oldLog := newDatadogBackend, setMetricsBackend, logPrintf
	defer func() { newDatadogBackend, setMetricsBackend, logPrintf = oldNew, oldSet, oldLog }()

	newDatadogBackend = func(context.Context, datadog.Options) (metricsBackend, error) { return b, nil }
	setMetricsBackend = func(metrics.Backend) {}
	var logged bytes.Buffer
	logPrintf = func(format string, v ...any) { fmt.Fprintf(&logged, format, v...) }

	cleanup, err := initMetrics(context.Background(), "job", config.Metrics{Backend: "dd"})
	if err != nil {
		t.Fatalf("initMetrics err=%v", err)
	}
	cleanup()

	if !strings.Contains(logged.String(), "metrics: datadog close error") || !strings.Contains(logged.String(), "flush failed") {
		t.Fatalf("log=%q", logged.String())
	}
}

func TestInitMetrics_Pushgateway_PushesOnCleanup(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		method, path = r.Method, r.URL.Path
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	oldSet := setMetricsBackend
	defer func() { setMetricsBackend = oldSet }()
	var installed metrics.Backend
	setMetricsBackend = func(b metrics.Backend) {
		if b != nil {
			installed = b
		}
	}

	cleanup, err := initMetrics(context.Background(), "iris", config.Metrics{Backend: "pushgateway", PushgatewayURL: srv.URL})
	if err != nil {
		t.Fatalf("initMetrics err=%v", err)
	}
	if installed == nil {
		t.Fatalf("pushgateway backend was not installed")
	}
	installed.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "load", "status": "ok"})
	cleanup()

	mu.Lock()
	defer mu.Unlock()
	if method != http.MethodPut {
		t.Fatalf("method=%q, want PUT", method)
	}
	if !strings.HasPrefix(path, "/metrics/job/iris") {
		t.Fatalf("path=%q, want /metrics/job/iris prefix", path)
	}
}

func TestInitMetrics_UnknownBackendErrors(t *testing.T) {
	cleanup, err := initMetrics(context.Background(), "job", config.Metrics{Backend: "nope"})
	if err == nil {
		t.Fatalf("initMetrics err=nil, want error")
	}
	if cleanup == nil {
		t.Fatalf("cleanup=nil, want non-nil")
	}
	cleanup()
	if !strings.Contains(err.Error(), "unknown metrics backend") || !strings.Contains(err.Error(), "none|datadog|pushgateway") {
		t.Fatalf("err=%q", err.Error())
	}
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{apperrors.NewConfigError("x", nil), 2},
		{fmt.Errorf("export: %w", apperrors.NewValidationError("x")), 2},
		{apperrors.NewIOError("x", nil), 1},
		{errors.New("plain"), 1},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Fatalf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func BenchmarkRunMain_Success_NoIO(b *testing.B) {
	ctx := context.Background()
	fr := &fakeRunner{}
	deps := appDeps{
		loadConfig:  func(string) (config.Pipeline, error) { return validPipeline(), nil },
		newLogger:   discardLogger,
		initMetrics: func(context.Context, string, config.Metrics) (func(), error) { return func() {}, nil },
		newRunner:   func(*slog.Logger) runner { return fr },
	}
	args := []string{"-config", "cfg.yaml", "-metrics-backend", "none"}

	b.ReportAllocs()
	for b.Loop() {
		var stdout, stderr bytes.Buffer
		if code := runMain(ctx, args, &stdout, &stderr, deps); code != 0 {
			b.Fatalf("code=%d, stderr=%q", code, stderr.String())
		}
	}
}
