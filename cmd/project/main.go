// Command project runs a configured projection: load a source, compute
// statistics, cast, map, then write the result to a file and/or a SQL table.
//
//	project -config configs/iris.yaml
//	project -config configs/iris.yaml -validate
//	project -config configs/iris.yaml -metrics-backend pushgateway -pushgateway-url http://localhost:9091
//
// Exit codes: 0 success, 2 usage or configuration errors, 1 anything else.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"projector/internal/config"
	apperrors "projector/internal/errors"
	"projector/internal/logging"
	"projector/internal/metrics"
	"projector/internal/metrics/datadog"
	"projector/internal/metrics/prompush"
	"projector/internal/pipeline"
	"projector/internal/transformer/builtin"

	// register all backends with the storage factory.
	_ "projector/internal/storage/all"
)

const usage = "usage: project -config <path> [-validate] [-v] [-metrics-backend none|datadog|pushgateway]"

// runner executes one pipeline.
type runner interface {
	Run(ctx context.Context, p config.Pipeline) (pipeline.Result, error)
}

type pipelineRunner struct {
	logger *slog.Logger
}

func (r pipelineRunner) Run(ctx context.Context, p config.Pipeline) (pipeline.Result, error) {
	return pipeline.Run(ctx, p, builtin.Registry(), pipeline.Options{Logger: r.logger})
}

// appDeps are the side-effecting collaborators of runMain.
type appDeps struct {
	loadConfig  func(path string) (config.Pipeline, error)
	newLogger   func(cfg config.Logging, out io.Writer) (*slog.Logger, io.Closer, error)
	initMetrics func(ctx context.Context, jobName string, m config.Metrics) (func(), error)
	newRunner   func(logger *slog.Logger) runner
}

func defaultDeps() appDeps {
	return appDeps{
		loadConfig:  config.Load,
		newLogger:   logging.New,
		initMetrics: initMetrics,
		newRunner:   func(logger *slog.Logger) runner { return pipelineRunner{logger: logger} },
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := runMain(ctx, os.Args[1:], os.Stdout, os.Stderr, defaultDeps())
	stop()
	os.Exit(code)
}

// runMain parses args, loads and validates the config, sets up logging and
// metrics, and runs the pipeline. Logs go to stderr; stdout carries only the
// final summary line.
func runMain(ctx context.Context, args []string, stdout, stderr io.Writer, deps appDeps) int {
	fs := flag.NewFlagSet("project", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		cfgPath        = fs.String("config", "", "pipeline config path (.yaml, .yml or .json)")
		validate       = fs.Bool("validate", false, "validate the configuration and exit")
		verbose        = fs.Bool("v", false, "enable debug logs")
		metricsBackend = fs.String("metrics-backend", "", "metrics backend (none, datadog, pushgateway); overrides the config")
		pushgatewayURL = fs.String("pushgateway-url", "", "Pushgateway base URL; overrides the config")
	)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if strings.TrimSpace(*cfgPath) == "" {
		fmt.Fprintln(stderr, usage)
		return 2
	}

	p, err := deps.loadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 2
	}
	if *metricsBackend != "" {
		p.Metrics.Backend = strings.ToLower(strings.TrimSpace(*metricsBackend))
	}
	if *pushgatewayURL != "" {
		p.Metrics.PushgatewayURL = *pushgatewayURL
	}
	if *verbose {
		p.Logging.Level = "debug"
	}

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintln(stderr, iss.String())
	}
	if config.HasErrors(issues) {
		fmt.Fprintf(stderr, "configuration is invalid: %s\n", *cfgPath)
		return 2
	}
	if *validate {
		fmt.Fprintf(stdout, "configuration is valid: %s\n", *cfgPath)
		return 0
	}

	logger, closer, err := deps.newLogger(p.Logging, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "init logging: %v\n", err)
		return 2
	}
	defer closer.Close()

	job := p.Job
	if job == "" {
		job = "projector"
	}
	cleanup, err := deps.initMetrics(ctx, job, p.Metrics)
	if err != nil {
		fmt.Fprintf(stderr, "init metrics: %v\n", err)
		return 1
	}
	defer cleanup()

	res, err := deps.newRunner(logger).Run(ctx, p)
	if err != nil {
		fmt.Fprintf(stderr, "run: %v\n", err)
		return exitCode(err)
	}

	rows := 0
	if res.Dataset != nil {
		rows = res.Dataset.Len()
	}
	fmt.Fprintf(stdout, "ok run_id=%s rows=%d written=%d\n", res.RunID, rows, res.Written)
	return 0
}

// exitCode maps run errors: config and validation problems are 2,
// everything else 1.
func exitCode(err error) int {
	if apperrors.IsType(err, apperrors.ErrTypeConfig) || apperrors.IsType(err, apperrors.ErrTypeValidation) {
		return 2
	}
	return 1
}

// metricsBackend is a metrics.Backend with a shutdown hook.
type metricsBackend interface {
	metrics.Backend
	Close() error
}

// Seams for tests.
var (
	newDatadogBackend = func(ctx context.Context, opts datadog.Options) (metricsBackend, error) {
		return datadog.NewBackend(ctx, opts)
	}
	newPushBackend = func(opts prompush.Options) (metrics.Backend, error) {
		return prompush.New(opts)
	}
	setMetricsBackend = metrics.SetBackend
	logPrintf         = log.Printf
)

// initMetrics installs the configured backend. The returned cleanup is
// never nil; it flushes the backend and restores the no-op one.
func initMetrics(ctx context.Context, jobName string, m config.Metrics) (func(), error) {
	noop := func() {}

	switch strings.ToLower(strings.TrimSpace(m.Backend)) {
	case "", "none", "noop":
		return noop, nil

	case "datadog", "dd":
		b, err := newDatadogBackend(ctx, datadog.Options{
			JobName:    jobName,
			Tags:       append(append([]string(nil), m.Tags...), datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))...),
			FlushEvery: m.FlushEvery,
		})
		if err != nil {
			return noop, err
		}
		setMetricsBackend(b)
		return func() {
			if err := b.Close(); err != nil {
				logPrintf("metrics: datadog close error: %v", err)
			}
			setMetricsBackend(nil)
		}, nil

	case "pushgateway", "prompush":
		url := m.PushgatewayURL
		if url == "" {
			url = os.Getenv("PUSHGATEWAY_URL")
		}
		if url == "" {
			url = "http://localhost:9091"
		}
		grouping := map[string]string{}
		if host, err := os.Hostname(); err == nil && host != "" {
			grouping["instance"] = host
		}
		b, err := newPushBackend(prompush.Options{URL: url, JobName: jobName, Grouping: grouping})
		if err != nil {
			return noop, err
		}
		setMetricsBackend(b)
		return func() {
			if err := b.Flush(); err != nil {
				logPrintf("metrics: pushgateway push error: %v", err)
			}
			setMetricsBackend(nil)
		}, nil

	default:
		return noop, fmt.Errorf("unknown metrics backend %q (want none|datadog|pushgateway)", m.Backend)
	}
}
