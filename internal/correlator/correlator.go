package correlator

import (
	"context"
	"log/slog"

	"github.com/bwmarrin/snowflake"
	"github.com/cockroachdb/errors"

	"github.com/dshills/buildlens/internal/buildlog"
	"github.com/dshills/buildlens/internal/config"
	"github.com/dshills/buildlens/internal/diffindex"
	"github.com/dshills/buildlens/internal/issue"
	"github.com/dshills/buildlens/internal/redact"
	"github.com/dshills/buildlens/internal/telemetry"
	"github.com/dshills/buildlens/internal/tools"
	"github.com/dshills/buildlens/internal/warnings"
)

// ErrNoAction is returned when a manifest ran to completion without any
// step doing real work and without finding an error.
var ErrNoAction = errors.New("no action executed")

// Options configures a run.
type Options struct {
	SourceDir string
	WorkDir   string
	Manifest  *Manifest
	// Diff is the change under review. A nil Diff disables filtering.
	Diff       *diffindex.Index
	HeadCommit string

	// Tolerance is the configured lines_around_related. The repository's
	// .buildlens.yml and then the manifest override it, and
	// ToleranceOverride overrides everything.
	Tolerance         int
	ToleranceOverride *int

	Registry    *tools.Registry
	Runner      buildlog.Runner
	Catalog     *warnings.Catalog
	Xcode       config.XcodeConfig
	AndroidHome string
	Log         *slog.Logger
	Timer       *telemetry.Timer
	Node        *snowflake.Node
}

// Run executes the manifest and builds the report. When a step fails the
// run stops, and the report of what was collected so far is returned along
// with the error.
func Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.Manifest == nil {
		return nil, errors.Wrap(ErrNoManifest, "run")
	}
	log := opts.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	timer := opts.Timer
	if timer == nil {
		timer = telemetry.NewTimer()
		defer timer.Shutdown(ctx)
	}
	node := opts.Node
	if node == nil {
		var err error
		if node, err = snowflake.NewNode(1); err != nil {
			return nil, errors.Wrap(err, "creating run id node")
		}
	}
	runner := opts.Runner
	if runner == nil {
		runner = buildlog.ExecRunner{Log: log, Timer: timer}
	}
	registry := opts.Registry
	if registry == nil {
		registry = tools.DefaultRegistry()
	}

	local, err := config.LoadLocal(opts.SourceDir)
	if err != nil {
		return nil, err
	}
	tolerance := resolveTolerance(opts, local)

	runID := node.Generate().Int64()
	log = log.With("run_id", runID)
	log.InfoContext(ctx, "run started", "source", opts.SourceDir, "steps", len(opts.Manifest.Steps), "lines_around_related", tolerance)

	store := issue.NewStore(opts.SourceDir)
	env := &tools.Env{
		Log:         log,
		Timer:       timer,
		Store:       store,
		Runner:      runner,
		SourceDir:   opts.SourceDir,
		WorkDir:     opts.WorkDir,
		Diff:        opts.Diff,
		Catalog:     opts.Catalog,
		Xcode:       opts.Xcode,
		AndroidHome: opts.AndroidHome,
		Local:       local,
	}

	runErr := runSteps(ctx, registry, env, opts.Manifest.Steps, timer, log)
	if runErr == nil && !env.ActionExecuted() && !store.HasFatal() {
		runErr = errors.WithHint(ErrNoAction, "add a build, test, analyze or check step to the manifest")
	}

	collected := redact.Issues(store.Snapshot())
	report := &Report{
		RunID:      runID,
		HeadCommit: opts.HeadCommit,
		Tolerance:  tolerance,
		Issues:     collected,
		Collected:  len(collected),
		Fatal:      store.HasFatal(),
	}
	if opts.Diff != nil {
		report.Issues = issue.FilterDiffRelevant(collected, opts.Diff, tolerance)
		report.Filtered = true
	}
	report.Timings = timer.Entries()

	log.InfoContext(ctx, "run finished",
		"collected", report.Collected, "reported", len(report.Issues), "failed", report.Failed())
	return report, runErr
}

func runSteps(ctx context.Context, registry *tools.Registry, env *tools.Env, steps []tools.Step, timer *telemetry.Timer, log *slog.Logger) error {
	for i, step := range steps {
		if step.UnlessError && env.Store.HasFatal() {
			log.InfoContext(ctx, "skipping step after an error", "step", step.String())
			continue
		}
		capability, err := registry.Lookup(step.Tool)
		if err != nil {
			return errors.Wrapf(err, "step %d", i+1)
		}
		log.InfoContext(ctx, "running step", "step", step.String(), "index", i+1)
		err = timer.Measure(ctx, step.String(), func(ctx context.Context) error {
			return capability.Run(ctx, env, step)
		})
		if err != nil {
			return errors.Wrapf(err, "step %d (%s)", i+1, step)
		}
	}
	return nil
}

func resolveTolerance(opts Options, local config.Local) int {
	switch {
	case opts.ToleranceOverride != nil:
		return *opts.ToleranceOverride
	case opts.Manifest.LinesAroundRelated != nil:
		return *opts.Manifest.LinesAroundRelated
	case local.LinesAroundRelated > 0:
		return local.LinesAroundRelated
	case opts.Tolerance > 0:
		return opts.Tolerance
	}
	return config.DefaultLinesAroundRelated
}
