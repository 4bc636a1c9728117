package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/dshills/buildlens/internal/config"
	"github.com/dshills/buildlens/internal/correlator"
	"github.com/dshills/buildlens/internal/diffindex"
	"github.com/dshills/buildlens/internal/gitctx"
	"github.com/dshills/buildlens/internal/output"
	"github.com/dshills/buildlens/internal/telemetry"
	"github.com/dshills/buildlens/internal/warnings"
)

// Shared run flags
var (
	flagSource    string
	flagWorkDir   string
	flagManifest  string
	flagBase      string
	flagExclude   string
	flagTolerance int
	flagFormat    string
	flagOut       string
	flagTimings   string
	flagLogLevel  string
	flagLogFile   string
)

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagSource, "source", "", "Source directory of the checkout (default: current directory)")
	cmd.Flags().StringVar(&flagWorkDir, "work-dir", "", "Directory for build products")
	cmd.Flags().StringVar(&flagManifest, "manifest", "", "Build manifest file (default: looked up in the manifest directory)")
	cmd.Flags().StringVar(&flagExclude, "exclude", "", "Exclude file path globs from the diff (comma-separated)")
	cmd.Flags().IntVar(&flagTolerance, "tolerance", -1, "Lines around a changed line that count as related (overrides every other setting)")
	cmd.Flags().StringVar(&flagFormat, "format", "", "Output format (text, json, markdown, sarif)")
	cmd.Flags().StringVar(&flagOut, "out", "", "Output file path (default: stdout)")
	cmd.Flags().StringVar(&flagTimings, "timings", "", "Write step timings as JSON to this file")
	cmd.Flags().StringVar(&flagLogLevel, "log-level", "", "Console log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&flagLogFile, "log-file", "", "Also write a debug log to this file")
}

func buildOverrides() map[string]string {
	m := make(map[string]string)
	if flagFormat != "" {
		m["format"] = flagFormat
	}
	if flagSource != "" {
		m["source_dir"] = flagSource
	}
	if flagWorkDir != "" {
		m["work_dir"] = flagWorkDir
	}
	if flagLogLevel != "" {
		m["log_level"] = flagLogLevel
	}
	if flagLogFile != "" {
		m["log_file"] = flagLogFile
	}
	return m
}

func buildDiffOpts() gitctx.DiffOptions {
	return gitctx.DiffOptions{Exclude: splitComma(flagExclude)}
}

func toleranceOverride() *int {
	if flagTolerance < 0 {
		return nil
	}
	v := flagTolerance
	return &v
}

func splitComma(s string) []string {
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// session holds what every run shares: the effective config, the logger
// and the timing sink.
type session struct {
	cfg      config.Config
	log      *slog.Logger
	timer    *telemetry.Timer
	closeLog func() error
}

func newSession() (*session, error) {
	cfg, err := config.Load(buildOverrides())
	if err != nil {
		return nil, err
	}
	if cfg.SourceDir == "" {
		cfg.SourceDir = "."
	}
	if cfg.SourceDir, err = filepath.Abs(cfg.SourceDir); err != nil {
		return nil, errors.Wrap(err, "resolving source directory")
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = filepath.Join(os.TempDir(), "buildlens", "DerivedData")
	}
	log, closeLog, err := telemetry.NewLogger(telemetry.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, log: log, timer: telemetry.NewTimer(), closeLog: closeLog}, nil
}

func (s *session) close(ctx context.Context) {
	if err := s.timer.Shutdown(ctx); err != nil {
		s.log.WarnContext(ctx, "stopping timer", "error", err)
	}
	if err := s.closeLog(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: closing log file: %v\n", err)
	}
}

func (s *session) manifest(host, owner, repo string) (*correlator.Manifest, error) {
	if flagManifest != "" {
		return correlator.LoadManifest(flagManifest)
	}
	dir := s.cfg.ManifestDir
	if dir == "" {
		var err error
		if dir, err = config.DefaultManifestDir(); err != nil {
			return nil, err
		}
	}
	return correlator.FindManifest(dir, host, owner, repo)
}

func (s *session) catalog() (*warnings.Catalog, error) {
	if s.cfg.SettingsFile != "" {
		return warnings.LoadCatalog(s.cfg.SettingsFile)
	}
	return warnings.DefaultCatalog()
}

// correlate runs the manifest over the checkout. A nil diff reports every
// collected issue.
func (s *session) correlate(ctx context.Context, manifest *correlator.Manifest, diff *diffindex.Index, headCommit string) (*correlator.Report, error) {
	catalog, err := s.catalog()
	if err != nil {
		return nil, err
	}
	report, err := correlator.Run(ctx, correlator.Options{
		SourceDir:         s.cfg.SourceDir,
		WorkDir:           s.cfg.WorkDir,
		Manifest:          manifest,
		Diff:              diff,
		HeadCommit:        headCommit,
		Tolerance:         s.cfg.LinesAroundRelated,
		ToleranceOverride: toleranceOverride(),
		Catalog:           catalog,
		Xcode:             s.cfg.Xcode,
		AndroidHome:       s.cfg.Android.Home,
		Log:               s.log,
		Timer:             s.timer,
	})
	if report != nil {
		report.Version = version
	}
	return report, err
}

// diff computes the change from the merge base of base to HEAD. A
// base..head range is diffed as given, from its merge base.
func (s *session) diff(ctx context.Context, base string) (*diffindex.Index, gitctx.DiffResult, error) {
	var res gitctx.DiffResult
	err := s.timer.Measure(ctx, "diff "+base, func(context.Context) error {
		var err error
		if strings.Contains(base, "..") {
			res, err = gitctx.Range(s.cfg.SourceDir, base, true, buildDiffOpts())
		} else {
			res, err = gitctx.MergeBaseDiff(s.cfg.SourceDir, base, buildDiffOpts())
		}
		return err
	})
	if err != nil {
		return nil, res, err
	}
	idx, err := diffindex.FromUnified([]byte(res.Diff))
	if err != nil {
		return nil, res, errors.Wrap(err, "parsing diff")
	}
	s.log.InfoContext(ctx, "diff computed", "base", res.Base, "head", res.Head, "files", len(res.Files))
	return idx, res, nil
}

// finish writes the report and the timings, then sets the exit code from
// the run error or the reported issues.
func (s *session) finish(report *correlator.Report, runErr error) {
	if report != nil {
		if err := output.WriteReport(report, s.cfg.Format, flagOut); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
			exitCode = exitCodeFor(err)
			return
		}
	}
	if flagTimings != "" {
		if err := s.timer.Export(flagTimings); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: writing timings: %v\n", err)
		}
	}
	if runErr != nil {
		fail(runErr)
		return
	}
	if report.Failed() {
		exitCode = ExitFindings
	}
}

// Review-specific flags
var (
	flagGitLab       bool
	flagSkipComments bool
	flagFetch        bool
	flagKeep         string
)

var reviewCmd = &cobra.Command{
	Use:   "review <owner>/<repo> <number>",
	Short: "Build a pull request and comment on the issues it introduces",
	Long: "Fetch the pull request (or, with --gitlab, the merge request), build the checkout with its manifest, " +
		"keep the issues near the changed lines and post them as review comments.",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		slug := args[0]
		if !strings.Contains(strings.Trim(slug, "/"), "/") {
			fmt.Fprintf(os.Stderr, "Error: invalid repository %q, want owner/repo\n", slug)
			exitCode = ExitUsageError
			return nil
		}
		number, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil || number <= 0 {
			fmt.Fprintf(os.Stderr, "Error: invalid pull request number %q\n", args[1])
			exitCode = ExitUsageError
			return nil
		}

		s, err := newSession()
		if err != nil {
			fail(err)
			return nil
		}
		ctx := context.Background()
		defer s.close(ctx)

		var ch *change
		if flagGitLab {
			ch, err = gitLabChange(ctx, s, slug, number)
		} else {
			ch, err = gitHubChange(ctx, s, slug, int(number))
		}
		if err != nil {
			fail(err)
			return nil
		}
		runReview(ctx, s, ch)
		return nil
	},
}

func runReview(ctx context.Context, s *session, ch *change) {
	base := ch.base
	if flagFetch {
		opts := ch.checkout
		opts.Keep = splitComma(flagKeep)
		err := s.timer.Measure(ctx, "checkout", func(context.Context) error {
			return gitctx.Checkout(s.cfg.SourceDir, opts)
		})
		if err != nil {
			fail(err)
			return
		}
		base = gitctx.BaseRemoteRef
	}
	if flagBase != "" {
		base = flagBase
	}

	manifest, err := s.manifest(ch.host, ch.owner, ch.repo)
	if err != nil {
		fail(err)
		return
	}
	idx, res, err := s.diff(ctx, base)
	if err != nil {
		fail(err)
		return
	}
	if res.Head != ch.headCommit {
		s.log.WarnContext(ctx, "checkout is not at the head of the change", "checkout", res.Head, "head", ch.headCommit)
	}

	report, runErr := s.correlate(ctx, manifest, idx, res.Head)
	if report != nil && !flagSkipComments {
		err := s.timer.Measure(ctx, "post comments", func(ctx context.Context) error {
			return ch.publish(ctx, report, idx)
		})
		if err != nil && runErr == nil {
			runErr = err
		}
	}
	s.finish(report, runErr)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Build the local checkout and report its issues",
	Long: "Run the build manifest over the checkout. Without --base every collected issue is reported; " +
		"with --base only the issues near lines changed since the merge base.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			fail(err)
			return nil
		}
		ctx := context.Background()
		defer s.close(ctx)
		runCheck(ctx, s)
		return nil
	},
}

func runCheck(ctx context.Context, s *session) {
	meta, err := gitctx.GetRepoMeta(s.cfg.SourceDir)
	if err != nil && flagBase != "" {
		fail(err)
		return
	}
	manifest, err := s.manifest(meta.Remote.Host, meta.Remote.Owner, meta.Remote.Repo)
	if err != nil {
		fail(err)
		return
	}

	var idx *diffindex.Index
	if flagBase != "" {
		if idx, _, err = s.diff(ctx, flagBase); err != nil {
			fail(err)
			return
		}
	}

	report, runErr := s.correlate(ctx, manifest, idx, meta.Head)
	s.finish(report, runErr)
}

func init() {
	for _, cmd := range []*cobra.Command{reviewCmd, checkCmd} {
		addRunFlags(cmd)
	}

	reviewCmd.Flags().StringVar(&flagBase, "base", "", "Diff against this ref instead of the target branch")
	reviewCmd.Flags().BoolVar(&flagGitLab, "gitlab", false, "The change is a GitLab merge request of the project <group>/<name>")
	reviewCmd.Flags().BoolVar(&flagSkipComments, "skip-comments", false, "Report only, do not comment on the change")
	reviewCmd.Flags().BoolVar(&flagFetch, "fetch", false, "Clone or update the source directory to the head of the change first")
	reviewCmd.Flags().StringVar(&flagKeep, "keep", "", "Untracked paths kept when --fetch cleans the checkout (comma-separated)")

	checkCmd.Flags().StringVar(&flagBase, "base", "", "Report only issues related to changes since the merge base with this ref (or in a base..head range)")
}
