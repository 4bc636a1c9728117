package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/dshills/buildlens/internal/buildlog"
	"github.com/dshills/buildlens/internal/config"
	"github.com/dshills/buildlens/internal/correlator"
	"github.com/dshills/buildlens/internal/diffindex"
	"github.com/dshills/buildlens/internal/issue"
	"github.com/dshills/buildlens/internal/output"
	"github.com/dshills/buildlens/internal/redact"
	"github.com/dshills/buildlens/internal/telemetry"
)

var flagDiffFile string

var parseLogCmd = &cobra.Command{
	Use:   "parse-log [file]",
	Short: "Extract issues from a saved build log",
	Long: "Run the build log parser over a log file (or stdin) and report the compiler and linker issues it finds. " +
		"With --diff only the issues near lines changed by the patch are reported.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(buildOverrides())
		if err != nil {
			fail(err)
			return nil
		}
		log, closeLog, err := telemetry.NewLogger(telemetry.Options{Level: cfg.LogLevel, File: cfg.LogFile})
		if err != nil {
			fail(err)
			return nil
		}
		defer closeLog()

		in := io.Reader(os.Stdin)
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				fail(errors.Wrap(err, "opening build log"))
				return nil
			}
			defer f.Close()
			in = f
		}

		report, err := parseLog(context.Background(), cfg, in, log)
		if err != nil {
			fail(err)
			return nil
		}
		if err := output.WriteReport(report, cfg.Format, flagOut); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
			exitCode = exitCodeFor(err)
			return nil
		}
		if report.Failed() {
			exitCode = ExitFindings
		}
		return nil
	},
}

// parseLog collects the issues of a build log and filters them by the
// --diff patch when one is given.
func parseLog(ctx context.Context, cfg config.Config, in io.Reader, log *slog.Logger) (*correlator.Report, error) {
	root := cfg.SourceDir
	if root == "" {
		root = "."
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(err, "resolving source directory")
	}

	store := issue.NewStore(root)
	parser := buildlog.NewParser(store, log)
	if err := parser.Consume(in); err != nil {
		return nil, err
	}

	tolerance := cfg.LinesAroundRelated
	if tolerance <= 0 {
		tolerance = config.DefaultLinesAroundRelated
	}
	if v := toleranceOverride(); v != nil {
		tolerance = *v
	}

	collected := redact.Issues(store.Snapshot())
	report := &correlator.Report{
		Version:   version,
		Tolerance: tolerance,
		Issues:    collected,
		Collected: len(collected),
		Fatal:     store.HasFatal(),
	}

	if flagDiffFile != "" {
		data, err := os.ReadFile(flagDiffFile)
		if err != nil {
			return nil, errors.Wrap(err, "reading diff")
		}
		idx, err := diffindex.FromUnified(data)
		if err != nil {
			return nil, errors.Wrap(err, "parsing diff")
		}
		report.Issues = issue.FilterDiffRelevant(collected, idx, tolerance)
		report.Filtered = true
	}
	log.InfoContext(ctx, "build log parsed", "collected", report.Collected, "reported", len(report.Issues))
	return report, nil
}

func init() {
	parseLogCmd.Flags().StringVar(&flagDiffFile, "diff", "", "Unified diff of the change; only issues related to it are reported")
	parseLogCmd.Flags().StringVar(&flagSource, "source", "", "Directory the paths in the log are relative to (default: current directory)")
	parseLogCmd.Flags().IntVar(&flagTolerance, "tolerance", -1, "Lines around a changed line that count as related")
	parseLogCmd.Flags().StringVar(&flagFormat, "format", "", "Output format (text, json, markdown, sarif)")
	parseLogCmd.Flags().StringVar(&flagOut, "out", "", "Output file path (default: stdout)")
	parseLogCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "Console log level (debug, info, warn, error)")
}
