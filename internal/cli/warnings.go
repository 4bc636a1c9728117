package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/buildlens/internal/config"
	"github.com/dshills/buildlens/internal/correlator"
	"github.com/dshills/buildlens/internal/issue"
	"github.com/dshills/buildlens/internal/output"
	"github.com/dshills/buildlens/internal/telemetry"
	"github.com/dshills/buildlens/internal/warnings"
	"github.com/dshills/buildlens/internal/xcodeproj"
)

var (
	flagRequire []string
	flagSchemes []string
)

var warningsCmd = &cobra.Command{
	Use:   "warnings <project.xcodeproj>",
	Short: "Check an Xcode project against a warning policy",
	Long: "Compare the warnings every target enables with the required ones and print the build setting " +
		"or flag that fixes each mismatch.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wants, err := parseWants(flagRequire)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitUsageError
			return nil
		}

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

		catalog, err := warnings.DefaultCatalog()
		if cfg.SettingsFile != "" {
			catalog, err = warnings.LoadCatalog(cfg.SettingsFile)
		}
		if err != nil {
			fail(err)
			return nil
		}
		project, err := xcodeproj.Load(args[0])
		if err != nil {
			fail(err)
			return nil
		}

		store := issue.NewStore(".")
		resolver := warnings.NewResolver(catalog, project, store, log)
		if err := resolver.Require(context.Background(), warnings.Requirement{Wants: wants, Schemes: flagSchemes}); err != nil {
			fail(err)
			return nil
		}

		found := store.Snapshot()
		report := &correlator.Report{
			Version:   version,
			Issues:    found,
			Collected: len(found),
			Fatal:     store.HasFatal(),
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

// parseWants reads name[=value] requirement entries. Flags such as
// -Wformat=2 carry an equals sign themselves, so only a trailing setting
// value is split off.
func parseWants(entries []string) ([]warnings.Want, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("at least one --require is needed")
	}
	wants := make([]warnings.Want, 0, len(entries))
	for _, e := range entries {
		name, value := strings.TrimSpace(e), ""
		if i := strings.LastIndex(name, "="); i >= 0 && valueWords[strings.ToLower(name[i+1:])] {
			name, value = strings.TrimSpace(name[:i]), name[i+1:]
		}
		if name == "" {
			return nil, fmt.Errorf("invalid requirement %q", e)
		}
		wants = append(wants, warnings.Want{Name: name, Value: value})
	}
	return wants, nil
}

var valueWords = map[string]bool{
	"yes": true, "no": true, "true": true, "false": true,
	"error": true, "yes_error": true, "aggressive": true, "yes_aggressive": true,
}

func init() {
	warningsCmd.Flags().StringArrayVar(&flagRequire, "require", nil, "Required warning as name[=value] (repeatable)")
	warningsCmd.Flags().StringSliceVar(&flagSchemes, "scheme", nil, "Only check the configurations these schemes build with")
	warningsCmd.Flags().StringVar(&flagFormat, "format", "", "Output format (text, json, markdown, sarif)")
	warningsCmd.Flags().StringVar(&flagOut, "out", "", "Output file path (default: stdout)")
}
