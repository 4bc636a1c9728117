package cli

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/dshills/buildlens/internal/config"
	"github.com/dshills/buildlens/internal/correlator"
	"github.com/dshills/buildlens/internal/github"
	"github.com/dshills/buildlens/internal/gitlab"
	"github.com/dshills/buildlens/internal/output"
	"github.com/dshills/buildlens/internal/tools"
	"github.com/dshills/buildlens/internal/warnings"
	"github.com/dshills/buildlens/internal/xcodeproj"
)

const version = "0.3.0"

// Exit codes
const (
	ExitSuccess      = 0
	ExitFindings     = 1
	ExitUsageError   = 2
	ExitAuthError    = 3
	ExitRuntimeError = 4
)

var rootCmd = &cobra.Command{
	Use:   "buildlens",
	Short: "Build issue correlation for pull requests",
	Long:  "Buildlens builds a change, collects the diagnostics of every tool it runs, and reports the ones related to the lines the change touched.",
}

// Run executes the root command and returns an exit code.
func Run() int {
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(parseLogCmd)
	rootCmd.AddCommand(warningsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error
		return ExitUsageError
	}

	return exitCode
}

// exitCode is set by command handlers to control the process exit code.
var exitCode = ExitSuccess

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print buildlens version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(os.Stdout, "buildlens version %s\n", version)
	},
}

// exitCodeFor maps an error to the exit code of its class.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, github.ErrNoToken), errors.Is(err, github.ErrAuth),
		errors.Is(err, gitlab.ErrNoToken), errors.Is(err, gitlab.ErrAuth):
		return ExitAuthError
	case errors.Is(err, correlator.ErrNoManifest), errors.Is(err, correlator.ErrInvalidManifest),
		errors.Is(err, correlator.ErrNoAction),
		errors.Is(err, tools.ErrUnknownTool), errors.Is(err, tools.ErrUnknownAction),
		errors.Is(err, tools.ErrInvalidStep), errors.Is(err, tools.ErrNoDiff),
		errors.Is(err, warnings.ErrUnknownWarning), errors.Is(err, warnings.ErrInvalidValue),
		errors.Is(err, warnings.ErrUnknownSetting), errors.Is(err, warnings.ErrBrokenDefault),
		errors.Is(err, xcodeproj.ErrMissingScheme), errors.Is(err, xcodeproj.ErrMissingConfiguration),
		errors.Is(err, output.ErrUnknownFormat), errors.Is(err, config.ErrUnknownKey):
		return ExitUsageError
	}
	return ExitRuntimeError
}

// fail prints err with its hints and sets the exit code for its class.
func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if hint := errors.FlattenHints(err); hint != "" {
		fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	}
	exitCode = exitCodeFor(err)
}
