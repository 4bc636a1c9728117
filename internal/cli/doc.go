// Package cli wires together the Cobra command tree for the buildlens binary.
//
// It defines the root command and all subcommands (review, check, parse-log,
// warnings, config, hook, version), binds flags, reads configuration, runs
// the correlator, and returns deterministic exit codes for CI gating.
package cli
