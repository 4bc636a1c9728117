// Package tools adapts external build and analysis tools to the issue
// store.
//
// Each tool is a [Capability] registered by name in a [Registry]. A build
// manifest step names a tool and one of its actions; the capability runs
// the tool through the [Env]'s command runner and feeds what it reports
// into the run's issue store. The registry is static: there is no plugin
// loading.
//
// Supported tools:
//   - xcode: build, test, analyze, require_warnings,
//     find_unchanged_storyboards, find_misplaced_constraints
//   - cocoapods: install
//   - android: lint, findbugs, infer
package tools
