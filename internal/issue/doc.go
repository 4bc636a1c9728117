// Package issue defines the normalized build issue and the store that
// collects issues during one run.
//
// A [Store] deduplicates issues by (file path, line, column, description).
// When a duplicate arrives, an error replaces a warning or static-analysis
// result, and a specific tool replaces the generic tool for the same type.
// Everything else is dropped.
//
// [FilterDiffRelevant] reduces a set of issues to the ones related to a
// change: process-level issues and errors are always kept, file issues are
// kept only when their file changed and their line is near a changed line.
package issue
