// Package correlator runs a build manifest against a source checkout and
// reports the issues relevant to a change.
//
// [Run] executes the manifest steps in order through the tool registry,
// collects every reported issue in one store, and, when a diff is given,
// keeps only the issues the change could have caused. The report carries
// the issues, a run ID and the timing of each step.
package correlator
