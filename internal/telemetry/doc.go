// Package telemetry builds the logger and timing sink that are passed
// explicitly to every component of a run.
//
// The logger fans out to the console at the configured level and to an
// optional debug log file. Records made inside a measured step carry the
// step's trace and span IDs. The Timer records one entry per measured step
// and can export them as JSON.
package telemetry
