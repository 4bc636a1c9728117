// Package output formats correlation reports for display or machine
// consumption.
//
// Four formats are supported:
//   - text: terminal output grouped by file
//   - json: the full structured report
//   - markdown: the body used for pull request and merge request comments
//   - sarif: SARIF v2.1.0 for code scanning uploads
//
// Use [GetWriter] to obtain a [Writer] for a format string, or [WriteReport]
// to write straight to a file or standard output. [IssueMarkdown] and
// [Summary] render the review comment bodies shared by the hosting adapters.
package output
