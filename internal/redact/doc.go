// Package redact removes secrets from issue descriptions before they are
// written to a report or posted to a pull request.
//
// Build tools echo their command lines and environment, so a failing step
// can carry an API key or a signing password into a diagnostic. Detection
// uses regex heuristics covering the common shapes: API keys, JWTs, private
// keys, AWS access keys, bearer tokens and provider-specific tokens (GitHub,
// GitLab, Slack).
package redact
