package redact

import (
	"regexp"

	"github.com/dshills/buildlens/internal/issue"
)

const placeholder = "[REDACTED]"

// secretPatterns are regex heuristics for common secret types.
var secretPatterns = []*regexp.Regexp{
	// Generic API keys (long strings after common key names)
	regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret)\s*[:=]\s*["']?([A-Za-z0-9/+=_-]{20,})["']?`),
	// AWS access key IDs
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	// AWS secret access keys
	regexp.MustCompile(`(?i)(aws[_-]?secret[_-]?access[_-]?key)\s*[:=]\s*["']?([A-Za-z0-9/+=]{40})["']?`),
	// Quoted secrets, tokens and passwords in assignments
	regexp.MustCompile(`(?i)(secret|token|password|passwd|credential)\s*[:=]\s*["']([^"']{8,})["']`),
	// Keychain and keystore passwords passed on a command line
	regexp.MustCompile(`(?i)-(storepass|keypass|keychain-password)\s+\S+`),
	// Bearer tokens
	regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._-]{20,}`),
	// JWTs
	regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`),
	// Private key blocks
	regexp.MustCompile(`-----BEGIN\s+(RSA\s+|EC\s+)?PRIVATE KEY-----`),
	// GitHub tokens
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`),
	// GitLab personal access tokens
	regexp.MustCompile(`glpat-[A-Za-z0-9_-]{20,}`),
	// Slack tokens
	regexp.MustCompile(`xox[bporas]-[A-Za-z0-9-]{10,}`),
	// Long hex strings in an assignment
	regexp.MustCompile(`(?i)(key|secret|token)\s*[:=]\s*["']?[0-9a-f]{32,}["']?`),
}

// Secrets replaces detected secrets in text with [REDACTED].
func Secrets(text string) string {
	result := text
	for _, pat := range secretPatterns {
		result = pat.ReplaceAllLiteralString(result, placeholder)
	}
	return result
}

// Issues returns a copy of issues with secrets removed from every
// description. The input slice is not modified.
func Issues(issues []issue.Issue) []issue.Issue {
	if issues == nil {
		return nil
	}
	out := make([]issue.Issue, len(issues))
	for i, is := range issues {
		is.Description = Secrets(is.Description)
		out[i] = is
	}
	return out
}
