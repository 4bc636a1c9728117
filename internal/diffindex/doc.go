// Package diffindex maps lines of changed files to their positions in a
// unified diff.
//
// The position of a line is its index in the flattened per-file diff, where
// every hunk header and every hunk line counts as one. This is the anchor the
// hosted review API uses for inline comments. The index is built lazily on
// the first query and never changes afterwards.
package diffindex
