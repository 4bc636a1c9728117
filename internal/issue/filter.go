package issue

// Relator answers relevance questions about a diff.
type Relator interface {
	FileChanged(path string) bool
	IsRelated(path string, line, tolerance int) bool
}

// FilterDiffRelevant returns the issues related to the diff, preserving
// order. Issues without a path and errors are always kept. An issue with a
// path but no line is kept when its file changed.
func FilterDiffRelevant(issues []Issue, diff Relator, tolerance int) []Issue {
	out := make([]Issue, 0, len(issues))
	for _, is := range issues {
		if relevant(is, diff, tolerance) {
			out = append(out, is)
		}
	}
	return out
}

func relevant(is Issue, diff Relator, tolerance int) bool {
	if is.FilePath == "" || is.Type == TypeError {
		return true
	}
	if diff == nil || !diff.FileChanged(is.FilePath) {
		return false
	}
	if is.Line == 0 {
		return true
	}
	return diff.IsRelated(is.FilePath, is.Line, tolerance)
}
