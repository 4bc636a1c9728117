package diffindex

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/sourcegraph/go-diff/diff"
)

// Parse converts unified diff text, as produced by git diff, into patches.
func Parse(raw []byte) ([]Patch, error) {
	fileDiffs, err := diff.ParseMultiFileDiff(raw)
	if err != nil {
		return nil, errors.Wrap(err, "parsing unified diff")
	}

	patches := make([]Patch, 0, len(fileDiffs))
	for _, fd := range fileDiffs {
		p := Patch{
			Path:   patchPath(fd),
			Binary: isBinary(fd.Extended),
		}
		if p.Path == "" {
			continue
		}
		if !p.Binary {
			for _, h := range fd.Hunks {
				p.Hunks = append(p.Hunks, convertHunk(h))
			}
		}
		patches = append(patches, p)
	}
	return patches, nil
}

// FromUnified parses raw diff text and returns its index.
func FromUnified(raw []byte) (*Index, error) {
	patches, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return New(patches), nil
}

func convertHunk(h *diff.Hunk) Hunk {
	out := Hunk{NewStart: int(h.NewStartLine)}
	body := strings.TrimSuffix(string(h.Body), "\n")
	if body == "" {
		return out
	}
	for _, text := range strings.Split(body, "\n") {
		if text == "" {
			// Some tools strip the space of empty context lines.
			out.Lines = append(out.Lines, Line{Kind: Context})
			continue
		}
		switch text[0] {
		case '+':
			out.Lines = append(out.Lines, Line{Kind: Addition, Text: text[1:]})
		case '-':
			out.Lines = append(out.Lines, Line{Kind: Deletion, Text: text[1:]})
		case ' ':
			out.Lines = append(out.Lines, Line{Kind: Context, Text: text[1:]})
		case '\\':
			// "\ No newline at end of file"
		default:
			out.Lines = append(out.Lines, Line{Kind: Context, Text: text})
		}
	}
	return out
}

func patchPath(fd *diff.FileDiff) string {
	if name := stripPrefix(fd.NewName); name != "" && name != "/dev/null" {
		return name
	}
	for _, ext := range fd.Extended {
		if strings.HasPrefix(ext, "diff --git ") {
			if i := strings.LastIndex(ext, " b/"); i >= 0 {
				return ext[i+3:]
			}
		}
	}
	if name := stripPrefix(fd.OrigName); name != "/dev/null" {
		return name
	}
	return ""
}

func stripPrefix(name string) string {
	if strings.HasPrefix(name, "a/") || strings.HasPrefix(name, "b/") {
		return name[2:]
	}
	return name
}

func isBinary(extended []string) bool {
	for _, ext := range extended {
		if strings.HasPrefix(ext, "Binary files ") || ext == "GIT binary patch" {
			return true
		}
	}
	return false
}
