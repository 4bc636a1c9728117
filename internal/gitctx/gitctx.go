package gitctx

import (
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrNotRepository is returned when a directory is not inside a git work tree.
var ErrNotRepository = errors.New("not a git repository")

// ErrUnknownRemote is returned for a remote URL that names no owner/repo.
var ErrUnknownRemote = errors.New("cannot parse remote url")

// DiffOptions controls how diffs are gathered.
type DiffOptions struct {
	ContextLines int
	Exclude      []string
}

// DiffResult holds the collected diff and metadata.
type DiffResult struct {
	Diff  string
	Files []string
	Base  string
	Head  string
}

// Remote identifies a hosted repository.
type Remote struct {
	Host  string
	Owner string
	Repo  string
}

func (r Remote) String() string {
	return r.Host + "/" + r.Owner + "/" + r.Repo
}

// RepoMeta contains git repository metadata.
type RepoMeta struct {
	Root   string
	Head   string
	Branch string
	Remote Remote
}

// GetRepoMeta collects repository metadata from the checkout in dir. The
// remote is read from origin and left empty when there is none.
func GetRepoMeta(dir string) (RepoMeta, error) {
	root, err := gitOutput(dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return RepoMeta{}, errors.Wrapf(ErrNotRepository, "%s: %v", dir, err)
	}
	head, err := gitOutput(dir, "rev-parse", "HEAD")
	if err != nil {
		head = "" // new repo with no commits
	}
	branch, err := gitOutput(dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		branch = ""
	}
	meta := RepoMeta{
		Root:   strings.TrimSpace(root),
		Head:   strings.TrimSpace(head),
		Branch: strings.TrimSpace(branch),
	}
	if origin, err := gitOutput(dir, "remote", "get-url", "origin"); err == nil {
		if r, err := ParseRemote(strings.TrimSpace(origin)); err == nil {
			meta.Remote = r
		}
	}
	return meta, nil
}

// ParseRemote extracts host, owner and repository from a clone URL. It
// accepts https and ssh URLs as well as the scp-like git@host:owner/repo form.
func ParseRemote(raw string) (Remote, error) {
	var host, path string
	switch {
	case strings.Contains(raw, "://"):
		u, err := url.Parse(raw)
		if err != nil {
			return Remote{}, errors.Wrapf(ErrUnknownRemote, "%q: %v", raw, err)
		}
		host, path = u.Hostname(), u.Path
	case strings.Contains(raw, ":"):
		userHost, p, _ := strings.Cut(raw, ":")
		if i := strings.LastIndex(userHost, "@"); i >= 0 {
			userHost = userHost[i+1:]
		}
		host, path = userHost, p
	default:
		return Remote{}, errors.Wrapf(ErrUnknownRemote, "%q", raw)
	}

	path = strings.TrimSuffix(strings.Trim(path, "/"), ".git")
	i := strings.LastIndex(path, "/")
	if host == "" || i <= 0 || i == len(path)-1 {
		return Remote{}, errors.Wrapf(ErrUnknownRemote, "%q", raw)
	}
	return Remote{Host: host, Owner: path[:i], Repo: path[i+1:]}, nil
}

// MergeBaseDiff returns the diff between the merge base of base and HEAD,
// and HEAD. Renames are detected so a moved file keeps its history.
func MergeBaseDiff(dir, base string, opts DiffOptions) (DiffResult, error) {
	head, err := gitOutput(dir, "rev-parse", "HEAD")
	if err != nil {
		return DiffResult{}, errors.Wrap(err, "git rev-parse HEAD")
	}
	head = strings.TrimSpace(head)
	mergeBase, err := gitOutput(dir, "merge-base", base, head)
	if err != nil {
		return DiffResult{}, errors.WithHint(
			errors.Wrapf(err, "git merge-base %s HEAD", base),
			"fetch the base branch first or pass --base",
		)
	}
	mergeBase = strings.TrimSpace(mergeBase)

	args := append([]string{"diff", "--find-renames", "--no-color", "--no-ext-diff"}, buildDiffArgs(opts, mergeBase, head)...)
	diff, err := gitOutput(dir, args...)
	if err != nil {
		return DiffResult{}, errors.Wrapf(err, "git diff %s %s", mergeBase, head)
	}
	return buildResult(diff, mergeBase, head, opts), nil
}

// Range returns the combined diff for a revision range. With mergeBase set,
// a two-dot range is compared from the merge base.
func Range(dir, revRange string, mergeBase bool, opts DiffOptions) (DiffResult, error) {
	diffRange := revRange
	if mergeBase && strings.Contains(revRange, "..") && !strings.Contains(revRange, "...") {
		diffRange = strings.Replace(revRange, "..", "...", 1)
	}
	args := append([]string{"diff", "--find-renames", "--no-color", "--no-ext-diff"}, buildDiffArgs(opts, diffRange)...)
	diff, err := gitOutput(dir, args...)
	if err != nil {
		return DiffResult{}, errors.Wrapf(err, "git diff %s", revRange)
	}
	base, head, _ := strings.Cut(diffRange, "..")
	return buildResult(diff, strings.TrimPrefix(base, "."), strings.TrimPrefix(head, "."), opts), nil
}

// FileInCommit reports whether path exists in the tree of commit.
func FileInCommit(dir, commit, path string) bool {
	_, err := gitOutput(dir, "cat-file", "-e", commit+":"+filepath.ToSlash(path))
	return err == nil
}

// HookPath returns where git looks for the named hook of the repository in
// dir. core.hooksPath is honored.
func HookPath(dir, name string) (string, error) {
	out, err := gitOutput(dir, "rev-parse", "--git-path", "hooks/"+name)
	if err != nil {
		return "", errors.Wrapf(ErrNotRepository, "%s: %v", dir, err)
	}
	path := strings.TrimSpace(out)
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	return path, nil
}

// CheckoutOptions names what to bring into a working copy.
type CheckoutOptions struct {
	// CloneURL is cloned when the directory holds no repository yet.
	CloneURL string
	// BaseURL and BaseRef are fetched as BaseRemoteRef.
	BaseURL string
	BaseRef string
	// HeadURL and HeadRef are fetched and HeadCommit is checked out.
	HeadURL    string
	HeadRef    string
	HeadCommit string
	// Keep lists paths git clean leaves in place.
	Keep []string
}

// BaseRemoteRef is where Checkout stores the fetched base branch.
const BaseRemoteRef = "refs/remotes/buildlens/base"

const headRemoteRef = "refs/remotes/buildlens/head"

// Checkout clones dir if needed, fetches the base and head of a change,
// removes untracked files except the kept ones and checks out the head
// commit with its submodules.
func Checkout(dir string, opts CheckoutOptions) error {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "creating %s", dir)
		}
		if _, err := gitOutput(dir, "clone", opts.CloneURL, "."); err != nil {
			return errors.Wrapf(err, "git clone %s", opts.CloneURL)
		}
	}

	steps := [][]string{
		{"fetch", "--no-tags", opts.BaseURL, "+refs/heads/" + opts.BaseRef + ":" + BaseRemoteRef},
		{"fetch", "--no-tags", opts.HeadURL, "+refs/heads/" + opts.HeadRef + ":" + headRemoteRef},
		cleanArgs(opts.Keep),
		{"reset", "--hard"},
		{"checkout", "-f", "--detach", opts.HeadCommit},
		{"submodule", "sync"},
		{"submodule", "update", "--init"},
	}
	for _, args := range steps {
		if _, err := gitOutput(dir, args...); err != nil {
			return errors.Wrapf(err, "git %s", strings.Join(args, " "))
		}
	}
	return nil
}

func cleanArgs(keep []string) []string {
	args := []string{"clean", "-fdx"}
	for _, k := range keep {
		args = append(args, "-e", k)
	}
	return args
}

func buildDiffArgs(opts DiffOptions, revs ...string) []string {
	var args []string
	if opts.ContextLines > 0 {
		args = append(args, fmt.Sprintf("-U%d", opts.ContextLines))
	}
	args = append(args, revs...)
	return append(args, "--")
}

func buildResult(diff, base, head string, opts DiffOptions) DiffResult {
	files := extractFiles(diff)
	if len(opts.Exclude) > 0 {
		diff = filterExcluded(diff, opts.Exclude)
		files = filterFileList(files, opts.Exclude)
	}
	return DiffResult{
		Diff:  diff,
		Files: files,
		Base:  base,
		Head:  head,
	}
}

func extractFiles(diff string) []string {
	var files []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(diff, "\n") {
		if strings.HasPrefix(line, "+++ b/") {
			f := strings.TrimPrefix(line, "+++ b/")
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}
	return files
}

func filterExcluded(diff string, excludes []string) string {
	sections := splitDiffSections(diff)
	var kept []string
	for _, section := range sections {
		path := extractPathFromSection(section)
		if path == "" || !MatchesAny(path, excludes) {
			kept = append(kept, section)
		}
	}
	return strings.Join(kept, "")
}

func splitDiffSections(diff string) []string {
	var sections []string
	lines := strings.Split(strings.TrimSuffix(diff, "\n"), "\n")
	var current strings.Builder
	for _, line := range lines {
		if strings.HasPrefix(line, "diff --git") && current.Len() > 0 {
			sections = append(sections, current.String())
			current.Reset()
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	if current.Len() > 0 {
		sections = append(sections, current.String())
	}
	return sections
}

// extractPathFromSection returns the new path of a file section, falling
// back to the diff --git header for deletions and binary files.
func extractPathFromSection(section string) string {
	var header string
	for _, line := range strings.Split(section, "\n") {
		if strings.HasPrefix(line, "+++ b/") {
			return strings.TrimPrefix(line, "+++ b/")
		}
		if strings.HasPrefix(line, "diff --git ") && header == "" {
			header = line
		}
	}
	if _, b, ok := strings.Cut(header, " b/"); ok {
		return b
	}
	return ""
}

func filterFileList(files []string, excludes []string) []string {
	var result []string
	for _, f := range files {
		if !MatchesAny(f, excludes) {
			result = append(result, f)
		}
	}
	return result
}

// MatchesAny returns true if the path matches any of the given glob patterns.
func MatchesAny(path string, patterns []string) bool {
	for _, pattern := range patterns {
		matched, err := filepath.Match(pattern, path)
		if err == nil && matched {
			return true
		}
		clean := strings.TrimPrefix(pattern, "**/")
		if clean != pattern {
			matched, err = filepath.Match(clean, filepath.Base(path))
			if err == nil && matched {
				return true
			}
			matched, err = filepath.Match(clean, path)
			if err == nil && matched {
				return true
			}
		}
		if dir, ok := strings.CutSuffix(clean, "/**"); ok && !strings.ContainsAny(dir, "*?[") {
			if strings.HasPrefix(path, dir+"/") || (clean != pattern && strings.Contains(path, "/"+dir+"/")) {
				return true
			}
		}
	}
	return false
}

func gitOutput(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return string(out), errors.Newf("%s: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", err
	}
	return string(out), nil
}
