package github

import (
	"context"
	"log/slog"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/dshills/buildlens/internal/issue"
	"github.com/dshills/buildlens/internal/output"
)

// Positioner maps a line of a file to its position in the pull request diff.
type Positioner interface {
	Position(path string, line int) (int, bool)
}

// Poster posts correlated issues on one pull request.
type Poster struct {
	Client *Client
	Owner  string
	Repo   string
	PR     *PullRequest
	Diff   Positioner
	// HeadCommit is the commit the diff was computed for. It defaults to
	// the pull request head.
	HeadCommit string
	// InHead reports whether a file exists in the head commit. Files that
	// do not are listed without a link. Nil links every file.
	InHead func(path string) bool
	Log    *slog.Logger

	reviewComments []ReviewComment
	issueComments  []IssueComment
	loadedReview   bool
	loadedIssue    bool
}

// Result counts what Post did.
type Result struct {
	Inline     int
	Summary    bool
	Duplicates int
	Rejected   int
}

// Post comments on the pull request for the given issues. Issues are sorted
// by path and line first.
func (p *Poster) Post(ctx context.Context, issues []issue.Issue) (Result, error) {
	var res Result
	head := p.head()
	var rest []issue.Issue

	for _, is := range output.SortIssues(issues) {
		position, ok := 0, false
		if is.FilePath != "" && is.Line > 0 && p.Diff != nil {
			position, ok = p.Diff.Position(is.FilePath, is.Line)
		}
		if !ok {
			rest = append(rest, is)
			continue
		}

		comment := ReviewComment{
			Body:     output.IssueMarkdown(is),
			CommitID: head,
			Path:     is.FilePath,
			Position: position,
		}
		exists, err := p.hasReviewComment(ctx, comment)
		if err != nil {
			return res, err
		}
		if exists {
			res.Duplicates++
			continue
		}
		posted, err := p.checkRejected(ctx, p.Client.CreateReviewComment(ctx, p.Owner, p.Repo, p.PR.Number, comment), comment.Body)
		if err != nil {
			return res, err
		}
		if posted {
			res.Inline++
		} else {
			res.Rejected++
		}
	}

	body := output.Summary(rest, p.FileURL)
	if body == "" {
		return res, nil
	}
	exists, err := p.hasIssueComment(ctx, body)
	if err != nil {
		return res, err
	}
	if exists {
		res.Duplicates++
		return res, nil
	}
	posted, err := p.checkRejected(ctx, p.Client.CreateIssueComment(ctx, p.Owner, p.Repo, p.PR.Number, body), body)
	if err != nil {
		return res, err
	}
	if posted {
		res.Summary = true
	} else {
		res.Rejected++
	}
	return res, nil
}

// FileURL links a file of the head commit, or returns "" when the head
// commit does not contain it.
func (p *Poster) FileURL(path string) string {
	if p.InHead != nil && !p.InHead(path) {
		return ""
	}
	base := strings.TrimRight(p.PR.Head.Repo.HTMLURL, "/")
	return base + "/blob/" + p.head() + "/" + path
}

func (p *Poster) head() string {
	if p.HeadCommit != "" {
		return p.HeadCommit
	}
	return p.PR.Head.SHA
}

// checkRejected logs a comment GitHub refused and lets posting continue.
func (p *Poster) checkRejected(ctx context.Context, err error, body string) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrRejected) {
		p.logger().ErrorContext(ctx, "comment rejected", "body", body, "error", err)
		return false, nil
	}
	return false, errors.Wrap(err, "posting comment")
}

func (p *Poster) hasReviewComment(ctx context.Context, c ReviewComment) (bool, error) {
	if !p.loadedReview {
		comments, err := p.Client.ListReviewComments(ctx, p.Owner, p.Repo, p.PR.Number)
		if err != nil {
			return false, errors.Wrap(err, "listing review comments")
		}
		p.reviewComments, p.loadedReview = comments, true
	}
	for _, existing := range p.reviewComments {
		if existing.Body == c.Body && existing.CommitID == c.CommitID &&
			existing.Path == c.Path && existing.Position == c.Position {
			return true, nil
		}
	}
	return false, nil
}

func (p *Poster) hasIssueComment(ctx context.Context, body string) (bool, error) {
	if !p.loadedIssue {
		comments, err := p.Client.ListIssueComments(ctx, p.Owner, p.Repo, p.PR.Number)
		if err != nil {
			return false, errors.Wrap(err, "listing comments")
		}
		p.issueComments, p.loadedIssue = comments, true
	}
	for _, existing := range p.issueComments {
		if existing.Body == body {
			return true, nil
		}
	}
	return false, nil
}

func (p *Poster) logger() *slog.Logger {
	if p.Log == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.Log
}
