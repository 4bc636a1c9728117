package gitlab

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/dshills/buildlens/internal/issue"
	"github.com/dshills/buildlens/internal/output"
)

var (
	// ErrNoToken is returned by NewPoster without a token.
	ErrNoToken = errors.New("no GitLab token configured")
	// ErrAuth is returned when GitLab rejects the credentials.
	ErrAuth = errors.New("GitLab authentication failed")
)

// MergeRequest is the part of a merge request a review needs.
type MergeRequest struct {
	IID          int64
	SourceBranch string
	TargetBranch string
	HeadSHA      string
	WebURL       string
}

// Poster comments on one merge request.
type Poster struct {
	client       *gitlab.Client
	project      string
	mergeRequest int64
	log          *slog.Logger

	projectURL string
}

// NewPoster creates a poster for a merge request of project, given as its
// full path (group/name). baseURL is the API root, https://gitlab.com/api/v4
// when empty.
func NewPoster(baseURL, token, project string, mergeRequest int64, log *slog.Logger) (*Poster, error) {
	if token == "" {
		return nil, errors.WithHint(ErrNoToken, "set GITLAB_TOKEN or gitlab.token in the config file")
	}
	var opts []gitlab.ClientOptionFunc
	if baseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(strings.TrimSuffix(baseURL, "/")))
	}
	client, err := gitlab.NewClient(token, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating gitlab client")
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Poster{client: client, project: project, mergeRequest: mergeRequest, log: log}, nil
}

// MergeRequest fetches the merge request metadata.
func (p *Poster) MergeRequest(ctx context.Context) (*MergeRequest, error) {
	mr, resp, err := p.client.MergeRequests.GetMergeRequest(p.project, p.mergeRequest, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, wrapErr(resp, err, "fetching merge request %s!%d", p.project, p.mergeRequest)
	}
	return &MergeRequest{
		IID:          p.mergeRequest,
		SourceBranch: mr.SourceBranch,
		TargetBranch: mr.TargetBranch,
		HeadSHA:      mr.SHA,
		WebURL:       mr.WebURL,
	}, nil
}

// PostIssues posts the summary of issues as one note. It reports whether a
// note was created.
func (p *Poster) PostIssues(ctx context.Context, issues []issue.Issue, headCommit string, inHead func(string) bool) (bool, error) {
	link := func(path string) string {
		if headCommit == "" || (inHead != nil && !inHead(path)) {
			return ""
		}
		base, err := p.webURL(ctx)
		if err != nil {
			p.log.WarnContext(ctx, "cannot link files", "error", err)
			return ""
		}
		return base + "/-/blob/" + headCommit + "/" + path
	}
	return p.Post(ctx, output.Summary(output.SortIssues(issues), link))
}

// Post creates a note unless body is empty or an identical note exists.
func (p *Poster) Post(ctx context.Context, body string) (bool, error) {
	if body == "" {
		return false, nil
	}
	exists, err := p.hasNote(ctx, body)
	if err != nil {
		return false, err
	}
	if exists {
		p.log.InfoContext(ctx, "note already present", "merge_request", p.mergeRequest)
		return false, nil
	}
	_, resp, err := p.client.Notes.CreateMergeRequestNote(p.project, p.mergeRequest, &gitlab.CreateMergeRequestNoteOptions{
		Body: gitlab.Ptr(body),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return false, wrapErr(resp, err, "creating note on %s!%d", p.project, p.mergeRequest)
	}
	return true, nil
}

func (p *Poster) hasNote(ctx context.Context, body string) (bool, error) {
	opts := &gitlab.ListMergeRequestNotesOptions{
		ListOptions: gitlab.ListOptions{Page: 1, PerPage: 100},
	}
	for {
		notes, resp, err := p.client.Notes.ListMergeRequestNotes(p.project, p.mergeRequest, opts, gitlab.WithContext(ctx))
		if err != nil {
			return false, wrapErr(resp, err, "listing notes of %s!%d", p.project, p.mergeRequest)
		}
		for _, n := range notes {
			if !n.System && n.Body == body {
				return true, nil
			}
		}
		if resp.NextPage == 0 {
			return false, nil
		}
		opts.Page = resp.NextPage
	}
}

func (p *Poster) webURL(ctx context.Context) (string, error) {
	if p.projectURL != "" {
		return p.projectURL, nil
	}
	project, resp, err := p.client.Projects.GetProject(p.project, nil, gitlab.WithContext(ctx))
	if err != nil {
		return "", wrapErr(resp, err, "fetching project %s", p.project)
	}
	p.projectURL = strings.TrimSuffix(project.WebURL, "/")
	return p.projectURL, nil
}

func wrapErr(resp *gitlab.Response, err error, format string, args ...any) error {
	if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		err = errors.Mark(err, ErrAuth)
	}
	return errors.Wrapf(err, format, args...)
}
