package cli

import (
	"context"
	"net/url"
	"strings"

	"github.com/dshills/buildlens/internal/correlator"
	"github.com/dshills/buildlens/internal/diffindex"
	"github.com/dshills/buildlens/internal/gitctx"
	"github.com/dshills/buildlens/internal/github"
	"github.com/dshills/buildlens/internal/gitlab"
)

// change is a pull or merge request resolved from its host.
type change struct {
	host  string
	owner string
	repo  string
	// base is the ref the diff is taken against when the checkout is not
	// fetched by buildlens.
	base       string
	headCommit string
	checkout   gitctx.CheckoutOptions
	publish    func(ctx context.Context, report *correlator.Report, diff *diffindex.Index) error
}

func gitHubChange(ctx context.Context, s *session, slug string, number int) (*change, error) {
	owner, repo := splitSlug(slug)
	client, err := github.NewClient(s.cfg.GitHub.APIURL, s.cfg.GitHub.Token)
	if err != nil {
		return nil, err
	}
	pr, err := client.GetPullRequest(ctx, owner, repo, number)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "pull request loaded",
		"repo", slug, "number", number, "head", pr.Head.SHA, "base", pr.Base.Ref)

	cloneURL := pr.Head.Repo.CloneURL
	if pr.Base.Repo != nil {
		cloneURL = pr.Base.Repo.CloneURL
	}
	sourceDir := s.cfg.SourceDir
	return &change{
		host:       hostOf(s.cfg.GitHub.WebURL, "github.com"),
		owner:      owner,
		repo:       repo,
		base:       "origin/" + pr.Base.Ref,
		headCommit: pr.Head.SHA,
		checkout: gitctx.CheckoutOptions{
			CloneURL:   cloneURL,
			BaseURL:    cloneURL,
			BaseRef:    pr.Base.Ref,
			HeadURL:    pr.Head.Repo.CloneURL,
			HeadRef:    pr.Head.Ref,
			HeadCommit: pr.Head.SHA,
		},
		publish: func(ctx context.Context, report *correlator.Report, diff *diffindex.Index) error {
			poster := &github.Poster{
				Client:     client,
				Owner:      owner,
				Repo:       repo,
				PR:         pr,
				Diff:       diff,
				HeadCommit: report.HeadCommit,
				InHead: func(path string) bool {
					return gitctx.FileInCommit(sourceDir, pr.Head.SHA, path)
				},
				Log: s.log,
			}
			res, err := poster.Post(ctx, report.Issues)
			s.log.InfoContext(ctx, "comments posted",
				"inline", res.Inline, "summary", res.Summary, "duplicates", res.Duplicates, "rejected", res.Rejected)
			return err
		},
	}, nil
}

func gitLabChange(ctx context.Context, s *session, project string, iid int64) (*change, error) {
	poster, err := gitlab.NewPoster(s.cfg.GitLab.BaseURL, s.cfg.GitLab.Token, project, iid, s.log)
	if err != nil {
		return nil, err
	}
	mr, err := poster.MergeRequest(ctx)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "merge request loaded",
		"project", project, "iid", iid, "head", mr.HeadSHA, "target", mr.TargetBranch)

	owner, repo := splitSlug(project)
	sourceDir := s.cfg.SourceDir
	return &change{
		host:       hostOf(s.cfg.GitLab.BaseURL, "gitlab.com"),
		owner:      owner,
		repo:       repo,
		base:       "origin/" + mr.TargetBranch,
		headCommit: mr.HeadSHA,
		checkout: gitctx.CheckoutOptions{
			CloneURL:   projectCloneURL(mr.WebURL),
			BaseURL:    "origin",
			BaseRef:    mr.TargetBranch,
			HeadURL:    "origin",
			HeadRef:    mr.SourceBranch,
			HeadCommit: mr.HeadSHA,
		},
		publish: func(ctx context.Context, report *correlator.Report, _ *diffindex.Index) error {
			inHead := func(path string) bool {
				return gitctx.FileInCommit(sourceDir, mr.HeadSHA, path)
			}
			posted, err := poster.PostIssues(ctx, report.Issues, report.HeadCommit, inHead)
			s.log.InfoContext(ctx, "merge request note", "posted", posted)
			return err
		},
	}, nil
}

// splitSlug splits owner/repo at the last slash so GitLab subgroups stay in
// the owner.
func splitSlug(slug string) (owner, repo string) {
	slug = strings.Trim(slug, "/")
	i := strings.LastIndex(slug, "/")
	if i < 0 {
		return "", slug
	}
	return slug[:i], slug[i+1:]
}

// hostOf returns the host name of a web or API URL.
func hostOf(raw, fallback string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return fallback
	}
	return u.Hostname()
}

// projectCloneURL derives the clone URL of a GitLab project from the web
// URL of one of its merge requests.
func projectCloneURL(mrURL string) string {
	project, _, ok := strings.Cut(mrURL, "/-/")
	if !ok {
		return ""
	}
	return project + ".git"
}
