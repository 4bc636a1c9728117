package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

const defaultAPIURL = "https://api.github.com"

const perPage = 100

var (
	// ErrNoToken is returned by NewClient without a token.
	ErrNoToken = errors.New("no GitHub token configured")
	// ErrAuth is returned when GitHub rejects the credentials.
	ErrAuth = errors.New("GitHub authentication failed")
	// ErrNotFound is returned for a missing repository or pull request.
	ErrNotFound = errors.New("not found on GitHub")
	// ErrRejected is returned when GitHub refuses a comment (422), for
	// example because its position is outside the diff.
	ErrRejected = errors.New("GitHub rejected the request")
)

// Client provides access to the GitHub REST API.
type Client struct {
	token   string
	apiURL  string
	httpCli *http.Client
}

// NewClient creates a client for the API at apiURL, api.github.com when
// empty.
func NewClient(apiURL, token string) (*Client, error) {
	if token == "" {
		return nil, errors.WithHint(ErrNoToken, "set GITHUB_TOKEN or github.token in the config file")
	}
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	return &Client{
		token:   token,
		apiURL:  strings.TrimRight(apiURL, "/"),
		httpCli: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// User is a GitHub account.
type User struct {
	Login string `json:"login"`
}

// Repository is the part of a repository a review needs.
type Repository struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	HTMLURL  string `json:"html_url"`
	CloneURL string `json:"clone_url"`
	SSHURL   string `json:"ssh_url"`
	Owner    User   `json:"owner"`
}

// Branch is the head or base of a pull request.
type Branch struct {
	Ref  string      `json:"ref"`
	SHA  string      `json:"sha"`
	User User        `json:"user"`
	Repo *Repository `json:"repo"`
}

// PullRequest is the pull request metadata.
type PullRequest struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	State   string `json:"state"`
	HTMLURL string `json:"html_url"`
	Head    Branch `json:"head"`
	Base    Branch `json:"base"`
}

// ReviewComment is a comment attached to a diff position.
type ReviewComment struct {
	ID       int64  `json:"id,omitempty"`
	Body     string `json:"body"`
	CommitID string `json:"commit_id"`
	Path     string `json:"path"`
	Position int    `json:"position"`
}

// IssueComment is a comment on the pull request conversation.
type IssueComment struct {
	ID   int64  `json:"id,omitempty"`
	Body string `json:"body"`
}

// GetPullRequest fetches the metadata of a pull request.
func (c *Client) GetPullRequest(ctx context.Context, owner, repo string, number int) (*PullRequest, error) {
	var pr PullRequest
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, repo, number)
	if err := c.do(ctx, http.MethodGet, path, nil, &pr); err != nil {
		return nil, errors.Wrapf(err, "pull request %s/%s#%d", owner, repo, number)
	}
	if pr.Head.Repo == nil {
		return nil, errors.Newf("pull request %s/%s#%d: head repository was deleted", owner, repo, number)
	}
	return &pr, nil
}

// ListReviewComments returns every review comment of a pull request.
func (c *Client) ListReviewComments(ctx context.Context, owner, repo string, number int) ([]ReviewComment, error) {
	var all []ReviewComment
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/comments", owner, repo, number)
	err := c.paginate(ctx, path, func(page []byte) (int, error) {
		var batch []ReviewComment
		if err := json.Unmarshal(page, &batch); err != nil {
			return 0, err
		}
		all = append(all, batch...)
		return len(batch), nil
	})
	return all, err
}

// ListIssueComments returns every conversation comment of a pull request.
func (c *Client) ListIssueComments(ctx context.Context, owner, repo string, number int) ([]IssueComment, error) {
	var all []IssueComment
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments", owner, repo, number)
	err := c.paginate(ctx, path, func(page []byte) (int, error) {
		var batch []IssueComment
		if err := json.Unmarshal(page, &batch); err != nil {
			return 0, err
		}
		all = append(all, batch...)
		return len(batch), nil
	})
	return all, err
}

// CreateReviewComment posts an inline comment.
func (c *Client) CreateReviewComment(ctx context.Context, owner, repo string, number int, comment ReviewComment) error {
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/comments", owner, repo, number)
	return c.do(ctx, http.MethodPost, path, comment, nil)
}

// CreateIssueComment posts a conversation comment.
func (c *Client) CreateIssueComment(ctx context.Context, owner, repo string, number int, body string) error {
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments", owner, repo, number)
	return c.do(ctx, http.MethodPost, path, IssueComment{Body: body}, nil)
}

// paginate requests pages of path until one comes back short.
func (c *Client) paginate(ctx context.Context, path string, decode func(page []byte) (int, error)) error {
	for page := 1; ; page++ {
		var raw json.RawMessage
		if err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s?per_page=%d&page=%d", path, perPage, page), nil, &raw); err != nil {
			return err
		}
		n, err := decode(raw)
		if err != nil {
			return errors.Wrapf(err, "parsing %s page %d", path, page)
		}
		if n < perPage {
			return nil
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "marshaling request")
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, body)
	if err != nil {
		return errors.Wrap(err, "creating request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpCli.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "reading response")
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.Wrapf(ErrAuth, "%s", strings.TrimSpace(string(data)))
	case resp.StatusCode == http.StatusNotFound:
		return errors.Wrapf(ErrNotFound, "%s %s", method, path)
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return errors.Wrapf(ErrRejected, "%s", strings.TrimSpace(string(data)))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return errors.Newf("GitHub API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, "parsing response")
	}
	return nil
}
