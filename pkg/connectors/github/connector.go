// Package github fetches pull-request change sets from the GitHub API.
package github

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v74/github"
	"golang.org/x/oauth2"

	"github.com/rediverio/reviewd/pkg/connectors"
	"github.com/rediverio/reviewd/pkg/errors"
	"github.com/rediverio/reviewd/pkg/review"
)

const (
	// DefaultRateLimit matches GitHub's authenticated budget (requests/hour).
	DefaultRateLimit = 5000

	// filesPerPage is the maximum page size the files endpoint accepts.
	filesPerPage = 100
)

// Connector talks to the GitHub REST API.
type Connector struct {
	*connectors.BaseConnector
	client *github.Client
}

var _ connectors.SCM = (*Connector)(nil)

// NewConnector creates a GitHub connector. The token is used for this
// connector's lifetime only.
func NewConnector(cfg *connectors.Config) (*Connector, error) {
	const op = "github.NewConnector"

	if cfg == nil {
		cfg = &connectors.Config{}
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRateLimit
	}

	var httpClient *http.Client
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: cfg.Token},
		)
		httpClient = oauth2.NewClient(context.Background(), ts)
	}
	client := github.NewClient(httpClient)

	if cfg.BaseURL != "" {
		base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, errors.E(errors.KindInvalidInput, op, "invalid base URL", err)
		}
		client.BaseURL = base
	}

	return &Connector{
		BaseConnector: connectors.NewBaseConnector("github", cfg),
		client:        client,
	}, nil
}

// GetPullRequest fetches PR metadata and every changed file, following
// pagination on the files endpoint.
func (c *Connector) GetPullRequest(ctx context.Context, owner, repo string, number int) (*review.PullRequest, error) {
	const op = "github.GetPullRequest"

	if err := c.WaitForRateLimit(ctx); err != nil {
		return nil, errors.E(errors.KindTimeout, op, err)
	}

	pr, resp, err := c.client.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, apiError(op, "failed to fetch pull request", resp, err)
	}

	result := &review.PullRequest{
		Number:       pr.GetNumber(),
		Title:        pr.GetTitle(),
		Body:         pr.GetBody(),
		Author:       pr.GetUser().GetLogin(),
		HeadRef:      pr.GetHead().GetRef(),
		BaseRef:      pr.GetBase().GetRef(),
		Additions:    pr.GetAdditions(),
		Deletions:    pr.GetDeletions(),
		ChangedFiles: pr.GetChangedFiles(),
	}

	opts := &github.ListOptions{PerPage: filesPerPage}
	for {
		if err := c.WaitForRateLimit(ctx); err != nil {
			return nil, errors.E(errors.KindTimeout, op, err)
		}

		files, resp, err := c.client.PullRequests.ListFiles(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, apiError(op, "failed to list changed files", resp, err)
		}

		for _, f := range files {
			result.Files = append(result.Files, review.FileChange{
				Filename:  f.GetFilename(),
				Status:    f.GetStatus(),
				Additions: f.GetAdditions(),
				Deletions: f.GetDeletions(),
				Patch:     f.GetPatch(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return result, nil
}

// apiError maps a GitHub API failure onto an error kind.
func apiError(op, message string, resp *github.Response, err error) error {
	kind := errors.KindNetwork
	if resp != nil {
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			kind = errors.KindAuthentication
		case http.StatusForbidden:
			// GitHub reports primary rate-limit exhaustion as 403.
			if resp.Rate.Remaining == 0 {
				kind = errors.KindRateLimit
			} else {
				kind = errors.KindAuthorization
			}
		case http.StatusNotFound:
			kind = errors.KindNotFound
		case http.StatusTooManyRequests:
			kind = errors.KindRateLimit
		}
	}
	return errors.E(kind, op, message, err)
}
