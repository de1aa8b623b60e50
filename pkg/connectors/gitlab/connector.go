// Package gitlab fetches merge-request change sets from the GitLab API.
package gitlab

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/rediverio/reviewd/pkg/connectors"
	"github.com/rediverio/reviewd/pkg/errors"
	"github.com/rediverio/reviewd/pkg/review"
)

const (
	// DefaultRateLimit matches GitLab.com's authenticated budget (requests/hour).
	DefaultRateLimit = 7200

	// diffsPerPage is the page size for the merge-request diffs endpoint.
	diffsPerPage = 100
)

// Connector talks to the GitLab REST API. Merge requests map onto the
// pull-request model: IID becomes the number, source/target branches become
// head/base refs.
type Connector struct {
	*connectors.BaseConnector
	client *gitlab.Client
}

var _ connectors.SCM = (*Connector)(nil)

// NewConnector creates a GitLab connector. The token is used for this
// connector's lifetime only.
func NewConnector(cfg *connectors.Config) (*Connector, error) {
	const op = "gitlab.NewConnector"

	if cfg == nil {
		cfg = &connectors.Config{}
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRateLimit
	}

	var opts []gitlab.ClientOptionFunc
	if cfg.BaseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(cfg.BaseURL))
	}

	client, err := gitlab.NewClient(cfg.Token, opts...)
	if err != nil {
		return nil, errors.E(errors.KindInvalidInput, op, "failed to build gitlab client", err)
	}

	return &Connector{
		BaseConnector: connectors.NewBaseConnector("gitlab", cfg),
		client:        client,
	}, nil
}

// GetPullRequest fetches the merge request owner/repo!number and its diffs.
func (c *Connector) GetPullRequest(ctx context.Context, owner, repo string, number int) (*review.PullRequest, error) {
	const op = "gitlab.GetPullRequest"

	pid := fmt.Sprintf("%s/%s", owner, repo)

	if err := c.WaitForRateLimit(ctx); err != nil {
		return nil, errors.E(errors.KindTimeout, op, err)
	}

	mr, resp, err := c.client.MergeRequests.GetMergeRequest(pid, number, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, apiError(op, "failed to fetch merge request", resp, err)
	}

	result := &review.PullRequest{
		Number:  mr.IID,
		Title:   mr.Title,
		Body:    mr.Description,
		HeadRef: mr.SourceBranch,
		BaseRef: mr.TargetBranch,
	}
	if mr.Author != nil {
		result.Author = mr.Author.Username
	}

	opts := &gitlab.ListMergeRequestDiffsOptions{
		ListOptions: gitlab.ListOptions{PerPage: diffsPerPage},
	}
	for {
		if err := c.WaitForRateLimit(ctx); err != nil {
			return nil, errors.E(errors.KindTimeout, op, err)
		}

		diffs, resp, err := c.client.MergeRequests.ListMergeRequestDiffs(pid, number, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, apiError(op, "failed to list merge request diffs", resp, err)
		}

		for _, d := range diffs {
			additions, deletions := countDiffLines(d.Diff)
			result.Files = append(result.Files, review.FileChange{
				Filename:  d.NewPath,
				Status:    fileStatus(d),
				Additions: additions,
				Deletions: deletions,
				Patch:     d.Diff,
			})
			result.Additions += additions
			result.Deletions += deletions
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	result.ChangedFiles = len(result.Files)
	return result, nil
}

// fileStatus maps the diff flags onto the shared status vocabulary.
func fileStatus(d *gitlab.MergeRequestDiff) string {
	switch {
	case d.NewFile:
		return "added"
	case d.DeletedFile:
		return "deleted"
	case d.RenamedFile:
		return "renamed"
	default:
		return "modified"
	}
}

// countDiffLines tallies added and removed lines in a unified diff,
// excluding the +++/--- file headers. GitLab does not report per-file
// counts, so they are derived here.
func countDiffLines(diff string) (additions, deletions int) {
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			additions++
		case strings.HasPrefix(line, "-"):
			deletions++
		}
	}
	return additions, deletions
}

// apiError maps a GitLab API failure onto an error kind.
func apiError(op, message string, resp *gitlab.Response, err error) error {
	kind := errors.KindNetwork
	if resp != nil {
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			kind = errors.KindAuthentication
		case http.StatusForbidden:
			kind = errors.KindAuthorization
		case http.StatusNotFound:
			kind = errors.KindNotFound
		case http.StatusTooManyRequests:
			kind = errors.KindRateLimit
		}
	}
	return errors.E(kind, op, message, err)
}
