package actions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"artifact-fetch/src/locator"

	"github.com/google/go-github/v61/github"
	"golang.org/x/oauth2"
)

// Workflow run status and conclusion values as reported by the API.
const (
	StatusQueued     = "queued"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"

	ConclusionSuccess   = "success"
	ConclusionFailure   = "failure"
	ConclusionCancelled = "cancelled"
	ConclusionTimedOut  = "timed_out"
	ConclusionSkipped   = "skipped"
)

var (
	ErrNoArtifacts      = errors.New("no artifacts found")
	ErrWorkflowFailed   = errors.New("workflow failed")
	ErrWorkflowTimedOut = errors.New("workflow timed out")
)

// Client wraps the GitHub API for a single run's lifecycle.
type Client struct {
	GH *github.Client
}

func NewClient(ctx context.Context, token string) *Client {
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)
	return &Client{GH: github.NewClient(tc)}
}

// GetRun fetches the run's current state. Never cached, each call hits the API.
func (c *Client) GetRun(ctx context.Context, ref locator.RunReference) (*github.WorkflowRun, error) {
	run, _, err := c.GH.Actions.GetWorkflowRunByID(ctx, ref.Owner, ref.Repo, ref.RunID)
	if err != nil {
		return nil, apiErr("getting workflow run", err)
	}
	return run, nil
}

// WaitForRun polls the run until it completes, the timeout elapses, or ctx
// is cancelled. A run that is already complete is evaluated without sleeping.
// Returns the run only for a successful conclusion; any other terminal
// conclusion yields ErrWorkflowFailed.
func (c *Client) WaitForRun(ctx context.Context, ref locator.RunReference, interval, timeout time.Duration) (*github.WorkflowRun, error) {
	start := time.Now()
	for {
		run, err := c.GetRun(ctx, ref)
		if err != nil {
			return nil, err
		}

		if run.GetStatus() == StatusCompleted {
			fmt.Printf("Workflow completed - status: %s, conclusion: %s\n", run.GetStatus(), run.GetConclusion())
			if run.GetConclusion() == ConclusionSuccess {
				return run, nil
			}
			return run, fmt.Errorf("%w: conclusion %s", ErrWorkflowFailed, run.GetConclusion())
		}

		elapsed := time.Since(start)
		if elapsed >= timeout {
			return run, fmt.Errorf("%w: did not complete within %s", ErrWorkflowTimedOut, timeout)
		}

		fmt.Printf("Waiting for workflow to complete (elapsed: %s, status: %s)...\n", formatElapsed(elapsed), run.GetStatus())

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// ListArtifacts returns all non-expired artifacts of the run. Zero usable
// artifacts is reported as ErrNoArtifacts, distinct from a transport error.
func (c *Client) ListArtifacts(ctx context.Context, ref locator.RunReference) ([]*github.Artifact, error) {
	opts := &github.ListOptions{PerPage: 100}
	var artifacts []*github.Artifact

	for {
		list, resp, err := c.GH.Actions.ListWorkflowRunArtifacts(ctx, ref.Owner, ref.Repo, ref.RunID, opts)
		if err != nil {
			return nil, apiErr("listing artifacts", err)
		}

		for _, artifact := range list.Artifacts {
			if artifact.GetExpired() {
				fmt.Printf("Skipping expired artifact: %s\n", artifact.GetName())
				continue
			}
			artifacts = append(artifacts, artifact)
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	if len(artifacts) == 0 {
		return nil, fmt.Errorf("%w for run %d", ErrNoArtifacts, ref.RunID)
	}

	return artifacts, nil
}

// ArtifactURL resolves the short-lived download URL for an artifact archive.
func (c *Client) ArtifactURL(ctx context.Context, ref locator.RunReference, artifactID int64) (string, error) {
	u, _, err := c.GH.Actions.DownloadArtifact(ctx, ref.Owner, ref.Repo, artifactID, 0)
	if err != nil {
		return "", apiErr("resolving artifact download URL", err)
	}
	return u.String(), nil
}

func apiErr(action string, err error) error {
	if _, ok := err.(*github.RateLimitError); ok {
		return fmt.Errorf("error %s: hit rate limit", action)
	}
	return fmt.Errorf("error %s: %w", action, err)
}

func formatElapsed(d time.Duration) string {
	total := int(d.Seconds())
	return fmt.Sprintf("%dm %ds", total/60, total%60)
}
