package locator

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidInput marks identifiers that match neither the owner/repo
// form nor the run URL form.
var ErrInvalidInput = errors.New("invalid input")

var runURLRegex = regexp.MustCompile(`^https?://github\.com/([^/]+)/([^/]+)/actions/runs/(\d+)(?:/.*)?$`)

// RunReference identifies a single workflow run. Immutable once parsed.
type RunReference struct {
	Owner string
	Repo  string
	RunID int64
}

func (r RunReference) Repository() string {
	return r.Owner + "/" + r.Repo
}

func (r RunReference) String() string {
	return fmt.Sprintf("%s/%s/actions/runs/%d", r.Owner, r.Repo, r.RunID)
}

// Parse builds a RunReference from an "owner/repo" pair and a decimal run id.
func Parse(repository, runID string) (RunReference, error) {
	owner, repo, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return RunReference{}, fmt.Errorf("%w: expected owner/repo, got %q", ErrInvalidInput, repository)
	}

	id, err := strconv.ParseInt(runID, 10, 64)
	if err != nil || id <= 0 {
		return RunReference{}, fmt.Errorf("%w: run id must be a positive integer, got %q", ErrInvalidInput, runID)
	}

	return RunReference{Owner: owner, Repo: repo, RunID: id}, nil
}

// ParseURL builds a RunReference from a run URL of the form
// https://github.com/owner/repo/actions/runs/run_id.
func ParseURL(raw string) (RunReference, error) {
	m := runURLRegex.FindStringSubmatch(raw)
	if m == nil {
		return RunReference{}, fmt.Errorf("%w: invalid run URL %q, expected https://github.com/owner/repo/actions/runs/run_id", ErrInvalidInput, raw)
	}

	return Parse(m[1]+"/"+m[2], m[3])
}
