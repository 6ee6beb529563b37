package actions

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"artifact-fetch/src/locator"

	"github.com/google/go-github/v61/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRef = locator.RunReference{Owner: "wisdom-valley", Repo: "knowlify-ai", RunID: 42}

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	gh := github.NewClient(nil)
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	gh.BaseURL = base

	return &Client{GH: gh}
}

func runJSON(status, conclusion string) string {
	return fmt.Sprintf(`{"id":42,"run_number":7,"name":"CI","status":%q,"conclusion":%q}`, status, conclusion)
}

func TestGetRun(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/wisdom-valley/knowlify-ai/actions/runs/42", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, runJSON(StatusInProgress, ""))
	})

	client := testClient(t, mux)
	run, err := client.GetRun(context.Background(), testRef)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, run.GetStatus())
	assert.Equal(t, int64(42), run.GetID())
}

func TestWaitForRunPollsUntilSuccess(t *testing.T) {
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/wisdom-valley/knowlify-ai/actions/runs/42", func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) < 3 {
			fmt.Fprint(w, runJSON(StatusInProgress, ""))
			return
		}
		fmt.Fprint(w, runJSON(StatusCompleted, ConclusionSuccess))
	})

	client := testClient(t, mux)
	run, err := client.WaitForRun(context.Background(), testRef, 5*time.Millisecond, time.Second)
	require.NoError(t, err)
	assert.Equal(t, ConclusionSuccess, run.GetConclusion())
	assert.GreaterOrEqual(t, polls.Load(), int32(3))
}

func TestWaitForRunFailedConclusion(t *testing.T) {
	for _, conclusion := range []string{ConclusionFailure, ConclusionCancelled, ConclusionTimedOut} {
		t.Run(conclusion, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/repos/wisdom-valley/knowlify-ai/actions/runs/42", func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, runJSON(StatusCompleted, conclusion))
			})

			client := testClient(t, mux)
			run, err := client.WaitForRun(context.Background(), testRef, 5*time.Millisecond, time.Second)
			assert.ErrorIs(t, err, ErrWorkflowFailed)
			assert.ErrorContains(t, err, conclusion)
			require.NotNil(t, run)
		})
	}
}

func TestWaitForRunTimeout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/wisdom-valley/knowlify-ai/actions/runs/42", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, runJSON(StatusQueued, ""))
	})

	client := testClient(t, mux)
	interval := 10 * time.Millisecond
	timeout := 30 * time.Millisecond

	start := time.Now()
	_, err := client.WaitForRun(context.Background(), testRef, interval, timeout)
	assert.ErrorIs(t, err, ErrWorkflowTimedOut)
	// Must give up within timeout plus one poll interval (plus slack).
	assert.Less(t, time.Since(start), timeout+interval+200*time.Millisecond)
}

func TestWaitForRunCancelled(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/wisdom-valley/knowlify-ai/actions/runs/42", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, runJSON(StatusInProgress, ""))
	})

	client := testClient(t, mux)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.WaitForRun(ctx, testRef, time.Hour, 2*time.Hour)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestListArtifactsFiltersExpired(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/wisdom-valley/knowlify-ai/actions/runs/42/artifacts", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"total_count":3,"artifacts":[
			{"id":1,"name":"build","expired":false},
			{"id":2,"name":"stale","expired":true},
			{"id":3,"name":"reports","expired":false}]}`)
	})

	client := testClient(t, mux)
	artifacts, err := client.ListArtifacts(context.Background(), testRef)
	require.NoError(t, err)
	require.Len(t, artifacts, 2)
	assert.Equal(t, "build", artifacts[0].GetName())
	assert.Equal(t, "reports", artifacts[1].GetName())
}

func TestListArtifactsPaginates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/wisdom-valley/knowlify-ai/actions/runs/42/artifacts", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `{"total_count":2,"artifacts":[{"id":2,"name":"second","expired":false}]}`)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<http://%s%s?page=2>; rel="next"`, r.Host, r.URL.Path))
		fmt.Fprint(w, `{"total_count":2,"artifacts":[{"id":1,"name":"first","expired":false}]}`)
	})

	client := testClient(t, mux)
	artifacts, err := client.ListArtifacts(context.Background(), testRef)
	require.NoError(t, err)
	require.Len(t, artifacts, 2)
	assert.Equal(t, "first", artifacts[0].GetName())
	assert.Equal(t, "second", artifacts[1].GetName())
}

func TestListArtifactsEmpty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/wisdom-valley/knowlify-ai/actions/runs/42/artifacts", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"total_count":0,"artifacts":[]}`)
	})

	client := testClient(t, mux)
	_, err := client.ListArtifacts(context.Background(), testRef)
	assert.ErrorIs(t, err, ErrNoArtifacts)
}

func TestListArtifactsAllExpired(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/wisdom-valley/knowlify-ai/actions/runs/42/artifacts", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"total_count":1,"artifacts":[{"id":1,"name":"stale","expired":true}]}`)
	})

	client := testClient(t, mux)
	_, err := client.ListArtifacts(context.Background(), testRef)
	assert.ErrorIs(t, err, ErrNoArtifacts)
}

func TestArtifactURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/wisdom-valley/knowlify-ai/actions/artifacts/9/zip", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "https://files.example/archive.zip")
		w.WriteHeader(http.StatusFound)
	})

	client := testClient(t, mux)
	url, err := client.ArtifactURL(context.Background(), testRef, 9)
	require.NoError(t, err)
	assert.Equal(t, "https://files.example/archive.zip", url)
}
