package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-github/v69/github"

	"treesync/pkg/domain/tree"
)

func githubSource(t *testing.T, handler http.Handler) (*GitHub, func()) {
	t.Helper()
	server := httptest.NewServer(handler)
	client := github.NewClient(nil)
	base, err := url.Parse(server.URL + "/")
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	client.BaseURL = base
	return NewGitHubWithClient("org_3", "example", "", client), server.Close
}

func TestGitHub_Fetch(t *testing.T) {
	src, done := githubSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/orgs/example/repos":
			fmt.Fprint(w, `[{"name":"api","archived":false}]`)
		case "/repos/example/api/milestones":
			fmt.Fprint(w, `[{"number":1,"title":"v1.0","state":"open"},{"number":2,"title":"v0.9","state":"closed"}]`)
		case "/repos/example/api/issues":
			fmt.Fprint(w, `[
				{"number":10,"title":"Fix auth","state":"open","milestone":{"number":1}},
				{"number":11,"title":"Stray bug","state":"closed"},
				{"number":12,"title":"Some PR","state":"open","pull_request":{"url":"https://example.com"}}
			]`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer done()

	records, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}

	// Root, repo, two milestones, two issues; the pull request is skipped.
	if len(records) != 6 {
		t.Fatalf("records = %d, want 6", len(records))
	}
	byID := recordsByLocalID(records)

	if got := byID["repo_api"]; got.LocalParentID != OrgID("https://github.com/example") {
		t.Errorf("repo = %+v", got)
	}
	if got := byID["api#m2"]; !got.Done {
		t.Error("closed milestone should be flagged done")
	}
	if got := byID["api#10"]; got.LocalParentID != "api#m1" {
		t.Errorf("issue 10 parent = %q, want milestone", got.LocalParentID)
	}
	got := byID["api#11"]
	if got.LocalParentID != "repo_api" {
		t.Errorf("issue 11 parent = %q, want repository", got.LocalParentID)
	}
	if !got.Done {
		t.Error("closed issue should be flagged done")
	}

	if _, err := tree.Build(records); err != nil {
		t.Errorf("fetched records should build: %v", err)
	}
}

func TestGitHub_RepoFilter(t *testing.T) {
	src, done := githubSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/orgs/example/repos":
			fmt.Fprint(w, `[{"name":"api"},{"name":"web"}]`)
		case "/repos/example/web/milestones", "/repos/example/web/issues":
			fmt.Fprint(w, `[]`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer done()

	src.repo = "web"
	records, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	byID := recordsByLocalID(records)
	if _, ok := byID["repo_api"]; ok {
		t.Error("filtered repository should not be fetched")
	}
	if _, ok := byID["repo_web"]; !ok {
		t.Error("selected repository missing")
	}
}

func TestGitHub_FetchFailsClosed(t *testing.T) {
	src, done := githubSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer done()

	if _, err := src.Fetch(context.Background()); err == nil {
		t.Error("Fetch() should fail rather than return a partial batch")
	}
}
