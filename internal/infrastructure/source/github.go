package source

import (
	"context"
	"fmt"

	"github.com/google/go-github/v69/github"
	"golang.org/x/oauth2"

	"treesync/pkg/domain/tree"
)

const githubPageSize = 100

// GitHub fetches an organization's repositories, milestones and issues as
// a three-level hierarchy under the organization root.
type GitHub struct {
	name   string
	org    string
	repo   string
	client *github.Client
}

// NewGitHub creates an adapter for one GitHub organization. repo
// optionally restricts the fetch to a single repository.
func NewGitHub(name, org, token, repo string) *GitHub {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return NewGitHubWithClient(name, org, repo, github.NewClient(oauth2.NewClient(context.Background(), ts)))
}

// NewGitHubWithClient creates an adapter around an existing client.
func NewGitHubWithClient(name, org, repo string, client *github.Client) *GitHub {
	return &GitHub{name: name, org: org, repo: repo, client: client}
}

// Name returns the instance prefix used during id derivation.
func (s *GitHub) Name() string { return s.name }

// Fetch returns the organization root, every repository, every milestone
// and every issue as flat records. Issues parent to their milestone when
// one is assigned, otherwise to the repository; pull requests are not work
// items and are skipped.
func (s *GitHub) Fetch(ctx context.Context) ([]tree.SourceRecord, error) {
	orgID := OrgID("https://github.com/" + s.org)
	records := []tree.SourceRecord{{
		Source:  s.name,
		LocalID: orgID,
		Name:    s.name,
	}}

	repos, err := s.listRepos(ctx)
	if err != nil {
		return nil, fmt.Errorf("github %s: list repositories: %w", s.name, err)
	}

	for _, repo := range repos {
		repoName := repo.GetName()
		if s.repo != "" && repoName != s.repo {
			continue
		}
		repoID := "repo_" + repoName
		records = append(records, tree.SourceRecord{
			Source:        s.name,
			LocalID:       repoID,
			Name:          repoName,
			LocalParentID: orgID,
			Done:          repo.GetArchived(),
		})

		milestones, err := s.listMilestones(ctx, repoName)
		if err != nil {
			return nil, fmt.Errorf("github %s: repository %s: %w", s.name, repoName, err)
		}
		for _, m := range milestones {
			records = append(records, tree.SourceRecord{
				Source:        s.name,
				LocalID:       milestoneID(repoName, m.GetNumber()),
				Name:          m.GetTitle(),
				LocalParentID: repoID,
				Done:          m.GetState() == "closed",
			})
		}

		issues, err := s.listIssues(ctx, repoName)
		if err != nil {
			return nil, fmt.Errorf("github %s: repository %s: %w", s.name, repoName, err)
		}
		for _, issue := range issues {
			if issue.IsPullRequest() {
				continue
			}
			parentID := repoID
			if issue.Milestone != nil {
				parentID = milestoneID(repoName, issue.Milestone.GetNumber())
			}
			records = append(records, tree.SourceRecord{
				Source:        s.name,
				LocalID:       fmt.Sprintf("%s#%d", repoName, issue.GetNumber()),
				Name:          issue.GetTitle(),
				LocalParentID: parentID,
				Done:          issue.GetState() == "closed",
			})
		}
	}
	return records, nil
}

func (s *GitHub) listRepos(ctx context.Context) ([]*github.Repository, error) {
	opts := &github.RepositoryListByOrgOptions{
		ListOptions: github.ListOptions{PerPage: githubPageSize},
	}
	var all []*github.Repository
	for {
		repos, resp, err := s.client.Repositories.ListByOrg(ctx, s.org, opts)
		if err != nil {
			return nil, err
		}
		all = append(all, repos...)
		if resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

func (s *GitHub) listMilestones(ctx context.Context, repo string) ([]*github.Milestone, error) {
	opts := &github.MilestoneListOptions{
		State:       "all",
		ListOptions: github.ListOptions{PerPage: githubPageSize},
	}
	var all []*github.Milestone
	for {
		milestones, resp, err := s.client.Issues.ListMilestones(ctx, s.org, repo, opts)
		if err != nil {
			return nil, err
		}
		all = append(all, milestones...)
		if resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

func (s *GitHub) listIssues(ctx context.Context, repo string) ([]*github.Issue, error) {
	opts := &github.IssueListByRepoOptions{
		State:       "all",
		ListOptions: github.ListOptions{PerPage: githubPageSize},
	}
	var all []*github.Issue
	for {
		issues, resp, err := s.client.Issues.ListByRepo(ctx, s.org, repo, opts)
		if err != nil {
			return nil, err
		}
		all = append(all, issues...)
		if resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

func milestoneID(repo string, number int) string {
	return fmt.Sprintf("%s#m%d", repo, number)
}
