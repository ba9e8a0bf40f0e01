package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"treesync/pkg/domain/tree"
)

// epicLinkField is the custom field Jira Cloud uses for the epic link on
// classic projects.
const epicLinkField = "customfield_10014"

const jiraPageSize = 100

// Jira fetches the project and issue hierarchy of one Jira instance over
// the REST v2 API with basic auth.
type Jira struct {
	name       string
	baseURL    string
	email      string
	token      string
	project    string
	httpClient *http.Client
}

// NewJira creates an adapter for one Jira instance. project optionally
// restricts the fetch to a single project key.
func NewJira(name, baseURL, email, token, project string) *Jira {
	return &Jira{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		email:      email,
		token:      token,
		project:    project,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Name returns the instance prefix used during id derivation.
func (s *Jira) Name() string { return s.name }

type jiraProject struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

type jiraIssue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary string `json:"summary"`
		Status  struct {
			Name string `json:"name"`
		} `json:"status"`
		Parent *struct {
			Key string `json:"key"`
		} `json:"parent"`
		EpicLink string `json:"customfield_10014"`
	} `json:"fields"`
}

type jiraSearchPage struct {
	StartAt    int         `json:"startAt"`
	MaxResults int         `json:"maxResults"`
	Total      int         `json:"total"`
	Issues     []jiraIssue `json:"issues"`
}

// Fetch returns the instance root, every project and every issue as flat
// records. Issue parents resolve to the explicit parent issue, then the
// epic link, then the project.
func (s *Jira) Fetch(ctx context.Context) ([]tree.SourceRecord, error) {
	orgID := OrgID(s.baseURL)
	records := []tree.SourceRecord{{
		Source:  s.name,
		LocalID: orgID,
		Name:    s.name,
	}}

	var projects []jiraProject
	if err := s.get(ctx, "/rest/api/2/project", nil, &projects); err != nil {
		return nil, fmt.Errorf("jira %s: list projects: %w", s.name, err)
	}

	for _, p := range projects {
		if s.project != "" && p.Key != s.project {
			continue
		}
		projectID := "proj_" + p.Key
		records = append(records, tree.SourceRecord{
			Source:        s.name,
			LocalID:       projectID,
			Name:          p.Name,
			LocalParentID: orgID,
		})

		issues, err := s.searchIssues(ctx, p.Key)
		if err != nil {
			return nil, fmt.Errorf("jira %s: project %s: %w", s.name, p.Key, err)
		}

		known := make(map[string]bool, len(issues))
		for _, issue := range issues {
			known[issue.Key] = true
		}

		for _, issue := range issues {
			parentID := projectID
			if issue.Fields.Parent != nil && known[issue.Fields.Parent.Key] {
				parentID = issue.Fields.Parent.Key
			} else if issue.Fields.EpicLink != "" && known[issue.Fields.EpicLink] {
				parentID = issue.Fields.EpicLink
			}
			records = append(records, tree.SourceRecord{
				Source:        s.name,
				LocalID:       issue.Key,
				Name:          issue.Fields.Summary,
				LocalParentID: parentID,
				Done:          jiraDone(issue.Fields.Status.Name),
			})
		}
	}
	return records, nil
}

// searchIssues pages through every issue of a project.
func (s *Jira) searchIssues(ctx context.Context, projectKey string) ([]jiraIssue, error) {
	var issues []jiraIssue
	for startAt := 0; ; startAt += jiraPageSize {
		params := url.Values{}
		params.Set("jql", fmt.Sprintf("project = %s ORDER BY key", projectKey))
		params.Set("startAt", strconv.Itoa(startAt))
		params.Set("maxResults", strconv.Itoa(jiraPageSize))
		params.Set("fields", "summary,status,parent,"+epicLinkField)

		var page jiraSearchPage
		if err := s.get(ctx, "/rest/api/2/search", params, &page); err != nil {
			return nil, err
		}
		issues = append(issues, page.Issues...)

		if len(page.Issues) < jiraPageSize || startAt+len(page.Issues) >= page.Total {
			return issues, nil
		}
	}
}

func (s *Jira) get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := s.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(s.email, s.token)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func jiraDone(status string) bool {
	switch strings.ToLower(status) {
	case "done", "closed", "resolved":
		return true
	}
	return false
}
