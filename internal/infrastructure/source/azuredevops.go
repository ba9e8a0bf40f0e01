package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"treesync/pkg/domain/tree"
)

const (
	adoAPIVersion = "7.1"
	// adoBatchSize is the work-items batch endpoint limit.
	adoBatchSize = 200

	hierarchyReverse = "System.LinkTypes.Hierarchy-Reverse"
)

// AzureDevOps fetches the project and work-item hierarchy of one Azure
// DevOps organization with PAT basic auth.
type AzureDevOps struct {
	name       string
	baseURL    string
	token      string
	project    string
	httpClient *http.Client
}

// NewAzureDevOps creates an adapter for one organization URL
// (https://dev.azure.com/<org>). project optionally restricts the fetch to
// a single project name.
func NewAzureDevOps(name, baseURL, token, project string) *AzureDevOps {
	return &AzureDevOps{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		project:    project,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Name returns the instance prefix used during id derivation.
func (s *AzureDevOps) Name() string { return s.name }

type adoProject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type adoProjectList struct {
	Value []adoProject `json:"value"`
}

type adoWiqlResult struct {
	WorkItems []struct {
		ID int `json:"id"`
	} `json:"workItems"`
}

type adoWorkItem struct {
	ID     int `json:"id"`
	Fields struct {
		Title string `json:"System.Title"`
		State string `json:"System.State"`
	} `json:"fields"`
	Relations []struct {
		Rel string `json:"rel"`
		URL string `json:"url"`
	} `json:"relations"`
}

type adoWorkItemList struct {
	Value []adoWorkItem `json:"value"`
}

// Fetch returns the organization root, every project and every work item
// as flat records. A work item's parent is its Hierarchy-Reverse relation
// when that parent was fetched too, otherwise the project.
func (s *AzureDevOps) Fetch(ctx context.Context) ([]tree.SourceRecord, error) {
	orgID := OrgID(s.baseURL)
	records := []tree.SourceRecord{{
		Source:  s.name,
		LocalID: orgID,
		Name:    s.name,
	}}

	var projects adoProjectList
	if err := s.call(ctx, http.MethodGet, "/_apis/projects", nil, &projects); err != nil {
		return nil, fmt.Errorf("azuredevops %s: list projects: %w", s.name, err)
	}

	for _, p := range projects.Value {
		if s.project != "" && p.Name != s.project {
			continue
		}
		projectID := "proj_" + p.ID
		records = append(records, tree.SourceRecord{
			Source:        s.name,
			LocalID:       projectID,
			Name:          p.Name,
			LocalParentID: orgID,
		})

		items, err := s.workItems(ctx, p.Name)
		if err != nil {
			return nil, fmt.Errorf("azuredevops %s: project %s: %w", s.name, p.Name, err)
		}

		known := make(map[int]bool, len(items))
		for _, item := range items {
			known[item.ID] = true
		}

		for _, item := range items {
			parentID := projectID
			for _, rel := range item.Relations {
				if rel.Rel != hierarchyReverse {
					continue
				}
				if id, err := idFromRelationURL(rel.URL); err == nil && known[id] {
					parentID = strconv.Itoa(id)
				}
				break
			}
			records = append(records, tree.SourceRecord{
				Source:        s.name,
				LocalID:       strconv.Itoa(item.ID),
				Name:          item.Fields.Title,
				LocalParentID: parentID,
				Done:          adoDone(item.Fields.State),
			})
		}
	}
	return records, nil
}

// workItems queries a project's work-item ids through WIQL and fetches
// their details with relations in batches.
func (s *AzureDevOps) workItems(ctx context.Context, project string) ([]adoWorkItem, error) {
	wiql := map[string]string{
		"query": "SELECT [System.Id] FROM WorkItems WHERE [System.TeamProject] = @project ORDER BY [System.Id]",
	}
	var result adoWiqlResult
	path := "/" + project + "/_apis/wit/wiql"
	if err := s.call(ctx, http.MethodPost, path, wiql, &result); err != nil {
		return nil, fmt.Errorf("wiql: %w", err)
	}
	if len(result.WorkItems) == 0 {
		return nil, nil
	}

	ids := make([]int, len(result.WorkItems))
	for i, item := range result.WorkItems {
		ids[i] = item.ID
	}

	var items []adoWorkItem
	for start := 0; start < len(ids); start += adoBatchSize {
		end := start + adoBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := map[string]any{
			"ids":     ids[start:end],
			"$expand": "relations",
		}
		var page adoWorkItemList
		if err := s.call(ctx, http.MethodPost, "/_apis/wit/workitemsbatch", batch, &page); err != nil {
			return nil, fmt.Errorf("work items batch: %w", err)
		}
		items = append(items, page.Value...)
	}
	return items, nil
}

func (s *AzureDevOps) call(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	endpoint := s.baseURL + path + "?api-version=" + adoAPIVersion
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.SetBasicAuth("", s.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// idFromRelationURL extracts the numeric work-item id a relation points
// at, the last path segment of its URL.
func idFromRelationURL(relURL string) (int, error) {
	i := strings.LastIndex(relURL, "/")
	if i < 0 || i == len(relURL)-1 {
		return 0, fmt.Errorf("malformed relation url %q", relURL)
	}
	return strconv.Atoi(relURL[i+1:])
}

func adoDone(state string) bool {
	switch strings.ToLower(state) {
	case "done", "closed", "completed", "removed":
		return true
	}
	return false
}
