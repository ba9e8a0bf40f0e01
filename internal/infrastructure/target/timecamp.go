package target

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

	"treesync/pkg/domain/reconcile"
)

// tasksPath is the single tasks endpoint; method selects the operation.
const tasksPath = "/third_party/api/tasks"

// ManagedPrefix marks target tasks owned by treesync. Tasks without it are
// never touched.
const ManagedPrefix = "sync_"

// Client talks to a TimeCamp-style flat task tracker. All failures are
// classified through reconcile.APIError: rate limits, server errors and
// network faults are transient; everything else is terminal.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client for the given API base URL.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// flexString tolerates the API returning ids and flags as either JSON
// strings or numbers.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type task struct {
	TaskID         flexString `json:"task_id"`
	Name           string     `json:"name"`
	ParentID       flexString `json:"parent_id"`
	ExternalTaskID string     `json:"external_task_id"`
	Archived       flexString `json:"archived"`
}

// ListTasks retrieves the full task list and returns the records treesync
// manages. The endpoint answers with either an object keyed by task id or
// a plain array; both shapes are accepted.
func (c *Client) ListTasks(ctx context.Context) ([]reconcile.BaselineRecord, error) {
	body, err := c.do(ctx, http.MethodGet, "list", "", nil)
	if err != nil {
		return nil, err
	}

	tasks, err := decodeTasks(body)
	if err != nil {
		return nil, &reconcile.APIError{Op: "list", Err: err}
	}

	records := make([]reconcile.BaselineRecord, 0, len(tasks))
	for _, t := range tasks {
		if !strings.HasPrefix(t.ExternalTaskID, ManagedPrefix) {
			continue
		}
		records = append(records, reconcile.BaselineRecord{
			NodeID:          strings.TrimPrefix(t.ExternalTaskID, ManagedPrefix),
			Name:            t.Name,
			TargetKey:       string(t.TaskID),
			ParentTargetKey: string(t.ParentID),
			Active:          t.Archived == "" || t.Archived == "0",
		})
	}
	return records, nil
}

// CreateTask creates a task under the given parent and returns its key.
func (c *Client) CreateTask(ctx context.Context, name, parentTargetKey, nodeID string) (string, error) {
	parentID, err := strconv.Atoi(parentTargetKey)
	if err != nil {
		return "", &reconcile.APIError{Op: "create", NodeID: nodeID,
			Err: fmt.Errorf("invalid parent key %q: %w", parentTargetKey, err)}
	}

	payload := map[string]any{
		"name":             name,
		"parent_id":        parentID,
		"external_task_id": ManagedPrefix + nodeID,
	}
	body, err := c.do(ctx, http.MethodPost, "create", nodeID, payload)
	if err != nil {
		return "", err
	}

	// The API wraps the created task in a single-entry object keyed by its
	// new id.
	var wrapper map[string]task
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return "", &reconcile.APIError{Op: "create", NodeID: nodeID,
			Err: fmt.Errorf("unexpected create response: %w", err)}
	}
	for _, t := range wrapper {
		if t.TaskID != "" {
			return string(t.TaskID), nil
		}
	}
	return "", &reconcile.APIError{Op: "create", NodeID: nodeID,
		Err: fmt.Errorf("create response carried no task id")}
}

// UpdateTask rewrites the given reconciliation fields on a task.
func (c *Client) UpdateTask(ctx context.Context, targetKey string, fields map[string]string) error {
	payload := map[string]any{"task_id": targetKey}
	for field, value := range fields {
		switch field {
		case reconcile.FieldName:
			payload["name"] = value
		case reconcile.FieldParent:
			parentID, err := strconv.Atoi(value)
			if err != nil {
				return &reconcile.APIError{Op: "update",
					Err: fmt.Errorf("invalid parent key %q: %w", value, err)}
			}
			payload["parent_id"] = parentID
		case reconcile.FieldActive:
			payload["archived"] = 0
		}
	}

	_, err := c.do(ctx, http.MethodPut, "update", "", payload)
	return err
}

// ArchiveTask archives a task. Archiving an already archived task succeeds
// on the server side, so no pre-check is needed.
func (c *Client) ArchiveTask(ctx context.Context, targetKey string) error {
	payload := map[string]any{"task_id": targetKey, "archived": 1}
	_, err := c.do(ctx, http.MethodPut, "archive", "", payload)
	return err
}

func (c *Client) do(ctx context.Context, method, op, nodeID string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, &reconcile.APIError{Op: op, NodeID: nodeID, Err: err}
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+tasksPath, reqBody)
	if err != nil {
		return nil, &reconcile.APIError{Op: op, NodeID: nodeID, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Connection faults and client timeouts are worth retrying.
		return nil, &reconcile.APIError{Op: op, NodeID: nodeID, Transient: true, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &reconcile.APIError{Op: op, NodeID: nodeID, Transient: true, Err: err}
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, &reconcile.APIError{Op: op, NodeID: nodeID, Transient: true,
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, snippet(body))}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &reconcile.APIError{Op: op, NodeID: nodeID,
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, snippet(body))}
	}
	return body, nil
}

// decodeTasks accepts both response shapes the tasks endpoint is known to
// produce.
func decodeTasks(body []byte) ([]task, error) {
	var asMap map[string]task
	if err := json.Unmarshal(body, &asMap); err == nil {
		tasks := make([]task, 0, len(asMap))
		for _, t := range asMap {
			tasks = append(tasks, t)
		}
		return tasks, nil
	}

	var asList []task
	if err := json.Unmarshal(body, &asList); err != nil {
		return nil, fmt.Errorf("unexpected task list shape: %w", err)
	}
	return asList, nil
}

func snippet(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
