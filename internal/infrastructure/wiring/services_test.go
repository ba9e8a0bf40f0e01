package wiring

import (
	"os"
	"path/filepath"
	"testing"
)

const testConfig = `
sources:
  - name: org_1
    type: jira
    url: https://example.atlassian.net
    email: sync@example.com
    token: jira-token
target:
  token: tc-token
  root_task_id: "12345"
interchange: out/tasks.json
`

func TestBuildAppServices(t *testing.T) {
	path := filepath.Join(t.TempDir(), "treesync.yaml")
	if err := os.WriteFile(path, []byte(testConfig), 0600); err != nil {
		t.Fatal(err)
	}

	services, err := BuildAppServices(path)
	if err != nil {
		t.Fatalf("BuildAppServices() error: %v", err)
	}

	if services.Sync == nil || services.Fetch == nil || services.Target == nil {
		t.Error("services incompletely wired")
	}
	if services.Store.Path() != "out/tasks.json" {
		t.Errorf("store path = %q", services.Store.Path())
	}
	if services.Uploader != nil {
		t.Error("uploader should be nil when upload is disabled")
	}
}

func TestBuildAppServices_BadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "treesync.yaml")
	if err := os.WriteFile(path, []byte("sources: []\ntarget:\n  token: \"\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := BuildAppServices(path); err == nil {
		t.Error("BuildAppServices() should reject an invalid config")
	}
}
