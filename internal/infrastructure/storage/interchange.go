package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/xeipuuv/gojsonschema"

	"treesync/pkg/domain/tree"
)

// ErrInvalidInterchange indicates the interchange document does not match
// the schema. Unknown and missing fields are rejected rather than guessed.
var ErrInvalidInterchange = errors.New("invalid interchange document")

// interchangeSchema pins the on-disk contract: a flat array of
// {name, task_id, parent_id} records, all strings, parent_id "0" for
// roots.
const interchangeSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"properties": {
			"name":      {"type": "string"},
			"task_id":   {"type": "string", "minLength": 1},
			"parent_id": {"type": "string"}
		},
		"required": ["name", "task_id", "parent_id"],
		"additionalProperties": false
	}
}`

var interchangeSchemaLoader = gojsonschema.NewStringLoader(interchangeSchema)

// InterchangeStore reads and writes the JSON document that carries the
// forest between the fetch and sync phases.
type InterchangeStore struct {
	path        string
	retryConfig retry.Config
}

// NewInterchangeStore creates a store for the given file path.
func NewInterchangeStore(path string) *InterchangeStore {
	return &InterchangeStore{
		path: path,
		retryConfig: retry.Config{
			MaxAttempts:   3,
			InitialDelay:  10 * time.Millisecond,
			BackoffPolicy: retry.BackoffExponential,
		},
	}
}

// Path returns the backing file path.
func (s *InterchangeStore) Path() string {
	return s.path
}

// Save serializes the forest. Records are written depth ascending with
// lexical tie-break, so identical forests produce identical documents.
func (s *InterchangeStore) Save(forest *tree.Forest) error {
	records := make([]tree.FlatRecord, 0, forest.Len())
	for _, n := range forest.Nodes() {
		records = append(records, tree.FlatRecord{
			Name:     n.Name,
			TaskID:   n.ID,
			ParentID: n.ParentID,
		})
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal interchange document: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create interchange directory: %w", err)
		}
	}
	return os.WriteFile(s.path, data, 0600)
}

// Load validates the document against the schema and rebuilds the forest.
// Reads are retried briefly to ride out concurrent rewrites by an external
// fetch job.
func (s *InterchangeStore) Load(ctx context.Context) (*tree.Forest, error) {
	retryer := retry.New[*tree.Forest](s.retryConfig)

	return retryer.Do(ctx, func(ctx context.Context) (*tree.Forest, error) {
		// #nosec G304 -- path comes from configuration, not user input
		data, err := os.ReadFile(s.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read interchange document: %w", err)
		}

		documentLoader := gojsonschema.NewStringLoader(string(data))
		result, err := gojsonschema.Validate(interchangeSchemaLoader, documentLoader)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInterchange, err)
		}
		if !result.Valid() {
			details := ""
			for _, desc := range result.Errors() {
				details += "; " + desc.String()
			}
			return nil, fmt.Errorf("%w%s", ErrInvalidInterchange, details)
		}

		var records []tree.FlatRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInterchange, err)
		}
		return tree.BuildFromFlat(records)
	})
}
