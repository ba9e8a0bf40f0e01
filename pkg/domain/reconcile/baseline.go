package reconcile

import (
	"fmt"
	"sort"

	"treesync/pkg/domain/tree"
)

// BaselineRecord is the target system's current view of one synced node.
type BaselineRecord struct {
	// NodeID is the ancestry-derived id recovered from the target task's
	// marker field.
	NodeID string
	// Name is the task's current display name in the target system.
	Name string
	// TargetKey is the target system's own identifier for the task.
	TargetKey string
	// ParentTargetKey is the target key of the task's parent, empty when the
	// task hangs directly under the configured root.
	ParentTargetKey string
	// Active is false when the task is archived in the target system.
	Active bool
}

// Baseline indexes the target system's synced tasks by node id and by
// target key.
type Baseline struct {
	byNodeID map[string]BaselineRecord
	byKey    map[string]BaselineRecord
}

// NewBaseline builds a baseline from target records. Two records carrying
// the same node id marker cannot be joined against the forest and are
// rejected.
func NewBaseline(records []BaselineRecord) (*Baseline, error) {
	b := &Baseline{
		byNodeID: make(map[string]BaselineRecord, len(records)),
		byKey:    make(map[string]BaselineRecord, len(records)),
	}
	for _, rec := range records {
		if _, ok := b.byNodeID[rec.NodeID]; ok {
			return nil, fmt.Errorf("%w: node id %q claimed by multiple target tasks", ErrBaselineConflict, rec.NodeID)
		}
		b.byNodeID[rec.NodeID] = rec
		b.byKey[rec.TargetKey] = rec
	}
	return b, nil
}

// Get returns the record for the given node id.
func (b *Baseline) Get(nodeID string) (BaselineRecord, bool) {
	rec, ok := b.byNodeID[nodeID]
	return rec, ok
}

// Len returns the number of baseline records.
func (b *Baseline) Len() int {
	return len(b.byNodeID)
}

// Records returns all records ordered by node id.
func (b *Baseline) Records() []BaselineRecord {
	result := make([]BaselineRecord, 0, len(b.byNodeID))
	for _, rec := range b.byNodeID {
		result = append(result, rec)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].NodeID < result[j].NodeID })
	return result
}

// ParentNodeID resolves a record's parent linkage back into node-id space.
// A parent outside the synced set (for instance the configured root task)
// maps to the root sentinel.
func (b *Baseline) ParentNodeID(rec BaselineRecord) string {
	if parent, ok := b.byKey[rec.ParentTargetKey]; ok {
		return parent.NodeID
	}
	return tree.RootParentID
}

// DepthOf computes a record's depth within the synced set by walking its
// parent target keys. The walk is bounded; a chain that exceeds the tree
// depth limit is treated as rooted where it stands.
func (b *Baseline) DepthOf(rec BaselineRecord) int {
	depth := 0
	current := rec
	for hops := 0; hops < tree.MaxDepth; hops++ {
		parent, ok := b.byKey[current.ParentTargetKey]
		if !ok {
			break
		}
		depth++
		current = parent
	}
	return depth
}
