package tree

import (
	"fmt"
	"strings"
)

// MaxDepth bounds the parent-chain walk. A chain that has not reached a
// root within this many hops is treated as a cycle.
const MaxDepth = 32

// SourceRecord is one flat work item as fetched from a source instance.
// Parents may appear before or after their children in a batch.
type SourceRecord struct {
	// Source is the per-instance prefix used during id derivation.
	Source string
	// LocalID is the source system's own identifier for the item.
	LocalID string
	// Name is the display string.
	Name string
	// LocalParentID references the parent's LocalID within the same
	// source, or is empty / RootParentID for instance roots.
	LocalParentID string
	// Done marks items closed at fetch time; they are excluded from the
	// forest and their open children are promoted.
	Done bool
}

func (r *SourceRecord) isRoot() bool {
	return r.LocalParentID == "" || r.LocalParentID == RootParentID
}

// FlatRecord is one row of the JSON interchange document. Identifiers are
// already composite node ids; ParentID is RootParentID for roots.
type FlatRecord struct {
	Name     string `json:"name"`
	TaskID   string `json:"task_id"`
	ParentID string `json:"parent_id"`
}

// Build assembles a forest from flat source records.
//
// The build is two-pass: records are first indexed by local id, then each
// record is linked to its parent through the index. Node ids derive from
// the full local ancestry, including closed ancestors, so a node keeps its
// identity when an ancestor is closed; its parent linkage is promoted to
// the nearest remaining ancestor instead (or to the root when none is
// left).
//
// A record referencing a parent absent from the batch is a structural
// error, not a silent drop.
func Build(records []SourceRecord) (*Forest, error) {
	type localKey struct {
		source string
		id     string
	}

	index := make(map[localKey]*SourceRecord, len(records))
	for i := range records {
		r := &records[i]
		k := localKey{r.Source, r.LocalID}
		if _, ok := index[k]; ok {
			return nil, fmt.Errorf("%w: %q in source %q", ErrDuplicateNode, r.LocalID, r.Source)
		}
		index[k] = r
	}

	lookup := func(source, localID string) *SourceRecord {
		return index[localKey{source, localID}]
	}

	forest := NewForest()
	for i := range records {
		r := &records[i]
		if r.Done {
			continue
		}

		chain, err := ancestorChain(r, lookup)
		if err != nil {
			return nil, err
		}

		id, err := AssignID(r.Source, localIDs(chain))
		if err != nil {
			return nil, err
		}

		parentID := RootParentID
		for j := len(chain) - 2; j >= 0; j-- {
			if chain[j].Done {
				continue
			}
			parentID, err = AssignID(r.Source, localIDs(chain[:j+1]))
			if err != nil {
				return nil, err
			}
			break
		}

		if forest.Get(id) != nil {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, id)
		}
		forest.add(&Node{
			ID:       id,
			Name:     r.Name,
			ParentID: parentID,
			Active:   true,
			Source:   r.Source,
		})
	}

	if err := computeDepths(forest); err != nil {
		return nil, err
	}
	return forest, nil
}

// BuildFromFlat rebuilds a forest from interchange records carrying
// pre-assigned composite ids. Depth is always recomputed, never trusted
// from input.
func BuildFromFlat(records []FlatRecord) (*Forest, error) {
	forest := NewForest()
	for _, r := range records {
		if r.TaskID == "" {
			return nil, fmt.Errorf("%w: empty task_id", ErrMalformedIdentifier)
		}
		if forest.Get(r.TaskID) != nil {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, r.TaskID)
		}
		parentID := r.ParentID
		if parentID == "" {
			parentID = RootParentID
		}
		forest.add(&Node{
			ID:       r.TaskID,
			Name:     r.Name,
			ParentID: parentID,
			Active:   true,
			Source:   sourceOf(r.TaskID),
		})
	}

	if err := computeDepths(forest); err != nil {
		return nil, err
	}
	return forest, nil
}

// ancestorChain walks from the record up to its root and returns the chain
// ordered root first, ending with the record itself.
func ancestorChain(r *SourceRecord, lookup func(source, localID string) *SourceRecord) ([]*SourceRecord, error) {
	chain := []*SourceRecord{r}
	current := r
	for hops := 0; !current.isRoot(); hops++ {
		if hops >= MaxDepth {
			return nil, fmt.Errorf("%w: parent chain of %q in source %q exceeds %d hops (cycle?)",
				ErrStructural, r.LocalID, r.Source, MaxDepth)
		}
		parent := lookup(current.Source, current.LocalParentID)
		if parent == nil {
			return nil, fmt.Errorf("%w: %q in source %q references missing parent %q",
				ErrStructural, current.LocalID, current.Source, current.LocalParentID)
		}
		chain = append([]*SourceRecord{parent}, chain...)
		current = parent
	}
	return chain, nil
}

func localIDs(chain []*SourceRecord) []string {
	ids := make([]string, len(chain))
	for i, r := range chain {
		ids[i] = r.LocalID
	}
	return ids
}

// sourceOf recovers the source prefix from a composite id.
func sourceOf(id string) string {
	if i := strings.Index(id, Separator); i >= 0 {
		return id[:i]
	}
	return id
}

// computeDepths walks every node up to its root, assigning depth along the
// way. Orphans and unbounded chains are structural errors.
func computeDepths(f *Forest) error {
	depths := make(map[string]int, f.Len())

	var resolve func(n *Node, hops int) (int, error)
	resolve = func(n *Node, hops int) (int, error) {
		if d, ok := depths[n.ID]; ok {
			return d, nil
		}
		if hops >= MaxDepth {
			return 0, fmt.Errorf("%w: parent chain of %q exceeds %d hops (cycle?)", ErrStructural, n.ID, MaxDepth)
		}
		if n.IsRoot() {
			depths[n.ID] = 0
			return 0, nil
		}
		parent := f.Get(n.ParentID)
		if parent == nil {
			return 0, fmt.Errorf("%w: %q references missing parent %q", ErrStructural, n.ID, n.ParentID)
		}
		d, err := resolve(parent, hops+1)
		if err != nil {
			return 0, err
		}
		depths[n.ID] = d + 1
		return d + 1, nil
	}

	for _, n := range f.nodes {
		d, err := resolve(n, 0)
		if err != nil {
			return err
		}
		n.Depth = d
	}
	return nil
}
