package tree

import "sort"

// Node is one work item or container (organization, project, epic, story,
// task) assembled from a source hierarchy. Nodes are immutable after the
// build and reference their parent by id, never by pointer.
type Node struct {
	// ID is the globally unique, ancestry-derived identifier.
	ID string
	// Name is the display string; it may change between runs without
	// affecting identity.
	Name string
	// ParentID is the id of the parent node, or RootParentID for roots.
	ParentID string
	// Depth is recomputed during the build; roots have depth 0.
	Depth int
	// Active is false when the node is a candidate for archival.
	Active bool
	// Source names the external instance this node came from.
	Source string
}

// IsRoot reports whether the node sits at the top of its tree.
func (n *Node) IsRoot() bool {
	return n.ParentID == RootParentID
}

// Forest is an arena of nodes indexed by node id. It may hold several
// roots, one per source instance.
type Forest struct {
	nodes map[string]*Node
}

// NewForest creates an empty forest.
func NewForest() *Forest {
	return &Forest{nodes: make(map[string]*Node)}
}

// Get returns the node with the given id, or nil.
func (f *Forest) Get(id string) *Node {
	return f.nodes[id]
}

// Len returns the number of nodes in the forest.
func (f *Forest) Len() int {
	return len(f.nodes)
}

// Nodes returns all nodes ordered by depth ascending, then id ascending.
// The ordering is deterministic so that identical forests always produce
// identical traversals.
func (f *Forest) Nodes() []*Node {
	result := make([]*Node, 0, len(f.nodes))
	for _, n := range f.nodes {
		result = append(result, n)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Depth != result[j].Depth {
			return result[i].Depth < result[j].Depth
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// Roots returns the root nodes ordered by id.
func (f *Forest) Roots() []*Node {
	result := make([]*Node, 0)
	for _, n := range f.nodes {
		if n.IsRoot() {
			result = append(result, n)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Children returns the direct children of the given node id, ordered by id.
func (f *Forest) Children(id string) []*Node {
	result := make([]*Node, 0)
	for _, n := range f.nodes {
		if n.ParentID == id {
			result = append(result, n)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (f *Forest) add(n *Node) {
	f.nodes[n.ID] = n
}
