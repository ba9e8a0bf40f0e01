package reconcile

// OpKind discriminates the three reconciliation operations.
type OpKind string

const (
	// OpCreate creates a task for a node absent from the baseline.
	OpCreate OpKind = "create"
	// OpUpdate rewrites changed mutable fields on an existing task.
	OpUpdate OpKind = "update"
	// OpArchive archives a task whose node left the source hierarchy.
	OpArchive OpKind = "archive"
)

// Mutable field names carried in Operation.Fields for updates.
const (
	// FieldName is the display name.
	FieldName = "name"
	// FieldParent is the parent linkage, valued with the new parent's node
	// id (the executor resolves it to a target key).
	FieldParent = "parent"
	// FieldActive restores a task that is archived in the target while its
	// node is open in the source. Always valued "true".
	FieldActive = "active"
)

// Operation is one planned step against the target system. Operations form
// a partial order: a parent's create must complete before its children's.
type Operation struct {
	Kind   OpKind
	NodeID string
	// Depth orders creates ascending and archives descending. For creates it
	// is the node's forest depth; for archives, the record's baseline depth.
	Depth int

	// Name is the display name for creates.
	Name string
	// ParentNodeID is the parent linkage for creates, RootParentID for
	// top-level nodes.
	ParentNodeID string

	// TargetKey addresses updates and archives.
	TargetKey string
	// Fields holds the changed fields for updates.
	Fields map[string]string
}
