package tree

import "errors"

// Tree domain errors.
var (
	// ErrMalformedIdentifier indicates a local identifier that cannot take part
	// in composite id derivation (empty, or contains the separator).
	ErrMalformedIdentifier = errors.New("malformed identifier")
	// ErrDuplicateNode indicates two records resolved to the same node id
	// within one fetch batch.
	ErrDuplicateNode = errors.New("duplicate node")
	// ErrStructural indicates a broken hierarchy: an orphaned record whose
	// parent is missing from the batch, or a parent chain that never
	// terminates at a root.
	ErrStructural = errors.New("structural error")
)
