package tree

import (
	"fmt"
	"strings"
)

// Separator joins ancestry segments in a composite node id. It is not a
// legal character in Jira issue keys, Azure DevOps work-item ids, or
// GitHub issue numbers, which keeps composite ids collision-free.
const Separator = "/"

// RootParentID is the sentinel parent id for root nodes.
const RootParentID = "0"

// AssignID derives the composite identifier for a node from its source
// instance prefix and the root-to-node chain of local identifiers.
//
// The derivation is deterministic and depends only on the ancestry: the
// same chain always yields the same id, and two distinct chains can never
// collide because the separator is forbidden inside segments.
func AssignID(prefix string, ancestry []string) (string, error) {
	segments := make([]string, 0, len(ancestry)+1)
	segments = append(segments, prefix)
	segments = append(segments, ancestry...)

	for _, s := range segments {
		if s == "" {
			return "", fmt.Errorf("%w: empty ancestry segment", ErrMalformedIdentifier)
		}
		if strings.Contains(s, Separator) {
			return "", fmt.Errorf("%w: segment %q contains separator %q", ErrMalformedIdentifier, s, Separator)
		}
	}

	return strings.Join(segments, Separator), nil
}
