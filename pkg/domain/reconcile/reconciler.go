package reconcile

import (
	"sort"

	"treesync/pkg/domain/tree"
)

// Reconcile diffs the desired forest against the target baseline and
// returns the ordered operation list.
//
// Ordering guarantees:
//   - creates come first, depth ascending, so every parent create precedes
//     its children's creates;
//   - updates follow in node-id order (they carry no dependencies);
//   - archives come last, depth descending, so children are archived
//     before their parents.
//
// Equal depth ties break on ascending node id, which makes the plan fully
// deterministic for identical inputs. Reconcile is pure: it never touches
// the target system.
func Reconcile(forest *tree.Forest, baseline *Baseline) []Operation {
	creates := make([]Operation, 0)
	updates := make([]Operation, 0)
	archives := make([]Operation, 0)

	for _, node := range forest.Nodes() {
		if !node.Active {
			// Inactive nodes are archive candidates, handled by the baseline
			// sweep below.
			continue
		}

		rec, ok := baseline.Get(node.ID)
		if !ok {
			creates = append(creates, Operation{
				Kind:         OpCreate,
				NodeID:       node.ID,
				Depth:        node.Depth,
				Name:         node.Name,
				ParentNodeID: node.ParentID,
			})
			continue
		}

		fields := make(map[string]string)
		if node.Name != rec.Name {
			fields[FieldName] = node.Name
		}
		if baseline.ParentNodeID(rec) != node.ParentID {
			fields[FieldParent] = node.ParentID
		}
		if !rec.Active {
			// The source still holds the node open; last write from source
			// wins, so the task is restored rather than recreated.
			fields[FieldActive] = "true"
		}
		if len(fields) > 0 {
			updates = append(updates, Operation{
				Kind:      OpUpdate,
				NodeID:    node.ID,
				Depth:     node.Depth,
				TargetKey: rec.TargetKey,
				Fields:    fields,
			})
		}
	}

	for _, rec := range baseline.Records() {
		node := forest.Get(rec.NodeID)
		if node != nil && node.Active {
			continue
		}
		if !rec.Active {
			// Already archived in the target; archiving again is a no-op.
			continue
		}
		archives = append(archives, Operation{
			Kind:      OpArchive,
			NodeID:    rec.NodeID,
			Depth:     baseline.DepthOf(rec),
			TargetKey: rec.TargetKey,
		})
	}

	sort.Slice(creates, func(i, j int) bool {
		if creates[i].Depth != creates[j].Depth {
			return creates[i].Depth < creates[j].Depth
		}
		return creates[i].NodeID < creates[j].NodeID
	})
	sort.Slice(updates, func(i, j int) bool {
		return updates[i].NodeID < updates[j].NodeID
	})
	sort.Slice(archives, func(i, j int) bool {
		if archives[i].Depth != archives[j].Depth {
			return archives[i].Depth > archives[j].Depth
		}
		return archives[i].NodeID < archives[j].NodeID
	})

	plan := make([]Operation, 0, len(creates)+len(updates)+len(archives))
	plan = append(plan, creates...)
	plan = append(plan, updates...)
	plan = append(plan, archives...)
	return plan
}
