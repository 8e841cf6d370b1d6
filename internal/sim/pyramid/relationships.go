package pyramid

import "sort"

// Siblings returns the ids sharing id's parent, excluding id itself,
// in sorted order. Missing nodes and the root yield an empty result.
func Siblings(nodes map[string]*Node, id string) []string {
	n := nodes[id]
	if n == nil || n.ParentID == "" {
		return nil
	}
	parent := nodes[n.ParentID]
	if parent == nil {
		return nil
	}
	out := make([]string, 0, len(parent.ChildIDs))
	for _, cid := range parent.ChildIDs {
		if cid == id {
			continue
		}
		if nodes[cid] == nil {
			// Dangling child reference; skip rather than fail the query.
			continue
		}
		out = append(out, cid)
	}
	sort.Strings(out)
	return out
}

// Downline returns every descendant id reachable through ChildIDs, any
// depth, in sorted order. A visited set guarantees termination and no
// duplicates even if the store has been corrupted into a cycle.
func Downline(nodes map[string]*Node, id string) []string {
	start := nodes[id]
	if start == nil {
		return nil
	}
	visited := map[string]bool{id: true}
	queue := append([]string(nil), start.ChildIDs...)
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		n := nodes[cur]
		if n == nil {
			continue
		}
		out = append(out, cur)
		queue = append(queue, n.ChildIDs...)
	}
	sort.Strings(out)
	return out
}

// uplinePath walks ParentID references from id to the root, excluding id.
// The walk is bounded by the store size, so a corrupted parent cycle
// terminates instead of spinning.
func uplinePath(nodes map[string]*Node, id string) []string {
	n := nodes[id]
	if n == nil {
		return nil
	}
	var out []string
	seen := map[string]bool{id: true}
	cur := n.ParentID
	for cur != "" && !seen[cur] && len(out) <= len(nodes) {
		seen[cur] = true
		out = append(out, cur)
		p := nodes[cur]
		if p == nil {
			break
		}
		cur = p.ParentID
	}
	return out
}

// isUplineOf reports whether anc is an upline ancestor of id.
func isUplineOf(nodes map[string]*Node, anc, id string) bool {
	for _, a := range uplinePath(nodes, id) {
		if a == anc {
			return true
		}
	}
	return false
}
