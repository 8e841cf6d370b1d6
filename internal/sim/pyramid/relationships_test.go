package pyramid

import (
	"reflect"
	"testing"
)

// buildTree wires the given parent->children map into a node store with
// consistent levels, rooted at "R".
func buildTree(t *testing.T, children map[string][]string) map[string]*Node {
	t.Helper()
	nodes := map[string]*Node{}
	var add func(id string, level int, parent string)
	add = func(id string, level int, parent string) {
		n := &Node{ID: id, Name: id, Level: level, ParentID: parent, ChildIDs: children[id]}
		n.initDefaults()
		nodes[id] = n
		for _, cid := range children[id] {
			add(cid, level+1, id)
		}
	}
	add("R", 0, "")
	return nodes
}

func TestSiblings(t *testing.T) {
	nodes := buildTree(t, map[string][]string{
		"R": {"A", "B", "C"},
		"A": {"A1", "A2"},
	})

	if got := Siblings(nodes, "R"); got != nil {
		t.Fatalf("root siblings = %v, want nil", got)
	}
	if got := Siblings(nodes, "missing"); got != nil {
		t.Fatalf("missing node siblings = %v, want nil", got)
	}
	if got := Siblings(nodes, "B"); !reflect.DeepEqual(got, []string{"A", "C"}) {
		t.Fatalf("siblings of B = %v, want [A C]", got)
	}
	if got := Siblings(nodes, "A1"); !reflect.DeepEqual(got, []string{"A2"}) {
		t.Fatalf("siblings of A1 = %v, want [A2]", got)
	}
}

func TestSiblings_SkipsDanglingRefs(t *testing.T) {
	nodes := buildTree(t, map[string][]string{"R": {"A", "B"}})
	nodes["R"].ChildIDs = append(nodes["R"].ChildIDs, "ghost")

	if got := Siblings(nodes, "A"); !reflect.DeepEqual(got, []string{"B"}) {
		t.Fatalf("siblings = %v, want [B]", got)
	}
}

func TestDownline(t *testing.T) {
	nodes := buildTree(t, map[string][]string{
		"R": {"A", "B"},
		"A": {"A1", "A2"},
		"B": {"B1"},
	})

	if got := Downline(nodes, "R"); !reflect.DeepEqual(got, []string{"A", "A1", "A2", "B", "B1"}) {
		t.Fatalf("downline of R = %v", got)
	}
	if got := Downline(nodes, "A"); !reflect.DeepEqual(got, []string{"A1", "A2"}) {
		t.Fatalf("downline of A = %v", got)
	}
	if got := Downline(nodes, "B1"); got != nil {
		t.Fatalf("leaf downline = %v, want nil", got)
	}
}

func TestDownline_TerminatesOnCycle(t *testing.T) {
	nodes := buildTree(t, map[string][]string{
		"R": {"A"},
		"A": {"A1"},
	})
	// Corrupt the store into a cycle.
	nodes["A1"].ChildIDs = []string{"A"}

	got := Downline(nodes, "R")
	if !reflect.DeepEqual(got, []string{"A", "A1"}) {
		t.Fatalf("downline over cycle = %v, want [A A1]", got)
	}
}

func TestUplinePath(t *testing.T) {
	nodes := buildTree(t, map[string][]string{
		"R": {"A"},
		"A": {"A1"},
	})

	if got := uplinePath(nodes, "A1"); !reflect.DeepEqual(got, []string{"A", "R"}) {
		t.Fatalf("upline of A1 = %v, want [A R]", got)
	}
	if got := uplinePath(nodes, "R"); got != nil {
		t.Fatalf("upline of root = %v, want nil", got)
	}

	if !isUplineOf(nodes, "R", "A1") {
		t.Fatalf("R should be upline of A1")
	}
	if isUplineOf(nodes, "A1", "R") {
		t.Fatalf("A1 must not be upline of R")
	}
}
