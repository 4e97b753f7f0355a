// Package epacgraph validates the divider/packed-file sequence of an
// EPAC entry table before it is trusted by pack or unpack. It models
// the sequence as a directed graph — a chain edge from each entry to
// the next, a grouping edge from each divider to every packed file
// that follows it up to the next divider, and a back-edge wherever an
// entry's recorded data-region offset contradicts its position in the
// table — and runs a topological sort over it, the same technique
// distri's package build scheduler uses to catch cyclic dependencies
// before a build starts. A malformed entry table (offsets that don't
// increase monotonically with table order, or a packed file claiming
// to start before the divider that owns it) produces a genuine cycle
// here and is rejected by topo.Sort, not just by the duplicate-name
// check.
package epacgraph

import (
	"fmt"

	"golang.org/x/xerrors"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Entry is the minimal view of an EPAC entry table row this package
// needs: its name, whether it is a divider, and the data-region block
// offset recorded for (Unpack) or computed for (Pack) it.
type Entry struct {
	Name      string
	IsDivider bool
	Offset    int64
}

// ValidateEntrySequence reports an error if entries is malformed: two
// packed files sharing a filename within the same archive, or a cyclic
// graph — which arises only when recorded offsets contradict the
// table's own ordering (an entry claiming to start earlier in the data
// region than an entry preceding it in the table, or a packed file
// claiming to start before the divider that owns it).
func ValidateEntrySequence(entries []Entry) error {
	g := simple.NewDirectedGraph()
	for i := range entries {
		g.AddNode(simple.Node(int64(i)))
	}

	lastDivider := -1
	seenNames := make(map[string]int)
	for i, e := range entries {
		if i+1 < len(entries) {
			// Table order: entry i precedes entry i+1.
			g.SetEdge(g.NewEdge(simple.Node(int64(i)), simple.Node(int64(i+1))))
			// Data order must agree, or the table is lying about
			// where something actually lives.
			if entries[i+1].Offset < e.Offset {
				g.SetEdge(g.NewEdge(simple.Node(int64(i+1)), simple.Node(int64(i))))
			}
		}
		if e.IsDivider {
			lastDivider = i
			continue
		}
		if lastDivider >= 0 {
			g.SetEdge(g.NewEdge(simple.Node(int64(lastDivider)), simple.Node(int64(i))))
			if e.Offset < entries[lastDivider].Offset {
				g.SetEdge(g.NewEdge(simple.Node(int64(i)), simple.Node(int64(lastDivider))))
			}
		}
		if prev, ok := seenNames[e.Name]; ok {
			return fmt.Errorf("epacgraph: duplicate packed-file name %q at entries %d and %d", e.Name, prev, i)
		}
		seenNames[e.Name] = i
	}

	if _, err := topo.Sort(g); err != nil {
		return xerrors.Errorf("epacgraph: entry sequence has inconsistent divider/offset ordering: %w", err)
	}
	return nil
}
