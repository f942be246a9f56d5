package analysis

import (
	"testing"

	"github.com/deltalog/deltalog/ast"
)

func v(name string) *ast.Variable { return &ast.Variable{Name: name} }

func atom(name string, args ...ast.Argument) *ast.Atom {
	return &ast.Atom{Name: name, Args: args}
}

func numberAttrs(names ...string) []ast.Attribute {
	attrs := make([]ast.Attribute, len(names))
	for i, name := range names {
		attrs[i] = ast.Attribute{Name: name, Type: "number"}
	}
	return attrs
}

// transitive closure with an extra consumer relation
func tcProgram() *ast.Program {
	edge := &ast.Relation{
		Name:       "edge",
		Attributes: numberAttrs("x", "y"),
		Loads:      []*ast.Directive{{Kind: ast.DirectiveInput}},
	}
	tc := &ast.Relation{
		Name:       "tc",
		Attributes: numberAttrs("x", "y"),
		Stores:     []*ast.Directive{{Kind: ast.DirectiveOutput}},
	}
	tc.Clauses = []*ast.Clause{
		{
			Head: atom("tc", v("x"), v("y")),
			Body: []ast.Literal{atom("edge", v("x"), v("y"))},
		},
		{
			Head: atom("tc", v("x"), v("y")),
			Body: []ast.Literal{
				atom("edge", v("x"), v("z")),
				atom("tc", v("z"), v("y")),
			},
		},
	}
	reach := &ast.Relation{
		Name:       "reach",
		Attributes: numberAttrs("x"),
		Clauses: []*ast.Clause{
			{
				Head: atom("reach", v("x")),
				Body: []ast.Literal{atom("tc", v("x"), &ast.UnnamedVariable{})},
			},
		},
	}
	return &ast.Program{Relations: []*ast.Relation{edge, tc, reach}}
}

func TestSCCGraph(t *testing.T) {
	prog := tcProgram()
	g := NewSCCGraph(prog)

	if exp, act := 3, g.NumberOfSCCs(); exp != act {
		t.Fatalf("expected %d sccs, got %d", exp, act)
	}

	edge := prog.Relation("edge")
	tc := prog.Relation("tc")
	reach := prog.Relation("reach")

	if g.SCCOf(edge) == g.SCCOf(tc) {
		t.Errorf("expected edge and tc in different sccs")
	}
	if !g.IsRecursive(g.SCCOf(tc)) {
		t.Errorf("expected tc's scc to be recursive")
	}
	if g.IsRecursive(g.SCCOf(edge)) {
		t.Errorf("expected edge's scc to be non-recursive")
	}

	members := g.InternalRelations(g.SCCOf(tc))
	if exp, act := 1, len(members); exp != act || members[0] != tc {
		t.Errorf("expected tc's scc to contain only tc, got %v", members)
	}

	preds := g.ExternalPredecessorRelations(g.SCCOf(reach))
	if exp, act := 1, len(preds); exp != act || preds[0] != tc {
		t.Errorf("expected reach to depend on tc, got %v", preds)
	}

	if outs := g.ExternalOutputPredecessorRelations(g.SCCOf(reach)); len(outs) != 1 {
		t.Errorf("expected tc (an output) as output predecessor, got %v", outs)
	}
	if nonOuts := g.ExternalNonOutputPredecessorRelations(g.SCCOf(tc)); len(nonOuts) != 1 || nonOuts[0] != edge {
		t.Errorf("expected edge as non-output predecessor, got %v", nonOuts)
	}
	if succs := g.InternalNonOutputRelationsWithExternalSuccessors(g.SCCOf(edge)); len(succs) != 1 || succs[0] != edge {
		t.Errorf("expected edge to feed a later scc, got %v", succs)
	}
}

func TestTopologicalOrder(t *testing.T) {
	prog := tcProgram()
	g := NewSCCGraph(prog)
	order := NewTopologicalOrder(g)

	position := map[int]int{}
	for pos, scc := range order.Order() {
		position[scc] = pos
	}

	if exp, act := 3, len(order.Order()); exp != act {
		t.Fatalf("expected %d entries, got %d", exp, act)
	}

	edgePos := position[g.SCCOf(prog.Relation("edge"))]
	tcPos := position[g.SCCOf(prog.Relation("tc"))]
	reachPos := position[g.SCCOf(prog.Relation("reach"))]

	if !(edgePos < tcPos && tcPos < reachPos) {
		t.Errorf("expected edge < tc < reach, got %d %d %d", edgePos, tcPos, reachPos)
	}
}

func TestRecursiveClauses(t *testing.T) {
	prog := tcProgram()
	g := NewSCCGraph(prog)
	rc := NewRecursiveClauses(prog, g)

	tc := prog.Relation("tc")
	if rc.Recursive(tc.Clauses[0]) {
		t.Errorf("expected base clause to be non-recursive")
	}
	if !rc.Recursive(tc.Clauses[1]) {
		t.Errorf("expected step clause to be recursive")
	}
}

func TestTypeEnvironment(t *testing.T) {
	te := NewTypeEnvironment(map[string]string{"Node": "i", "Label": "s"})

	tests := []struct {
		note string
		in   string
		exp  string
	}{
		{"custom numeric", "Node", "i"},
		{"custom symbolic", "Label", "s"},
		{"builtin number", "number", "i"},
		{"builtin symbol", "symbol", "s"},
		{"builtin unsigned", "unsigned", "u"},
		{"builtin float", "float", "f"},
		{"unknown defaults numeric", "Mystery", "i"},
	}

	for _, tc := range tests {
		t.Run(tc.note, func(t *testing.T) {
			if act := te.Qualifier(tc.in); tc.exp != act {
				t.Errorf("expected %q, got %q", tc.exp, act)
			}
		})
	}
}

func TestRelationSchedule(t *testing.T) {
	prog := tcProgram()
	g := NewSCCGraph(prog)
	order := NewTopologicalOrder(g)
	schedule := NewRelationSchedule(prog, g, order)

	position := map[int]int{}
	for pos, scc := range order.Order() {
		position[scc] = pos
	}

	// edge's last use is tc's stratum; tc's is reach's stratum
	tcPos := position[g.SCCOf(prog.Relation("tc"))]
	reachPos := position[g.SCCOf(prog.Relation("reach"))]

	foundEdge := false
	for _, rel := range schedule.Expired(tcPos) {
		if rel.Name == "edge" {
			foundEdge = true
		}
	}
	if !foundEdge {
		t.Errorf("expected edge to expire at tc's stratum")
	}

	foundTC := false
	for _, rel := range schedule.Expired(reachPos) {
		if rel.Name == "tc" {
			foundTC = true
		}
	}
	if !foundTC {
		t.Errorf("expected tc to expire at reach's stratum")
	}

	if act := schedule.Expired(99); act != nil {
		t.Errorf("expected nil for out-of-range position, got %v", act)
	}
}
