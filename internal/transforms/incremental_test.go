package transforms

import (
	"testing"

	"github.com/deltalog/deltalog/analysis"
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

func transform(t *testing.T, prog *ast.Program) {
	t.Helper()
	sccs := analysis.NewSCCGraph(prog)
	recursive := analysis.NewRecursiveClauses(prog, sccs)
	NewIncremental(prog, sccs, recursive).Transform()
}

func TestTransformExtendsRelationSchemas(t *testing.T) {
	prog := &ast.Program{Relations: []*ast.Relation{
		{Name: "q", Attributes: numberAttrs("x")},
	}}
	transform(t, prog)

	rel := prog.Relation("q")
	if exp, act := 4, rel.Arity(); exp != act {
		t.Fatalf("expected arity %d, got %d", exp, act)
	}
	attrs := rel.Attributes
	if attrs[1].Name != IterationAttr || attrs[2].Name != PrevCountAttr || attrs[3].Name != CurrentCountAttr {
		t.Errorf("unexpected annotation attributes: %v", attrs)
	}
	for _, attr := range attrs[1:] {
		if exp, act := "number", attr.Type; exp != act {
			t.Errorf("expected number type, got %q", act)
		}
	}
}

func TestTransformAnnotatesFacts(t *testing.T) {
	q := &ast.Relation{
		Name:       "q",
		Attributes: numberAttrs("x"),
		Clauses: []*ast.Clause{
			{Head: atom("q", &ast.NumberConstant{Value: 5})},
		},
	}
	prog := &ast.Program{Relations: []*ast.Relation{q}}
	transform(t, prog)

	if exp, act := 1, len(q.Clauses); exp != act {
		t.Fatalf("expected the fact to survive alone, got %d clauses", act)
	}
	head := q.Clauses[0].Head
	if exp, act := 4, head.Arity(); exp != act {
		t.Fatalf("expected head arity %d, got %d", exp, act)
	}
	for i, expValue := range []int64{0, 0, 1} {
		num, ok := head.Arg(1 + i).(*ast.NumberConstant)
		if !ok || num.Value != expValue {
			t.Errorf("expected annotation constant %d at position %d, got %v", expValue, 1+i, head.Arg(1+i))
		}
	}
}

func headCounts(t *testing.T, clause *ast.Clause) (int64, int64) {
	t.Helper()
	arity := clause.Head.Arity()
	prev, okPrev := clause.Head.Arg(arity - 2).(*ast.NumberConstant)
	current, okCurrent := clause.Head.Arg(arity - 1).(*ast.NumberConstant)
	if !okPrev || !okCurrent {
		t.Fatalf("expected count constants on head, got %v", clause.Head)
	}
	return prev.Value, current.Value
}

func TestTransformExpandsRules(t *testing.T) {
	q := &ast.Relation{Name: "q", Attributes: numberAttrs("x")}
	r := &ast.Relation{Name: "r", Attributes: numberAttrs("x")}
	p := &ast.Relation{
		Name:       "p",
		Attributes: numberAttrs("x"),
		Clauses: []*ast.Clause{
			{
				Head: atom("p", v("x")),
				Body: []ast.Literal{
					atom("q", v("x")),
					&ast.Negation{Atom: atom("r", v("x"))},
				},
			},
		},
	}
	prog := &ast.Program{Relations: []*ast.Relation{q, r, p}}
	transform(t, prog)

	if exp, act := 3, len(p.Clauses); exp != act {
		t.Fatalf("expected deletion+insertion+generation, got %d clauses", act)
	}

	var seen []string
	for _, clause := range p.Clauses {
		prev, current := headCounts(t, clause)
		switch {
		case prev == 1 && current == -1:
			seen = append(seen, "deletion")
		case prev == 0 && current == 1:
			seen = append(seen, "insertion")
		case prev == 1 && current == 1:
			seen = append(seen, "generation")
		default:
			t.Errorf("unexpected count pair (%d, %d)", prev, current)
		}
	}
	if exp, act := "deletion insertion generation", seen[0]+" "+seen[1]+" "+seen[2]; exp != act {
		t.Errorf("expected clause families %q, got %q", exp, act)
	}

	// non-recursive heads take iteration 0
	for _, clause := range p.Clauses {
		arity := clause.Head.Arity()
		if num, ok := clause.Head.Arg(arity - 3).(*ast.NumberConstant); !ok || num.Value != 0 {
			t.Errorf("expected iteration constant 0, got %v", clause.Head.Arg(arity-3))
		}
	}

	deletion := p.Clauses[0]

	// body atom q carries the named annotation variables
	qAtom := deletion.Atoms()[0]
	if exp, act := 4, qAtom.Arity(); exp != act {
		t.Fatalf("expected instrumented q arity %d, got %d", exp, act)
	}
	if va, ok := qAtom.Arg(1).(*ast.Variable); !ok || va.Name != "@iteration_0" {
		t.Errorf("expected @iteration_0, got %v", qAtom.Arg(1))
	}
	if va, ok := qAtom.Arg(3).(*ast.Variable); !ok || va.Name != "@current_count_0" {
		t.Errorf("expected @current_count_0, got %v", qAtom.Arg(3))
	}

	// the negated atom is padded with wildcards
	negAtom := deletion.Negations()[0].Atom
	if exp, act := 4, negAtom.Arity(); exp != act {
		t.Fatalf("expected negated atom arity %d, got %d", exp, act)
	}
	for i := 1; i < 4; i++ {
		if _, ok := negAtom.Arg(i).(*ast.UnnamedVariable); !ok {
			t.Errorf("expected wildcard at negated position %d, got %v", i, negAtom.Arg(i))
		}
	}

	// deletion guards: all prior counts positive, one current count gone
	constraints := make([]*ast.BinaryConstraint, 0, 2)
	for _, lit := range deletion.Body {
		if c, ok := lit.(*ast.BinaryConstraint); ok {
			constraints = append(constraints, c)
		}
	}
	if exp, act := 2, len(constraints); exp != act {
		t.Fatalf("expected %d guards, got %d", exp, act)
	}
	if constraints[0].Op != ast.ConstraintGT {
		t.Errorf("expected prev-count guard to be >, got %v", constraints[0].Op)
	}
	if va, ok := constraints[0].LHS.(*ast.Variable); !ok || va.Name != "@prev_count_0" {
		t.Errorf("expected @prev_count_0 guard, got %v", constraints[0].LHS)
	}
	if constraints[1].Op != ast.ConstraintLE {
		t.Errorf("expected current-count guard to be <=, got %v", constraints[1].Op)
	}
}

func TestTransformRecursiveHeads(t *testing.T) {
	edge := &ast.Relation{Name: "edge", Attributes: numberAttrs("x", "y")}
	tc := &ast.Relation{
		Name:       "tc",
		Attributes: numberAttrs("x", "y"),
		Clauses: []*ast.Clause{
			{
				Head: atom("tc", v("x"), v("y")),
				Body: []ast.Literal{
					atom("edge", v("x"), v("z")),
					atom("tc", v("z"), v("y")),
				},
			},
		},
	}
	prog := &ast.Program{Relations: []*ast.Relation{edge, tc}}
	transform(t, prog)

	for _, clause := range tc.Clauses {
		arity := clause.Head.Arity()
		if _, ok := clause.Head.Arg(arity - 3).(*ast.IterationNumber); !ok {
			t.Errorf("expected iteration-number head argument, got %v", clause.Head.Arg(arity-3))
		}

		// at least one same-component body atom pivots on the previous
		// iteration
		foundPivot := false
		for _, lit := range clause.Body {
			c, ok := lit.(*ast.BinaryConstraint)
			if !ok || c.Op != ast.ConstraintEQ {
				continue
			}
			if fn, ok := c.RHS.(*ast.IntrinsicFunctor); ok && fn.Op == ast.FunctorSub {
				foundPivot = true
			}
		}
		if !foundPivot {
			t.Errorf("expected iteration pivot constraint on %v", clause)
		}
	}
}

func TestTransformSkipsEpochValueAggregator(t *testing.T) {
	q := &ast.Relation{Name: "q", Attributes: numberAttrs("x")}
	p := &ast.Relation{
		Name:       "p",
		Attributes: numberAttrs("x"),
		Clauses: []*ast.Clause{
			{
				Head: atom("p", v("n")),
				Body: []ast.Literal{
					atom("q", v("x")),
					&ast.BinaryConstraint{
						Op:  ast.ConstraintEQ,
						LHS: v("n"),
						RHS: &ast.Aggregator{
							Op:     ast.AggregateMax,
							Target: v("@current_epoch_value"),
							Body:   []ast.Literal{atom("q", &ast.UnnamedVariable{})},
						},
					},
				},
			},
		},
	}
	prog := &ast.Program{Relations: []*ast.Relation{q, p}}
	transform(t, prog)

	for _, clause := range p.Clauses {
		for _, lit := range clause.Body {
			c, ok := lit.(*ast.BinaryConstraint)
			if !ok {
				continue
			}
			agg, ok := c.RHS.(*ast.Aggregator)
			if !ok {
				continue
			}
			inner := agg.Body[0].(*ast.Atom)
			if exp, act := 1, inner.Arity(); exp != act {
				t.Errorf("expected epoch-value aggregate body to stay untouched, got arity %d", act)
			}
		}
	}
}
