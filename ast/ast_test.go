package ast

import (
	"testing"
)

func v(name string) *Variable { return &Variable{Name: name} }

func atom(name string, args ...Argument) *Atom {
	return &Atom{Name: name, Args: args}
}

func TestCloneIsOwned(t *testing.T) {
	clause := &Clause{
		Head: atom("p", v("x"), &RecordInit{Args: []Argument{v("y"), &NumberConstant{Value: 3}}}),
		Body: []Literal{
			atom("q", v("x"), v("y")),
			&Negation{Atom: atom("r", v("x"))},
			&BinaryConstraint{Op: ConstraintLT, LHS: v("y"), RHS: &NumberConstant{Value: 10}},
		},
	}

	cpy := clause.Clone()
	cpy.Head.Name = "renamed"
	cpy.Atoms()[0].SetArg(0, &UnnamedVariable{})
	cpy.Negations()[0].Atom.Name = "renamed_neg"

	if exp, act := "p", clause.Head.Name; exp != act {
		t.Errorf("expected head name %v, got %v", exp, act)
	}
	if _, ok := clause.Atoms()[0].Arg(0).(*Variable); !ok {
		t.Errorf("expected original atom argument to stay a variable")
	}
	if exp, act := "r", clause.Negations()[0].Atom.Name; exp != act {
		t.Errorf("expected negation atom name %v, got %v", exp, act)
	}
}

func TestReorderAtomsKeepsLiteralSlots(t *testing.T) {
	clause := &Clause{
		Head: atom("p", v("x")),
		Body: []Literal{
			atom("a", v("x")),
			&BinaryConstraint{Op: ConstraintGT, LHS: v("x"), RHS: &NumberConstant{Value: 0}},
			atom("b", v("x")),
			atom("c", v("x")),
		},
	}

	clause.ReorderAtoms([]int{2, 0, 1})

	if _, ok := clause.Body[1].(*BinaryConstraint); !ok {
		t.Fatalf("expected constraint to keep its slot, got %T", clause.Body[1])
	}
	names := make([]string, 0, 3)
	for _, a := range clause.Atoms() {
		names = append(names, a.Name)
	}
	if exp, act := "c a b", names[0]+" "+names[1]+" "+names[2]; exp != act {
		t.Errorf("expected atom order %q, got %q", exp, act)
	}
}

func TestClearNegations(t *testing.T) {
	clause := &Clause{
		Head: atom("p"),
		Body: []Literal{
			atom("a"),
			&Negation{Atom: atom("b")},
			&PositiveNegation{Atom: atom("c")},
		},
	}
	clause.ClearNegations()

	if exp, act := 2, len(clause.Body); exp != act {
		t.Fatalf("expected %d body literals, got %d", exp, act)
	}
	if _, ok := clause.Body[1].(*PositiveNegation); !ok {
		t.Errorf("expected positive negation to survive, got %T", clause.Body[1])
	}
}

func TestExecutionPlan(t *testing.T) {
	plan := &ExecutionPlan{Orders: map[int][]int{0: {2, 1}, 3: {1, 2}}}

	if _, ok := plan.OrderFor(1); ok {
		t.Errorf("expected no order for version 1")
	}
	order, ok := plan.OrderFor(3)
	if !ok || len(order) != 2 || order[0] != 1 {
		t.Errorf("expected order [1 2] for version 3, got %v (%v)", order, ok)
	}
	if exp, act := 3, plan.MaxVersion(); exp != act {
		t.Errorf("expected max version %d, got %d", exp, act)
	}

	var nilPlan *ExecutionPlan
	if _, ok := nilPlan.OrderFor(0); ok {
		t.Errorf("expected no order on nil plan")
	}
}

func TestClauseString(t *testing.T) {
	tests := []struct {
		note   string
		clause *Clause
		exp    string
	}{
		{
			note:   "fact",
			clause: &Clause{Head: atom("p", &NumberConstant{Value: 1})},
			exp:    "p(1).",
		},
		{
			note: "rule",
			clause: &Clause{
				Head: atom("p", v("x")),
				Body: []Literal{
					atom("q", v("x"), &UnnamedVariable{}),
					&Negation{Atom: atom("r", v("x"))},
				},
			},
			exp: "p(x) :- q(x, _), !r(x).",
		},
		{
			note: "aggregate",
			clause: &Clause{
				Head: atom("p", v("n")),
				Body: []Literal{
					&BinaryConstraint{
						Op:  ConstraintEQ,
						LHS: v("n"),
						RHS: &Aggregator{Op: AggregateCount, Body: []Literal{atom("q", &UnnamedVariable{})}},
					},
				},
			},
			exp: "p(n) :- n = count : { q(_) }.",
		},
	}

	for _, tc := range tests {
		t.Run(tc.note, func(t *testing.T) {
			if act := tc.clause.String(); tc.exp != act {
				t.Errorf("expected %q, got %q", tc.exp, act)
			}
		})
	}
}

func TestProgramLookup(t *testing.T) {
	prog := &Program{
		Relations: []*Relation{
			{Name: "p", Attributes: []Attribute{{Name: "x", Type: "number"}}},
			{Name: "q"},
		},
		Functors: []*FunctorDeclaration{{Name: "f", Type: "number"}},
	}

	if rel := prog.Relation("p"); rel == nil || rel.Arity() != 1 {
		t.Fatalf("expected to find p/1, got %v", rel)
	}
	if rel := prog.Relation("missing"); rel != nil {
		t.Fatalf("expected missing relation to be nil")
	}
	if fn := prog.FunctorDeclaration("f"); fn == nil {
		t.Fatalf("expected functor declaration for f")
	}

	clause := &Clause{Head: atom("q")}
	prog.AppendClause(clause)
	if exp, act := 1, len(prog.Relation("q").Clauses); exp != act {
		t.Errorf("expected %d clause on q, got %d", exp, act)
	}
}
