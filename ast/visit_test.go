package ast

import (
	"strings"
	"testing"
)

func TestWalkAtomsVisitsNestedAtoms(t *testing.T) {
	clause := &Clause{
		Head: atom("p", v("x")),
		Body: []Literal{
			atom("q", v("x")),
			&Negation{Atom: atom("r", v("x"))},
			&DisjunctionConstraint{
				LHS: &PositiveNegation{Atom: atom("s", v("x"))},
				RHS: &ExistenceCheck{Atom: atom("t", v("x"))},
			},
			&BinaryConstraint{
				Op:  ConstraintEQ,
				LHS: v("n"),
				RHS: &Aggregator{Op: AggregateCount, Body: []Literal{atom("u", v("x"))}},
			},
		},
	}

	var names []string
	WalkAtoms(clause, func(a *Atom) { names = append(names, a.Name) })

	if exp, act := "p q r s t u", strings.Join(names, " "); exp != act {
		t.Errorf("expected atoms %q, got %q", exp, act)
	}
}

func TestWalkAggregatorsPostOrder(t *testing.T) {
	inner := &Aggregator{Op: AggregateMin, Target: v("y"), Body: []Literal{atom("q", v("y"))}}
	outer := &Aggregator{
		Op:     AggregateMax,
		Target: v("z"),
		Body: []Literal{
			atom("r", v("z")),
			&BinaryConstraint{Op: ConstraintGT, LHS: v("z"), RHS: inner},
		},
	}
	clause := &Clause{
		Head: atom("p", v("n")),
		Body: []Literal{
			&BinaryConstraint{Op: ConstraintEQ, LHS: v("n"), RHS: outer},
		},
	}

	var order []*Aggregator
	WalkAggregators(clause, func(a *Aggregator) { order = append(order, a) })

	if exp, act := 2, len(order); exp != act {
		t.Fatalf("expected %d aggregators, got %d", exp, act)
	}
	if order[0] != inner || order[1] != outer {
		t.Errorf("expected post-order (inner before outer)")
	}
}

func TestContainsCounter(t *testing.T) {
	with := atom("p", &RecordInit{Args: []Argument{&Counter{}}})
	without := atom("p", v("x"))

	if !ContainsCounter(with) {
		t.Errorf("expected counter to be found")
	}
	if ContainsCounter(without) {
		t.Errorf("expected no counter")
	}
}

func TestNameUnnamedVariables(t *testing.T) {
	clause := &Clause{
		Head: atom("p", v("x")),
		Body: []Literal{
			atom("q", v("x"), &UnnamedVariable{}),
			atom("r", &UnnamedVariable{}, &RecordInit{Args: []Argument{&UnnamedVariable{}}}),
		},
	}

	NameUnnamedVariables(clause)

	var unnamed int
	WalkAtoms(clause, func(a *Atom) {
		for _, arg := range a.Args {
			if _, ok := arg.(*UnnamedVariable); ok {
				unnamed++
			}
		}
	})
	if exp, act := 0, unnamed; exp != act {
		t.Fatalf("expected no wildcards to remain, got %d", act)
	}

	names := map[string]bool{}
	WalkVariables(clause, func(va *Variable) { names[va.Name] = true })
	for _, exp := range []string{" _unnamed_var1", " _unnamed_var2", " _unnamed_var3"} {
		if !names[exp] {
			t.Errorf("expected fresh variable %q", exp)
		}
	}
}
