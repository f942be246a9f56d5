package ast

import "fmt"

// WalkAtoms invokes f for every atom contained in x, including atoms nested
// in negations, constraints, and aggregator bodies. x may be a *Clause, a
// Literal, or an Argument.
func WalkAtoms(x interface{}, f func(*Atom)) {
	walk(x, visitor{atom: f})
}

// WalkVariables invokes f for every named variable contained in x.
func WalkVariables(x interface{}, f func(*Variable)) {
	walk(x, visitor{variable: f})
}

// WalkAggregators invokes f for every aggregator contained in x in
// depth-first post-order: nested aggregators are visited before the
// aggregators containing them.
func WalkAggregators(x interface{}, f func(*Aggregator)) {
	walk(x, visitor{aggregator: f})
}

// ContainsCounter reports whether a counter argument occurs anywhere in x.
func ContainsCounter(x interface{}) bool {
	found := false
	walk(x, visitor{counter: func(*Counter) { found = true }})
	return found
}

type visitor struct {
	atom       func(*Atom)
	variable   func(*Variable)
	aggregator func(*Aggregator)
	counter    func(*Counter)
}

func walk(x interface{}, vis visitor) {
	switch node := x.(type) {
	case *Clause:
		walk(node.Head, vis)
		for _, lit := range node.Body {
			walk(lit, vis)
		}
	case []Literal:
		for _, lit := range node {
			walk(lit, vis)
		}
	case []Argument:
		for _, arg := range node {
			walk(arg, vis)
		}
	case *Atom:
		for _, arg := range node.Args {
			walk(arg, vis)
		}
		if vis.atom != nil {
			vis.atom(node)
		}
	case *Negation:
		walk(node.Atom, vis)
	case *PositiveNegation:
		walk(node.Atom, vis)
	case *SubsumptionNegation:
		walk(node.Atom, vis)
	case *BinaryConstraint:
		walk(node.LHS, vis)
		walk(node.RHS, vis)
	case *ConjunctionConstraint:
		walk(node.LHS, vis)
		walk(node.RHS, vis)
	case *DisjunctionConstraint:
		walk(node.LHS, vis)
		walk(node.RHS, vis)
	case *ExistenceCheck:
		walk(node.Atom, vis)
	case *Variable:
		if vis.variable != nil {
			vis.variable(node)
		}
	case *RecordInit:
		for _, arg := range node.Args {
			walk(arg, vis)
		}
	case *IntrinsicFunctor:
		for _, arg := range node.Args {
			walk(arg, vis)
		}
	case *UserDefinedFunctor:
		for _, arg := range node.Args {
			walk(arg, vis)
		}
	case *Aggregator:
		if node.Target != nil {
			walk(node.Target, vis)
		}
		for _, lit := range node.Body {
			walk(lit, vis)
		}
		if vis.aggregator != nil {
			vis.aggregator(node)
		}
	case *Counter:
		if vis.counter != nil {
			vis.counter(node)
		}
	case *UnnamedVariable, *NumberConstant, *StringConstant, *IterationNumber, *SubroutineArgument, nil:
		// leaves
	default:
		panic(fmt.Sprintf("ast: walk over unexpected node %T", x))
	}
}

// NameUnnamedVariables replaces every wildcard in the clause's atoms with a
// fresh named variable so that cloned copies of the clause keep variable
// identity across the copies.
func NameUnnamedVariables(c *Clause) {
	counter := 0
	var mapArgs func(args []Argument)
	mapArgs = func(args []Argument) {
		for i, a := range args {
			switch arg := a.(type) {
			case *UnnamedVariable:
				counter++
				args[i] = &Variable{Name: fmt.Sprintf(" _unnamed_var%d", counter)}
			case *RecordInit:
				mapArgs(arg.Args)
			case *IntrinsicFunctor:
				mapArgs(arg.Args)
			case *UserDefinedFunctor:
				mapArgs(arg.Args)
			case *Aggregator:
				for _, lit := range arg.Body {
					if atom, ok := lit.(*Atom); ok {
						mapArgs(atom.Args)
					}
				}
			}
		}
	}
	for _, atom := range c.Atoms() {
		mapArgs(atom.Args)
	}
}
