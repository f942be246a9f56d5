// Package transforms rewrites the AST ahead of translation.
//
// The incremental transform extends every relation and every atom with three
// annotation columns (iteration, previous count, current count) and expands
// each rule into the update-rule family whose joint fixpoint maintains the
// materialization under fact insertions and deletions.
package transforms

import (
	"fmt"

	"github.com/deltalog/deltalog/analysis"
	"github.com/deltalog/deltalog/ast"
)

// Annotation column names.
const (
	IterationAttr    = "@iteration"
	PrevCountAttr    = "@prev_count"
	CurrentCountAttr = "@current_count"
)

// currentEpochValue marks aggregators the transform must leave untouched.
const currentEpochValue = "@current_epoch_value"

// Incremental is the incremental-annotation transform.
type Incremental struct {
	program   *ast.Program
	sccs      *analysis.SCCGraph
	recursive *analysis.RecursiveClauses
}

// NewIncremental returns the transform for a program and its analyses.
func NewIncremental(program *ast.Program, sccs *analysis.SCCGraph, recursive *analysis.RecursiveClauses) *Incremental {
	return &Incremental{program: program, sccs: sccs, recursive: recursive}
}

// Transform rewrites the program in place.
func (t *Incremental) Transform() {
	for _, rel := range t.program.Relations {
		rel.AddAttribute(ast.Attribute{Name: IterationAttr, Type: "number"})
		rel.AddAttribute(ast.Attribute{Name: PrevCountAttr, Type: "number"})
		rel.AddAttribute(ast.Attribute{Name: CurrentCountAttr, Type: "number"})
	}

	originalRelations := append([]*ast.Relation(nil), t.program.Relations...)

	for _, rel := range originalRelations {
		var originalClauses []*ast.Clause

		for _, clause := range append([]*ast.Clause(nil), rel.Clauses...) {
			instrumentNestedAtoms(clause.Head.Args)

			if clause.IsFact() {
				clause.Head.AddArg(&ast.NumberConstant{Value: 0})
				clause.Head.AddArg(&ast.NumberConstant{Value: 0})
				clause.Head.AddArg(&ast.NumberConstant{Value: 1})
				continue
			}

			t.program.AppendClause(t.makeDeletionClause(clause))
			t.program.AppendClause(t.makeInsertionClause(clause))
			rel.AddClause(t.makeGenerationClause(clause))

			originalClauses = append(originalClauses, clause)
		}

		for _, clause := range originalClauses {
			rel.RemoveClause(clause)
		}
	}
}

// bodyCounts records the instrumentation variables introduced on the body
// atoms of one rewritten clause.
type bodyCounts struct {
	iterations []string // only atoms in the head's component
	prev       []string
	current    []string
}

// instrument appends the annotation variables to every body atom of the
// clause and collects their names. headSCC selects which iteration
// variables participate in the fixpoint constraint.
func (t *Incremental) instrument(clause *ast.Clause, headSCC int) bodyCounts {
	var counts bodyCounts
	for i, lit := range clause.Body {
		instrumentLiteral(lit)

		atom, ok := lit.(*ast.Atom)
		if !ok {
			continue
		}
		iteration := fmt.Sprintf("@iteration_%d", i)
		prev := fmt.Sprintf("@prev_count_%d", i)
		current := fmt.Sprintf("@current_count_%d", i)
		atom.AddArg(&ast.Variable{Name: iteration})
		atom.AddArg(&ast.Variable{Name: prev})
		atom.AddArg(&ast.Variable{Name: current})

		if rel := t.program.Relation(atom.Name); rel != nil && t.sccs.Contains(headSCC, rel) {
			counts.iterations = append(counts.iterations, iteration)
		}
		counts.prev = append(counts.prev, prev)
		counts.current = append(counts.current, current)
	}
	return counts
}

// annotateHead appends the iteration argument and the (prev, current)
// constant pair identifying the update category.
func (t *Incremental) annotateHead(clause *ast.Clause, original *ast.Clause, prev, current int64) {
	if t.recursive.Recursive(original) {
		clause.Head.AddArg(&ast.IterationNumber{})
	} else {
		clause.Head.AddArg(&ast.NumberConstant{Value: 0})
	}
	clause.Head.AddArg(&ast.NumberConstant{Value: prev})
	clause.Head.AddArg(&ast.NumberConstant{Value: current})
}

// iterationPivotConstraint constrains at least one same-component body atom
// to the previous fixpoint iteration.
func iterationPivotConstraint(iterations []string) ast.Literal {
	return &ast.BinaryConstraint{
		Op:  ast.ConstraintEQ,
		LHS: foldVars(ast.FunctorMax, iterations),
		RHS: &ast.IntrinsicFunctor{Op: ast.FunctorSub, Args: []ast.Argument{
			&ast.IterationNumber{},
			&ast.NumberConstant{Value: 1},
		}},
	}
}

// makeDeletionClause rewrites a rule to derive lost head support: every
// body tuple held in the previous epoch and at least one has gone to zero.
func (t *Incremental) makeDeletionClause(clause *ast.Clause) *ast.Clause {
	upd := clause.Clone()
	headSCC := t.sccs.SCCOf(t.program.Relation(clause.Head.Name))
	counts := t.instrument(upd, headSCC)

	t.annotateHead(upd, clause, 1, -1)

	upd.AddToBody(&ast.BinaryConstraint{
		Op:  ast.ConstraintGT,
		LHS: foldVars(ast.FunctorMin, counts.prev),
		RHS: &ast.NumberConstant{Value: 0},
	})
	if len(counts.iterations) > 0 {
		upd.AddToBody(iterationPivotConstraint(counts.iterations))
	}
	upd.AddToBody(&ast.BinaryConstraint{
		Op:  ast.ConstraintLE,
		LHS: foldVars(ast.FunctorMin, counts.current),
		RHS: &ast.NumberConstant{Value: 0},
	})
	return upd
}

// makeInsertionClause rewrites a rule to derive newly gained head support:
// every body tuple holds now and at least one did not hold previously.
func (t *Incremental) makeInsertionClause(clause *ast.Clause) *ast.Clause {
	upd := clause.Clone()
	headSCC := t.sccs.SCCOf(t.program.Relation(clause.Head.Name))
	counts := t.instrument(upd, headSCC)

	t.annotateHead(upd, clause, 0, 1)

	upd.AddToBody(&ast.BinaryConstraint{
		Op:  ast.ConstraintGT,
		LHS: foldVars(ast.FunctorMin, counts.current),
		RHS: &ast.NumberConstant{Value: 0},
	})
	if len(counts.iterations) > 0 {
		upd.AddToBody(iterationPivotConstraint(counts.iterations))
	}
	upd.AddToBody(&ast.BinaryConstraint{
		Op:  ast.ConstraintLE,
		LHS: foldVars(ast.FunctorMin, counts.prev),
		RHS: &ast.NumberConstant{Value: 0},
	})
	return upd
}

// makeGenerationClause rewrites a rule to emit head tuples whose body
// stabilized within the current epoch; it fires only inside the fixpoint.
func (t *Incremental) makeGenerationClause(clause *ast.Clause) *ast.Clause {
	gen := clause.Clone()
	headSCC := t.sccs.SCCOf(t.program.Relation(clause.Head.Name))
	counts := t.instrument(gen, headSCC)

	t.annotateHead(gen, clause, 1, 1)

	gen.AddToBody(&ast.BinaryConstraint{
		Op:  ast.ConstraintGT,
		LHS: foldVars(ast.FunctorMin, counts.current),
		RHS: &ast.NumberConstant{Value: 0},
	})
	if len(counts.iterations) > 0 {
		gen.AddToBody(iterationPivotConstraint(counts.iterations))
	}
	return gen
}

// foldVars folds fresh variables named by names under a binary functor.
func foldVars(op ast.FunctorOp, names []string) ast.Argument {
	if len(names) == 0 {
		return &ast.NumberConstant{Value: 0}
	}
	current := ast.Argument(&ast.Variable{Name: names[0]})
	for _, name := range names[1:] {
		current = &ast.IntrinsicFunctor{Op: op, Args: []ast.Argument{
			current,
			&ast.Variable{Name: name},
		}}
	}
	return current
}

// instrumentLiteral appends annotation columns to atoms nested inside a
// body literal. The literal's own top-level atom, if any, is annotated by
// the caller with named variables instead.
func instrumentLiteral(lit ast.Literal) {
	switch l := lit.(type) {
	case *ast.Atom:
		instrumentNestedAtoms(l.Args)
	case *ast.Negation:
		addAnnotationColumns(l.Atom)
		instrumentNestedAtoms(l.Atom.Args)
	case *ast.PositiveNegation:
		addAnnotationColumns(l.Atom)
		instrumentNestedAtoms(l.Atom.Args)
	case *ast.SubsumptionNegation:
		addAnnotationColumns(l.Atom)
		instrumentNestedAtoms(l.Atom.Args)
	case *ast.ExistenceCheck:
		addAnnotationColumns(l.Atom)
		instrumentNestedAtoms(l.Atom.Args)
	case *ast.BinaryConstraint:
		instrumentNestedArgument(l.LHS)
		instrumentNestedArgument(l.RHS)
	case *ast.ConjunctionConstraint:
		instrumentLiteral(l.LHS)
		instrumentLiteral(l.RHS)
	case *ast.DisjunctionConstraint:
		instrumentLiteral(l.LHS)
		instrumentLiteral(l.RHS)
	}
}

func instrumentNestedAtoms(args []ast.Argument) {
	for _, arg := range args {
		instrumentNestedArgument(arg)
	}
}

func instrumentNestedArgument(arg ast.Argument) {
	switch a := arg.(type) {
	case *ast.RecordInit:
		instrumentNestedAtoms(a.Args)
	case *ast.IntrinsicFunctor:
		instrumentNestedAtoms(a.Args)
	case *ast.UserDefinedFunctor:
		instrumentNestedAtoms(a.Args)
	case *ast.Aggregator:
		// epoch-value aggregates are injected by the scheduler itself and
		// must keep their shape
		if v, ok := a.Target.(*ast.Variable); ok && v.Name == currentEpochValue {
			return
		}
		if a.Target != nil {
			instrumentNestedArgument(a.Target)
		}
		for _, lit := range a.Body {
			if atom, ok := lit.(*ast.Atom); ok {
				addAnnotationColumns(atom)
				instrumentNestedAtoms(atom.Args)
				continue
			}
			instrumentLiteral(lit)
		}
	}
}

func addAnnotationColumns(atom *ast.Atom) {
	atom.AddArg(&ast.UnnamedVariable{})
	atom.AddArg(&ast.UnnamedVariable{})
	atom.AddArg(&ast.UnnamedVariable{})
}
