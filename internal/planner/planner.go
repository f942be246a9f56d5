// Package planner translates a typed, annotated Datalog AST into the
// relational-algebra IR.
//
// The planner consumes the results of the front-end analyses (SCC graph,
// topological order, recursive-clause classification, type environment,
// relation schedule) and the translator configuration. In incremental mode it
// names the wildcards of the input's annotated clauses in place; every other
// rewrite works on clause clones it owns. Translation is
// single-threaded and deterministic: two runs over the same unit produce
// identical IR.
package planner

import (
	"fmt"

	"github.com/deltalog/deltalog/analysis"
	"github.com/deltalog/deltalog/ast"
	"github.com/deltalog/deltalog/config"
	"github.com/deltalog/deltalog/internal/mangle"
	"github.com/deltalog/deltalog/ir"
	"github.com/deltalog/deltalog/logging"
)

// Error codes of fatal translator faults.
const (
	ErrUngroundedVariable          = "ungrounded_variable"
	ErrUnsupportedNodeInScanNesting = "unsupported_node_in_scan_nesting"
	ErrAggregateBodyMalformed      = "aggregate_body_malformed"
	ErrUnknownFunctor              = "unknown_functor"
)

// Error is a fatal translator fault carrying the offending source location.
type Error struct {
	Code    string
	Message string
	Loc     ast.Location
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Loc)
}

// Planner translates one unit.
type Planner struct {
	program   *ast.Program
	sccs      *analysis.SCCGraph
	order     *analysis.TopologicalOrder
	recursive *analysis.RecursiveClauses
	types     *analysis.TypeEnvironment
	schedule  *analysis.RelationSchedule
	conf      *config.Config
	logger    logging.Logger
	prog      *ir.Program
}

// New returns a planner for the given program.
func New(program *ast.Program) *Planner {
	return &Planner{
		program: program,
		conf:    &config.Config{},
		logger:  logging.NewNoOpLogger(),
	}
}

// WithAnalyses sets the consumed analysis results.
func (p *Planner) WithAnalyses(sccs *analysis.SCCGraph, order *analysis.TopologicalOrder, recursive *analysis.RecursiveClauses, types *analysis.TypeEnvironment, schedule *analysis.RelationSchedule) *Planner {
	p.sccs = sccs
	p.order = order
	p.recursive = recursive
	p.types = types
	p.schedule = schedule
	return p
}

// WithConfig sets the translator configuration.
func (p *Planner) WithConfig(conf *config.Config) *Planner {
	p.conf = conf
	return p
}

// WithLogger sets the logger used for translation debug output.
func (p *Planner) WithLogger(logger logging.Logger) *Planner {
	p.logger = logger
	return p
}

// relationName registers (on first reference) and returns the mangled name
// of a base relation's variant.
func (p *Planner) relationName(rel *ast.Relation, variant mangle.Variant) string {
	name := mangle.Name(rel.Name, variant)
	if p.prog.Relation(name) != nil {
		return name
	}
	attrs := make([]string, rel.Arity())
	types := make([]string, rel.Arity())
	for i, attr := range rel.Attributes {
		attrs[i] = attr.Name
		if p.types != nil {
			types[i] = p.types.Qualifier(attr.Type)
		}
	}
	p.prog.AddRelation(&ir.Relation{
		Name:           name,
		Arity:          rel.Arity(),
		HeightParams:   rel.HeightParams,
		Attributes:     attrs,
		Types:          types,
		Representation: rel.Representation,
	})
	return name
}

// atomRelationName resolves the (possibly mangled) relation an atom refers
// to, registering its schema on first reference.
func (p *Planner) atomRelationName(atom *ast.Atom) string {
	base, variant := mangle.Parse(atom.Name)
	if rel := p.program.Relation(base); rel != nil {
		return p.relationName(rel, variant)
	}
	// auxiliary relation not declared in the program
	if p.prog.Relation(atom.Name) == nil {
		p.prog.AddRelation(&ir.Relation{Name: atom.Name, Arity: atom.Arity()})
	}
	return atom.Name
}

// atomHeights returns the provenance height-parameter count of the atom's
// relation.
func (p *Planner) atomHeights(atom *ast.Atom) int {
	base, _ := mangle.Parse(atom.Name)
	if rel := p.program.Relation(base); rel != nil {
		return rel.HeightParams
	}
	return 0
}

// translateValue maps a typed AST argument to an IR expression, consulting
// the value index for variable and aggregator bindings.
func (p *Planner) translateValue(arg ast.Argument, idx *valueIndex) (ir.Expression, error) {
	switch a := arg.(type) {
	case nil:
		return nil, nil
	case *ast.Variable:
		loc, ok := idx.definitionPoint(a.Name)
		if !ok {
			return nil, &Error{
				Code:    ErrUngroundedVariable,
				Message: fmt.Sprintf("variable %s is not grounded", a.Name),
				Loc:     a.Loc,
			}
		}
		return &ir.TupleElement{Level: loc.level, Column: loc.column}, nil
	case *ast.UnnamedVariable:
		return &ir.UndefValue{}, nil
	case *ast.NumberConstant:
		return &ir.Number{Value: a.Index()}, nil
	case *ast.StringConstant:
		return &ir.Number{Value: a.Index()}, nil
	case *ast.IntrinsicFunctor:
		args, err := p.translateValues(a.Args, idx)
		if err != nil {
			return nil, err
		}
		return &ir.IntrinsicOp{Op: a.Op.String(), Args: args}, nil
	case *ast.UserDefinedFunctor:
		decl := p.program.FunctorDeclaration(a.Name)
		if decl == nil {
			return nil, &Error{
				Code:    ErrUnknownFunctor,
				Message: fmt.Sprintf("user-defined functor %s has no declaration", a.Name),
				Loc:     a.Loc,
			}
		}
		args, err := p.translateValues(a.Args, idx)
		if err != nil {
			return nil, err
		}
		return &ir.UserDefinedOp{Name: a.Name, Type: decl.Type, Args: args}, nil
	case *ast.Counter:
		return &ir.AutoIncrement{}, nil
	case *ast.IterationNumber:
		return &ir.IterationNumber{}, nil
	case *ast.RecordInit:
		args, err := p.translateValues(a.Args, idx)
		if err != nil {
			return nil, err
		}
		return &ir.PackRecord{Args: args}, nil
	case *ast.Aggregator:
		loc, ok := idx.aggregatorLocation(a)
		if !ok {
			return nil, &Error{
				Code:    ErrUngroundedVariable,
				Message: "aggregator has no recorded result location",
			}
		}
		return &ir.TupleElement{Level: loc.level, Column: loc.column}, nil
	case *ast.SubroutineArgument:
		return &ir.SubroutineArgument{Number: a.Number}, nil
	}
	return nil, &Error{
		Code:    ErrUnsupportedNodeInScanNesting,
		Message: fmt.Sprintf("unexpected argument node %T", arg),
	}
}

func (p *Planner) translateValues(args []ast.Argument, idx *valueIndex) ([]ir.Expression, error) {
	out := make([]ir.Expression, len(args))
	for i, arg := range args {
		exp, err := p.translateValue(arg, idx)
		if err != nil {
			return nil, err
		}
		out[i] = exp
	}
	return out, nil
}

// translateConstraint maps a body literal to an IR condition. Atoms map to
// nil: they are covered by the scan nesting.
func (p *Planner) translateConstraint(lit ast.Literal, idx *valueIndex) (ir.Condition, error) {
	switch l := lit.(type) {
	case *ast.Atom:
		return nil, nil
	case *ast.BinaryConstraint:
		lhs, err := p.translateValue(l.LHS, idx)
		if err != nil {
			return nil, err
		}
		rhs, err := p.translateValue(l.RHS, idx)
		if err != nil {
			return nil, err
		}
		return &ir.Constraint{Op: l.Op.String(), LHS: lhs, RHS: rhs}, nil
	case *ast.ConjunctionConstraint:
		lhs, err := p.translateConstraint(l.LHS, idx)
		if err != nil {
			return nil, err
		}
		rhs, err := p.translateConstraint(l.RHS, idx)
		if err != nil {
			return nil, err
		}
		return &ir.Conjunction{LHS: lhs, RHS: rhs}, nil
	case *ast.DisjunctionConstraint:
		lhs, err := p.translateConstraint(l.LHS, idx)
		if err != nil {
			return nil, err
		}
		rhs, err := p.translateConstraint(l.RHS, idx)
		if err != nil {
			return nil, err
		}
		return &ir.Disjunction{LHS: lhs, RHS: rhs}, nil
	case *ast.ExistenceCheck:
		values, err := p.translateValues(l.Atom.Args, idx)
		if err != nil {
			return nil, err
		}
		return &ir.PositiveExistenceCheck{Relation: p.atomRelationName(l.Atom), Values: values}, nil
	case *ast.Negation:
		atom := l.Atom
		arity := atom.Arity()
		heights := p.atomHeights(atom)
		if p.conf.HasProvenance() {
			arity -= 1 + heights
		}
		values := make([]ir.Expression, 0, atom.Arity())
		for i := 0; i < arity; i++ {
			exp, err := p.translateValue(atom.Arg(i), idx)
			if err != nil {
				return nil, err
			}
			values = append(values, exp)
		}
		if p.conf.HasProvenance() {
			// provenance columns do not participate in the existence check
			for i := 0; i < 1+heights; i++ {
				values = append(values, &ir.UndefValue{})
			}
		}
		if arity > 0 {
			return &ir.Negation{Cond: &ir.ExistenceCheck{
				Relation: p.atomRelationName(atom),
				Values:   values,
			}}, nil
		}
		return &ir.EmptinessCheck{Relation: p.atomRelationName(atom)}, nil
	case *ast.PositiveNegation:
		values, err := p.translateValues(l.Atom.Args, idx)
		if err != nil {
			return nil, err
		}
		return &ir.Negation{Cond: &ir.PositiveExistenceCheck{
			Relation: p.atomRelationName(l.Atom),
			Values:   values,
		}}, nil
	case *ast.SubsumptionNegation:
		values, err := p.translateValues(l.Atom.Args, idx)
		if err != nil {
			return nil, err
		}
		return &ir.Negation{Cond: &ir.SubsumptionExistenceCheck{
			Relation: p.atomRelationName(l.Atom),
			Values:   values,
		}}, nil
	}
	return nil, &Error{
		Code:    ErrUnsupportedNodeInScanNesting,
		Message: fmt.Sprintf("unexpected body literal %T", lit),
	}
}

// stmts collects statements, skipping nils, and collapses to a Sequence.
type stmts struct {
	list []ir.Statement
}

func (s *stmts) add(stmt ir.Statement) {
	if stmt != nil {
		s.list = append(s.list, stmt)
	}
}

func (s *stmts) empty() bool { return len(s.list) == 0 }

func (s *stmts) seq() *ir.Sequence {
	return &ir.Sequence{Stmts: s.list}
}

// seqOrNil returns nil when no statement was collected, a bare statement
// when one was, and a Sequence otherwise.
func (s *stmts) seqOrNil() ir.Statement {
	switch len(s.list) {
	case 0:
		return nil
	case 1:
		return s.list[0]
	}
	return s.seq()
}
