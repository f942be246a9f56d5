// Package ast declares the typed Datalog AST consumed by the translator.
//
// The AST is produced by an external front-end (parser + type checker) and is
// read-mostly: the incremental transform clones whole subtrees before
// rewriting them, so no two clauses ever share substructure.
package ast

import (
	"fmt"
	"strings"
)

// Location points at a position in a source unit. The zero value means
// "unknown location".
type Location struct {
	File   string
	Line   int
	Column int
}

func (l Location) String() string {
	if l.File == "" {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// FunctorOp enumerates the intrinsic functors.
type FunctorOp int

const (
	FunctorAdd FunctorOp = iota
	FunctorSub
	FunctorMul
	FunctorDiv
	FunctorMod
	FunctorMin
	FunctorMax
	FunctorCat
	FunctorOrd
	FunctorNeg
	FunctorLNot
	FunctorLAnd
	FunctorLOr
	FunctorBAnd
	FunctorBOr
	FunctorBXor
)

var functorNames = [...]string{
	FunctorAdd:  "add",
	FunctorSub:  "sub",
	FunctorMul:  "mul",
	FunctorDiv:  "div",
	FunctorMod:  "mod",
	FunctorMin:  "min",
	FunctorMax:  "max",
	FunctorCat:  "cat",
	FunctorOrd:  "ord",
	FunctorNeg:  "neg",
	FunctorLNot: "lnot",
	FunctorLAnd: "land",
	FunctorLOr:  "lor",
	FunctorBAnd: "band",
	FunctorBOr:  "bor",
	FunctorBXor: "bxor",
}

func (op FunctorOp) String() string {
	if int(op) < len(functorNames) {
		return functorNames[op]
	}
	return fmt.Sprintf("functor(%d)", int(op))
}

// AggregateOp enumerates the aggregation functions.
type AggregateOp int

const (
	AggregateMin AggregateOp = iota
	AggregateMax
	AggregateCount
	AggregateSum
)

func (op AggregateOp) String() string {
	switch op {
	case AggregateMin:
		return "min"
	case AggregateMax:
		return "max"
	case AggregateCount:
		return "count"
	case AggregateSum:
		return "sum"
	}
	return fmt.Sprintf("aggregate(%d)", int(op))
}

// BinaryConstraintOp enumerates binary constraint operators.
type BinaryConstraintOp int

const (
	ConstraintEQ BinaryConstraintOp = iota
	ConstraintNE
	ConstraintLT
	ConstraintLE
	ConstraintGT
	ConstraintGE
	ConstraintMatch
	ConstraintNotMatch
	ConstraintContains
	ConstraintNotContains
)

var constraintSymbols = [...]string{
	ConstraintEQ:          "=",
	ConstraintNE:          "!=",
	ConstraintLT:          "<",
	ConstraintLE:          "<=",
	ConstraintGT:          ">",
	ConstraintGE:          ">=",
	ConstraintMatch:       "match",
	ConstraintNotMatch:    "not_match",
	ConstraintContains:    "contains",
	ConstraintNotContains: "not_contains",
}

func (op BinaryConstraintOp) String() string {
	if int(op) < len(constraintSymbols) {
		return constraintSymbols[op]
	}
	return fmt.Sprintf("constraint(%d)", int(op))
}

// Argument is an argument position of an atom, functor, or record.
type Argument interface {
	fmt.Stringer
	// Clone returns an owned deep copy.
	Clone() Argument
	argument()
}

// Constant is an argument carrying a pre-interned index: the numeric value
// for number constants, the symbol-table id for string constants.
type Constant interface {
	Argument
	Index() int64
}

// Variable is a named variable.
type Variable struct {
	Name string
	Loc  Location
}

// UnnamedVariable is the wildcard `_`.
type UnnamedVariable struct{}

// NumberConstant is a signed numeric literal.
type NumberConstant struct {
	Value int64
}

// StringConstant is a string literal, already interned by the front-end.
// Symbol is its index in the external symbol table.
type StringConstant struct {
	Symbol int64
	Value  string
}

// RecordInit constructs a record value from its field arguments.
type RecordInit struct {
	Args []Argument
}

// IntrinsicFunctor applies a built-in functor.
type IntrinsicFunctor struct {
	Op   FunctorOp
	Args []Argument
}

// UserDefinedFunctor applies a user-declared functor.
type UserDefinedFunctor struct {
	Name string
	Args []Argument
	Loc  Location
}

// Counter is the `$` auto-increment argument.
type Counter struct{}

// IterationNumber refers to the current fixpoint iteration.
type IterationNumber struct{}

// Aggregator computes an aggregate over the tuples matched by its body.
// Target may be nil for count.
type Aggregator struct {
	Op     AggregateOp
	Target Argument
	Body   []Literal
}

// SubroutineArgument refers to the n-th argument of the enclosing
// subroutine.
type SubroutineArgument struct {
	Number int
}

func (*Variable) argument()           {}
func (*UnnamedVariable) argument()    {}
func (*NumberConstant) argument()     {}
func (*StringConstant) argument()     {}
func (*RecordInit) argument()         {}
func (*IntrinsicFunctor) argument()   {}
func (*UserDefinedFunctor) argument() {}
func (*Counter) argument()            {}
func (*IterationNumber) argument()    {}
func (*Aggregator) argument()         {}
func (*SubroutineArgument) argument() {}

// Index implements Constant.
func (c *NumberConstant) Index() int64 { return c.Value }

// Index implements Constant.
func (c *StringConstant) Index() int64 { return c.Symbol }

func (v *Variable) Clone() Argument        { cpy := *v; return &cpy }
func (*UnnamedVariable) Clone() Argument   { return &UnnamedVariable{} }
func (c *NumberConstant) Clone() Argument  { cpy := *c; return &cpy }
func (c *StringConstant) Clone() Argument  { cpy := *c; return &cpy }
func (*Counter) Clone() Argument           { return &Counter{} }
func (*IterationNumber) Clone() Argument   { return &IterationNumber{} }
func (a *SubroutineArgument) Clone() Argument { cpy := *a; return &cpy }

func (r *RecordInit) Clone() Argument {
	return &RecordInit{Args: cloneArguments(r.Args)}
}

func (f *IntrinsicFunctor) Clone() Argument {
	return &IntrinsicFunctor{Op: f.Op, Args: cloneArguments(f.Args)}
}

func (f *UserDefinedFunctor) Clone() Argument {
	return &UserDefinedFunctor{Name: f.Name, Args: cloneArguments(f.Args), Loc: f.Loc}
}

func (a *Aggregator) Clone() Argument {
	cpy := &Aggregator{Op: a.Op, Body: cloneLiterals(a.Body)}
	if a.Target != nil {
		cpy.Target = a.Target.Clone()
	}
	return cpy
}

func cloneArguments(args []Argument) []Argument {
	if args == nil {
		return nil
	}
	out := make([]Argument, len(args))
	for i, a := range args {
		out[i] = a.Clone()
	}
	return out
}

func (v *Variable) String() string         { return v.Name }
func (*UnnamedVariable) String() string    { return "_" }
func (c *NumberConstant) String() string   { return fmt.Sprintf("%d", c.Value) }
func (c *StringConstant) String() string   { return fmt.Sprintf("%q", c.Value) }
func (*Counter) String() string            { return "$" }
func (*IterationNumber) String() string    { return "#iteration" }
func (a *SubroutineArgument) String() string { return fmt.Sprintf("arg(%d)", a.Number) }

func (r *RecordInit) String() string {
	return "[" + joinArguments(r.Args) + "]"
}

func (f *IntrinsicFunctor) String() string {
	return "@" + f.Op.String() + "(" + joinArguments(f.Args) + ")"
}

func (f *UserDefinedFunctor) String() string {
	return "@" + f.Name + "(" + joinArguments(f.Args) + ")"
}

func (a *Aggregator) String() string {
	var b strings.Builder
	b.WriteString(a.Op.String())
	if a.Target != nil {
		b.WriteString(" ")
		b.WriteString(a.Target.String())
	}
	b.WriteString(" : { ")
	for i, lit := range a.Body {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(lit.String())
	}
	b.WriteString(" }")
	return b.String()
}

func joinArguments(args []Argument) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}

// Literal is a body literal of a clause.
type Literal interface {
	fmt.Stringer
	// CloneLiteral returns an owned deep copy.
	CloneLiteral() Literal
	literal()
}

// Atom is a positive relation atom.
type Atom struct {
	Name string
	Args []Argument
	Loc  Location
}

// Negation is stratified negation over an atom.
type Negation struct {
	Atom *Atom
}

// PositiveNegation negates a positive-count existence check.
type PositiveNegation struct {
	Atom *Atom
}

// SubsumptionNegation negates a subsumption existence check; the trailing
// SubsumptionFields columns of the atom are compared by subsumption rather
// than equality.
type SubsumptionNegation struct {
	Atom              *Atom
	SubsumptionFields int
}

// BinaryConstraint relates two argument values.
type BinaryConstraint struct {
	Op  BinaryConstraintOp
	LHS Argument
	RHS Argument
	Loc Location
}

// ConjunctionConstraint is the conjunction of two body literals.
type ConjunctionConstraint struct {
	LHS Literal
	RHS Literal
}

// DisjunctionConstraint is the disjunction of two body literals.
type DisjunctionConstraint struct {
	LHS Literal
	RHS Literal
}

// ExistenceCheck tests membership of a tuple without binding variables.
type ExistenceCheck struct {
	Atom *Atom
}

func (*Atom) literal()                  {}
func (*Negation) literal()              {}
func (*PositiveNegation) literal()      {}
func (*SubsumptionNegation) literal()   {}
func (*BinaryConstraint) literal()      {}
func (*ConjunctionConstraint) literal() {}
func (*DisjunctionConstraint) literal() {}
func (*ExistenceCheck) literal()        {}

// Arity returns the number of argument positions.
func (a *Atom) Arity() int { return len(a.Args) }

// Arg returns the argument at position i.
func (a *Atom) Arg(i int) Argument { return a.Args[i] }

// SetArg replaces the argument at position i.
func (a *Atom) SetArg(i int, arg Argument) { a.Args[i] = arg }

// AddArg appends an argument.
func (a *Atom) AddArg(arg Argument) { a.Args = append(a.Args, arg) }

// Clone returns an owned deep copy of the atom.
func (a *Atom) Clone() *Atom {
	return &Atom{Name: a.Name, Args: cloneArguments(a.Args), Loc: a.Loc}
}

func (a *Atom) CloneLiteral() Literal { return a.Clone() }

func (n *Negation) CloneLiteral() Literal { return &Negation{Atom: n.Atom.Clone()} }

func (n *PositiveNegation) CloneLiteral() Literal {
	return &PositiveNegation{Atom: n.Atom.Clone()}
}

func (n *SubsumptionNegation) CloneLiteral() Literal {
	return &SubsumptionNegation{Atom: n.Atom.Clone(), SubsumptionFields: n.SubsumptionFields}
}

func (c *BinaryConstraint) CloneLiteral() Literal {
	return &BinaryConstraint{Op: c.Op, LHS: c.LHS.Clone(), RHS: c.RHS.Clone(), Loc: c.Loc}
}

func (c *ConjunctionConstraint) CloneLiteral() Literal {
	return &ConjunctionConstraint{LHS: c.LHS.CloneLiteral(), RHS: c.RHS.CloneLiteral()}
}

func (c *DisjunctionConstraint) CloneLiteral() Literal {
	return &DisjunctionConstraint{LHS: c.LHS.CloneLiteral(), RHS: c.RHS.CloneLiteral()}
}

func (e *ExistenceCheck) CloneLiteral() Literal { return &ExistenceCheck{Atom: e.Atom.Clone()} }

func cloneLiterals(lits []Literal) []Literal {
	if lits == nil {
		return nil
	}
	out := make([]Literal, len(lits))
	for i, l := range lits {
		out[i] = l.CloneLiteral()
	}
	return out
}

func (a *Atom) String() string {
	return a.Name + "(" + joinArguments(a.Args) + ")"
}

func (n *Negation) String() string         { return "!" + n.Atom.String() }
func (n *PositiveNegation) String() string { return "!+" + n.Atom.String() }

func (n *SubsumptionNegation) String() string {
	return fmt.Sprintf("!>%d%s", n.SubsumptionFields, n.Atom.String())
}

func (c *BinaryConstraint) String() string {
	return c.LHS.String() + " " + c.Op.String() + " " + c.RHS.String()
}

func (c *ConjunctionConstraint) String() string {
	return "(" + c.LHS.String() + " /\\ " + c.RHS.String() + ")"
}

func (c *DisjunctionConstraint) String() string {
	return "(" + c.LHS.String() + " \\/ " + c.RHS.String() + ")"
}

func (e *ExistenceCheck) String() string { return "?" + e.Atom.String() }

// ExecutionPlan fixes the atom join order for particular rule versions.
// Orders are 1-based as written in source.
type ExecutionPlan struct {
	Orders map[int][]int
}

// OrderFor returns the fixed order for a version, if any.
func (p *ExecutionPlan) OrderFor(version int) ([]int, bool) {
	if p == nil {
		return nil, false
	}
	order, ok := p.Orders[version]
	return order, ok
}

// MaxVersion returns the largest version with a fixed order, or -1.
func (p *ExecutionPlan) MaxVersion() int {
	maxVersion := -1
	if p == nil {
		return maxVersion
	}
	for v := range p.Orders {
		if v > maxVersion {
			maxVersion = v
		}
	}
	return maxVersion
}

// Clone returns an owned deep copy.
func (p *ExecutionPlan) Clone() *ExecutionPlan {
	if p == nil {
		return nil
	}
	cpy := &ExecutionPlan{Orders: make(map[int][]int, len(p.Orders))}
	for v, order := range p.Orders {
		cpy.Orders[v] = append([]int(nil), order...)
	}
	return cpy
}

// Clause is a fact (empty body) or a rule.
type Clause struct {
	Head *Atom
	Body []Literal
	Plan *ExecutionPlan
	// FixedPlan marks a clause whose atom order was already imposed by its
	// execution plan; the translator must not re-enter plan handling.
	FixedPlan bool
	Loc       Location
}

// IsFact reports whether the clause has no body.
func (c *Clause) IsFact() bool { return len(c.Body) == 0 }

// IsRule reports whether the clause has a body.
func (c *Clause) IsRule() bool { return len(c.Body) > 0 }

// Atoms returns the positive atoms of the body in order.
func (c *Clause) Atoms() []*Atom {
	var atoms []*Atom
	for _, lit := range c.Body {
		if atom, ok := lit.(*Atom); ok {
			atoms = append(atoms, atom)
		}
	}
	return atoms
}

// Negations returns the stratified negations of the body in order.
func (c *Clause) Negations() []*Negation {
	var negs []*Negation
	for _, lit := range c.Body {
		if neg, ok := lit.(*Negation); ok {
			negs = append(negs, neg)
		}
	}
	return negs
}

// AddToBody appends a literal.
func (c *Clause) AddToBody(lit Literal) { c.Body = append(c.Body, lit) }

// ClearNegations removes all Negation literals from the body.
func (c *Clause) ClearNegations() {
	kept := c.Body[:0]
	for _, lit := range c.Body {
		if _, ok := lit.(*Negation); !ok {
			kept = append(kept, lit)
		}
	}
	c.Body = kept
}

// ReorderAtoms permutes the positive atoms of the body: the atom at slot i
// becomes the former atom order[i]. Non-atom literals keep their positions.
func (c *Clause) ReorderAtoms(order []int) {
	var slots []int
	for i, lit := range c.Body {
		if _, ok := lit.(*Atom); ok {
			slots = append(slots, i)
		}
	}
	if len(order) != len(slots) {
		panic(fmt.Sprintf("ast: reorder of %d atoms with %d indices", len(slots), len(order)))
	}
	old := make([]Literal, len(slots))
	for i, slot := range slots {
		old[i] = c.Body[slot]
	}
	for i, slot := range slots {
		c.Body[slot] = old[order[i]]
	}
}

// Clone returns an owned deep copy of the clause.
func (c *Clause) Clone() *Clause {
	return &Clause{
		Head:      c.Head.Clone(),
		Body:      cloneLiterals(c.Body),
		Plan:      c.Plan.Clone(),
		FixedPlan: c.FixedPlan,
		Loc:       c.Loc,
	}
}

func (c *Clause) String() string {
	if c.IsFact() {
		return c.Head.String() + "."
	}
	parts := make([]string, len(c.Body))
	for i, lit := range c.Body {
		parts[i] = lit.String()
	}
	return c.Head.String() + " :- " + strings.Join(parts, ", ") + "."
}

// DirectiveKind distinguishes I/O directive flavors.
type DirectiveKind int

const (
	DirectiveInput DirectiveKind = iota
	DirectiveOutput
	DirectivePrintSize
)

// Directive is a single I/O directive attached to a relation. Keys and
// defaults are interpreted by the translator.
type Directive struct {
	Kind DirectiveKind
	Map  map[string]string
}

// Clone returns an owned copy.
func (d *Directive) Clone() *Directive {
	cpy := &Directive{Kind: d.Kind, Map: make(map[string]string, len(d.Map))}
	for k, v := range d.Map {
		cpy.Map[k] = v
	}
	return cpy
}

// Attribute is a typed column of a relation.
type Attribute struct {
	Name string
	Type string
}

// Relation declares a predicate with its attributes and rules.
type Relation struct {
	Name           string
	Attributes     []Attribute
	Clauses        []*Clause
	Loads          []*Directive
	Stores         []*Directive
	Representation string
	// HeightParams is the number of trailing provenance height columns.
	HeightParams int
	Loc          Location
}

// Arity returns the declared number of columns.
func (r *Relation) Arity() int { return len(r.Attributes) }

// AddAttribute appends a column.
func (r *Relation) AddAttribute(attr Attribute) {
	r.Attributes = append(r.Attributes, attr)
}

// AddClause appends a clause.
func (r *Relation) AddClause(c *Clause) { r.Clauses = append(r.Clauses, c) }

// RemoveClause removes a clause by identity.
func (r *Relation) RemoveClause(c *Clause) {
	kept := r.Clauses[:0]
	for _, cur := range r.Clauses {
		if cur != c {
			kept = append(kept, cur)
		}
	}
	r.Clauses = kept
}

// IsInput reports whether the relation carries an input directive.
func (r *Relation) IsInput() bool { return len(r.Loads) > 0 }

// IsOutput reports whether the relation carries an output directive.
func (r *Relation) IsOutput() bool { return len(r.Stores) > 0 }

// FunctorDeclaration declares a user-defined functor. Type is the external
// signature string recorded by the front-end.
type FunctorDeclaration struct {
	Name string
	Type string
}

// Program is a set of relations plus functor declarations.
type Program struct {
	Relations []*Relation
	Functors  []*FunctorDeclaration
}

// Relation looks a relation up by name; nil if absent.
func (p *Program) Relation(name string) *Relation {
	for _, rel := range p.Relations {
		if rel.Name == name {
			return rel
		}
	}
	return nil
}

// AtomRelation resolves the relation an atom refers to; nil if the atom
// names an auxiliary relation not declared in the program.
func (p *Program) AtomRelation(atom *Atom) *Relation {
	return p.Relation(atom.Name)
}

// FunctorDeclaration looks up a user-defined functor declaration; nil if
// absent.
func (p *Program) FunctorDeclaration(name string) *FunctorDeclaration {
	for _, fn := range p.Functors {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

// AppendClause attaches a clause to the relation its head names.
func (p *Program) AppendClause(c *Clause) {
	if rel := p.Relation(c.Head.Name); rel != nil {
		rel.AddClause(c)
	}
}
