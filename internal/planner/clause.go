package planner

import (
	"fmt"

	"github.com/deltalog/deltalog/ast"
	"github.com/deltalog/deltalog/ir"
)

// clauseTranslator builds the operator nest for one clause. A fresh
// translator (and with it a fresh value index) is used per clause.
type clauseTranslator struct {
	planner *Planner
	index   *valueIndex
	level   int
	// nesting stack of the index pass: atoms then the records unpacked
	// beneath them, outermost first
	nesting     []interface{}
	aggregators []*ast.Aggregator
}

func newClauseTranslator(p *Planner) *clauseTranslator {
	return &clauseTranslator{planner: p, index: newValueIndex()}
}

// translateClause compiles one clause into a statement. originalClause is
// the pre-rewrite clause the rule derives from; version numbers rule
// variants of one source clause.
func (ct *clauseTranslator) translateClause(clause, originalClause *ast.Clause, version int) (ir.Statement, error) {
	if reordered := reorderedClause(clause, version); reordered != nil {
		return newClauseTranslator(ct.planner).translateClause(reordered, originalClause, version)
	}

	head := clause.Head

	if clause.IsFact() {
		values, err := ct.planner.translateValues(head.Args, newValueIndex())
		if err != nil {
			return nil, err
		}
		return &ir.Query{Op: &ir.Fact{Relation: ct.planner.atomRelationName(head), Values: values}}, nil
	}

	if err := ct.createValueIndex(clause); err != nil {
		return nil, err
	}

	op, err := ct.createOperation(clause)
	if err != nil {
		return nil, err
	}

	// equality constraints imposed by repeated variable bindings
	for _, name := range ct.index.variables() {
		refs := ct.index.references(name)
		first := refs[0]
		for _, loc := range refs[1:] {
			if loc == first || ct.index.isAggregatorLevel(loc.level) {
				continue
			}
			op = &ir.Filter{
				Cond: &ir.Constraint{
					Op:  ast.ConstraintEQ.String(),
					LHS: &ir.TupleElement{Level: first.level, Column: first.column},
					RHS: &ir.TupleElement{Level: loc.level, Column: loc.column},
				},
				Body: op,
			}
		}
	}

	// conditions caused by negations and constraints
	for _, lit := range clause.Body {
		cond, err := ct.planner.translateConstraint(lit, ct.index)
		if err != nil {
			return nil, err
		}
		if cond != nil {
			op = &ir.Filter{Cond: cond, Body: op}
		}
	}

	// bind aggregator results referenced at atom positions
	for curLevel := len(ct.nesting) - 1; curLevel >= 0; curLevel-- {
		atom, ok := ct.nesting[curLevel].(*ast.Atom)
		if !ok {
			continue
		}
		for pos, arg := range atom.Args {
			agg, ok := arg.(*ast.Aggregator)
			if !ok {
				continue
			}
			loc, ok := ct.index.aggregatorLocation(agg)
			if !ok {
				continue
			}
			op = &ir.Filter{
				Cond: &ir.Constraint{
					Op:  ast.ConstraintEQ.String(),
					LHS: &ir.TupleElement{Level: curLevel, Column: pos},
					RHS: &ir.TupleElement{Level: loc.level, Column: loc.column},
				},
				Body: op,
			}
		}
	}

	// aggregate layers, in reverse of index order
	level := ct.level - 1
	for i := len(ct.aggregators) - 1; i >= 0; i-- {
		agg := ct.aggregators[i]
		op, err = ct.aggregateLayer(agg, level, op)
		if err != nil {
			return nil, err
		}
		level--
	}

	// scan and unpack layers, innermost first
	for len(ct.nesting) > 0 {
		cur := ct.nesting[len(ct.nesting)-1]
		ct.nesting = ct.nesting[:len(ct.nesting)-1]
		level := len(ct.nesting)

		switch node := cur.(type) {
		case *ast.Atom:
			op, err = ct.scanLayer(node, level, head, clause, originalClause, version, op)
		case *ast.RecordInit:
			op, err = ct.unpackLayer(node, level, op)
		default:
			err = &Error{
				Code:    ErrUnsupportedNodeInScanNesting,
				Message: fmt.Sprintf("cannot create scan level for %T", cur),
				Loc:     clause.Loc,
			}
		}
		if err != nil {
			return nil, err
		}
	}

	// nullary heads must not be re-derived once the empty fact exists
	if originalClause.Head.Arity() == 0 {
		op = &ir.Filter{
			Cond: &ir.EmptinessCheck{Relation: ct.planner.atomRelationName(originalClause.Head)},
			Body: op,
		}
	}
	return &ir.Query{Op: op}, nil
}

// reorderedClause applies the clause's fixed execution plan for the given
// version, if any. The returned clause carries no plan so that plan
// handling is not re-entered.
func reorderedClause(clause *ast.Clause, version int) *ast.Clause {
	if clause.FixedPlan {
		return nil
	}
	order, ok := clause.Plan.OrderFor(version)
	if !ok {
		return nil
	}
	reordered := clause.Clone()
	newOrder := make([]int, len(order))
	for i, idx := range order {
		newOrder[i] = idx - 1
	}
	reordered.ReorderAtoms(newOrder)
	reordered.Plan = nil
	reordered.FixedPlan = true
	return reordered
}

// createValueIndex walks the clause, allocating one nesting level per body
// atom and nested record, and one per distinct aggregator.
func (ct *clauseTranslator) createValueIndex(clause *ast.Clause) error {
	for _, atom := range clause.Atoms() {
		atomLevel := ct.level
		ct.level++
		ct.nesting = append(ct.nesting, atom)
		ct.indexValues(atom.Args, atomLevel, ct.planner.atomRelationName(atom), atom.Arity())
	}

	var index []*ast.Aggregator
	seen := map[*ast.Aggregator]bool{}
	ast.WalkAggregators(clause, func(agg *ast.Aggregator) {
		if !seen[agg] {
			seen[agg] = true
			index = append(index, agg)
		}
	})
	for _, agg := range index {
		aggLevel := ct.level
		ct.level++
		ct.index.setAggregatorLocation(agg, location{level: aggLevel, column: 0})

		atom := aggregatorAtom(agg)
		if atom == nil {
			return &Error{
				Code:    ErrAggregateBodyMalformed,
				Message: "aggregate body has no atom",
				Loc:     clause.Loc,
			}
		}
		relation := ct.planner.atomRelationName(atom)
		for pos, arg := range atom.Args {
			if v, ok := arg.(*ast.Variable); ok {
				ct.index.addVarReference(v.Name, location{level: aggLevel, column: pos, relation: relation})
			}
		}
		ct.aggregators = append(ct.aggregators, agg)
	}

	// a variable equated with an aggregate is bound at the aggregate's
	// result location
	for _, lit := range clause.Body {
		constraint, ok := lit.(*ast.BinaryConstraint)
		if !ok || constraint.Op != ast.ConstraintEQ {
			continue
		}
		ct.bindAggregateResult(constraint.LHS, constraint.RHS)
		ct.bindAggregateResult(constraint.RHS, constraint.LHS)
	}
	return nil
}

func (ct *clauseTranslator) bindAggregateResult(a, b ast.Argument) {
	v, ok := a.(*ast.Variable)
	if !ok {
		return
	}
	agg, ok := b.(*ast.Aggregator)
	if !ok {
		return
	}
	if loc, ok := ct.index.aggregatorLocation(agg); ok && !ct.index.isDefined(v.Name) {
		ct.index.addVarReference(v.Name, loc)
	}
}

// indexValues registers variable references and nested record definitions
// of one argument list bound at the given level.
func (ct *clauseTranslator) indexValues(args []ast.Argument, level int, relation string, relArity int) {
	for pos, arg := range args {
		switch a := arg.(type) {
		case *ast.Variable:
			loc := location{level: level, column: pos}
			if pos < relArity {
				loc.relation = relation
			}
			ct.index.addVarReference(a.Name, loc)
		case *ast.RecordInit:
			ct.nesting = append(ct.nesting, a)
			recLevel := ct.level
			ct.level++
			ct.index.setRecordDefinition(a, location{level: level, column: pos})
			ct.indexValues(a.Args, recLevel, relation, relArity)
		}
	}
}

// createOperation builds the innermost operation: the head projection, plus
// the at-most-once guard for nullary heads and the provenance duplicate
// suppression filter.
func (ct *clauseTranslator) createOperation(clause *ast.Clause) (ir.Operation, error) {
	head := clause.Head
	headRelation := ct.planner.atomRelationName(head)

	values, err := ct.planner.translateValues(head.Args, ct.index)
	if err != nil {
		return nil, err
	}

	var op ir.Operation = &ir.Project{Relation: headRelation, Values: values}

	if head.Arity() == 0 {
		op = &ir.Filter{Cond: &ir.EmptinessCheck{Relation: headRelation}, Body: op}
	}

	if ct.planner.conf.HasProvenance() && ct.planner.conf.Interpreted() {
		heights := ct.planner.atomHeights(head)
		arity := head.Arity() - 1 - heights

		existence := make([]ir.Expression, 0, head.Arity())
		volatileHead := true
		for i := 0; i < arity; i++ {
			arg := head.Arg(i)
			if ast.ContainsCounter(arg) {
				volatileHead = false
			}
			exp, err := ct.planner.translateValue(arg, ct.index)
			if err != nil {
				return nil, err
			}
			existence = append(existence, exp)
		}
		for i := 0; i < 1+heights; i++ {
			existence = append(existence, &ir.UndefValue{})
		}

		if volatileHead {
			op = &ir.Filter{
				Cond: &ir.Negation{Cond: &ir.ExistenceCheck{Relation: headRelation, Values: existence}},
				Body: op,
			}
		}
	}

	return op, nil
}

// aggregatorAtom returns the single atom of an aggregate body, or nil.
func aggregatorAtom(agg *ast.Aggregator) *ast.Atom {
	for _, lit := range agg.Body {
		if atom, ok := lit.(*ast.Atom); ok {
			return atom
		}
	}
	return nil
}

// aggregateLayer wraps the operation in the aggregate bound at level.
func (ct *clauseTranslator) aggregateLayer(agg *ast.Aggregator, level int, op ir.Operation) (ir.Operation, error) {
	var fn ir.AggregateFn
	switch agg.Op {
	case ast.AggregateMin:
		fn = ir.AggregateMin
	case ast.AggregateMax:
		fn = ir.AggregateMax
	case ast.AggregateCount:
		fn = ir.AggregateCount
	case ast.AggregateSum:
		fn = ir.AggregateSum
	}

	var cond ir.Condition
	and := func(next ir.Condition) {
		if cond == nil {
			cond = next
		} else {
			cond = &ir.Conjunction{LHS: cond, RHS: next}
		}
	}

	// constraints of the sub-clause
	var atom *ast.Atom
	for _, lit := range agg.Body {
		if cur, ok := lit.(*ast.Atom); ok {
			if atom != nil {
				return nil, &Error{
					Code:    ErrAggregateBodyMalformed,
					Message: "aggregate body contains more than one atom",
				}
			}
			atom = cur
			continue
		}
		translated, err := ct.planner.translateConstraint(lit, ct.index)
		if err != nil {
			return nil, err
		}
		if translated != nil {
			and(translated)
		}
	}
	if atom == nil {
		return nil, &Error{
			Code:    ErrAggregateBodyMalformed,
			Message: "aggregate body has no atom",
		}
	}

	// wire atom arguments into the aggregate condition; variable bindings
	// avoid self-reference
	for pos, arg := range atom.Args {
		if v, ok := arg.(*ast.Variable); ok {
			for _, loc := range ct.index.references(v.Name) {
				if loc.level != level || loc.column != pos {
					and(&ir.Constraint{
						Op:  ast.ConstraintEQ.String(),
						LHS: &ir.TupleElement{Level: loc.level, Column: loc.column},
						RHS: &ir.TupleElement{Level: level, Column: pos},
					})
					break
				}
			}
			continue
		}
		if arg == nil {
			continue
		}
		value, err := ct.planner.translateValue(arg, ct.index)
		if err != nil {
			return nil, err
		}
		if value == nil {
			continue
		}
		if _, undef := value.(*ir.UndefValue); undef {
			continue
		}
		and(&ir.Constraint{
			Op:  ast.ConstraintEQ.String(),
			LHS: &ir.TupleElement{Level: level, Column: pos},
			RHS: value,
		})
	}

	expr, err := ct.planner.translateValue(agg.Target, ct.index)
	if err != nil {
		return nil, err
	}
	if expr == nil {
		expr = &ir.UndefValue{}
	}
	if cond == nil {
		cond = &ir.True{}
	}

	return &ir.Aggregate{
		Body:     op,
		Fn:       fn,
		Relation: ct.planner.atomRelationName(atom),
		Expr:     expr,
		Cond:     cond,
		Level:    level,
	}, nil
}

// scanLayer wraps the operation in the constant filters, emptiness
// early-out, and scan of one body atom.
func (ct *clauseTranslator) scanLayer(atom *ast.Atom, level int, head *ast.Atom, clause, originalClause *ast.Clause, version int, op ir.Operation) (ir.Operation, error) {
	relation := ct.planner.atomRelationName(atom)

	for pos, arg := range atom.Args {
		switch a := arg.(type) {
		case ast.Constant:
			op = &ir.Filter{
				Cond: &ir.Constraint{
					Op:  ast.ConstraintEQ.String(),
					LHS: &ir.TupleElement{Level: level, Column: pos},
					RHS: &ir.Number{Value: a.Index()},
				},
				Body: op,
			}
		case *ast.IntrinsicFunctor, *ast.UserDefinedFunctor:
			value, err := ct.planner.translateValue(arg, ct.index)
			if err != nil {
				return nil, err
			}
			op = &ir.Filter{
				Cond: &ir.Constraint{
					Op:  ast.ConstraintEQ.String(),
					LHS: &ir.TupleElement{Level: level, Column: pos},
					RHS: value,
				},
				Body: op,
			}
		case *ast.Aggregator:
			_ = a // bound via the aggregate layer's equality filter
		}
	}

	allUnnamed := true
	for _, arg := range atom.Args {
		if _, ok := arg.(*ast.UnnamedVariable); !ok {
			allUnnamed = false
			break
		}
	}

	op = &ir.Filter{
		Cond: &ir.Negation{Cond: &ir.EmptinessCheck{Relation: relation}},
		Body: op,
	}

	if atom.Arity() != 0 && !allUnnamed {
		if head.Arity() == 0 {
			op = &ir.Break{
				Cond: &ir.Negation{Cond: &ir.EmptinessCheck{Relation: ct.planner.atomRelationName(head)}},
				Body: op,
			}
		}
		scan := &ir.Scan{Relation: relation, Level: level, Body: op}
		if ct.planner.conf.HasProfile() {
			scan.Profile = fmt.Sprintf("@frequency-atom;%s;%d;%s;%s;%s;%d;",
				originalClause.Head.Name, version, clause.String(), atom.String(), originalClause.String(), level)
		}
		op = scan
	}
	return op, nil
}

// unpackLayer wraps the operation in the constant filters and unpack of one
// nested record.
func (ct *clauseTranslator) unpackLayer(rec *ast.RecordInit, level int, op ir.Operation) (ir.Operation, error) {
	for pos, arg := range rec.Args {
		switch a := arg.(type) {
		case ast.Constant:
			op = &ir.Filter{
				Cond: &ir.Constraint{
					Op:  ast.ConstraintEQ.String(),
					LHS: &ir.TupleElement{Level: level, Column: pos},
					RHS: &ir.Number{Value: a.Index()},
				},
				Body: op,
			}
		case *ast.IntrinsicFunctor, *ast.UserDefinedFunctor:
			value, err := ct.planner.translateValue(arg, ct.index)
			if err != nil {
				return nil, err
			}
			op = &ir.Filter{
				Cond: &ir.Constraint{
					Op:  ast.ConstraintEQ.String(),
					LHS: &ir.TupleElement{Level: level, Column: pos},
					RHS: value,
				},
				Body: op,
			}
		case *ast.Aggregator:
			_ = a
		}
	}

	loc, ok := ct.index.recordDefinition(rec)
	if !ok {
		return nil, &Error{
			Code:    ErrUnsupportedNodeInScanNesting,
			Message: "record has no definition point",
		}
	}
	return &ir.UnpackRecord{
		Level: level,
		Expr:  &ir.TupleElement{Level: loc.level, Column: loc.column},
		Arity: len(rec.Args),
		Body:  op,
	}, nil
}
