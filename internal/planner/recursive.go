package planner

import (
	"fmt"

	"github.com/deltalog/deltalog/ast"
	"github.com/deltalog/deltalog/internal/mangle"
	"github.com/deltalog/deltalog/ir"
)

// translateRecursiveRelation emits the semi-naive fixpoint for one SCC:
// preamble (auxiliary-variant seeding and non-recursive rules), the
// parallel loop body, the iteration-boundary merge/swap/clear schedule, the
// exit condition, and the postamble drops.
func (p *Planner) translateRecursiveRelation(scc []*ast.Relation, indexOfScc int) (ir.Statement, error) {
	preamble := &stmts{}
	clearTable := &stmts{}
	updateTable := &stmts{}
	postamble := &stmts{}
	loop := &ir.Parallel{}

	members := map[string]bool{}
	for _, rel := range scc {
		members[rel.Name] = true
	}
	inSameSCC := func(atom *ast.Atom) bool {
		base, _ := mangle.Parse(atom.Name)
		return members[base]
	}

	for _, rel := range scc {
		updateRelTable := &stmts{}
		clearRelTable := &stmts{}

		base := p.relationName(rel, mangle.Base)
		delta := p.relationName(rel, mangle.Delta)
		relNew := p.relationName(rel, mangle.New)

		// classic update schedule for the relaxed semi-naive evaluation
		updateRelTable.add(&ir.Sequence{Stmts: []ir.Statement{
			&ir.Merge{Target: base, Source: relNew},
			&ir.Swap{A: delta, B: relNew},
			&ir.Clear{Relation: relNew},
		}})

		if p.conf.Incremental {
			clearRelTable.add(&ir.Sequence{Stmts: []ir.Statement{
				&ir.Clear{Relation: delta},
				&ir.Clear{Relation: p.relationName(rel, mangle.DeltaDiffApplied)},
				&ir.Clear{Relation: p.relationName(rel, mangle.TempDeltaDiffApplied)},
				&ir.Clear{Relation: p.relationName(rel, mangle.DeltaDiffMinusApplied)},
				&ir.Clear{Relation: p.relationName(rel, mangle.DeltaDiffMinusCount)},
				&ir.Clear{Relation: p.relationName(rel, mangle.DeltaDiffPlusCount)},
			}})

			updateRelTable.add(&ir.Sequence{Stmts: []ir.Statement{
				// re-pivot the delta on the previous epoch's index
				&ir.PositiveMerge{Target: delta, Source: p.relationName(rel, mangle.PreviousIndexed)},

				// fold the iteration's discoveries into the epoch diffs
				&ir.Merge{Target: p.relationName(rel, mangle.DiffMinus), Source: p.relationName(rel, mangle.NewDiffMinus)},
				&ir.Merge{Target: p.relationName(rel, mangle.DiffPlus), Source: p.relationName(rel, mangle.NewDiffPlus)},
				&ir.Merge{Target: p.relationName(rel, mangle.DiffMinusApplied), Source: p.relationName(rel, mangle.NewDiffMinus)},
				&ir.Merge{Target: p.relationName(rel, mangle.DiffPlusApplied), Source: p.relationName(rel, mangle.NewDiffPlus)},
				&ir.Merge{Target: p.relationName(rel, mangle.DiffApplied), Source: p.relationName(rel, mangle.NewDiffMinus)},
				&ir.Merge{Target: p.relationName(rel, mangle.DiffApplied), Source: p.relationName(rel, mangle.NewDiffPlus)},

				// count variants track the diffs restricted to stable rows
				&ir.Merge{Target: p.relationName(rel, mangle.DiffPlusCount), Source: p.relationName(rel, mangle.NewDiffPlus)},
				&ir.SemiMerge{Target: p.relationName(rel, mangle.DiffPlusCount), Source: delta, Reference: p.relationName(rel, mangle.NewDiffPlus)},
				&ir.Merge{Target: p.relationName(rel, mangle.DiffPlusCount), Source: p.relationName(rel, mangle.NewDiffMinus)},
				&ir.Merge{Target: p.relationName(rel, mangle.DiffMinusCount), Source: p.relationName(rel, mangle.NewDiffMinus)},
				&ir.SemiMerge{Target: p.relationName(rel, mangle.DiffMinusCount), Source: delta, Reference: p.relationName(rel, mangle.NewDiffMinus)},
				&ir.Merge{Target: p.relationName(rel, mangle.DiffMinusCount), Source: p.relationName(rel, mangle.NewDiffPlus)},

				// seed the next iteration's delta variants
				&ir.SemiMerge{Target: p.relationName(rel, mangle.DeltaDiffApplied), Source: delta, Reference: p.relationName(rel, mangle.DiffApplied)},
				&ir.Merge{Target: p.relationName(rel, mangle.DeltaDiffApplied), Source: p.relationName(rel, mangle.NewDiffMinus)},
				&ir.Merge{Target: p.relationName(rel, mangle.DeltaDiffApplied), Source: p.relationName(rel, mangle.NewDiffPlus)},
				&ir.Merge{Target: p.relationName(rel, mangle.DeltaDiffMinusApplied), Source: delta},
				&ir.Merge{Target: p.relationName(rel, mangle.DeltaDiffMinusApplied), Source: p.relationName(rel, mangle.NewDiffMinus)},
				&ir.Merge{Target: p.relationName(rel, mangle.DeltaDiffPlusCount), Source: p.relationName(rel, mangle.NewDiffPlus)},
				&ir.SemiMerge{Target: p.relationName(rel, mangle.DeltaDiffPlusCount), Source: p.relationName(rel, mangle.DiffMinusApplied)},
				&ir.Merge{Target: p.relationName(rel, mangle.DeltaDiffMinusCount), Source: p.relationName(rel, mangle.NewDiffMinus)},
				&ir.SemiMerge{Target: p.relationName(rel, mangle.DeltaDiffMinusCount), Source: p.relationName(rel, mangle.DiffPlusApplied)},

				&ir.Clear{Relation: p.relationName(rel, mangle.NewDiffMinus)},
				&ir.Clear{Relation: p.relationName(rel, mangle.NewDiffPlus)},
			}})
		}

		var updateStmt ir.Statement = updateRelTable.seqOrNil()
		if p.conf.HasProfile() {
			updateStmt = &ir.LogRelationTimer{
				Body:     updateStmt,
				Message:  cRecursiveRelation(rel),
				Relation: relNew,
			}
		}
		updateTable.add(updateStmt)
		clearTable.add(clearRelTable.seqOrNil())

		postamble.add(&ir.Sequence{Stmts: []ir.Statement{
			&ir.Drop{Relation: delta},
			&ir.Drop{Relation: relNew},
		}})
		if p.conf.Incremental {
			postamble.add(&ir.Sequence{Stmts: []ir.Statement{
				&ir.Drop{Relation: p.relationName(rel, mangle.PreviousIndexed)},
				&ir.Drop{Relation: p.relationName(rel, mangle.TempDeltaDiffApplied)},
				&ir.Drop{Relation: p.relationName(rel, mangle.DeltaDiffApplied)},
				&ir.Drop{Relation: p.relationName(rel, mangle.DeltaDiffMinusApplied)},
				&ir.Drop{Relation: p.relationName(rel, mangle.DeltaDiffPlusCount)},
				&ir.Drop{Relation: p.relationName(rel, mangle.DeltaDiffMinusCount)},
				&ir.Drop{Relation: p.relationName(rel, mangle.NewDiffPlus)},
				&ir.Drop{Relation: p.relationName(rel, mangle.NewDiffMinus)},
			}})
		}

		// non-recursive rules seed the fixpoint
		nonRecursive, err := p.translateNonRecursiveRelation(rel)
		if err != nil {
			return nil, err
		}
		preamble.add(nonRecursive)

		if p.conf.Incremental {
			// snapshot the previous epoch into a fully indexed relation and
			// seed the stable variants from the epoch diffs
			preamble.add(&ir.Merge{Target: p.relationName(rel, mangle.PreviousIndexed), Source: base})
			preamble.add(&ir.PositiveMerge{Target: delta, Source: p.relationName(rel, mangle.PreviousIndexed)})

			preamble.add(&ir.Merge{Target: p.relationName(rel, mangle.DeltaDiffMinusApplied), Source: delta})
			preamble.add(&ir.Merge{Target: p.relationName(rel, mangle.DeltaDiffMinusApplied), Source: p.relationName(rel, mangle.DiffMinus)})

			preamble.add(&ir.Merge{Target: p.relationName(rel, mangle.DiffApplied), Source: base})
			preamble.add(&ir.Merge{Target: p.relationName(rel, mangle.DiffApplied), Source: p.relationName(rel, mangle.DiffMinus)})
			preamble.add(&ir.Merge{Target: p.relationName(rel, mangle.DiffApplied), Source: p.relationName(rel, mangle.DiffPlus)})

			preamble.add(&ir.Merge{Target: p.relationName(rel, mangle.DiffMinusApplied), Source: base})
			preamble.add(&ir.Merge{Target: p.relationName(rel, mangle.DiffMinusApplied), Source: p.relationName(rel, mangle.DiffMinus)})

			preamble.add(&ir.Merge{Target: p.relationName(rel, mangle.DiffPlusApplied), Source: base})
			preamble.add(&ir.Merge{Target: p.relationName(rel, mangle.DiffPlusApplied), Source: p.relationName(rel, mangle.DiffPlus)})

			preamble.add(&ir.Merge{Target: p.relationName(rel, mangle.DeltaDiffApplied), Source: p.relationName(rel, mangle.DiffApplied)})

			preamble.add(&ir.Merge{Target: p.relationName(rel, mangle.DiffPlusCount), Source: p.relationName(rel, mangle.DiffPlus)})
			preamble.add(&ir.SemiMerge{Target: p.relationName(rel, mangle.DiffPlusCount), Source: p.relationName(rel, mangle.DiffMinusApplied)})

			preamble.add(&ir.Merge{Target: p.relationName(rel, mangle.DiffMinusCount), Source: p.relationName(rel, mangle.DiffMinus)})
			preamble.add(&ir.SemiMerge{Target: p.relationName(rel, mangle.DiffMinusCount), Source: p.relationName(rel, mangle.DiffPlusApplied)})

			preamble.add(&ir.Merge{Target: p.relationName(rel, mangle.DeltaDiffPlusCount), Source: p.relationName(rel, mangle.DiffPlus)})
			preamble.add(&ir.SemiMerge{Target: p.relationName(rel, mangle.DeltaDiffPlusCount), Source: p.relationName(rel, mangle.DiffMinusApplied)})

			preamble.add(&ir.Merge{Target: p.relationName(rel, mangle.DeltaDiffMinusCount), Source: p.relationName(rel, mangle.DiffMinus)})
			preamble.add(&ir.SemiMerge{Target: p.relationName(rel, mangle.DeltaDiffMinusCount), Source: p.relationName(rel, mangle.DiffPlusApplied)})
		}

		preamble.add(&ir.Merge{Target: delta, Source: base})
	}

	// singleton relation carrying the maximum stored iteration of the SCC
	maxIterRelation := fmt.Sprintf("scc_%d_@max_iter", indexOfScc)
	if p.conf.Incremental {
		p.prog.AddRelation(&ir.Relation{
			Name:       maxIterRelation,
			Arity:      1,
			Attributes: []string{"max_iter"},
			Types:      []string{"i"},
		})
		preamble.add(&ir.Create{Relation: maxIterRelation})
		preamble.add(&ir.Query{Op: p.maxIterAggregate(scc, maxIterRelation)})
	}

	// loop body: one parallel child per member relation
	for _, rel := range scc {
		loopRelSeq := &stmts{}

		for _, clause := range rel.Clauses {
			if !p.recursive.Recursive(clause) {
				continue
			}
			if p.conf.Incremental {
				if err := p.incrementalRecursiveRules(rel, clause, inSameSCC, loopRelSeq); err != nil {
					return nil, err
				}
			} else {
				if err := p.classicRecursiveRules(rel, clause, inSameSCC, loopRelSeq); err != nil {
					return nil, err
				}
			}
		}

		if loopRelSeq.empty() {
			continue
		}

		var relStmt ir.Statement = loopRelSeq.seqOrNil()
		if p.conf.HasProfile() {
			relStmt = &ir.LogRelationTimer{
				Body:     relStmt,
				Message:  tRecursiveRelation(rel),
				Relation: p.relationName(rel, mangle.New),
			}
		}
		loop.Stmts = append(loop.Stmts, relStmt)
	}

	// exit condition: quiescence of the per-iteration discoveries, plus the
	// stored-iteration gate under incremental evaluation
	var exitCond ir.Condition
	and := func(next ir.Condition) {
		if exitCond == nil {
			exitCond = next
		} else {
			exitCond = &ir.Conjunction{LHS: exitCond, RHS: next}
		}
	}
	for _, rel := range scc {
		if p.conf.Incremental {
			and(&ir.EmptinessCheck{Relation: p.relationName(rel, mangle.NewDiffPlus)})
			and(&ir.EmptinessCheck{Relation: p.relationName(rel, mangle.NewDiffMinus)})
		} else {
			and(&ir.EmptinessCheck{Relation: p.relationName(rel, mangle.New)})
		}
	}
	if p.conf.Incremental {
		exitName := fmt.Sprintf("scc_%d_exit", indexOfScc)
		p.prog.AddSubroutine(exitName, p.makeIncrementalExitSubroutine(maxIterRelation))
		and(&ir.SubroutineCondition{Name: exitName, Args: []ir.Expression{&ir.IterationNumber{}}})
	}

	res := &stmts{}
	res.add(preamble.seqOrNil())
	if len(loop.Stmts) > 0 && exitCond != nil {
		body := []ir.Statement{loop}
		if clearStmt := clearTable.seqOrNil(); clearStmt != nil {
			body = append(body, clearStmt)
		}
		body = append(body, &ir.Exit{Cond: exitCond})
		if updateStmt := updateTable.seqOrNil(); updateStmt != nil {
			body = append(body, updateStmt)
		}
		res.add(&ir.Loop{Body: body})
	}
	res.add(postamble.seqOrNil())
	return res.seqOrNil(), nil
}

// maxIterAggregate builds the nested aggregate populating the singleton
// max-iteration relation: an outer max over one per-member max of the
// iteration column.
func (p *Planner) maxIterAggregate(scc []*ast.Relation, maxIterRelation string) ir.Operation {
	values := make([]ir.Expression, len(scc))
	for ident := range scc {
		values[ident] = &ir.TupleElement{Level: ident, Column: 0}
	}
	var maxExpr ir.Expression
	if len(values) == 1 {
		maxExpr = values[0]
	} else {
		maxExpr = &ir.IntrinsicOp{Op: ast.FunctorMax.String(), Args: values}
	}

	var op ir.Operation = &ir.Project{
		Relation: maxIterRelation,
		Values:   []ir.Expression{maxExpr},
	}
	for ident, rel := range scc {
		op = &ir.Aggregate{
			Body:     op,
			Fn:       ir.AggregateMax,
			Relation: p.relationName(rel, mangle.Base),
			Expr:     &ir.TupleElement{Level: ident, Column: rel.Arity() - 3},
			Cond:     &ir.True{},
			Level:    ident,
		}
	}
	return op
}

// classicRecursiveRules emits the semi-naive delta versions of one
// recursive clause outside incremental mode.
func (p *Planner) classicRecursiveRules(rel *ast.Relation, clause *ast.Clause, inSameSCC func(*ast.Atom) bool, out *stmts) error {
	version := 0
	atoms := clause.Atoms()

	for j := range atoms {
		if !inSameSCC(atoms[j]) {
			continue
		}

		r1 := clause.Clone()
		r1.Head.Name = p.relationName(rel, mangle.New)
		r1.Atoms()[j].Name = p.atomVariantName(atoms[j], mangle.Delta)

		if p.conf.HasProvenance() {
			r1.AddToBody(&ast.SubsumptionNegation{
				Atom:              clause.Head.Clone(),
				SubsumptionFields: 1 + rel.HeightParams,
			})
		} else if r1.Head.Arity() > 0 {
			r1.AddToBody(&ast.Negation{Atom: clause.Head.Clone()})
		}

		ast.NameUnnamedVariables(r1)

		// later same-component atoms must not be in the delta, otherwise the
		// same join is derived twice
		r1Atoms := r1.Atoms()
		for k := j + 1; k < len(atoms); k++ {
			if !inSameSCC(atoms[k]) {
				continue
			}
			deltaAtom := r1Atoms[k].Clone()
			deltaAtom.Name = p.atomVariantName(atoms[k], mangle.Delta)
			r1.AddToBody(&ast.Negation{Atom: deltaAtom})
		}

		rule, err := newClauseTranslator(p).translateClause(r1, clause, version)
		if err != nil {
			return err
		}
		if p.conf.HasProfile() {
			rule = &ir.LogRelationTimer{
				Body:     rule,
				Message:  tRecursiveRule(rel.Name, version, clause),
				Relation: p.relationName(rel, mangle.New),
			}
		}
		out.add(&ir.DebugInfo{Body: rule, Message: debugText(clause)})
		version++
	}
	return nil
}

// insertionDeltaVariant and deletionDeltaVariant name the delta variant a
// loop clause's atom takes, given its position relative to the update pivot.
func insertionDeltaVariant(j, i int) mangle.Variant {
	if j == i {
		return mangle.DeltaDiffPlusCount
	}
	return mangle.DeltaDiffApplied
}

func deletionDeltaVariant(j, i int) mangle.Variant {
	switch {
	case j < i:
		return mangle.Delta
	case j == i:
		return mangle.DeltaDiffMinusCount
	}
	return mangle.DeltaDiffMinusApplied
}

// incrementalRecursiveRules expands one annotated recursive clause into its
// delta-pivot loop rules for every update category.
func (p *Planner) incrementalRecursiveRules(rel *ast.Relation, clause *ast.Clause, inSameSCC func(*ast.Atom) bool, out *stmts) error {
	category := p.classifyUpdateClause(rel, clause)
	if category == categorySkip {
		return nil
	}

	ast.NameUnnamedVariables(clause)

	atoms := clause.Atoms()
	negations := clause.Negations()
	version := 0

	emit := func(r1 *ast.Clause) error {
		p.logger.Debug("recursive update rule: %v", r1)
		rule, err := newClauseTranslator(p).translateClause(r1, r1, version)
		if err != nil {
			return err
		}
		if p.conf.HasProfile() {
			rule = &ir.LogRelationTimer{
				Body:     rule,
				Message:  tRecursiveRule(rel.Name, version, r1),
				Relation: p.relationName(rel, mangle.New),
			}
		}
		out.add(&ir.DebugInfo{Body: rule, Message: debugText(r1)})
		version++
		return nil
	}

	// addIterationBounds constrains atoms after the pivot to earlier
	// iterations, simulating their delta without materializing it.
	addIterationBounds := func(r1 *ast.Clause, j int) {
		r1Atoms := r1.Atoms()
		for k := j + 1; k < len(atoms); k++ {
			if !inSameSCC(atoms[k]) {
				continue
			}
			ar := r1Atoms[k].Arity()
			r1.AddToBody(&ast.BinaryConstraint{
				Op:  ast.ConstraintLT,
				LHS: r1Atoms[k].Arg(ar - 3).Clone(),
				RHS: &ast.IntrinsicFunctor{Op: ast.FunctorSub, Args: []ast.Argument{
					&ast.IterationNumber{},
					&ast.NumberConstant{Value: 1},
				}},
			})
		}
	}

	switch category {
	case categoryReinsertion:
		rdiff := p.reinsertionClause(rel, clause, atoms, negations)
		for j := range atoms {
			if !inSameSCC(atoms[j]) {
				continue
			}
			r1 := rdiff.Clone()
			r1.Atoms()[j].Name = p.atomVariantName(atoms[j], mangle.DeltaDiffApplied)
			addIterationBounds(r1, j)

			// evaluate the deleted-tuple probe first
			order := make([]int, 0, len(atoms)+1)
			order = append(order, len(atoms))
			for k := range atoms {
				order = append(order, k)
			}
			r1.ReorderAtoms(order)

			if err := emit(r1); err != nil {
				return err
			}
		}

	case categoryInsertion:
		for i := range atoms {
			rdiff := p.insertionPivotClause(rel, clause, atoms, negations, i, true)
			for j := range atoms {
				if !inSameSCC(atoms[j]) {
					continue
				}
				r1 := rdiff.Clone()
				r1.Atoms()[j].Name = p.atomVariantName(atoms[j], insertionDeltaVariant(j, i))
				addIterationBounds(r1, j)
				if err := emit(r1); err != nil {
					return err
				}
			}
		}
		for i := range negations {
			rdiff := p.insertionNegationMirrorClause(rel, clause, atoms, negations, i, true)
			for j := range atoms {
				if !inSameSCC(atoms[j]) {
					continue
				}
				r1 := rdiff.Clone()
				r1.Atoms()[j].Name = p.atomVariantName(atoms[j], mangle.DeltaDiffApplied)
				addIterationBounds(r1, j)
				if err := emit(r1); err != nil {
					return err
				}
			}
		}

	case categoryDeletion:
		for i := range atoms {
			rdiff := p.deletionPivotClause(rel, clause, atoms, negations, i, true)
			for j := range atoms {
				if !inSameSCC(atoms[j]) {
					continue
				}
				r1 := rdiff.Clone()
				r1.Atoms()[j].Name = p.atomVariantName(atoms[j], deletionDeltaVariant(j, i))
				addIterationBounds(r1, j)
				if err := emit(r1); err != nil {
					return err
				}
			}
		}
		for i := range negations {
			rdiff := p.deletionNegationMirrorClause(rel, clause, negations, i, true)
			for j := range atoms {
				if !inSameSCC(atoms[j]) {
					continue
				}
				r1 := rdiff.Clone()
				r1.Atoms()[j].Name = p.atomVariantName(atoms[j], mangle.Delta)
				addIterationBounds(r1, j)
				if err := emit(r1); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// reinsertionClause builds the re-derivation rule: the head was just
// deleted but an alternative body derivation from the previous epoch still
// holds, so the tuple is re-asserted into new_diff_plus.
func (p *Planner) reinsertionClause(rel *ast.Relation, clause *ast.Clause, atoms []*ast.Atom, negations []*ast.Negation) *ast.Clause {
	rdiff := clause.Clone()
	rdiff.Head.Name = p.relationName(rel, mangle.NewDiffPlus)

	rdiffAtoms := rdiff.Atoms()
	for k := range atoms {
		rdiffAtoms[k].Name = p.atomVariantName(atoms[k], mangle.DiffApplied)
	}

	// every body tuple must have held in the previous epoch
	for i := range atoms {
		curAtom := atoms[i].Clone()
		setCountArgs(curAtom, one(), &ast.UnnamedVariable{})
		rdiff.AddToBody(&ast.ExistenceCheck{Atom: curAtom})
	}

	diffAppliedHead := clause.Head.Clone()
	diffAppliedHead.Name = p.relationName(rel, mangle.DiffApplied)
	rdiff.AddToBody(&ast.SubsumptionNegation{Atom: diffAppliedHead, SubsumptionFields: 1})

	// fire only for heads that were just deleted
	deletedTuple := clause.Head.Clone()
	deletedTuple.Name = p.relationName(rel, mangle.DiffMinusCount)
	ar := deletedTuple.Arity()
	deletedTuple.SetArg(ar-1, &ast.Variable{Name: "@deleted_count"})
	deletedTuple.SetArg(ar-2, &ast.UnnamedVariable{})
	deletedTuple.SetArg(ar-3, &ast.UnnamedVariable{})
	rdiff.AddToBody(deletedTuple)
	rdiff.AddToBody(&ast.BinaryConstraint{
		Op:  ast.ConstraintLE,
		LHS: &ast.Variable{Name: "@deleted_count"},
		RHS: zero(),
	})

	// negations hold against the applied relation, and must not be newly
	// deleted tuples (those are handled by the insertion rules)
	var notDeletedChecks []ast.Literal
	for _, neg := range negations {
		negatedAtom := neg.Atom.Clone()
		negatedAtom.Name = p.atomVariantName(neg.Atom, mangle.DiffApplied)
		rdiff.AddToBody(&ast.PositiveNegation{Atom: negatedAtom})

		notDeleted := neg.Atom.Clone()
		notDeleted.Name = p.atomVariantName(neg.Atom, mangle.DiffMinusCount)
		nar := notDeleted.Arity()
		notDeleted.SetArg(nar-1, zero())
		notDeleted.SetArg(nar-2, &ast.UnnamedVariable{})
		notDeleted.SetArg(nar-3, &ast.UnnamedVariable{})
		notDeletedChecks = append(notDeletedChecks, &ast.Negation{Atom: notDeleted})
	}
	rdiff.ClearNegations()
	for _, check := range notDeletedChecks {
		rdiff.AddToBody(check)
	}

	return rdiff
}

// makeIncrementalExitSubroutine builds scc_<i>_exit: scanning the
// max-iteration singleton, it returns false as soon as a stored iteration
// reaches the current one, true otherwise.
func (p *Planner) makeIncrementalExitSubroutine(maxIterRelation string) ir.Statement {
	return &ir.Sequence{Stmts: []ir.Statement{
		&ir.Query{Op: &ir.Scan{
			Relation: maxIterRelation,
			Level:    0,
			Body: &ir.Filter{
				Cond: &ir.Constraint{
					Op:  ast.ConstraintGE.String(),
					LHS: &ir.TupleElement{Level: 0, Column: 0},
					RHS: &ir.SubroutineArgument{Number: 0},
				},
				Body: &ir.SubroutineReturn{Values: []ir.Expression{&ir.Number{Value: 0}}, Immediate: true},
			},
		}},
		&ir.Query{Op: &ir.SubroutineReturn{Values: []ir.Expression{&ir.Number{Value: 1}}}},
	}}
}

// makeIncrementalCleanupSubroutine builds incremental_cleanup: fold the
// epoch diffs into the base relations, clear every diff variant, and
// overwrite the count columns of surviving rows with the settled sentinel
// (-1, -1) so the next epoch starts from a clean slate.
func (p *Planner) makeIncrementalCleanupSubroutine() ir.Statement {
	cleanup := &stmts{}
	for _, rel := range p.program.Relations {
		base := p.relationName(rel, mangle.Base)

		cleanup.add(&ir.Merge{Target: base, Source: p.relationName(rel, mangle.DiffMinus)})
		cleanup.add(&ir.Merge{Target: base, Source: p.relationName(rel, mangle.DiffPlus)})

		cleanup.add(&ir.Clear{Relation: p.relationName(rel, mangle.DiffPlus)})
		cleanup.add(&ir.Clear{Relation: p.relationName(rel, mangle.DiffMinus)})
		cleanup.add(&ir.Clear{Relation: p.relationName(rel, mangle.DiffPlusCount)})
		cleanup.add(&ir.Clear{Relation: p.relationName(rel, mangle.DiffMinusCount)})
		cleanup.add(&ir.Clear{Relation: p.relationName(rel, mangle.DiffPlusApplied)})
		cleanup.add(&ir.Clear{Relation: p.relationName(rel, mangle.DiffMinusApplied)})
		cleanup.add(&ir.Clear{Relation: p.relationName(rel, mangle.DiffApplied)})

		values := make([]ir.Expression, 0, rel.Arity())
		for i := 0; i < rel.Arity()-2; i++ {
			values = append(values, &ir.TupleElement{Level: 0, Column: i})
		}
		values = append(values, &ir.Number{Value: -1}, &ir.Number{Value: -1})

		cleanup.add(&ir.Query{Op: &ir.Scan{
			Relation: base,
			Level:    0,
			Body:     &ir.Project{Relation: base, Values: values},
		}})
	}
	return cleanup.seqOrNil()
}
