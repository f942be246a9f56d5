package planner

import (
	"github.com/deltalog/deltalog/ast"
	"github.com/deltalog/deltalog/internal/mangle"
	"github.com/deltalog/deltalog/ir"
)

// translateNonRecursiveRelation emits the rules of a relation outside any
// fixpoint: one translated clause per (clause, update-variant, pivot) in
// incremental mode, one per clause otherwise.
func (p *Planner) translateNonRecursiveRelation(rel *ast.Relation) (ir.Statement, error) {
	res := &stmts{}
	base := p.relationName(rel, mangle.Base)

	for _, clause := range rel.Clauses {
		if p.recursive.Recursive(clause) {
			continue
		}

		if p.conf.Incremental {
			rules, err := p.incrementalNonRecursiveRules(rel, clause)
			if err != nil {
				return nil, err
			}
			for _, rule := range rules {
				res.add(rule)
			}
			continue
		}

		rule, err := newClauseTranslator(p).translateClause(clause, clause, 0)
		if err != nil {
			return nil, err
		}
		if p.conf.HasProfile() {
			rule = &ir.LogRelationTimer{
				Body:     rule,
				Message:  tNonrecursiveRule(rel.Name, clause),
				Relation: base,
			}
		}
		res.add(&ir.DebugInfo{Body: rule, Message: debugText(clause)})
	}

	if p.conf.HasProfile() {
		if !res.empty() {
			return &ir.LogRelationTimer{
				Body:     res.seqOrNil(),
				Message:  tNonrecursiveRelation(rel),
				Relation: base,
			}, nil
		}
		res.add(&ir.LogSize{Relation: base, Message: nNonrecursiveRelation(rel)})
	}

	return res.seqOrNil(), nil
}

// updateCategory classifies an annotated clause by the (prev, current)
// count pair on its head.
type updateCategory int

const (
	categorySkip updateCategory = iota
	categoryReinsertion
	categoryInsertion
	categoryDeletion
)

// classifyUpdateClause reads the count constants off an annotated head.
// Clauses missing the pair are logged and skipped.
func (p *Planner) classifyUpdateClause(rel *ast.Relation, clause *ast.Clause) updateCategory {
	arity := rel.Arity()
	prev, okPrev := clause.Head.Arg(arity - 2).(*ast.NumberConstant)
	current, okCurrent := clause.Head.Arg(arity - 1).(*ast.NumberConstant)
	if !okPrev || !okCurrent {
		p.logger.Warn("count annotations are not initialized: %v", clause)
		return categorySkip
	}
	switch {
	case prev.Value == 1 && current.Value == 1:
		return categoryReinsertion
	case current.Value == 1:
		return categoryInsertion
	case current.Value == -1:
		return categoryDeletion
	}
	return categorySkip
}

// incrementalNonRecursiveRules expands one annotated clause into its
// non-recursive update rules. Re-insertion is deferred to the SCC loop and
// produces nothing here.
func (p *Planner) incrementalNonRecursiveRules(rel *ast.Relation, clause *ast.Clause) ([]ir.Statement, error) {
	category := p.classifyUpdateClause(rel, clause)
	if category == categorySkip || category == categoryReinsertion {
		return nil, nil
	}

	ast.NameUnnamedVariables(clause)

	atoms := clause.Atoms()
	negations := clause.Negations()

	var clauses []*ast.Clause
	switch category {
	case categoryInsertion:
		for i := range atoms {
			clauses = append(clauses, p.insertionPivotClause(rel, clause, atoms, negations, i, false))
		}
		for i := range negations {
			clauses = append(clauses, p.insertionNegationMirrorClause(rel, clause, atoms, negations, i, false))
		}
	case categoryDeletion:
		for i := range atoms {
			clauses = append(clauses, p.deletionPivotClause(rel, clause, atoms, negations, i, false))
		}
		for i := range negations {
			clauses = append(clauses, p.deletionNegationMirrorClause(rel, clause, negations, i, false))
		}
	}

	var rules []ir.Statement
	for _, cl := range clauses {
		p.logger.Debug("non-recursive update rule: %v", cl)
		rule, err := newClauseTranslator(p).translateClause(cl, cl, 0)
		if err != nil {
			return nil, err
		}
		if p.conf.HasProfile() {
			rule = &ir.LogRelationTimer{
				Body:     rule,
				Message:  tNonrecursiveRule(rel.Name, cl),
				Relation: p.relationName(rel, mangle.Base),
			}
		}
		rules = append(rules, &ir.DebugInfo{Body: rule, Message: debugText(cl)})
	}
	return rules, nil
}

// insertionPivotClause builds the insertion rule pivoting on body atom i:
//
//	diff_plus_R :- diff_applied_R_1, ..., diff_plus_count_R_i,
//	               diff_applied_R_i+1, ..., diff_applied_R_n.
//
// Guards force the pivot tuple to be newly inserted and earlier atoms to
// not also satisfy the pivot condition, preventing double insertions. When
// loop is set the head is redirected into new_diff_plus and a subsumption
// negation against the applied head suppresses re-discovered tuples.
func (p *Planner) insertionPivotClause(rel *ast.Relation, clause *ast.Clause, atoms []*ast.Atom, negations []*ast.Negation, i int, loop bool) *ast.Clause {
	cl := clause.Clone()
	clAtoms := cl.Atoms()
	cl.Head.Name = p.relationName(rel, mangle.DiffPlus)

	// the pivot tuple must not have existed in the previous epoch
	noPrevious := atoms[i].Clone()
	setCountArgs(noPrevious, one(), zero())
	cl.AddToBody(&ast.PositiveNegation{Atom: noPrevious})

	clAtoms[i].Name = p.atomVariantName(atoms[i], mangle.DiffPlusCount)

	pivotArity := atoms[i].Arity()
	cl.AddToBody(&ast.BinaryConstraint{
		Op:  ast.ConstraintLE,
		LHS: atoms[i].Arg(pivotArity - 2).Clone(),
		RHS: zero(),
	})
	cl.AddToBody(&ast.BinaryConstraint{
		Op:  ast.ConstraintGT,
		LHS: atoms[i].Arg(pivotArity - 1).Clone(),
		RHS: zero(),
	})

	for j := 0; j < i; j++ {
		clAtoms[j].Name = p.atomVariantName(atoms[j], mangle.DiffApplied)

		// either the j-th tuple is not itself newly inserted, or it already
		// existed in the previous epoch
		curAtom := atoms[j].Clone()
		curAtom.Name = p.atomVariantName(atoms[j], mangle.DiffPlusCount)
		setCountArgs(curAtom, &ast.UnnamedVariable{}, zero())

		noPrevious := atoms[j].Clone()
		setCountArgs(noPrevious, one(), zero())

		cl.AddToBody(&ast.DisjunctionConstraint{
			LHS: &ast.PositiveNegation{Atom: curAtom},
			RHS: &ast.ExistenceCheck{Atom: noPrevious},
		})
	}

	for j := i + 1; j < len(atoms); j++ {
		clAtoms[j].Name = p.atomVariantName(atoms[j], mangle.DiffApplied)
	}

	// a negated tuple must be absent from the applied relation
	for _, neg := range negations {
		negatedAtom := neg.Atom.Clone()
		negatedAtom.Name = p.atomVariantName(neg.Atom, mangle.DiffApplied)
		cl.AddToBody(&ast.PositiveNegation{Atom: negatedAtom})
	}
	cl.ClearNegations()

	if loop {
		diffAppliedHead := clause.Head.Clone()
		diffAppliedHead.Name = p.relationName(rel, mangle.DiffApplied)
		cl.Head.Name = p.relationName(rel, mangle.NewDiffPlus)
		cl.AddToBody(&ast.SubsumptionNegation{Atom: diffAppliedHead, SubsumptionFields: 1})
	}

	return cl
}

// insertionNegationMirrorClause builds the insertion rule pivoting on
// negation i being newly false: the negated tuple shows up in
// diff_minus_count, so the rule can fire against the applied base.
func (p *Planner) insertionNegationMirrorClause(rel *ast.Relation, clause *ast.Clause, atoms []*ast.Atom, negations []*ast.Negation, i int, loop bool) *ast.Clause {
	cl := clause.Clone()
	clAtoms := cl.Atoms()
	cl.Head.Name = p.relationName(rel, mangle.DiffPlus)

	// the pivot: the negated tuple was just deleted
	negatedAtom := negations[i].Atom.Clone()
	negatedAtom.Name = p.atomVariantName(negations[i].Atom, mangle.DiffMinusCount)
	ar := negatedAtom.Arity()
	negatedAtom.SetArg(ar-1, zero())
	negatedAtom.SetArg(ar-3, &ast.UnnamedVariable{})
	cl.AddToBody(negatedAtom)

	noPrevious := negations[i].Atom.Clone()
	noPrevious.Name = p.atomVariantName(negations[i].Atom, mangle.DiffApplied)
	setCountArgs(noPrevious, one(), zero())
	cl.AddToBody(&ast.PositiveNegation{Atom: noPrevious})

	for j := 0; j < i; j++ {
		curAtom := negations[j].Atom.Clone()
		curAtom.Name = p.atomVariantName(negations[j].Atom, mangle.DiffMinusCount)
		setCountArgs(curAtom, &ast.UnnamedVariable{}, minusOne())

		noPrevious := negations[j].Atom.Clone()
		noPrevious.Name = p.atomVariantName(negations[j].Atom, mangle.DiffApplied)
		setCountArgs(noPrevious, one(), zero())

		cl.AddToBody(&ast.DisjunctionConstraint{
			LHS: &ast.PositiveNegation{Atom: curAtom},
			RHS: &ast.ExistenceCheck{Atom: noPrevious},
		})
	}

	for _, neg := range negations {
		negated := neg.Atom.Clone()
		negated.Name = p.atomVariantName(neg.Atom, mangle.DiffApplied)
		cl.AddToBody(&ast.PositiveNegation{Atom: negated})
	}

	// positive atoms join the applied base
	for j := range atoms {
		clAtoms[j].Name = p.atomVariantName(atoms[j], mangle.DiffApplied)
	}

	cl.ClearNegations()

	if loop {
		diffAppliedHead := clause.Head.Clone()
		diffAppliedHead.Name = p.relationName(rel, mangle.DiffApplied)
		cl.Head.Name = p.relationName(rel, mangle.NewDiffPlus)
		cl.AddToBody(&ast.SubsumptionNegation{Atom: diffAppliedHead, SubsumptionFields: 1})
	}

	return cl
}

// deletionPivotClause builds the deletion rule pivoting on body atom i
// losing support, symmetric to insertionPivotClause.
func (p *Planner) deletionPivotClause(rel *ast.Relation, clause *ast.Clause, atoms []*ast.Atom, negations []*ast.Negation, i int, loop bool) *ast.Clause {
	cl := clause.Clone()
	clAtoms := cl.Atoms()
	cl.Head.Name = p.relationName(rel, mangle.DiffMinus)

	noPrevious := atoms[i].Clone()
	noPrevious.Name = p.atomVariantName(atoms[i], mangle.DiffApplied)
	setCountArgs(noPrevious, one(), zero())
	cl.AddToBody(&ast.PositiveNegation{Atom: noPrevious})

	clAtoms[i].Name = p.atomVariantName(atoms[i], mangle.DiffMinusCount)

	pivotArity := atoms[i].Arity()
	cl.AddToBody(&ast.BinaryConstraint{
		Op:  ast.ConstraintGT,
		LHS: atoms[i].Arg(pivotArity - 2).Clone(),
		RHS: zero(),
	})
	cl.AddToBody(&ast.BinaryConstraint{
		Op:  ast.ConstraintLE,
		LHS: atoms[i].Arg(pivotArity - 1).Clone(),
		RHS: zero(),
	})

	for j := 0; j < i; j++ {
		curAtom := atoms[j].Clone()
		curAtom.Name = p.atomVariantName(atoms[j], mangle.DiffMinusCount)
		setCountArgs(curAtom, &ast.UnnamedVariable{}, minusOne())

		noPrevious := atoms[j].Clone()
		noPrevious.Name = p.atomVariantName(atoms[j], mangle.DiffApplied)
		setCountArgs(noPrevious, one(), zero())

		cl.AddToBody(&ast.DisjunctionConstraint{
			LHS: &ast.PositiveNegation{Atom: curAtom},
			RHS: &ast.ExistenceCheck{Atom: noPrevious},
		})
	}

	for j := i + 1; j < len(atoms); j++ {
		clAtoms[j].Name = p.atomVariantName(atoms[j], mangle.DiffMinusApplied)
	}

	for _, neg := range negations {
		cl.AddToBody(&ast.PositiveNegation{Atom: neg.Atom.Clone()})
	}
	cl.ClearNegations()

	if loop {
		diffAppliedHead := clause.Head.Clone()
		diffAppliedHead.Name = p.relationName(rel, mangle.DiffApplied)
		cl.Head.Name = p.relationName(rel, mangle.NewDiffMinus)
		cl.AddToBody(&ast.SubsumptionNegation{Atom: diffAppliedHead, SubsumptionFields: 1})
	}

	return cl
}

// deletionNegationMirrorClause builds the deletion rule pivoting on
// negation i becoming true: the negated tuple shows up in diff_plus_count.
// Positive atoms stay on the base relation.
func (p *Planner) deletionNegationMirrorClause(rel *ast.Relation, clause *ast.Clause, negations []*ast.Negation, i int, loop bool) *ast.Clause {
	cl := clause.Clone()
	cl.Head.Name = p.relationName(rel, mangle.DiffMinus)

	negatedAtom := negations[i].Atom.Clone()
	negatedAtom.Name = p.atomVariantName(negations[i].Atom, mangle.DiffPlusCount)
	ar := negatedAtom.Arity()
	negatedAtom.SetArg(ar-1, &ast.UnnamedVariable{})
	negatedAtom.SetArg(ar-2, zero())
	negatedAtom.SetArg(ar-3, &ast.UnnamedVariable{})
	cl.AddToBody(negatedAtom)

	noPrevious := negations[i].Atom.Clone()
	setCountArgs(noPrevious, one(), zero())
	cl.AddToBody(&ast.PositiveNegation{Atom: noPrevious})

	for j := 0; j < i; j++ {
		curAtom := negations[j].Atom.Clone()
		curAtom.Name = p.atomVariantName(negations[j].Atom, mangle.DiffPlusCount)
		setCountArgs(curAtom, &ast.UnnamedVariable{}, zero())

		noPrevious := negations[j].Atom.Clone()
		setCountArgs(noPrevious, one(), zero())

		cl.AddToBody(&ast.DisjunctionConstraint{
			LHS: &ast.PositiveNegation{Atom: curAtom},
			RHS: &ast.ExistenceCheck{Atom: noPrevious},
		})
	}

	for _, neg := range negations {
		cl.AddToBody(&ast.PositiveNegation{Atom: neg.Atom.Clone()})
	}

	cl.ClearNegations()

	if loop {
		diffAppliedHead := clause.Head.Clone()
		diffAppliedHead.Name = p.relationName(rel, mangle.DiffApplied)
		cl.Head.Name = p.relationName(rel, mangle.NewDiffMinus)
		cl.AddToBody(&ast.SubsumptionNegation{Atom: diffAppliedHead, SubsumptionFields: 1})
	}

	return cl
}

// atomVariantName resolves an atom's relation and returns its variant's
// mangled name, registering the schema on first use.
func (p *Planner) atomVariantName(atom *ast.Atom, v mangle.Variant) string {
	base, _ := mangle.Parse(atom.Name)
	if rel := p.program.Relation(base); rel != nil {
		return p.relationName(rel, v)
	}
	return mangle.Name(atom.Name, v)
}

// setCountArgs overwrites the trailing (current, prev) count columns.
func setCountArgs(atom *ast.Atom, current, prev ast.Argument) {
	ar := atom.Arity()
	atom.SetArg(ar-1, current)
	atom.SetArg(ar-2, prev)
}

func zero() *ast.NumberConstant     { return &ast.NumberConstant{Value: 0} }
func one() *ast.NumberConstant      { return &ast.NumberConstant{Value: 1} }
func minusOne() *ast.NumberConstant { return &ast.NumberConstant{Value: -1} }
