package planner

import (
	"github.com/deltalog/deltalog/ast"
	"github.com/deltalog/deltalog/internal/mangle"
	"github.com/deltalog/deltalog/ir"
)

// Plan walks the SCCs in topological order and builds the IR program: one
// stratum per SCC containing create/load/compute/store/drop, plus the
// subroutine table.
func (p *Planner) Plan() (*ir.Program, error) {
	p.prog = ir.NewProgram()
	res := &stmts{}

	if p.sccs.NumberOfSCCs() > 0 {
		if err := p.planStrata(res); err != nil {
			return nil, err
		}
	}

	var main ir.Statement = res.seq()
	if p.conf.HasProfile() {
		main = &ir.LogTimer{Body: main, Message: runtimeLabel()}
	}
	p.prog.Main = main

	if p.conf.Incremental {
		p.prog.AddSubroutine("incremental_cleanup", p.makeIncrementalCleanupSubroutine())
	}

	return p.prog, nil
}

func (p *Planner) planStrata(res *stmts) error {
	indexOfScc := 0

	for _, scc := range p.order.Order() {
		current := &stmts{}

		isRecursive := p.sccs.IsRecursive(scc)
		allInterns := p.sccs.InternalRelations(scc)
		internIns := p.sccs.InternalInputRelations(scc)
		internOuts := p.sccs.InternalOutputRelations(scc)
		externOutPreds := p.sccs.ExternalOutputPredecessorRelations(scc)
		externNonOutPreds := p.sccs.ExternalNonOutputPredecessorRelations(scc)
		internNonOutsWithExternSuccs := p.sccs.InternalNonOutputRelationsWithExternalSuccessors(scc)
		internExps := p.schedule.Expired(indexOfScc)

		// create all internal relations and their variants
		for _, rel := range allInterns {
			current.add(&ir.Create{Relation: p.relationName(rel, mangle.Base)})

			if p.conf.Incremental {
				for _, v := range []mangle.Variant{
					mangle.DiffMinus, mangle.DiffMinusApplied, mangle.DiffMinusCount,
					mangle.DiffPlus, mangle.DiffPlusApplied, mangle.DiffPlusCount,
					mangle.DiffApplied,
				} {
					current.add(&ir.Create{Relation: p.relationName(rel, v)})
				}
			}

			if isRecursive {
				current.add(&ir.Create{Relation: p.relationName(rel, mangle.Delta)})
				current.add(&ir.Create{Relation: p.relationName(rel, mangle.New)})
				if p.conf.Incremental {
					for _, v := range []mangle.Variant{
						mangle.PreviousIndexed,
						mangle.NewDiffPlus, mangle.NewDiffMinus,
						mangle.DeltaDiffMinusApplied, mangle.DeltaDiffMinusCount,
						mangle.DeltaDiffPlusCount, mangle.TempDeltaDiffApplied,
						mangle.DeltaDiffApplied,
					} {
						current.add(&ir.Create{Relation: p.relationName(rel, v)})
					}
				}
			}
		}

		// load inputs; incremental epochs treat all loaded facts as
		// insertions
		for _, rel := range internIns {
			p.makeLoad(current, rel, "", "")
		}
		if p.conf.HasEngine() {
			for _, rel := range externOutPreds {
				p.makeLoad(current, rel, p.conf.OutputDir, ".csv")
			}
			for _, rel := range externNonOutPreds {
				p.makeLoad(current, rel, p.conf.OutputDir, ".facts")
			}
		}

		if p.conf.Incremental && isRecursive {
			for _, rel := range internIns {
				p.appliedMergeBlock(current, rel)
			}
		}

		// compute
		var body ir.Statement
		var err error
		if isRecursive {
			body, err = p.translateRecursiveRelation(allInterns, indexOfScc)
		} else {
			body, err = p.translateNonRecursiveRelation(allInterns[0])
		}
		if err != nil {
			return err
		}
		current.add(body)

		if p.conf.Incremental && !isRecursive {
			for _, rel := range allInterns {
				p.appliedMergeBlock(current, rel)
			}
		}

		// store outputs
		if p.conf.HasEngine() {
			for _, rel := range internNonOutsWithExternSuccs {
				p.makeStore(current, rel, p.conf.OutputDir, ".facts")
			}
		}
		if !p.conf.Incremental {
			for _, rel := range internOuts {
				p.makeStore(current, rel, "", "")
			}
		}

		// drop expired relations
		if !p.conf.HasProvenance() && !p.conf.Incremental {
			if p.conf.HasEngine() {
				for _, rel := range allInterns {
					current.add(&ir.Drop{Relation: p.relationName(rel, mangle.Base)})
				}
				for _, rel := range externOutPreds {
					current.add(&ir.Drop{Relation: p.relationName(rel, mangle.Base)})
				}
				for _, rel := range externNonOutPreds {
					current.add(&ir.Drop{Relation: p.relationName(rel, mangle.Base)})
				}
			} else {
				for _, rel := range internExps {
					current.add(&ir.Drop{Relation: p.relationName(rel, mangle.Base)})
				}
			}
		}

		// the final stratum settles the epoch and stores every output
		if p.conf.Incremental && indexOfScc == p.sccs.NumberOfSCCs()-1 {
			current.add(&ir.Call{Name: "incremental_cleanup"})
			for _, outScc := range p.order.Order() {
				for _, rel := range p.sccs.InternalOutputRelations(outScc) {
					p.makeStore(current, rel, "", "")
				}
			}
		}

		if !current.empty() {
			res.add(&ir.Stratum{Index: indexOfScc, Body: current.seq()})
			indexOfScc++
		}
	}
	return nil
}

// appliedMergeBlock seeds the stable applied and count variants of one
// relation from its base relation and epoch diffs.
func (p *Planner) appliedMergeBlock(current *stmts, rel *ast.Relation) {
	base := p.relationName(rel, mangle.Base)

	current.add(&ir.Merge{Target: p.relationName(rel, mangle.DiffPlusApplied), Source: base})
	current.add(&ir.Merge{Target: p.relationName(rel, mangle.DiffPlusApplied), Source: p.relationName(rel, mangle.DiffPlus)})

	current.add(&ir.Merge{Target: p.relationName(rel, mangle.DiffMinusApplied), Source: base})
	current.add(&ir.Merge{Target: p.relationName(rel, mangle.DiffMinusApplied), Source: p.relationName(rel, mangle.DiffMinus)})

	current.add(&ir.Merge{Target: p.relationName(rel, mangle.DiffApplied), Source: base})
	current.add(&ir.Merge{Target: p.relationName(rel, mangle.DiffApplied), Source: p.relationName(rel, mangle.DiffMinus)})
	current.add(&ir.Merge{Target: p.relationName(rel, mangle.DiffApplied), Source: p.relationName(rel, mangle.DiffPlus)})

	current.add(&ir.Merge{Target: p.relationName(rel, mangle.DiffPlusCount), Source: p.relationName(rel, mangle.DiffPlus)})
	current.add(&ir.SemiMerge{Target: p.relationName(rel, mangle.DiffPlusCount), Source: p.relationName(rel, mangle.DiffMinusApplied)})

	current.add(&ir.Merge{Target: p.relationName(rel, mangle.DiffMinusCount), Source: p.relationName(rel, mangle.DiffMinus)})
	current.add(&ir.SemiMerge{Target: p.relationName(rel, mangle.DiffMinusCount), Source: p.relationName(rel, mangle.DiffPlusApplied)})
}

// makeLoad appends the load of one input relation. Incremental epochs load
// into the diff_plus variant so that the initial epoch treats every fact as
// an insertion.
func (p *Planner) makeLoad(current *stmts, rel *ast.Relation, filePath, fileExt string) {
	target := p.relationName(rel, mangle.Base)
	if p.conf.Incremental {
		target = p.relationName(rel, mangle.DiffPlus)
	}
	var stmt ir.Statement = &ir.Load{
		Relation:   target,
		Directives: p.inputDirectives(rel, filePath, fileExt),
	}
	if p.conf.HasProfile() {
		stmt = &ir.LogRelationTimer{
			Body:     stmt,
			Message:  tRelationLoadTime(rel),
			Relation: p.relationName(rel, mangle.Base),
		}
	}
	current.add(stmt)
}

// makeStore appends the store of one output relation.
func (p *Planner) makeStore(current *stmts, rel *ast.Relation, filePath, fileExt string) {
	var stmt ir.Statement = &ir.Store{
		Relation:   p.relationName(rel, mangle.Base),
		Directives: p.outputDirectives(rel, filePath, fileExt),
	}
	if p.conf.HasProfile() {
		stmt = &ir.LogRelationTimer{
			Body:     stmt,
			Message:  tRelationSaveTime(rel),
			Relation: p.relationName(rel, mangle.Base),
		}
	}
	current.add(stmt)
}
