package planner

import (
	"fmt"

	"github.com/deltalog/deltalog/ast"
)

// Profile log statement labels, keyed the way the downstream profiler
// expects them.

func tNonrecursiveRule(relation string, clause *ast.Clause) string {
	return fmt.Sprintf("@t-nonrecursive-rule;%s;%s;%s;", relation, clause.Loc, clause)
}

func tNonrecursiveRelation(rel *ast.Relation) string {
	return fmt.Sprintf("@t-nonrecursive-relation;%s;%s;", rel.Name, rel.Loc)
}

func nNonrecursiveRelation(rel *ast.Relation) string {
	return fmt.Sprintf("@n-nonrecursive-relation;%s;%s;", rel.Name, rel.Loc)
}

func tRecursiveRule(relation string, version int, clause *ast.Clause) string {
	return fmt.Sprintf("@t-recursive-rule;%s;%d;%s;%s;", relation, version, clause.Loc, clause)
}

func tRecursiveRelation(rel *ast.Relation) string {
	return fmt.Sprintf("@t-recursive-relation;%s;%s;", rel.Name, rel.Loc)
}

func cRecursiveRelation(rel *ast.Relation) string {
	return fmt.Sprintf("@c-recursive-relation;%s;%s;", rel.Name, rel.Loc)
}

func tRelationLoadTime(rel *ast.Relation) string {
	return fmt.Sprintf("@t-relation-load-time;%s;%s;loadtime;", rel.Name, rel.Loc)
}

func tRelationSaveTime(rel *ast.Relation) string {
	return fmt.Sprintf("@t-relation-save-time;%s;%s;savetime;", rel.Name, rel.Loc)
}

func runtimeLabel() string { return "@runtime;" }

func debugText(clause *ast.Clause) string {
	return fmt.Sprintf("%s\nin file %s", clause, clause.Loc)
}
