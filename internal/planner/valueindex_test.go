package planner

import (
	"testing"

	"github.com/deltalog/deltalog/ast"
)

func TestValueIndexDefinitionPoint(t *testing.T) {
	idx := newValueIndex()

	if idx.isDefined("x") {
		t.Fatalf("expected x to be undefined")
	}

	idx.addVarReference("x", location{level: 0, column: 1, relation: "q"})
	idx.addVarReference("x", location{level: 2, column: 0})
	idx.addVarReference("y", location{level: 1, column: 0})

	loc, ok := idx.definitionPoint("x")
	if !ok || loc.level != 0 || loc.column != 1 {
		t.Errorf("expected first location to define x, got %v (%v)", loc, ok)
	}
	if exp, act := 2, len(idx.references("x")); exp != act {
		t.Errorf("expected %d references, got %d", exp, act)
	}
	if exp, act := 2, len(idx.variables()); exp != act {
		t.Errorf("expected %d variables, got %d", exp, act)
	}
	if exp, act := "x", idx.variables()[0]; exp != act {
		t.Errorf("expected insertion order, got %v", idx.variables())
	}
}

func TestValueIndexRecordsAndAggregators(t *testing.T) {
	idx := newValueIndex()

	rec := &ast.RecordInit{Args: []ast.Argument{&ast.Variable{Name: "x"}}}
	idx.setRecordDefinition(rec, location{level: 0, column: 2})
	loc, ok := idx.recordDefinition(rec)
	if !ok || loc.column != 2 {
		t.Errorf("expected record definition at column 2, got %v (%v)", loc, ok)
	}

	agg := &ast.Aggregator{Op: ast.AggregateCount}
	idx.setAggregatorLocation(agg, location{level: 3, column: 0})
	aggLoc, ok := idx.aggregatorLocation(agg)
	if !ok || aggLoc.level != 3 {
		t.Errorf("expected aggregator at level 3, got %v (%v)", aggLoc, ok)
	}
	if !idx.isAggregatorLevel(3) {
		t.Errorf("expected level 3 to be an aggregator level")
	}
	if idx.isAggregatorLevel(0) {
		t.Errorf("expected level 0 to be a plain level")
	}
}
