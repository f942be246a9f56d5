package planner

import (
	"github.com/deltalog/deltalog/ast"
)

// location is a (nesting level, column) coordinate at which a value is
// available during one clause's operator nest, optionally tagged with the
// relation scanned at that level.
type location struct {
	level    int
	column   int
	relation string
}

// valueIndex records, for the duration of one clause translation, where
// every variable, nested record, and aggregator result is bound. The first
// recorded location of a variable is its definition point; later locations
// are emitted as equality filters.
type valueIndex struct {
	varRefs    map[string][]location
	varOrder   []string
	recordDefs map[*ast.RecordInit]location
	aggLocs    map[*ast.Aggregator]location
	aggLevels  map[int]bool
}

func newValueIndex() *valueIndex {
	return &valueIndex{
		varRefs:    map[string][]location{},
		recordDefs: map[*ast.RecordInit]location{},
		aggLocs:    map[*ast.Aggregator]location{},
		aggLevels:  map[int]bool{},
	}
}

// addVarReference appends a location to the variable's reference set.
func (idx *valueIndex) addVarReference(name string, loc location) {
	if _, ok := idx.varRefs[name]; !ok {
		idx.varOrder = append(idx.varOrder, name)
	}
	idx.varRefs[name] = append(idx.varRefs[name], loc)
}

// isDefined reports whether the variable has a binding point.
func (idx *valueIndex) isDefined(name string) bool {
	return len(idx.varRefs[name]) > 0
}

// definitionPoint returns the first recorded location of the variable.
func (idx *valueIndex) definitionPoint(name string) (location, bool) {
	refs := idx.varRefs[name]
	if len(refs) == 0 {
		return location{}, false
	}
	return refs[0], true
}

// references returns all recorded locations of the variable in insertion
// order.
func (idx *valueIndex) references(name string) []location {
	return idx.varRefs[name]
}

// variables returns variable names in first-appearance order.
func (idx *valueIndex) variables() []string {
	return idx.varOrder
}

// setRecordDefinition registers the location a nested record is unpacked
// from.
func (idx *valueIndex) setRecordDefinition(rec *ast.RecordInit, loc location) {
	idx.recordDefs[rec] = loc
}

// recordDefinition returns the unpack source location of a record.
func (idx *valueIndex) recordDefinition(rec *ast.RecordInit) (location, bool) {
	loc, ok := idx.recordDefs[rec]
	return loc, ok
}

// setAggregatorLocation registers where an aggregator's result is bound and
// marks its level.
func (idx *valueIndex) setAggregatorLocation(agg *ast.Aggregator, loc location) {
	idx.aggLocs[agg] = loc
	idx.aggLevels[loc.level] = true
}

// aggregatorLocation returns the result location of an aggregator.
func (idx *valueIndex) aggregatorLocation(agg *ast.Aggregator) (location, bool) {
	loc, ok := idx.aggLocs[agg]
	return loc, ok
}

// isAggregatorLevel reports whether the level was allocated to an
// aggregator.
func (idx *valueIndex) isAggregatorLevel(level int) bool {
	return idx.aggLevels[level]
}
