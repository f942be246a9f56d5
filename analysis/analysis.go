// Package analysis carries the program analyses the translator consumes:
// the precedence/SCC graph, a topological SCC order, the recursive-clause
// classification, the type environment, and the relation expiry schedule.
//
// The analyses are ordinarily produced by the front-end; the builders here
// derive them directly from a program so that callers and tests can
// construct a complete translation unit without one.
package analysis

import (
	"sort"

	"github.com/deltalog/deltalog/ast"
)

// SCCGraph is the condensation of the relation precedence graph: each
// strongly connected component groups mutually recursive relations.
type SCCGraph struct {
	sccOf     map[string]int
	internal  [][]*ast.Relation
	recursive []bool
	succs     []map[int]struct{}
	preds     []map[int]struct{}
}

// NewSCCGraph computes the SCC graph of a program. Relation R precedes
// relation S when R occurs in the body of a clause of S. Component indices
// are deterministic for a given program.
func NewSCCGraph(program *ast.Program) *SCCGraph {
	// dependency edges: body relation -> head relation
	deps := make(map[string][]string, len(program.Relations))
	for _, rel := range program.Relations {
		seen := map[string]struct{}{}
		for _, clause := range rel.Clauses {
			ast.WalkAtoms(clause.Body, func(atom *ast.Atom) {
				if program.Relation(atom.Name) == nil {
					return
				}
				if _, ok := seen[atom.Name]; !ok {
					seen[atom.Name] = struct{}{}
					deps[rel.Name] = append(deps[rel.Name], atom.Name)
				}
			})
		}
		sort.Strings(deps[rel.Name])
	}

	g := &SCCGraph{sccOf: map[string]int{}}

	// Tarjan over relations in declaration order.
	index := 0
	indices := map[string]int{}
	lowlink := map[string]int{}
	onStack := map[string]bool{}
	var stack []string

	var strongConnect func(name string)
	strongConnect = func(name string) {
		indices[name] = index
		lowlink[name] = index
		index++
		stack = append(stack, name)
		onStack[name] = true

		for _, dep := range deps[name] {
			if _, ok := indices[dep]; !ok {
				strongConnect(dep)
				if lowlink[dep] < lowlink[name] {
					lowlink[name] = lowlink[dep]
				}
			} else if onStack[dep] {
				if indices[dep] < lowlink[name] {
					lowlink[name] = indices[dep]
				}
			}
		}

		if lowlink[name] == indices[name] {
			scc := len(g.internal)
			var members []*ast.Relation
			for {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[top] = false
				g.sccOf[top] = scc
				members = append(members, program.Relation(top))
				if top == name {
					break
				}
			}
			sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })
			g.internal = append(g.internal, members)
		}
	}

	for _, rel := range program.Relations {
		if _, ok := indices[rel.Name]; !ok {
			strongConnect(rel.Name)
		}
	}

	// component edges and self-recursion
	g.recursive = make([]bool, len(g.internal))
	g.succs = make([]map[int]struct{}, len(g.internal))
	g.preds = make([]map[int]struct{}, len(g.internal))
	for i := range g.internal {
		g.succs[i] = map[int]struct{}{}
		g.preds[i] = map[int]struct{}{}
	}
	for _, rel := range program.Relations {
		head := g.sccOf[rel.Name]
		if len(g.internal[head]) > 1 {
			g.recursive[head] = true
		}
		for _, dep := range deps[rel.Name] {
			body := g.sccOf[dep]
			if body == head {
				g.recursive[head] = true
				continue
			}
			g.succs[body][head] = struct{}{}
			g.preds[head][body] = struct{}{}
		}
	}

	return g
}

// NumberOfSCCs returns the component count.
func (g *SCCGraph) NumberOfSCCs() int { return len(g.internal) }

// SCCOf returns the component index containing rel.
func (g *SCCGraph) SCCOf(rel *ast.Relation) int { return g.sccOf[rel.Name] }

// IsRecursive reports whether the component contains a cycle.
func (g *SCCGraph) IsRecursive(scc int) bool { return g.recursive[scc] }

// InternalRelations returns the members of a component in name order.
func (g *SCCGraph) InternalRelations(scc int) []*ast.Relation { return g.internal[scc] }

// Contains reports whether rel belongs to the component.
func (g *SCCGraph) Contains(scc int, rel *ast.Relation) bool {
	got, ok := g.sccOf[rel.Name]
	return ok && got == scc
}

// InternalInputRelations returns the component members carrying an input
// directive.
func (g *SCCGraph) InternalInputRelations(scc int) []*ast.Relation {
	return filterRelations(g.internal[scc], (*ast.Relation).IsInput)
}

// InternalOutputRelations returns the component members carrying an output
// directive.
func (g *SCCGraph) InternalOutputRelations(scc int) []*ast.Relation {
	return filterRelations(g.internal[scc], (*ast.Relation).IsOutput)
}

// ExternalPredecessorRelations returns relations of preceding components
// that members of scc depend on, in name order.
func (g *SCCGraph) ExternalPredecessorRelations(scc int) []*ast.Relation {
	var out []*ast.Relation
	for pred := range g.preds[scc] {
		out = append(out, g.internal[pred]...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ExternalOutputPredecessorRelations returns external predecessors that are
// output relations.
func (g *SCCGraph) ExternalOutputPredecessorRelations(scc int) []*ast.Relation {
	return filterRelations(g.ExternalPredecessorRelations(scc), (*ast.Relation).IsOutput)
}

// ExternalNonOutputPredecessorRelations returns external predecessors that
// are not output relations.
func (g *SCCGraph) ExternalNonOutputPredecessorRelations(scc int) []*ast.Relation {
	return filterRelations(g.ExternalPredecessorRelations(scc), func(r *ast.Relation) bool {
		return !r.IsOutput()
	})
}

// InternalNonOutputRelationsWithExternalSuccessors returns non-output
// members of scc consumed by a later component.
func (g *SCCGraph) InternalNonOutputRelationsWithExternalSuccessors(scc int) []*ast.Relation {
	if len(g.succs[scc]) == 0 {
		return nil
	}
	return filterRelations(g.internal[scc], func(r *ast.Relation) bool {
		return !r.IsOutput()
	})
}

func filterRelations(rels []*ast.Relation, keep func(*ast.Relation) bool) []*ast.Relation {
	var out []*ast.Relation
	for _, rel := range rels {
		if keep(rel) {
			out = append(out, rel)
		}
	}
	return out
}

// TopologicalOrder is a topological order over SCC indices.
type TopologicalOrder struct {
	order []int
}

// NewTopologicalOrder computes a deterministic topological order of the SCC
// graph (lowest eligible index first).
func NewTopologicalOrder(g *SCCGraph) *TopologicalOrder {
	n := g.NumberOfSCCs()
	indegree := make([]int, n)
	for scc := 0; scc < n; scc++ {
		indegree[scc] = len(g.preds[scc])
	}
	var order []int
	ready := make([]int, 0, n)
	for scc := 0; scc < n; scc++ {
		if indegree[scc] == 0 {
			ready = append(ready, scc)
		}
	}
	for len(ready) > 0 {
		sort.Ints(ready)
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		for succ := range g.succs[next] {
			indegree[succ]--
			if indegree[succ] == 0 {
				ready = append(ready, succ)
			}
		}
	}
	return &TopologicalOrder{order: order}
}

// Order returns SCC indices in topological order.
func (t *TopologicalOrder) Order() []int { return t.order }

// RecursiveClauses classifies clauses as recursive or not: a clause is
// recursive when a body atom names a relation in the head's component.
type RecursiveClauses struct {
	program *ast.Program
	sccs    *SCCGraph
}

// NewRecursiveClauses builds the classification.
func NewRecursiveClauses(program *ast.Program, sccs *SCCGraph) *RecursiveClauses {
	return &RecursiveClauses{program: program, sccs: sccs}
}

// Recursive reports whether the clause joins against its own component.
func (rc *RecursiveClauses) Recursive(c *ast.Clause) bool {
	head := rc.program.Relation(c.Head.Name)
	if head == nil {
		return false
	}
	scc := rc.sccs.SCCOf(head)
	recursive := false
	ast.WalkAtoms(c.Body, func(atom *ast.Atom) {
		if rel := rc.program.Relation(atom.Name); rel != nil && rc.sccs.Contains(scc, rel) {
			recursive = true
		}
	})
	return recursive
}

// TypeEnvironment resolves attribute type names to the single-character
// qualifiers the IR schema records.
type TypeEnvironment struct {
	qualifiers map[string]string
}

// NewTypeEnvironment builds a type environment over explicit qualifier
// bindings; builtins resolve without bindings.
func NewTypeEnvironment(qualifiers map[string]string) *TypeEnvironment {
	if qualifiers == nil {
		qualifiers = map[string]string{}
	}
	return &TypeEnvironment{qualifiers: qualifiers}
}

// Qualifier returns the type qualifier for a type name.
func (te *TypeEnvironment) Qualifier(typeName string) string {
	if q, ok := te.qualifiers[typeName]; ok {
		return q
	}
	switch typeName {
	case "number":
		return "i"
	case "symbol":
		return "s"
	case "unsigned":
		return "u"
	case "float":
		return "f"
	}
	return "i"
}

// RelationSchedule records, per position of the topological order, the
// relations whose last use falls on that stratum.
type RelationSchedule struct {
	expired [][]*ast.Relation
}

// NewRelationSchedule computes the expiry schedule: a relation expires at
// the latest stratum that contains it or depends on it. Output relations
// expire too; their stratum stores them before the drop runs.
func NewRelationSchedule(program *ast.Program, g *SCCGraph, order *TopologicalOrder) *RelationSchedule {
	position := make(map[int]int, g.NumberOfSCCs())
	for pos, scc := range order.Order() {
		position[scc] = pos
	}

	lastUse := map[string]int{}
	for _, rel := range program.Relations {
		lastUse[rel.Name] = position[g.SCCOf(rel)]
		for _, clause := range rel.Clauses {
			ast.WalkAtoms(clause.Body, func(atom *ast.Atom) {
				if program.Relation(atom.Name) == nil {
					return
				}
				if pos := position[g.SCCOf(rel)]; pos > lastUse[atom.Name] {
					lastUse[atom.Name] = pos
				}
			})
		}
	}

	schedule := &RelationSchedule{expired: make([][]*ast.Relation, len(order.Order()))}
	var names []string
	for name := range lastUse {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rel := program.Relation(name)
		pos := lastUse[name]
		schedule.expired[pos] = append(schedule.expired[pos], rel)
	}
	return schedule
}

// Expired returns the relations expiring at a topological-order position.
func (s *RelationSchedule) Expired(pos int) []*ast.Relation {
	if pos < 0 || pos >= len(s.expired) {
		return nil
	}
	return s.expired[pos]
}
