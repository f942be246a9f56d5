package planner

import (
	"strings"
	"testing"

	"github.com/deltalog/deltalog/analysis"
	"github.com/deltalog/deltalog/ast"
	"github.com/deltalog/deltalog/config"
	"github.com/deltalog/deltalog/internal/transforms"
	"github.com/deltalog/deltalog/ir"
)

func planIncremental(t *testing.T, prog *ast.Program) *ir.Program {
	t.Helper()
	conf := &config.Config{Incremental: true}

	sccs := analysis.NewSCCGraph(prog)
	recursive := analysis.NewRecursiveClauses(prog, sccs)
	transforms.NewIncremental(prog, sccs, recursive).Transform()

	return plan(t, prog, conf)
}

func TestIncrementalCopyProgram(t *testing.T) {
	compiled := planIncremental(t, copyProgram())
	rendered := ir.String(compiled)

	// inputs load into the assertion diff so the first epoch treats every
	// fact as an insertion
	if !strings.Contains(rendered, "load diff_plus@_q") {
		t.Errorf("expected load into diff_plus@_q\n%s", rendered)
	}

	// the insertion rule pivots on diff_plus_count@_q and emits into
	// diff_plus@_p; the deletion rule is its mirror image
	for _, exp := range []string{
		"scan diff_plus_count@_q",
		"project diff_plus@_p",
		"scan diff_minus_count@_q",
		"project diff_minus@_p",
	} {
		if !strings.Contains(rendered, exp) {
			t.Errorf("expected rendering to contain %q\n%s", exp, rendered)
		}
	}

	// applied variants are seeded from the base relation and the diffs
	for _, exp := range []string{
		"merge diff_applied@_q <- q",
		"merge diff_applied@_q <- diff_minus@_q",
		"merge diff_applied@_q <- diff_plus@_q",
		"semi-merge diff_plus_count@_q <- diff_minus_applied@_q",
	} {
		if !strings.Contains(rendered, exp) {
			t.Errorf("expected rendering to contain %q\n%s", exp, rendered)
		}
	}

	// the final stratum settles the epoch and stores the outputs after
	if !strings.Contains(rendered, "call incremental_cleanup") {
		t.Errorf("expected cleanup call\n%s", rendered)
	}

	cleanup, ok := compiled.Subroutines["incremental_cleanup"]
	if !ok {
		t.Fatalf("expected incremental_cleanup subroutine")
	}
	cleanupText := ir.String(cleanup)
	for _, exp := range []string{
		"merge p <- diff_minus@_p",
		"merge p <- diff_plus@_p",
		"clear diff_applied@_p",
		"project p (t0.0, t0.1, -1, -1)",
		"project q (t0.0, t0.1, -1, -1)",
	} {
		if !strings.Contains(cleanupText, exp) {
			t.Errorf("expected cleanup to contain %q\n%s", exp, cleanupText)
		}
	}
}

func TestIncrementalTransitiveClosure(t *testing.T) {
	compiled := planIncremental(t, tcProgram())
	rendered := ir.String(compiled)

	for _, exp := range []string{
		// loop pivots per update category
		"scan @delta_diff_plus_count@_tc",
		"scan @delta_diff_minus_count@_tc",
		// re-derivation probes the deleted-count relation
		"scan diff_minus_count@_tc level=0",
		// heads write into the per-iteration discovery relations
		"project @new_diff_plus@_tc",
		"project @new_diff_minus@_tc",
		// exit is gated on quiescence and the stored-iteration subroutine
		"(empty @new_diff_plus@_tc)",
		"(empty @new_diff_minus@_tc)",
		"(subroutine scc_1_exit(#iter))",
		// iteration-boundary schedule
		"positive-merge @delta_tc <- @indexed_tc",
		"semi-merge @delta_diff_applied@_tc <- @delta_tc in diff_applied@_tc",
		"clear @new_diff_plus@_tc",
		// postamble
		"drop @indexed_tc",
		"drop @delta_diff_applied@_tc",
	} {
		if !strings.Contains(rendered, exp) {
			t.Errorf("expected rendering to contain %q\n%s", exp, rendered)
		}
	}

	// the subsumption guard keeps rediscovered tuples out of the head
	if !strings.Contains(rendered, "subsumes") {
		t.Errorf("expected subsumption negation in loop rules\n%s", rendered)
	}

	exit, ok := compiled.Subroutines["scc_1_exit"]
	if !ok {
		t.Fatalf("expected scc_1_exit subroutine, have %v", compiled.SubroutineNames())
	}
	exitText := ir.String(exit)
	for _, exp := range []string{
		"scan scc_1_@max_iter level=0",
		"filter (t0.0 >= arg(0))",
		"return-now (0)",
		"return (1)",
	} {
		if !strings.Contains(exitText, exp) {
			t.Errorf("expected exit subroutine to contain %q\n%s", exp, exitText)
		}
	}

	// the max-iteration singleton is populated by a nested aggregate
	if !strings.Contains(rendered, "aggregate max t0.2 over tc if true level=0") {
		t.Errorf("expected max-iteration aggregate\n%s", rendered)
	}
	if !strings.Contains(rendered, "project scc_1_@max_iter (t0.0)") {
		t.Errorf("expected projection into the max-iteration singleton\n%s", rendered)
	}
}

func TestIncrementalArityInvariant(t *testing.T) {
	compiled := planIncremental(t, tcProgram())

	for _, name := range []string{"tc", "e"} {
		rel := compiled.Relation(name)
		if rel == nil {
			t.Fatalf("expected relation %s in schema table", name)
		}
		// two source columns plus iteration, prev count, current count
		if exp, act := 5, rel.Arity; exp != act {
			t.Errorf("expected arity %d for %s, got %d", exp, name, act)
		}
	}

	// variant coherence: every variant of tc shares the base schema
	base := compiled.Relation("tc")
	for _, name := range compiled.RelationNames() {
		if name == "scc_1_@max_iter" || !strings.Contains(name, "tc") {
			continue
		}
		rel := compiled.Relations[name]
		if exp, act := base.Arity, rel.Arity; exp != act {
			t.Errorf("expected variant %s to have arity %d, got %d", name, exp, act)
		}
		if exp, act := strings.Join(base.Attributes, ","), strings.Join(rel.Attributes, ","); exp != act {
			t.Errorf("expected variant %s to share attributes, got %q", name, act)
		}
	}
}

// relation-schema closure: every relation referenced by a statement,
// operation, or condition is registered with a matching schema.
func TestIncrementalSchemaClosure(t *testing.T) {
	compiled := planIncremental(t, tcProgram())

	check := func(name string) {
		if name == "" {
			return
		}
		if compiled.Relation(name) == nil {
			t.Errorf("referenced relation %s missing from schema table", name)
		}
	}

	visitor := &funcVisitor{fn: func(x interface{}) error {
		switch node := x.(type) {
		case *ir.Create:
			check(node.Relation)
		case *ir.Load:
			check(node.Relation)
		case *ir.Store:
			check(node.Relation)
		case *ir.Merge:
			check(node.Target)
			check(node.Source)
		case *ir.SemiMerge:
			check(node.Target)
			check(node.Source)
			check(node.Reference)
		case *ir.PositiveMerge:
			check(node.Target)
			check(node.Source)
		case *ir.Swap:
			check(node.A)
			check(node.B)
		case *ir.Clear:
			check(node.Relation)
		case *ir.Drop:
			check(node.Relation)
		case *ir.Scan:
			check(node.Relation)
		case *ir.Aggregate:
			check(node.Relation)
		case *ir.Project:
			check(node.Relation)
			rel := compiled.Relation(node.Relation)
			if rel != nil && len(node.Values) != rel.Arity {
				t.Errorf("projection into %s carries %d values for arity %d", node.Relation, len(node.Values), rel.Arity)
			}
		case *ir.Fact:
			check(node.Relation)
		case *ir.EmptinessCheck:
			check(node.Relation)
		case *ir.ExistenceCheck:
			check(node.Relation)
		case *ir.PositiveExistenceCheck:
			check(node.Relation)
		case *ir.SubsumptionExistenceCheck:
			check(node.Relation)
		}
		return nil
	}}

	if err := ir.Walk(visitor, compiled); err != nil {
		t.Fatal(err)
	}
}

// grounding: every tuple element is dominated by an operator allocating its
// level.
func TestIncrementalGroundingInvariant(t *testing.T) {
	compiled := planIncremental(t, tcProgram())

	queries := []*ir.Query{}
	collect := &funcVisitor{fn: func(x interface{}) error {
		if q, ok := x.(*ir.Query); ok {
			queries = append(queries, q)
		}
		return nil
	}}
	if err := ir.Walk(collect, compiled); err != nil {
		t.Fatal(err)
	}
	if len(queries) == 0 {
		t.Fatal("expected queries to check")
	}

	for _, q := range queries {
		levels := map[int]bool{}
		alloc := &funcVisitor{fn: func(x interface{}) error {
			switch node := x.(type) {
			case *ir.Scan:
				levels[node.Level] = true
			case *ir.UnpackRecord:
				levels[node.Level] = true
			case *ir.Aggregate:
				levels[node.Level] = true
			}
			return nil
		}}
		if err := ir.Walk(alloc, q); err != nil {
			t.Fatal(err)
		}

		use := &funcVisitor{fn: func(x interface{}) error {
			if te, ok := x.(*ir.TupleElement); ok && !levels[te.Level] {
				t.Errorf("tuple element t%d.%d has no allocating operator in\n%s", te.Level, te.Column, ir.String(q))
			}
			return nil
		}}
		if err := ir.Walk(use, q); err != nil {
			t.Fatal(err)
		}
	}
}

func TestNonIncrementalHasNoDiffVariants(t *testing.T) {
	compiled := plan(t, tcProgram(), &config.Config{})

	for _, name := range compiled.RelationNames() {
		if strings.Contains(name, "diff") {
			t.Errorf("unexpected diff variant %s in non-incremental plan", name)
		}
	}
	if len(compiled.Subroutines) != 0 {
		t.Errorf("unexpected subroutines %v in non-incremental plan", compiled.SubroutineNames())
	}
}

type funcVisitor struct {
	fn func(interface{}) error
}

func (v *funcVisitor) Visit(x interface{}) error { return v.fn(x) }
