package compile

import (
	"context"
	"strings"
	"testing"

	"github.com/deltalog/deltalog/ast"
	"github.com/deltalog/deltalog/config"
	"github.com/deltalog/deltalog/debugreport"
	"github.com/deltalog/deltalog/ir"
	"github.com/deltalog/deltalog/metrics"
)

func v(name string) *ast.Variable { return &ast.Variable{Name: name} }

func atom(name string, args ...ast.Argument) *ast.Atom {
	return &ast.Atom{Name: name, Args: args}
}

func numberAttrs(names ...string) []ast.Attribute {
	attrs := make([]ast.Attribute, len(names))
	for i, name := range names {
		attrs[i] = ast.Attribute{Name: name, Type: "number"}
	}
	return attrs
}

func tcProgram() *ast.Program {
	e := &ast.Relation{
		Name:       "e",
		Attributes: numberAttrs("x", "y"),
		Loads:      []*ast.Directive{{Kind: ast.DirectiveInput}},
	}
	tc := &ast.Relation{
		Name:       "tc",
		Attributes: numberAttrs("x", "y"),
		Stores:     []*ast.Directive{{Kind: ast.DirectiveOutput}},
		Clauses: []*ast.Clause{
			{
				Head: atom("tc", v("x"), v("y")),
				Body: []ast.Literal{atom("e", v("x"), v("y"))},
			},
			{
				Head: atom("tc", v("x"), v("y")),
				Body: []ast.Literal{
					atom("e", v("x"), v("z")),
					atom("tc", v("z"), v("y")),
				},
			},
		},
	}
	return &ast.Program{Relations: []*ast.Relation{e, tc}}
}

func TestCompileNonIncremental(t *testing.T) {
	compiled, err := New().
		WithProgram(tcProgram()).
		WithConfig(&config.Config{}).
		Compile(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	rendered := ir.String(compiled)
	if !strings.Contains(rendered, "scan @delta_tc") {
		t.Errorf("expected semi-naive delta scan\n%s", rendered)
	}
	if strings.Contains(rendered, "diff_plus") {
		t.Errorf("expected no diff variants outside incremental mode\n%s", rendered)
	}
}

func TestCompileIncremental(t *testing.T) {
	m := metrics.New()
	compiled, err := New().
		WithProgram(tcProgram()).
		WithConfig(&config.Config{Incremental: true}).
		WithMetrics(m).
		Compile(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := compiled.Subroutines["incremental_cleanup"]; !ok {
		t.Errorf("expected cleanup subroutine, have %v", compiled.SubroutineNames())
	}

	// incremental arity: source arity + 3 annotation columns
	if rel := compiled.Relation("tc"); rel == nil || rel.Arity != 5 {
		t.Errorf("expected tc arity 5, got %v", rel)
	}

	all := m.All()
	if _, ok := all["timer_"+metrics.AstTransformIncremental+"_ns"]; !ok {
		t.Errorf("expected incremental transform timer, got %v", all)
	}
	if _, ok := all["timer_"+metrics.AstTranslateProgram+"_ns"]; !ok {
		t.Errorf("expected translation timer, got %v", all)
	}
}

func TestCompileDeterminism(t *testing.T) {
	translate := func() string {
		compiled, err := New().
			WithProgram(tcProgram()).
			WithConfig(&config.Config{Incremental: true}).
			Compile(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		return ir.String(compiled)
	}

	if exp, act := translate(), translate(); exp != act {
		t.Errorf("expected byte-identical output across runs")
	}
}

func TestCompileFatalFault(t *testing.T) {
	q := &ast.Relation{Name: "q", Attributes: numberAttrs("x")}
	p := &ast.Relation{
		Name:       "p",
		Attributes: numberAttrs("x"),
		Clauses: []*ast.Clause{
			{
				Head: atom("p", &ast.Variable{Name: "y", Loc: ast.Location{File: "p.dl", Line: 3, Column: 5}}),
				Body: []ast.Literal{atom("q", v("x"))},
			},
		},
	}
	prog := &ast.Program{Relations: []*ast.Relation{q, p}}

	compiled, err := New().
		WithProgram(prog).
		WithConfig(&config.Config{}).
		Compile(context.Background())
	if compiled != nil {
		t.Errorf("expected no partial IR on failure")
	}
	fault, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected typed error, got %v", err)
	}
	if exp, act := CodeUngroundedVariable, fault.Code; exp != act {
		t.Errorf("expected code %q, got %q", exp, act)
	}
	if exp, act := "p.dl:3:5", fault.Location.String(); exp != act {
		t.Errorf("expected offending location %q, got %q", exp, act)
	}
}

func TestCompileInvalidConfig(t *testing.T) {
	_, err := New().
		WithProgram(&ast.Program{}).
		WithConfig(&config.Config{Provenance: "bogus"}).
		Compile(context.Background())
	fault, ok := err.(*Error)
	if !ok || fault.Code != CodeInvalidConfig {
		t.Errorf("expected invalid-config error, got %v", err)
	}
}

func TestCompileDebugReport(t *testing.T) {
	report := debugreport.New()
	_, err := New().
		WithProgram(tcProgram()).
		WithConfig(&config.Config{DebugReport: "report.html"}).
		WithDebugReport(report).
		Compile(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	sections := report.Sections()
	if len(sections) != 1 || sections[0].ID != "ram-program" {
		t.Fatalf("expected one ram-program section, got %v", sections)
	}
	if !strings.Contains(sections[0].Body, "stratum") {
		t.Errorf("expected rendered program in section body")
	}
}

func TestCompileCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().
		WithProgram(tcProgram()).
		WithConfig(&config.Config{}).
		Compile(ctx)
	if err == nil {
		t.Fatal("expected context error")
	}
}
