package ir

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Pretty writes a human-readable, deterministic rendering of an IR object to
// w. Two identical programs render byte-identically; relation and subroutine
// tables print in sorted name order.
func Pretty(w io.Writer, x interface{}) error {
	pp := &prettyPrinter{w: w}
	switch node := x.(type) {
	case *Program:
		pp.program(node)
	case Statement:
		pp.statement(node, 0)
	case Operation:
		pp.operation(node, 0)
	default:
		return fmt.Errorf("ir: cannot pretty-print %T", x)
	}
	return pp.err
}

// String renders an IR object via Pretty.
func String(x interface{}) string {
	var b strings.Builder
	_ = Pretty(&b, x)
	return b.String()
}

type prettyPrinter struct {
	w   io.Writer
	err error
}

func (pp *prettyPrinter) line(depth int, format string, args ...interface{}) {
	if pp.err != nil {
		return
	}
	_, pp.err = fmt.Fprintf(pp.w, "%s%s\n", strings.Repeat("  ", depth), fmt.Sprintf(format, args...))
}

func (pp *prettyPrinter) program(p *Program) {
	pp.line(0, "program")
	pp.line(1, "relations")
	for _, name := range p.RelationNames() {
		rel := p.Relations[name]
		pp.line(2, "relation %s arity=%d heights=%d attrs=(%s) types=(%s) repr=%q",
			rel.Name, rel.Arity, rel.HeightParams,
			strings.Join(rel.Attributes, ","), strings.Join(rel.Types, ","), rel.Representation)
	}
	pp.line(1, "main")
	if p.Main != nil {
		pp.statement(p.Main, 2)
	}
	for _, name := range p.SubroutineNames() {
		pp.line(1, "subroutine %s", name)
		pp.statement(p.Subroutines[name], 2)
	}
}

func (pp *prettyPrinter) statement(s Statement, depth int) {
	switch stmt := s.(type) {
	case *Sequence:
		pp.line(depth, "sequence")
		for _, child := range stmt.Stmts {
			pp.statement(child, depth+1)
		}
	case *Parallel:
		pp.line(depth, "parallel")
		for _, child := range stmt.Stmts {
			pp.statement(child, depth+1)
		}
	case *Stratum:
		pp.line(depth, "stratum %d", stmt.Index)
		pp.statement(stmt.Body, depth+1)
	case *Loop:
		pp.line(depth, "loop")
		for _, child := range stmt.Body {
			pp.statement(child, depth+1)
		}
	case *Exit:
		pp.line(depth, "exit %s", condString(stmt.Cond))
	case *Create:
		pp.line(depth, "create %s", stmt.Relation)
	case *Load:
		pp.line(depth, "load %s %s", stmt.Relation, directivesString(stmt.Directives))
	case *Store:
		pp.line(depth, "store %s %s", stmt.Relation, directivesString(stmt.Directives))
	case *Merge:
		pp.line(depth, "merge %s <- %s", stmt.Target, stmt.Source)
	case *SemiMerge:
		if stmt.Reference == "" {
			pp.line(depth, "semi-merge %s <- %s", stmt.Target, stmt.Source)
		} else {
			pp.line(depth, "semi-merge %s <- %s in %s", stmt.Target, stmt.Source, stmt.Reference)
		}
	case *PositiveMerge:
		pp.line(depth, "positive-merge %s <- %s", stmt.Target, stmt.Source)
	case *ExistingMerge:
		pp.line(depth, "existing-merge %s <- %s in %s", stmt.Target, stmt.Source, stmt.Reference)
	case *Swap:
		pp.line(depth, "swap %s %s", stmt.A, stmt.B)
	case *Clear:
		pp.line(depth, "clear %s", stmt.Relation)
	case *Drop:
		pp.line(depth, "drop %s", stmt.Relation)
	case *Query:
		pp.line(depth, "query")
		pp.operation(stmt.Op, depth+1)
	case *DebugInfo:
		pp.line(depth, "debug-info %q", stmt.Message)
		pp.statement(stmt.Body, depth+1)
	case *LogRelationTimer:
		pp.line(depth, "log-relation-timer %s %q", stmt.Relation, stmt.Message)
		pp.statement(stmt.Body, depth+1)
	case *LogSize:
		pp.line(depth, "log-size %s %q", stmt.Relation, stmt.Message)
	case *LogTimer:
		pp.line(depth, "log-timer %q", stmt.Message)
		pp.statement(stmt.Body, depth+1)
	case *Call:
		pp.line(depth, "call %s(%s)", stmt.Name, expListString(stmt.Args))
	default:
		pp.line(depth, "<unknown statement %T>", s)
	}
}

func (pp *prettyPrinter) operation(o Operation, depth int) {
	switch op := o.(type) {
	case *Scan:
		if op.Profile != "" {
			pp.line(depth, "scan %s level=%d profile=%q", op.Relation, op.Level, op.Profile)
		} else {
			pp.line(depth, "scan %s level=%d", op.Relation, op.Level)
		}
		pp.operation(op.Body, depth+1)
	case *UnpackRecord:
		pp.line(depth, "unpack %s level=%d arity=%d", expString(op.Expr), op.Level, op.Arity)
		pp.operation(op.Body, depth+1)
	case *Filter:
		pp.line(depth, "filter %s", condString(op.Cond))
		pp.operation(op.Body, depth+1)
	case *Break:
		pp.line(depth, "break %s", condString(op.Cond))
		pp.operation(op.Body, depth+1)
	case *Aggregate:
		pp.line(depth, "aggregate %s %s over %s if %s level=%d",
			op.Fn, expString(op.Expr), op.Relation, condString(op.Cond), op.Level)
		pp.operation(op.Body, depth+1)
	case *Project:
		pp.line(depth, "project %s (%s)", op.Relation, expListString(op.Values))
	case *Fact:
		pp.line(depth, "fact %s (%s)", op.Relation, expListString(op.Values))
	case *SubroutineReturn:
		if op.Immediate {
			pp.line(depth, "return-now (%s)", expListString(op.Values))
		} else {
			pp.line(depth, "return (%s)", expListString(op.Values))
		}
	default:
		pp.line(depth, "<unknown operation %T>", o)
	}
}

func expString(e Expression) string {
	switch exp := e.(type) {
	case *TupleElement:
		return fmt.Sprintf("t%d.%d", exp.Level, exp.Column)
	case *Number:
		return fmt.Sprintf("%d", exp.Value)
	case *IntrinsicOp:
		return fmt.Sprintf("@%s(%s)", exp.Op, expListString(exp.Args))
	case *UserDefinedOp:
		return fmt.Sprintf("@@%s(%s)", exp.Name, expListString(exp.Args))
	case *AutoIncrement:
		return "autoinc"
	case *IterationNumber:
		return "#iter"
	case *PackRecord:
		return fmt.Sprintf("pack(%s)", expListString(exp.Args))
	case *SubroutineArgument:
		return fmt.Sprintf("arg(%d)", exp.Number)
	case *UndefValue:
		return "undef"
	case nil:
		return "nil"
	}
	return fmt.Sprintf("<unknown expression %T>", e)
}

func expListString(exps []Expression) string {
	parts := make([]string, len(exps))
	for i, e := range exps {
		parts[i] = expString(e)
	}
	return strings.Join(parts, ", ")
}

func condString(c Condition) string {
	switch cond := c.(type) {
	case *True:
		return "true"
	case *Constraint:
		return fmt.Sprintf("(%s %s %s)", expString(cond.LHS), cond.Op, expString(cond.RHS))
	case *Conjunction:
		return fmt.Sprintf("(%s and %s)", condString(cond.LHS), condString(cond.RHS))
	case *Disjunction:
		return fmt.Sprintf("(%s or %s)", condString(cond.LHS), condString(cond.RHS))
	case *Negation:
		return fmt.Sprintf("(not %s)", condString(cond.Cond))
	case *EmptinessCheck:
		return fmt.Sprintf("(empty %s)", cond.Relation)
	case *ExistenceCheck:
		return fmt.Sprintf("(%s contains [%s])", cond.Relation, expListString(cond.Values))
	case *PositiveExistenceCheck:
		return fmt.Sprintf("(%s contains+ [%s])", cond.Relation, expListString(cond.Values))
	case *SubsumptionExistenceCheck:
		return fmt.Sprintf("(%s subsumes [%s])", cond.Relation, expListString(cond.Values))
	case *SubroutineCondition:
		return fmt.Sprintf("(subroutine %s(%s))", cond.Name, expListString(cond.Args))
	case nil:
		return "nil"
	}
	return fmt.Sprintf("<unknown condition %T>", c)
}

func directivesString(directives []IODirectives) string {
	parts := make([]string, len(directives))
	for i, d := range directives {
		keys := make([]string, 0, len(d))
		for k := range d {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		kvs := make([]string, len(keys))
		for j, k := range keys {
			kvs[j] = fmt.Sprintf("%s=%q", k, d[k])
		}
		parts[i] = "{" + strings.Join(kvs, ",") + "}"
	}
	return strings.Join(parts, " ")
}
