package ir

import (
	"encoding/json"
	"fmt"
)

// MarshalJSON encodes the program with "node" discriminators on every
// polymorphic value so downstream consumers can decode the tree without
// guessing.
func (p *Program) MarshalJSON() ([]byte, error) {
	relations := map[string]interface{}{}
	for name, rel := range p.Relations {
		relations[name] = map[string]interface{}{
			"name":           rel.Name,
			"arity":          rel.Arity,
			"heightParams":   rel.HeightParams,
			"attributes":     rel.Attributes,
			"types":          rel.Types,
			"representation": rel.Representation,
		}
	}
	subroutines := map[string]interface{}{}
	for name, body := range p.Subroutines {
		subroutines[name] = encodeStatement(body)
	}
	return json.Marshal(map[string]interface{}{
		"relations":   relations,
		"main":        encodeStatement(p.Main),
		"subroutines": subroutines,
	})
}

func encodeStatements(stmts []Statement) []interface{} {
	out := make([]interface{}, len(stmts))
	for i, stmt := range stmts {
		out[i] = encodeStatement(stmt)
	}
	return out
}

func encodeStatement(s Statement) interface{} {
	switch stmt := s.(type) {
	case nil:
		return nil
	case *Sequence:
		return node("sequence", "stmts", encodeStatements(stmt.Stmts))
	case *Parallel:
		return node("parallel", "stmts", encodeStatements(stmt.Stmts))
	case *Stratum:
		return node("stratum", "index", stmt.Index, "body", encodeStatement(stmt.Body))
	case *Loop:
		return node("loop", "body", encodeStatements(stmt.Body))
	case *Exit:
		return node("exit", "cond", encodeCondition(stmt.Cond))
	case *Create:
		return node("create", "relation", stmt.Relation)
	case *Load:
		return node("load", "relation", stmt.Relation, "directives", stmt.Directives)
	case *Store:
		return node("store", "relation", stmt.Relation, "directives", stmt.Directives)
	case *Merge:
		return node("merge", "target", stmt.Target, "source", stmt.Source)
	case *SemiMerge:
		return node("semi-merge", "target", stmt.Target, "source", stmt.Source, "reference", stmt.Reference)
	case *PositiveMerge:
		return node("positive-merge", "target", stmt.Target, "source", stmt.Source)
	case *ExistingMerge:
		return node("existing-merge", "target", stmt.Target, "source", stmt.Source, "reference", stmt.Reference)
	case *Swap:
		return node("swap", "a", stmt.A, "b", stmt.B)
	case *Clear:
		return node("clear", "relation", stmt.Relation)
	case *Drop:
		return node("drop", "relation", stmt.Relation)
	case *Query:
		return node("query", "op", encodeOperation(stmt.Op))
	case *DebugInfo:
		return node("debug-info", "message", stmt.Message, "body", encodeStatement(stmt.Body))
	case *LogRelationTimer:
		return node("log-relation-timer", "message", stmt.Message, "relation", stmt.Relation, "body", encodeStatement(stmt.Body))
	case *LogSize:
		return node("log-size", "message", stmt.Message, "relation", stmt.Relation)
	case *LogTimer:
		return node("log-timer", "message", stmt.Message, "body", encodeStatement(stmt.Body))
	case *Call:
		return node("call", "name", stmt.Name, "args", encodeExpressions(stmt.Args))
	}
	return node("unknown", "go-type", fmt.Sprintf("%T", s))
}

func encodeOperation(o Operation) interface{} {
	switch op := o.(type) {
	case nil:
		return nil
	case *Scan:
		return node("scan", "relation", op.Relation, "level", op.Level, "profile", op.Profile, "body", encodeOperation(op.Body))
	case *UnpackRecord:
		return node("unpack-record", "level", op.Level, "expr", encodeExpression(op.Expr), "arity", op.Arity, "body", encodeOperation(op.Body))
	case *Filter:
		return node("filter", "cond", encodeCondition(op.Cond), "body", encodeOperation(op.Body))
	case *Break:
		return node("break", "cond", encodeCondition(op.Cond), "body", encodeOperation(op.Body))
	case *Aggregate:
		return node("aggregate", "fn", op.Fn.String(), "relation", op.Relation, "expr", encodeExpression(op.Expr), "cond", encodeCondition(op.Cond), "level", op.Level, "body", encodeOperation(op.Body))
	case *Project:
		return node("project", "relation", op.Relation, "values", encodeExpressions(op.Values))
	case *Fact:
		return node("fact", "relation", op.Relation, "values", encodeExpressions(op.Values))
	case *SubroutineReturn:
		return node("subroutine-return", "values", encodeExpressions(op.Values), "immediate", op.Immediate)
	}
	return node("unknown", "go-type", fmt.Sprintf("%T", o))
}

func encodeExpressions(exps []Expression) []interface{} {
	out := make([]interface{}, len(exps))
	for i, e := range exps {
		out[i] = encodeExpression(e)
	}
	return out
}

func encodeExpression(e Expression) interface{} {
	switch exp := e.(type) {
	case nil:
		return nil
	case *TupleElement:
		return node("tuple-element", "level", exp.Level, "column", exp.Column)
	case *Number:
		return node("number", "value", exp.Value)
	case *IntrinsicOp:
		return node("intrinsic-op", "op", exp.Op, "args", encodeExpressions(exp.Args))
	case *UserDefinedOp:
		return node("user-defined-op", "op", exp.Name, "type", exp.Type, "args", encodeExpressions(exp.Args))
	case *AutoIncrement:
		return node("auto-increment")
	case *IterationNumber:
		return node("iteration-number")
	case *PackRecord:
		return node("pack-record", "args", encodeExpressions(exp.Args))
	case *SubroutineArgument:
		return node("subroutine-argument", "number", exp.Number)
	case *UndefValue:
		return node("undef")
	}
	return node("unknown", "go-type", fmt.Sprintf("%T", e))
}

func encodeCondition(c Condition) interface{} {
	switch cond := c.(type) {
	case nil:
		return nil
	case *True:
		return node("true")
	case *Constraint:
		return node("constraint", "op", cond.Op, "lhs", encodeExpression(cond.LHS), "rhs", encodeExpression(cond.RHS))
	case *Conjunction:
		return node("conjunction", "lhs", encodeCondition(cond.LHS), "rhs", encodeCondition(cond.RHS))
	case *Disjunction:
		return node("disjunction", "lhs", encodeCondition(cond.LHS), "rhs", encodeCondition(cond.RHS))
	case *Negation:
		return node("negation", "cond", encodeCondition(cond.Cond))
	case *EmptinessCheck:
		return node("emptiness-check", "relation", cond.Relation)
	case *ExistenceCheck:
		return node("existence-check", "relation", cond.Relation, "values", encodeExpressions(cond.Values))
	case *PositiveExistenceCheck:
		return node("positive-existence-check", "relation", cond.Relation, "values", encodeExpressions(cond.Values))
	case *SubsumptionExistenceCheck:
		return node("subsumption-existence-check", "relation", cond.Relation, "values", encodeExpressions(cond.Values))
	case *SubroutineCondition:
		return node("subroutine-condition", "name", cond.Name, "args", encodeExpressions(cond.Args))
	}
	return node("unknown", "go-type", fmt.Sprintf("%T", c))
}

func node(kind string, kvs ...interface{}) map[string]interface{} {
	out := map[string]interface{}{"node": kind}
	for i := 0; i+1 < len(kvs); i += 2 {
		out[kvs[i].(string)] = kvs[i+1]
	}
	return out
}
