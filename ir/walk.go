package ir

// Visitor defines the interface for visiting IR nodes.
type Visitor interface {
	// Visit is invoked for every node under the walked root. Returning an
	// error aborts the walk.
	Visit(x interface{}) error
}

// Walk invokes the visitor for x and all nodes under x in depth-first
// pre-order.
func Walk(vis Visitor, x interface{}) error {
	if x == nil {
		return nil
	}
	if err := vis.Visit(x); err != nil {
		return err
	}
	switch node := x.(type) {
	case *Program:
		if err := Walk(vis, node.Main); err != nil {
			return err
		}
		for _, name := range node.SubroutineNames() {
			if err := Walk(vis, node.Subroutines[name]); err != nil {
				return err
			}
		}
	case *Sequence:
		for _, child := range node.Stmts {
			if err := Walk(vis, child); err != nil {
				return err
			}
		}
	case *Parallel:
		for _, child := range node.Stmts {
			if err := Walk(vis, child); err != nil {
				return err
			}
		}
	case *Stratum:
		return Walk(vis, node.Body)
	case *Loop:
		for _, child := range node.Body {
			if err := Walk(vis, child); err != nil {
				return err
			}
		}
	case *Exit:
		return Walk(vis, node.Cond)
	case *Query:
		return Walk(vis, node.Op)
	case *DebugInfo:
		return Walk(vis, node.Body)
	case *LogRelationTimer:
		return Walk(vis, node.Body)
	case *LogTimer:
		return Walk(vis, node.Body)
	case *Call:
		return walkExpressions(vis, node.Args)
	case *Scan:
		return Walk(vis, node.Body)
	case *UnpackRecord:
		if err := Walk(vis, node.Expr); err != nil {
			return err
		}
		return Walk(vis, node.Body)
	case *Filter:
		if err := Walk(vis, node.Cond); err != nil {
			return err
		}
		return Walk(vis, node.Body)
	case *Break:
		if err := Walk(vis, node.Cond); err != nil {
			return err
		}
		return Walk(vis, node.Body)
	case *Aggregate:
		if err := Walk(vis, node.Expr); err != nil {
			return err
		}
		if err := Walk(vis, node.Cond); err != nil {
			return err
		}
		return Walk(vis, node.Body)
	case *Project:
		return walkExpressions(vis, node.Values)
	case *Fact:
		return walkExpressions(vis, node.Values)
	case *SubroutineReturn:
		return walkExpressions(vis, node.Values)
	case *IntrinsicOp:
		return walkExpressions(vis, node.Args)
	case *UserDefinedOp:
		return walkExpressions(vis, node.Args)
	case *PackRecord:
		return walkExpressions(vis, node.Args)
	case *Constraint:
		if err := Walk(vis, node.LHS); err != nil {
			return err
		}
		return Walk(vis, node.RHS)
	case *Conjunction:
		if err := Walk(vis, node.LHS); err != nil {
			return err
		}
		return Walk(vis, node.RHS)
	case *Disjunction:
		if err := Walk(vis, node.LHS); err != nil {
			return err
		}
		return Walk(vis, node.RHS)
	case *Negation:
		return Walk(vis, node.Cond)
	case *ExistenceCheck:
		return walkExpressions(vis, node.Values)
	case *PositiveExistenceCheck:
		return walkExpressions(vis, node.Values)
	case *SubsumptionExistenceCheck:
		return walkExpressions(vis, node.Values)
	case *SubroutineCondition:
		return walkExpressions(vis, node.Args)
	}
	return nil
}

func walkExpressions(vis Visitor, exps []Expression) error {
	for _, e := range exps {
		if err := Walk(vis, e); err != nil {
			return err
		}
	}
	return nil
}
