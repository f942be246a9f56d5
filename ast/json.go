package ast

import (
	"encoding/json"
	"fmt"
)

// JSON encoding of the AST. Every polymorphic node carries a "kind"
// discriminator so that units produced by an external front-end round-trip
// losslessly.

type argumentJSON struct {
	Kind   string            `json:"kind"`
	Name   string            `json:"name,omitempty"`
	Value  int64             `json:"value,omitempty"`
	Symbol int64             `json:"symbol,omitempty"`
	Text   string            `json:"text,omitempty"`
	Number int               `json:"number,omitempty"`
	Op     string            `json:"op,omitempty"`
	Target *argumentJSON     `json:"target,omitempty"`
	Args   []*argumentJSON   `json:"args,omitempty"`
	Body   []json.RawMessage `json:"body,omitempty"`
	Loc    *Location         `json:"location,omitempty"`
}

type literalJSON struct {
	Kind              string          `json:"kind"`
	Atom              *atomJSON       `json:"atom,omitempty"`
	SubsumptionFields int             `json:"subsumptionFields,omitempty"`
	Op                string          `json:"op,omitempty"`
	LHS               json.RawMessage `json:"lhs,omitempty"`
	RHS               json.RawMessage `json:"rhs,omitempty"`
	Loc               *Location       `json:"location,omitempty"`
}

type atomJSON struct {
	Name string          `json:"name"`
	Args []*argumentJSON `json:"args,omitempty"`
	Loc  *Location       `json:"location,omitempty"`
}

type clauseJSON struct {
	Head *atomJSON         `json:"head"`
	Body []json.RawMessage `json:"body,omitempty"`
	Plan map[string][]int  `json:"plan,omitempty"`
	Loc  *Location         `json:"location,omitempty"`
}

type directiveJSON struct {
	Kind string            `json:"kind"`
	Map  map[string]string `json:"map,omitempty"`
}

type relationJSON struct {
	Name           string           `json:"name"`
	Attributes     []Attribute      `json:"attributes,omitempty"`
	Representation string           `json:"representation,omitempty"`
	HeightParams   int              `json:"heightParams,omitempty"`
	Clauses        []*clauseJSON    `json:"clauses,omitempty"`
	Loads          []*directiveJSON `json:"loads,omitempty"`
	Stores         []*directiveJSON `json:"stores,omitempty"`
	Loc            *Location        `json:"location,omitempty"`
}

type programJSON struct {
	Relations []*relationJSON       `json:"relations,omitempty"`
	Functors  []*FunctorDeclaration `json:"functors,omitempty"`
}

func optLoc(loc Location) *Location {
	if loc == (Location{}) {
		return nil
	}
	cpy := loc
	return &cpy
}

func fromOptLoc(loc *Location) Location {
	if loc == nil {
		return Location{}
	}
	return *loc
}

// MarshalJSON implements json.Marshaler.
func (p *Program) MarshalJSON() ([]byte, error) {
	out := programJSON{Functors: p.Functors}
	for _, rel := range p.Relations {
		encoded, err := encodeRelation(rel)
		if err != nil {
			return nil, err
		}
		out.Relations = append(out.Relations, encoded)
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Program) UnmarshalJSON(raw []byte) error {
	var in programJSON
	if err := json.Unmarshal(raw, &in); err != nil {
		return err
	}
	p.Relations = nil
	p.Functors = in.Functors
	for _, rel := range in.Relations {
		decoded, err := decodeRelation(rel)
		if err != nil {
			return err
		}
		p.Relations = append(p.Relations, decoded)
	}
	return nil
}

func encodeRelation(rel *Relation) (*relationJSON, error) {
	out := &relationJSON{
		Name:           rel.Name,
		Attributes:     rel.Attributes,
		Representation: rel.Representation,
		HeightParams:   rel.HeightParams,
		Loc:            optLoc(rel.Loc),
	}
	for _, clause := range rel.Clauses {
		encoded, err := encodeClause(clause)
		if err != nil {
			return nil, err
		}
		out.Clauses = append(out.Clauses, encoded)
	}
	for _, d := range rel.Loads {
		out.Loads = append(out.Loads, &directiveJSON{Kind: directiveKindName(d.Kind), Map: d.Map})
	}
	for _, d := range rel.Stores {
		out.Stores = append(out.Stores, &directiveJSON{Kind: directiveKindName(d.Kind), Map: d.Map})
	}
	return out, nil
}

func decodeRelation(in *relationJSON) (*Relation, error) {
	rel := &Relation{
		Name:           in.Name,
		Attributes:     in.Attributes,
		Representation: in.Representation,
		HeightParams:   in.HeightParams,
		Loc:            fromOptLoc(in.Loc),
	}
	for _, clause := range in.Clauses {
		decoded, err := decodeClause(clause)
		if err != nil {
			return nil, err
		}
		rel.Clauses = append(rel.Clauses, decoded)
	}
	for _, d := range in.Loads {
		kind, err := parseDirectiveKind(d.Kind)
		if err != nil {
			return nil, err
		}
		rel.Loads = append(rel.Loads, &Directive{Kind: kind, Map: d.Map})
	}
	for _, d := range in.Stores {
		kind, err := parseDirectiveKind(d.Kind)
		if err != nil {
			return nil, err
		}
		rel.Stores = append(rel.Stores, &Directive{Kind: kind, Map: d.Map})
	}
	return rel, nil
}

func directiveKindName(kind DirectiveKind) string {
	switch kind {
	case DirectiveInput:
		return "input"
	case DirectiveOutput:
		return "output"
	case DirectivePrintSize:
		return "printsize"
	}
	return "output"
}

func parseDirectiveKind(name string) (DirectiveKind, error) {
	switch name {
	case "input":
		return DirectiveInput, nil
	case "output":
		return DirectiveOutput, nil
	case "printsize":
		return DirectivePrintSize, nil
	}
	return 0, fmt.Errorf("ast: unknown directive kind %q", name)
}

func encodeClause(clause *Clause) (*clauseJSON, error) {
	head, err := encodeAtom(clause.Head)
	if err != nil {
		return nil, err
	}
	out := &clauseJSON{Head: head, Loc: optLoc(clause.Loc)}
	for _, lit := range clause.Body {
		encoded, err := encodeLiteral(lit)
		if err != nil {
			return nil, err
		}
		out.Body = append(out.Body, encoded)
	}
	if clause.Plan != nil {
		out.Plan = map[string][]int{}
		for version, order := range clause.Plan.Orders {
			out.Plan[fmt.Sprintf("%d", version)] = order
		}
	}
	return out, nil
}

func decodeClause(in *clauseJSON) (*Clause, error) {
	head, err := decodeAtom(in.Head)
	if err != nil {
		return nil, err
	}
	clause := &Clause{Head: head, Loc: fromOptLoc(in.Loc)}
	for _, raw := range in.Body {
		lit, err := decodeLiteral(raw)
		if err != nil {
			return nil, err
		}
		clause.Body = append(clause.Body, lit)
	}
	if len(in.Plan) > 0 {
		clause.Plan = &ExecutionPlan{Orders: map[int][]int{}}
		for key, order := range in.Plan {
			var version int
			if _, err := fmt.Sscanf(key, "%d", &version); err != nil {
				return nil, fmt.Errorf("ast: invalid plan version %q", key)
			}
			clause.Plan.Orders[version] = order
		}
	}
	return clause, nil
}

func encodeAtom(atom *Atom) (*atomJSON, error) {
	out := &atomJSON{Name: atom.Name, Loc: optLoc(atom.Loc)}
	for _, arg := range atom.Args {
		encoded, err := encodeArgument(arg)
		if err != nil {
			return nil, err
		}
		out.Args = append(out.Args, encoded)
	}
	return out, nil
}

func decodeAtom(in *atomJSON) (*Atom, error) {
	if in == nil {
		return nil, fmt.Errorf("ast: missing atom")
	}
	atom := &Atom{Name: in.Name, Loc: fromOptLoc(in.Loc)}
	for _, arg := range in.Args {
		decoded, err := decodeArgument(arg)
		if err != nil {
			return nil, err
		}
		atom.Args = append(atom.Args, decoded)
	}
	return atom, nil
}

func encodeLiteral(lit Literal) (json.RawMessage, error) {
	var out literalJSON
	switch l := lit.(type) {
	case *Atom:
		atom, err := encodeAtom(l)
		if err != nil {
			return nil, err
		}
		out = literalJSON{Kind: "atom", Atom: atom}
	case *Negation:
		atom, err := encodeAtom(l.Atom)
		if err != nil {
			return nil, err
		}
		out = literalJSON{Kind: "negation", Atom: atom}
	case *PositiveNegation:
		atom, err := encodeAtom(l.Atom)
		if err != nil {
			return nil, err
		}
		out = literalJSON{Kind: "positive-negation", Atom: atom}
	case *SubsumptionNegation:
		atom, err := encodeAtom(l.Atom)
		if err != nil {
			return nil, err
		}
		out = literalJSON{Kind: "subsumption-negation", Atom: atom, SubsumptionFields: l.SubsumptionFields}
	case *ExistenceCheck:
		atom, err := encodeAtom(l.Atom)
		if err != nil {
			return nil, err
		}
		out = literalJSON{Kind: "existence-check", Atom: atom}
	case *BinaryConstraint:
		lhs, err := encodeArgumentRaw(l.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := encodeArgumentRaw(l.RHS)
		if err != nil {
			return nil, err
		}
		out = literalJSON{Kind: "constraint", Op: l.Op.String(), LHS: lhs, RHS: rhs, Loc: optLoc(l.Loc)}
	case *ConjunctionConstraint:
		lhs, err := encodeLiteral(l.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := encodeLiteral(l.RHS)
		if err != nil {
			return nil, err
		}
		out = literalJSON{Kind: "conjunction", LHS: lhs, RHS: rhs}
	case *DisjunctionConstraint:
		lhs, err := encodeLiteral(l.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := encodeLiteral(l.RHS)
		if err != nil {
			return nil, err
		}
		out = literalJSON{Kind: "disjunction", LHS: lhs, RHS: rhs}
	default:
		return nil, fmt.Errorf("ast: cannot encode literal %T", lit)
	}
	return json.Marshal(out)
}

func decodeLiteral(raw json.RawMessage) (Literal, error) {
	var in literalJSON
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	switch in.Kind {
	case "atom":
		return decodeAtom(in.Atom)
	case "negation":
		atom, err := decodeAtom(in.Atom)
		if err != nil {
			return nil, err
		}
		return &Negation{Atom: atom}, nil
	case "positive-negation":
		atom, err := decodeAtom(in.Atom)
		if err != nil {
			return nil, err
		}
		return &PositiveNegation{Atom: atom}, nil
	case "subsumption-negation":
		atom, err := decodeAtom(in.Atom)
		if err != nil {
			return nil, err
		}
		return &SubsumptionNegation{Atom: atom, SubsumptionFields: in.SubsumptionFields}, nil
	case "existence-check":
		atom, err := decodeAtom(in.Atom)
		if err != nil {
			return nil, err
		}
		return &ExistenceCheck{Atom: atom}, nil
	case "constraint":
		op, ok := ParseBinaryConstraintOp(in.Op)
		if !ok {
			return nil, fmt.Errorf("ast: unknown constraint operator %q", in.Op)
		}
		lhs, err := decodeArgumentRaw(in.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := decodeArgumentRaw(in.RHS)
		if err != nil {
			return nil, err
		}
		return &BinaryConstraint{Op: op, LHS: lhs, RHS: rhs, Loc: fromOptLoc(in.Loc)}, nil
	case "conjunction":
		lhs, err := decodeLiteral(in.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := decodeLiteral(in.RHS)
		if err != nil {
			return nil, err
		}
		return &ConjunctionConstraint{LHS: lhs, RHS: rhs}, nil
	case "disjunction":
		lhs, err := decodeLiteral(in.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := decodeLiteral(in.RHS)
		if err != nil {
			return nil, err
		}
		return &DisjunctionConstraint{LHS: lhs, RHS: rhs}, nil
	}
	return nil, fmt.Errorf("ast: unknown literal kind %q", in.Kind)
}

func encodeArgumentRaw(arg Argument) (json.RawMessage, error) {
	encoded, err := encodeArgument(arg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(encoded)
}

func decodeArgumentRaw(raw json.RawMessage) (Argument, error) {
	var in argumentJSON
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	return decodeArgument(&in)
}

func encodeArgument(arg Argument) (*argumentJSON, error) {
	switch a := arg.(type) {
	case *Variable:
		return &argumentJSON{Kind: "variable", Name: a.Name, Loc: optLoc(a.Loc)}, nil
	case *UnnamedVariable:
		return &argumentJSON{Kind: "unnamed"}, nil
	case *NumberConstant:
		return &argumentJSON{Kind: "number", Value: a.Value}, nil
	case *StringConstant:
		return &argumentJSON{Kind: "string", Symbol: a.Symbol, Text: a.Value}, nil
	case *Counter:
		return &argumentJSON{Kind: "counter"}, nil
	case *IterationNumber:
		return &argumentJSON{Kind: "iteration-number"}, nil
	case *SubroutineArgument:
		return &argumentJSON{Kind: "subroutine-argument", Number: a.Number}, nil
	case *RecordInit:
		args, err := encodeArguments(a.Args)
		if err != nil {
			return nil, err
		}
		return &argumentJSON{Kind: "record", Args: args}, nil
	case *IntrinsicFunctor:
		args, err := encodeArguments(a.Args)
		if err != nil {
			return nil, err
		}
		return &argumentJSON{Kind: "intrinsic-functor", Op: a.Op.String(), Args: args}, nil
	case *UserDefinedFunctor:
		args, err := encodeArguments(a.Args)
		if err != nil {
			return nil, err
		}
		return &argumentJSON{Kind: "user-defined-functor", Name: a.Name, Args: args, Loc: optLoc(a.Loc)}, nil
	case *Aggregator:
		out := &argumentJSON{Kind: "aggregator", Op: a.Op.String()}
		if a.Target != nil {
			target, err := encodeArgument(a.Target)
			if err != nil {
				return nil, err
			}
			out.Target = target
		}
		for _, lit := range a.Body {
			encoded, err := encodeLiteral(lit)
			if err != nil {
				return nil, err
			}
			out.Body = append(out.Body, encoded)
		}
		return out, nil
	}
	return nil, fmt.Errorf("ast: cannot encode argument %T", arg)
}

func encodeArguments(args []Argument) ([]*argumentJSON, error) {
	var out []*argumentJSON
	for _, arg := range args {
		encoded, err := encodeArgument(arg)
		if err != nil {
			return nil, err
		}
		out = append(out, encoded)
	}
	return out, nil
}

func decodeArgument(in *argumentJSON) (Argument, error) {
	switch in.Kind {
	case "variable":
		return &Variable{Name: in.Name, Loc: fromOptLoc(in.Loc)}, nil
	case "unnamed":
		return &UnnamedVariable{}, nil
	case "number":
		return &NumberConstant{Value: in.Value}, nil
	case "string":
		return &StringConstant{Symbol: in.Symbol, Value: in.Text}, nil
	case "counter":
		return &Counter{}, nil
	case "iteration-number":
		return &IterationNumber{}, nil
	case "subroutine-argument":
		return &SubroutineArgument{Number: in.Number}, nil
	case "record":
		args, err := decodeArguments(in.Args)
		if err != nil {
			return nil, err
		}
		return &RecordInit{Args: args}, nil
	case "intrinsic-functor":
		op, ok := ParseFunctorOp(in.Op)
		if !ok {
			return nil, fmt.Errorf("ast: unknown functor %q", in.Op)
		}
		args, err := decodeArguments(in.Args)
		if err != nil {
			return nil, err
		}
		return &IntrinsicFunctor{Op: op, Args: args}, nil
	case "user-defined-functor":
		args, err := decodeArguments(in.Args)
		if err != nil {
			return nil, err
		}
		return &UserDefinedFunctor{Name: in.Name, Args: args, Loc: fromOptLoc(in.Loc)}, nil
	case "aggregator":
		op, ok := ParseAggregateOp(in.Op)
		if !ok {
			return nil, fmt.Errorf("ast: unknown aggregate %q", in.Op)
		}
		agg := &Aggregator{Op: op}
		if in.Target != nil {
			target, err := decodeArgument(in.Target)
			if err != nil {
				return nil, err
			}
			agg.Target = target
		}
		for _, raw := range in.Body {
			lit, err := decodeLiteral(raw)
			if err != nil {
				return nil, err
			}
			agg.Body = append(agg.Body, lit)
		}
		return agg, nil
	}
	return nil, fmt.Errorf("ast: unknown argument kind %q", in.Kind)
}

func decodeArguments(args []*argumentJSON) ([]Argument, error) {
	var out []Argument
	for _, arg := range args {
		decoded, err := decodeArgument(arg)
		if err != nil {
			return nil, err
		}
		out = append(out, decoded)
	}
	return out, nil
}

// ParseFunctorOp resolves a functor name.
func ParseFunctorOp(name string) (FunctorOp, bool) {
	for op, candidate := range functorNames {
		if candidate == name {
			return FunctorOp(op), true
		}
	}
	return 0, false
}

// ParseAggregateOp resolves an aggregate function name.
func ParseAggregateOp(name string) (AggregateOp, bool) {
	switch name {
	case "min":
		return AggregateMin, true
	case "max":
		return AggregateMax, true
	case "count":
		return AggregateCount, true
	case "sum":
		return AggregateSum, true
	}
	return 0, false
}

// ParseBinaryConstraintOp resolves a constraint operator symbol.
func ParseBinaryConstraintOp(symbol string) (BinaryConstraintOp, bool) {
	for op, candidate := range constraintSymbols {
		if candidate == symbol {
			return BinaryConstraintOp(op), true
		}
	}
	return 0, false
}
