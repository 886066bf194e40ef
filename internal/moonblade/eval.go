package moonblade

import (
	"github.com/xanlabs/xan-go/internal/csvio"
	"github.com/xanlabs/xan-go/internal/xerr"
)

// ErrorPolicy is the -E/--errors flag contract (spec §4.3 Error
// policy): how a command reacts to a Value::Error surfacing from
// EvalRow.
type ErrorPolicy int

const (
	PolicyPanic ErrorPolicy = iota
	PolicyIgnore
	PolicyLog
	PolicyReport
)

func ParsePolicy(s string) (ErrorPolicy, error) {
	switch s {
	case "panic":
		return PolicyPanic, nil
	case "ignore":
		return PolicyIgnore, nil
	case "log":
		return PolicyLog, nil
	case "report":
		return PolicyReport, nil
	default:
		return 0, xerr.Newf(xerr.Arg, "unknown error policy %q", s)
	}
}

// Eval evaluates node id of prog against row (nil row is only valid
// when every reachable node is itself constant, e.g. during constant
// folding at concretization time).
func Eval(prog *Program, id NodeID, row *csvio.ByteRecord) (Value, error) {
	n := &prog.Nodes[id]
	switch n.Op {
	case OpConst:
		return n.Const, nil

	case OpColumn:
		if row == nil || n.Column >= row.Len() {
			return Null(), nil
		}
		return String(row.FieldString(n.Column)), nil

	case OpCall:
		if n.Func == "if" {
			return evalIf(prog, n, row)
		}
		return evalCall(prog, n, row)

	case OpMember:
		target, err := Eval(prog, n.Target, row)
		if err != nil {
			return Value{}, err
		}
		if target.Kind != KindMap {
			return Null(), nil
		}
		return MapGet(target, n.Key), nil

	case OpIndex:
		target, err := Eval(prog, n.Target, row)
		if err != nil {
			return Value{}, err
		}
		idxVal, err := Eval(prog, n.IndexFrom, row)
		if err != nil {
			return Value{}, err
		}
		return evalIndex(target, idxVal)

	case OpSlice:
		target, err := Eval(prog, n.Target, row)
		if err != nil {
			return Value{}, err
		}
		var from, to *int64
		if n.HasFrom {
			v, err := Eval(prog, n.IndexFrom, row)
			if err != nil {
				return Value{}, err
			}
			if i, ok := v.AsInt(); ok {
				from = &i
			}
		}
		if n.HasTo {
			v, err := Eval(prog, n.IndexTo, row)
			if err != nil {
				return Value{}, err
			}
			if i, ok := v.AsInt(); ok {
				to = &i
			}
		}
		return evalSlice(target, from, to)

	case OpUnary:
		operand, err := Eval(prog, n.Left, row)
		if err != nil {
			return Value{}, err
		}
		return evalUnary(n.UnaryOp, operand)

	case OpBinary:
		return evalBinary(prog, n, row)

	case OpList:
		items := make([]Value, len(n.Args))
		for i, argID := range n.Args {
			v, err := Eval(prog, argID, row)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return List(items), nil

	case OpMapLit:
		entries := make([]MapEntry, len(n.Pairs))
		for i, pr := range n.Pairs {
			v, err := Eval(prog, pr.Value, row)
			if err != nil {
				return Value{}, err
			}
			entries[i] = MapEntry{Key: pr.Key, Value: v}
		}
		return Map(entries), nil

	default:
		return Value{}, xerr.Newf(xerr.Eval, "unhandled opcode %d", n.Op)
	}
}

// evalIf special-cases the `if` call form so only the taken branch is
// evaluated (spec §4.3: "if(cond, then, else?) only evaluates the
// chosen branch"), unlike the general evalCall path which evaluates
// every argument before dispatch.
func evalIf(prog *Program, n *CNode, row *csvio.ByteRecord) (Value, error) {
	if len(n.Args) < 2 || len(n.Args) > 3 {
		return Value{}, xerr.Op(xerr.Eval, "if", xerr.Newf(xerr.Eval, "expects 2 or 3 argument(s), got %d", len(n.Args)))
	}
	cond, err := Eval(prog, n.Args[0], row)
	if err != nil {
		return Value{}, err
	}
	if cond.Truthy() {
		return Eval(prog, n.Args[1], row)
	}
	if len(n.Args) == 3 {
		return Eval(prog, n.Args[2], row)
	}
	return Null(), nil
}

func evalUnary(op string, v Value) (Value, error) {
	switch op {
	case "!":
		return Bool(!v.Truthy()), nil
	case "-":
		if i, ok := v.AsInt(); ok && v.Kind != KindFloat {
			return Int(-i), nil
		}
		if f, ok := v.AsFloat(); ok {
			return Float(-f), nil
		}
		return Value{}, xerr.Op(xerr.Eval, "-", xerr.Newf(xerr.Eval, "cannot negate %s", v.Kind))
	default:
		return Value{}, xerr.Newf(xerr.Eval, "unknown unary operator %q", op)
	}
}

func evalBinary(prog *Program, n *CNode, row *csvio.ByteRecord) (Value, error) {
	// Short-circuit operators evaluate the right side only when
	// needed (spec §4.3).
	switch n.BinOp {
	case "&&":
		left, err := Eval(prog, n.Left, row)
		if err != nil {
			return Value{}, err
		}
		if !left.Truthy() {
			return left, nil
		}
		return Eval(prog, n.Right, row)
	case "||":
		left, err := Eval(prog, n.Left, row)
		if err != nil {
			return Value{}, err
		}
		if left.Truthy() {
			return left, nil
		}
		return Eval(prog, n.Right, row)
	}

	left, err := Eval(prog, n.Left, row)
	if err != nil {
		return Value{}, err
	}
	right, err := Eval(prog, n.Right, row)
	if err != nil {
		return Value{}, err
	}
	return applyBinary(n.BinOp, left, right)
}

func applyBinary(op string, left, right Value) (Value, error) {
	switch op {
	case "+", "-", "*", "/", "//", "%", "**":
		return arith(op, left, right)
	case "eq", "ne", "lt", "le", "gt", "ge":
		c := lexCompare(left, right)
		switch op {
		case "eq":
			return Bool(c == 0), nil
		case "ne":
			return Bool(c != 0), nil
		case "lt":
			return Bool(c < 0), nil
		case "le":
			return Bool(c <= 0), nil
		case "gt":
			return Bool(c > 0), nil
		case "ge":
			return Bool(c >= 0), nil
		}
	case "==", "!=", "<", "<=", ">", ">=":
		c, ok := numCompare(left, right)
		if !ok {
			if op == "==" {
				return Bool(Equal(left, right)), nil
			}
			if op == "!=" {
				return Bool(!Equal(left, right)), nil
			}
			return Value{}, xerr.Op(xerr.Eval, op, xerr.Newf(xerr.Eval, "cannot compare %s and %s numerically", left.Kind, right.Kind))
		}
		switch op {
		case "==":
			return Bool(c == 0), nil
		case "!=":
			return Bool(c != 0), nil
		case "<":
			return Bool(c < 0), nil
		case "<=":
			return Bool(c <= 0), nil
		case ">":
			return Bool(c > 0), nil
		case ">=":
			return Bool(c >= 0), nil
		}
	case "++":
		return String(left.Stringify() + right.Stringify()), nil
	case "in":
		return evalIn(left, right)
	}
	return Value{}, xerr.Newf(xerr.Eval, "unknown binary operator %q", op)
}

func arith(op string, left, right Value) (Value, error) {
	lf, lok := left.AsFloat()
	rf, rok := right.AsFloat()
	if !lok || !rok {
		return Value{}, xerr.Op(xerr.Eval, op, xerr.Newf(xerr.Eval, "operand is not numeric"))
	}
	li, liok := left.AsInt()
	ri, riok := right.AsInt()
	useInt := liok && riok && left.Kind != KindFloat && right.Kind != KindFloat && op != "/" && op != "**"

	switch op {
	case "+":
		if useInt {
			return Int(li + ri), nil
		}
		return Float(lf + rf), nil
	case "-":
		if useInt {
			return Int(li - ri), nil
		}
		return Float(lf - rf), nil
	case "*":
		if useInt {
			return Int(li * ri), nil
		}
		return Float(lf * rf), nil
	case "/":
		if rf == 0 {
			return Value{}, xerr.Op(xerr.Eval, "/", xerr.Newf(xerr.Eval, "division by zero"))
		}
		return Float(lf / rf), nil
	case "//":
		if rf == 0 {
			return Value{}, xerr.Op(xerr.Eval, "//", xerr.Newf(xerr.Eval, "division by zero"))
		}
		if liok && riok {
			q := li / ri
			if (li%ri != 0) && ((li < 0) != (ri < 0)) {
				q--
			}
			return Int(q), nil
		}
		return Float(float64(int64(lf / rf))), nil
	case "%":
		if rf == 0 {
			return Value{}, xerr.Op(xerr.Eval, "%", xerr.Newf(xerr.Eval, "division by zero"))
		}
		if useInt {
			m := li % ri
			if m != 0 && (m < 0) != (ri < 0) {
				m += ri
			}
			return Int(m), nil
		}
		return Float(floatMod(lf, rf)), nil
	case "**":
		return Float(floatPow(lf, rf)), nil
	}
	return Value{}, xerr.Newf(xerr.Eval, "unknown arithmetic operator %q", op)
}

func evalIn(needle, hay Value) (Value, error) {
	switch hay.Kind {
	case KindList:
		for _, item := range hay.L {
			if Equal(needle, item) {
				return Bool(true), nil
			}
		}
		return Bool(false), nil
	case KindMap:
		for _, e := range hay.M {
			if e.Key == needle.Stringify() {
				return Bool(true), nil
			}
		}
		return Bool(false), nil
	case KindString, KindBytes:
		return Bool(indexOfSubstring(hay.S, needle.Stringify()) >= 0), nil
	default:
		return Value{}, xerr.Newf(xerr.Eval, "'in' requires a list, map, or string right operand")
	}
}

func evalIndex(target, idx Value) (Value, error) {
	i, ok := idx.AsInt()
	if !ok {
		return Value{}, xerr.Newf(xerr.Eval, "index must be an integer")
	}
	switch target.Kind {
	case KindList:
		n := int64(len(target.L))
		if i < 0 {
			i += n
		}
		if i < 0 || i >= n {
			return Null(), nil
		}
		return target.L[i], nil
	case KindString, KindBytes:
		runes := []rune(target.S)
		n := int64(len(runes))
		if i < 0 {
			i += n
		}
		if i < 0 || i >= n {
			return Null(), nil
		}
		return String(string(runes[i])), nil
	case KindMap:
		return MapGet(target, idx.Stringify()), nil
	default:
		return Null(), nil
	}
}

func evalSlice(target Value, from, to *int64) (Value, error) {
	switch target.Kind {
	case KindList:
		n := int64(len(target.L))
		s, e := sliceBounds(n, from, to)
		return List(append([]Value(nil), target.L[s:e]...)), nil
	case KindString, KindBytes:
		runes := []rune(target.S)
		n := int64(len(runes))
		s, e := sliceBounds(n, from, to)
		return String(string(runes[s:e])), nil
	default:
		return Null(), nil
	}
}

func sliceBounds(n int64, from, to *int64) (int64, int64) {
	s := int64(0)
	e := n
	if from != nil {
		s = *from
		if s < 0 {
			s += n
		}
	}
	if to != nil {
		e = *to
		if e < 0 {
			e += n
		}
	}
	if s < 0 {
		s = 0
	}
	if e > n {
		e = n
	}
	if s > e {
		s = e
	}
	return s, e
}
