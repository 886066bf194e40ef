package moonblade

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xanlabs/xan-go/internal/csvio"
	"github.com/xanlabs/xan-go/internal/xerr"
)

// nodeIDsKey renders a slice of already-interned child NodeIDs into a
// CSE key fragment: since children are looked up (or inserted) before
// their parent, equal NodeIDs here mean structurally-identical
// subexpressions, so keying a parent purely on its children's IDs is
// sufficient for hash-consing without re-walking the AST.
func nodeIDsKey(ids []NodeID) string {
	var sb strings.Builder
	for i, id := range ids {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(int(id)))
	}
	return sb.String()
}

// NodeID indexes into a Program's flat arena, per spec §9's "arena
// allocation keyed by u32 node indices" guidance — avoids a deep
// pointer graph and makes a Program cheap to clone per worker.
type NodeID int32

// OpCode is a concretized node's operation tag.
type OpCode int

const (
	OpConst OpCode = iota
	OpColumn
	OpCall
	OpMember
	OpIndex
	OpSlice
	OpUnary
	OpBinary
	OpList
	OpMapLit
)

// CNode is one concretized node: identifiers have become column
// indices, constant subexpressions have become OpConst with a
// pre-evaluated value, and duplicate subexpressions within the same
// Program share a single NodeID (CSE).
type CNode struct {
	Op   OpCode
	Const Value

	Column int // valid when Op == OpColumn

	Func     string
	Args     []NodeID
	NamedArg map[string]NodeID

	Target NodeID
	Key    string

	IndexFrom NodeID
	IndexTo   NodeID
	HasFrom   bool
	HasTo     bool

	UnaryOp string
	BinOp   string
	Left    NodeID
	Right   NodeID

	Pairs []CMapPair
}

type CMapPair struct {
	Key   string
	Value NodeID
}

// Program is a concretized, arena-backed moonblade expression, bound
// to a specific header row. Programs are compiled once per command
// and cloned cheaply per worker (the arena is a slice; compiled
// regexes inside OpConst values are shared by reference).
type Program struct {
	Nodes []CNode
	Root  NodeID
	Name  string // from `expr as name`; empty if undecorated

	Headerless bool
}

// Clone returns a shallow copy safe to hand to another worker: the
// node arena is copied (so concurrent eval doesn't need a read lock)
// but compiled regexes and constant Values are shared.
func (p *Program) Clone() *Program {
	nodes := make([]CNode, len(p.Nodes))
	copy(nodes, p.Nodes)
	return &Program{Nodes: nodes, Root: p.Root, Name: p.Name, Headerless: p.Headerless}
}

// concretizer performs constant folding and common subexpression
// elimination while lowering the AST into the Program arena.
type concretizer struct {
	headers    *csvio.ByteRecord
	headerless bool
	arity      int
	nodes      []CNode
	// cseKey dedups structurally-identical, side-effect-free nodes so
	// `a + b` appearing thrice in one program executes once per row
	// (spec §4.3 concretization contract).
	cseIndex map[string]NodeID
}

// Concretize binds identifiers to column indices against headers (or
// validates bare integer indices in headerless mode), folds constant
// subexpressions, and deduplicates repeated subexpressions.
func Concretize(expr *Expr, headers *csvio.ByteRecord, arity int, headerless bool) (*Program, error) {
	c := &concretizer{
		headers:    headers,
		headerless: headerless,
		arity:      arity,
		cseIndex:   map[string]NodeID{},
	}
	name := ""
	if expr.Kind == NodeNamed {
		name = expr.Name
		expr = expr.Inner
	}
	root, err := c.lower(expr)
	if err != nil {
		return nil, err
	}
	return &Program{Nodes: c.nodes, Root: root, Name: name, Headerless: headerless}, nil
}

func (c *concretizer) add(n CNode, key string) NodeID {
	id, _ := c.addNew(n, key)
	return id
}

// addNew is add, plus whether this call actually inserted a new node
// (false on a CSE cache hit). Callers that may const-fold their result
// need this distinction: folding must only happen once per distinct
// subexpression, and its result — not the pre-fold node — is what
// later occurrences of the same key must resolve to, or a
// side-effecting constant call (e.g. read_json) would re-run once per
// duplicate occurrence instead of once per program (spec §4.3).
func (c *concretizer) addNew(n CNode, key string) (NodeID, bool) {
	if key != "" {
		if id, ok := c.cseIndex[key]; ok {
			return id, false
		}
	}
	id := NodeID(len(c.nodes))
	c.nodes = append(c.nodes, n)
	if key != "" {
		c.cseIndex[key] = id
	}
	return id, true
}

// foldIfNew const-folds id when isNew is true, updating the CSE index
// so subsequent occurrences of key resolve straight to the folded
// result instead of re-folding (see addNew). A constant subexpression
// whose folding fails (e.g. 1 / 0) is left unfolded, so its error only
// surfaces if evaluation actually reaches it.
func (c *concretizer) foldIfNew(id NodeID, isNew bool, key string) (NodeID, error) {
	if !isNew {
		return id, nil
	}
	folded, err := c.foldConst(id)
	if err != nil {
		return id, nil
	}
	if key != "" {
		c.cseIndex[key] = folded
	}
	return folded, nil
}

func (c *concretizer) lower(e *Expr) (NodeID, error) {
	switch e.Kind {
	case NodeLiteral:
		return c.add(CNode{Op: OpConst, Const: e.Lit}, "lit:"+e.Lit.Stringify()+e.Lit.Kind.String()), nil

	case NodeIdent:
		if e.Ident == "_" {
			return 0, xerr.Newf(xerr.Parse, "unbound placeholder '_' outside a pipe expression")
		}
		col, err := c.resolveColumn(e.Ident)
		if err != nil {
			return 0, err
		}
		return c.add(CNode{Op: OpColumn, Column: col}, "col:"+e.Ident), nil

	case NodeCall:
		if e.Func == "col" || e.Func == "cols" {
			return c.lowerColFunc(e)
		}
		args := make([]NodeID, len(e.Args))
		constAll := true
		for i, a := range e.Args {
			id, err := c.lower(a)
			if err != nil {
				return 0, err
			}
			args[i] = id
			if c.nodes[id].Op != OpConst {
				constAll = false
			}
		}
		// Only side-effect-free functions are eligible for CSE: a
		// node keyed purely by (func, arg NodeIDs) would otherwise
		// silently collapse repeated random()/uuid() calls into one
		// evaluation (spec §4.3 limits CSE to side-effect-free nodes).
		key := ""
		if isPureFunction(e.Func) {
			key = "call:" + e.Func + ":" + nodeIDsKey(args)
		}
		id, isNew := c.addNew(CNode{Op: OpCall, Func: e.Func, Args: args}, key)
		if constAll && isPureFunction(e.Func) {
			return c.foldIfNew(id, isNew, key)
		}
		return id, nil

	case NodeMember:
		target, err := c.lower(e.Target)
		if err != nil {
			return 0, err
		}
		key := "mem:" + e.Key + ":" + nodeIDsKey([]NodeID{target})
		return c.add(CNode{Op: OpMember, Target: target, Key: e.Key}, key), nil

	case NodeIndex:
		target, err := c.lower(e.Target)
		if err != nil {
			return 0, err
		}
		from, err := c.lower(e.IndexFrom)
		if err != nil {
			return 0, err
		}
		key := "idx:" + nodeIDsKey([]NodeID{target, from})
		return c.add(CNode{Op: OpIndex, Target: target, IndexFrom: from, HasFrom: true}, key), nil

	case NodeSlice:
		target, err := c.lower(e.Target)
		if err != nil {
			return 0, err
		}
		n := CNode{Op: OpSlice, Target: target}
		if e.IndexFrom != nil {
			from, err := c.lower(e.IndexFrom)
			if err != nil {
				return 0, err
			}
			n.IndexFrom, n.HasFrom = from, true
		}
		if e.IndexTo != nil {
			to, err := c.lower(e.IndexTo)
			if err != nil {
				return 0, err
			}
			n.IndexTo, n.HasTo = to, true
		}
		key := fmt.Sprintf("slice:%d:%d:%d:%v:%v", n.Target, n.IndexFrom, n.IndexTo, n.HasFrom, n.HasTo)
		return c.add(n, key), nil

	case NodeUnary:
		operand, err := c.lower(e.Left)
		if err != nil {
			return 0, err
		}
		key := "un:" + e.Op + ":" + nodeIDsKey([]NodeID{operand})
		id, isNew := c.addNew(CNode{Op: OpUnary, UnaryOp: e.Op, Left: operand}, key)
		if c.nodes[operand].Op == OpConst {
			return c.foldIfNew(id, isNew, key)
		}
		return id, nil

	case NodeBinary:
		left, err := c.lower(e.Left)
		if err != nil {
			return 0, err
		}
		right, err := c.lower(e.Right)
		if err != nil {
			return 0, err
		}
		key := "bin:" + e.Op + ":" + nodeIDsKey([]NodeID{left, right})
		id, isNew := c.addNew(CNode{Op: OpBinary, BinOp: e.Op, Left: left, Right: right}, key)
		if c.nodes[left].Op == OpConst && c.nodes[right].Op == OpConst && e.Op != "&&" && e.Op != "||" {
			return c.foldIfNew(id, isNew, key)
		}
		return id, nil

	case NodeList:
		items := make([]NodeID, len(e.Items))
		for i, it := range e.Items {
			id, err := c.lower(it)
			if err != nil {
				return 0, err
			}
			items[i] = id
		}
		return c.add(CNode{Op: OpList, Args: items}, ""), nil

	case NodeMapLit:
		pairs := make([]CMapPair, len(e.Pairs))
		for i, pr := range e.Pairs {
			id, err := c.lower(pr.Value)
			if err != nil {
				return 0, err
			}
			pairs[i] = CMapPair{Key: pr.Key, Value: id}
		}
		return c.add(CNode{Op: OpMapLit, Pairs: pairs}, ""), nil

	default:
		return 0, xerr.Newf(xerr.Parse, "unsupported node kind %d", e.Kind)
	}
}

// lowerColFunc handles the explicit col(name_or_index, nth?) form.
func (c *concretizer) lowerColFunc(e *Expr) (NodeID, error) {
	if len(e.Args) == 0 || e.Args[0].Kind != NodeLiteral {
		return 0, xerr.Newf(xerr.Parse, "col() requires a literal name or index")
	}
	lit := e.Args[0].Lit
	nth := 0
	if len(e.Args) > 1 {
		if e.Args[1].Kind != NodeLiteral {
			return 0, xerr.Newf(xerr.Parse, "col() nth argument must be a literal integer")
		}
		n, ok := e.Args[1].Lit.AsInt()
		if !ok {
			return 0, xerr.Newf(xerr.Parse, "col() nth argument must be an integer")
		}
		nth = int(n)
	}
	var name string
	if lit.Kind == KindString {
		name = lit.S
	} else if i, ok := lit.AsInt(); ok {
		idx := int(i)
		if idx < 0 {
			idx += c.arity
		}
		if idx < 0 || idx >= c.arity {
			return 0, xerr.Newf(xerr.Selection, "column index out of bounds: %d", i)
		}
		return c.add(CNode{Op: OpColumn, Column: idx}, fmt.Sprintf("col:#%d", idx)), nil
	}
	sel, err := csvio.ResolveSelection(quoteIfNeeded(name)+selNth(nth), c.headers, c.arity)
	if err != nil {
		return 0, err
	}
	return c.add(CNode{Op: OpColumn, Column: sel.Indices[0]}, ""), nil
}

func selNth(nth int) string {
	if nth == 0 {
		return ""
	}
	return "[" + itoa(nth) + "]"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func quoteIfNeeded(name string) string {
	for _, r := range name {
		switch r {
		case ':', '!', '[', ']', ' ':
			return `"` + name + `"`
		}
	}
	return name
}

func (c *concretizer) resolveColumn(name string) (int, error) {
	if c.headerless {
		return 0, xerr.Newf(xerr.Selection, "headerless mode requires col(i): unbound identifier %q", name)
	}
	sel, err := csvio.ResolveSelection(quoteIfNeeded(name), c.headers, c.arity)
	if err != nil {
		return 0, err
	}
	return sel.Indices[0], nil
}

// foldConst evaluates a node whose operands are all OpConst, once, at
// concretization time (spec §4.3 constant-folding contract).
func (c *concretizer) foldConst(id NodeID) (NodeID, error) {
	prog := &Program{Nodes: c.nodes}
	v, err := Eval(prog, id, nil)
	if err != nil {
		return 0, err
	}
	folded := c.add(CNode{Op: OpConst, Const: v}, "")
	return folded, nil
}

// isPureFunction reports whether fn has no side effects relevant to
// the once-per-concretization contract (spec's read_json example: a
// constant read_json("config.json") call is folded and the file read
// exactly once). IO functions are still pure in the sense that
// folding them is *desired* specifically so they run once; functions
// that depend on per-row randomness must never be folded.
func isPureFunction(fn string) bool {
	switch fn {
	case "random", "uuid":
		return false
	default:
		return true
	}
}
