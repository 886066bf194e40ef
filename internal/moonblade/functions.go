package moonblade

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xanlabs/xan-go/internal/csvio"
	"github.com/xanlabs/xan-go/internal/xerr"
)

func floatMod(a, b float64) float64 {
	m := math.Mod(a, b)
	if m != 0 && (m < 0) != (b < 0) {
		m += b
	}
	return m
}

func floatPow(a, b float64) float64 { return math.Pow(a, b) }

func indexOfSubstring(hay, needle string) int { return strings.Index(hay, needle) }

// evalCall dispatches a function-call node to the builtin catalog
// (spec §4.3's "closed, discoverable catalog"). Each case documents
// its arity and failure conditions per the spec's function-catalog
// contract.
func evalCall(prog *Program, n *CNode, row *csvio.ByteRecord) (Value, error) {
	args := make([]Value, len(n.Args))
	for i, id := range n.Args {
		v, err := Eval(prog, id, row)
		if err != nil {
			return Value{}, err
		}
		args[i] = v
	}
	fn, ok := builtins[n.Func]
	if !ok {
		return Value{}, xerr.Op(xerr.Eval, n.Func, xerr.Newf(xerr.Eval, "unknown function %q", n.Func))
	}
	return fn(args)
}

type builtinFunc func(args []Value) (Value, error)

func arityErr(name string, want int, got int) error {
	return xerr.Op(xerr.Eval, name, xerr.Newf(xerr.Eval, "expects %d argument(s), got %d", want, got))
}

var builtins map[string]builtinFunc

func init() {
	builtins = map[string]builtinFunc{
		// --- boolean / branching ---
		"if": func(a []Value) (Value, error) {
			if len(a) < 2 || len(a) > 3 {
				return Value{}, arityErr("if", 3, len(a))
			}
			if a[0].Truthy() {
				return a[1], nil
			}
			if len(a) == 3 {
				return a[2], nil
			}
			return Null(), nil
		},
		"not": func(a []Value) (Value, error) {
			if len(a) != 1 {
				return Value{}, arityErr("not", 1, len(a))
			}
			return Bool(!a[0].Truthy()), nil
		},
		"try": func(a []Value) (Value, error) {
			if len(a) != 1 {
				return Value{}, arityErr("try", 1, len(a))
			}
			if a[0].IsError() {
				return Null(), nil
			}
			return a[0], nil
		},
		"err": func(a []Value) (Value, error) {
			if len(a) != 1 {
				return Value{}, arityErr("err", 1, len(a))
			}
			return Err("user", a[0].Stringify()), nil
		},

		// --- utilities ---
		"typeof": func(a []Value) (Value, error) {
			if len(a) != 1 {
				return Value{}, arityErr("typeof", 1, len(a))
			}
			return String(a[0].Kind.String()), nil
		},
		"index": func(a []Value) (Value, error) {
			if len(a) != 2 {
				return Value{}, arityErr("index", 2, len(a))
			}
			return evalIndex(a[0], a[1])
		},
		"len": func(a []Value) (Value, error) {
			if len(a) != 1 {
				return Value{}, arityErr("len", 1, len(a))
			}
			switch a[0].Kind {
			case KindList:
				return Int(int64(len(a[0].L))), nil
			case KindMap:
				return Int(int64(len(a[0].M))), nil
			case KindString, KindBytes:
				return Int(int64(len([]rune(a[0].S)))), nil
			default:
				return Null(), nil
			}
		},
		"parse_json": func(a []Value) (Value, error) {
			if len(a) != 1 {
				return Value{}, arityErr("parse_json", 1, len(a))
			}
			return parseJSON(a[0].S)
		},

		// --- string / sequence ---
		"upper": str1(strings.ToUpper),
		"lower": str1(strings.ToLower),
		"trim":  str1(strings.TrimSpace),
		"ltrim": str1(func(s string) string { return strings.TrimLeft(s, " \t\r\n") }),
		"rtrim": str1(func(s string) string { return strings.TrimRight(s, " \t\r\n") }),
		"first": func(a []Value) (Value, error) {
			if len(a) != 1 {
				return Value{}, arityErr("first", 1, len(a))
			}
			switch a[0].Kind {
			case KindList:
				if len(a[0].L) == 0 {
					return Null(), nil
				}
				return a[0].L[0], nil
			case KindString, KindBytes:
				r := []rune(a[0].S)
				if len(r) == 0 {
					return Null(), nil
				}
				return String(string(r[0])), nil
			default:
				return Null(), nil
			}
		},
		"last": func(a []Value) (Value, error) {
			if len(a) != 1 {
				return Value{}, arityErr("last", 1, len(a))
			}
			switch a[0].Kind {
			case KindList:
				if len(a[0].L) == 0 {
					return Null(), nil
				}
				return a[0].L[len(a[0].L)-1], nil
			case KindString, KindBytes:
				r := []rune(a[0].S)
				if len(r) == 0 {
					return Null(), nil
				}
				return String(string(r[len(r)-1])), nil
			default:
				return Null(), nil
			}
		},
		"concat": func(a []Value) (Value, error) {
			var sb strings.Builder
			for _, v := range a {
				sb.WriteString(v.Stringify())
			}
			return String(sb.String()), nil
		},
		"split": func(a []Value) (Value, error) {
			if len(a) < 2 {
				return Value{}, arityErr("split", 2, len(a))
			}
			s := a[0].Stringify()
			if a[1].Kind == KindRegex {
				parts := a[1].R.Split(s, -1)
				return List(stringsToValues(parts)), nil
			}
			parts := strings.Split(s, a[1].Stringify())
			return List(stringsToValues(parts)), nil
		},
		"join": func(a []Value) (Value, error) {
			if len(a) != 2 || a[0].Kind != KindList {
				return Value{}, arityErr("join", 2, len(a))
			}
			sep := a[1].Stringify()
			parts := make([]string, len(a[0].L))
			for i, v := range a[0].L {
				parts[i] = v.Stringify()
			}
			return String(strings.Join(parts, sep)), nil
		},
		"replace": func(a []Value) (Value, error) {
			if len(a) != 3 {
				return Value{}, arityErr("replace", 3, len(a))
			}
			s := a[0].Stringify()
			if a[1].Kind == KindRegex {
				return String(a[1].R.ReplaceAllString(s, a[2].Stringify())), nil
			}
			return String(strings.ReplaceAll(s, a[1].Stringify(), a[2].Stringify())), nil
		},
		"trim_chars": func(a []Value) (Value, error) {
			if len(a) != 2 {
				return Value{}, arityErr("trim_chars", 2, len(a))
			}
			return String(strings.Trim(a[0].Stringify(), a[1].Stringify())), nil
		},
		"starts_with": func(a []Value) (Value, error) {
			if len(a) != 2 {
				return Value{}, arityErr("starts_with", 2, len(a))
			}
			return Bool(strings.HasPrefix(a[0].Stringify(), a[1].Stringify())), nil
		},
		"ends_with": func(a []Value) (Value, error) {
			if len(a) != 2 {
				return Value{}, arityErr("ends_with", 2, len(a))
			}
			return Bool(strings.HasSuffix(a[0].Stringify(), a[1].Stringify())), nil
		},
		"contains": func(a []Value) (Value, error) {
			if len(a) != 2 {
				return Value{}, arityErr("contains", 2, len(a))
			}
			if a[1].Kind == KindRegex {
				return Bool(a[1].R.MatchString(a[0].Stringify())), nil
			}
			return Bool(strings.Contains(a[0].Stringify(), a[1].Stringify())), nil
		},

		// --- regex ---
		"regex": func(a []Value) (Value, error) {
			if len(a) != 1 {
				return Value{}, arityErr("regex", 1, len(a))
			}
			re, err := regexp.Compile(a[0].Stringify())
			if err != nil {
				return Value{}, xerr.Op(xerr.Eval, "regex", err)
			}
			return Regex(re), nil
		},
		"match": func(a []Value) (Value, error) {
			if len(a) != 2 || a[1].Kind != KindRegex {
				return Value{}, arityErr("match", 2, len(a))
			}
			return Bool(a[1].R.MatchString(a[0].Stringify())), nil
		},
		"escape_regex": func(a []Value) (Value, error) {
			if len(a) != 1 {
				return Value{}, arityErr("escape_regex", 1, len(a))
			}
			return String(regexp.QuoteMeta(a[0].Stringify())), nil
		},

		// --- arithmetic helpers exposed as functions ---
		"abs": func(a []Value) (Value, error) {
			f, ok := a[0].AsFloat()
			if !ok {
				return Value{}, xerr.Op(xerr.Eval, "abs", xerr.Newf(xerr.Eval, "not numeric"))
			}
			if i, iok := a[0].AsInt(); iok && a[0].Kind != KindFloat {
				if i < 0 {
					i = -i
				}
				return Int(i), nil
			}
			return Float(math.Abs(f)), nil
		},
		"round": func(a []Value) (Value, error) {
			f, ok := a[0].AsFloat()
			if !ok {
				return Value{}, xerr.Op(xerr.Eval, "round", xerr.Newf(xerr.Eval, "not numeric"))
			}
			return Float(math.Round(f)), nil
		},
		"sqrt": func(a []Value) (Value, error) {
			f, ok := a[0].AsFloat()
			if !ok {
				return Value{}, xerr.Op(xerr.Eval, "sqrt", xerr.Newf(xerr.Eval, "not numeric"))
			}
			return Float(math.Sqrt(f)), nil
		},
		"int": func(a []Value) (Value, error) {
			i, ok := a[0].AsInt()
			if !ok {
				return Err("eval", "cannot convert to int"), nil
			}
			return Int(i), nil
		},
		"float": func(a []Value) (Value, error) {
			f, ok := a[0].AsFloat()
			if !ok {
				return Err("eval", "cannot convert to float"), nil
			}
			return Float(f), nil
		},
		"str": func(a []Value) (Value, error) {
			return String(a[0].Stringify()), nil
		},

		// --- collections / maps ---
		"get": func(a []Value) (Value, error) {
			if len(a) != 2 {
				return Value{}, arityErr("get", 2, len(a))
			}
			if a[0].Kind == KindMap {
				return MapGet(a[0], a[1].Stringify()), nil
			}
			return evalIndex(a[0], a[1])
		},
		"keys": func(a []Value) (Value, error) {
			if len(a) != 1 || a[0].Kind != KindMap {
				return Value{}, arityErr("keys", 1, len(a))
			}
			out := make([]Value, len(a[0].M))
			for i, e := range a[0].M {
				out[i] = String(e.Key)
			}
			return List(out), nil
		},
		"values": func(a []Value) (Value, error) {
			if len(a) != 1 || a[0].Kind != KindMap {
				return Value{}, arityErr("values", 1, len(a))
			}
			out := make([]Value, len(a[0].M))
			for i, e := range a[0].M {
				out[i] = e.Value
			}
			return List(out), nil
		},

		// --- list aggregations (pure, row-local; not the streaming
		// aggregator engine, which lives in internal/agg) ---
		"sum": listFold(0, func(acc, v float64) float64 { return acc + v }),
		"mean": func(a []Value) (Value, error) {
			if len(a) != 1 || a[0].Kind != KindList {
				return Value{}, arityErr("mean", 1, len(a))
			}
			if len(a[0].L) == 0 {
				return Null(), nil
			}
			var sum float64
			for _, v := range a[0].L {
				f, _ := v.AsFloat()
				sum += f
			}
			return Float(sum / float64(len(a[0].L))), nil
		},
		"min": func(a []Value) (Value, error) {
			return listExtreme(a, func(x, y float64) bool { return x < y })
		},
		"max": func(a []Value) (Value, error) {
			return listExtreme(a, func(x, y float64) bool { return x > y })
		},

		// --- random ---
		"md5": func(a []Value) (Value, error) {
			if len(a) != 1 {
				return Value{}, arityErr("md5", 1, len(a))
			}
			sum := md5.Sum([]byte(a[0].Stringify()))
			return String(hex.EncodeToString(sum[:])), nil
		},
		"random": func(a []Value) (Value, error) {
			return Float(rand.Float64()), nil
		},
		"uuid": func(a []Value) (Value, error) {
			return String(uuid.New().String()), nil
		},

		// --- dates ---
		"now": func(a []Value) (Value, error) {
			return String(time.Now().UTC().Format(time.RFC3339)), nil
		},
		"parse_date": func(a []Value) (Value, error) {
			if len(a) != 1 {
				return Value{}, arityErr("parse_date", 1, len(a))
			}
			t, err := ParseDatetime(a[0].Stringify())
			if err != nil {
				return Err("eval", err.Error()), nil
			}
			return String(t.Format(time.RFC3339)), nil
		},
		"strftime": func(a []Value) (Value, error) {
			if len(a) != 2 {
				return Value{}, arityErr("strftime", 2, len(a))
			}
			t, err := ParseDatetime(a[0].Stringify())
			if err != nil {
				return Err("eval", err.Error()), nil
			}
			return String(Strftime(t, a[1].Stringify())), nil
		},

		// --- IO ---
		"isfile": func(a []Value) (Value, error) {
			if len(a) != 1 {
				return Value{}, arityErr("isfile", 1, len(a))
			}
			_, err := os.Stat(a[0].Stringify())
			return Bool(err == nil), nil
		},
		"filesize": func(a []Value) (Value, error) {
			if len(a) != 1 {
				return Value{}, arityErr("filesize", 1, len(a))
			}
			info, err := os.Stat(a[0].Stringify())
			if err != nil {
				return Err("io", err.Error()), nil
			}
			return Int(info.Size()), nil
		},
		"bytesize": func(a []Value) (Value, error) {
			if len(a) != 1 {
				return Value{}, arityErr("bytesize", 1, len(a))
			}
			n, ok := a[0].AsFloat()
			if !ok {
				return Err("eval", "bytesize expects a number"), nil
			}
			return String(humanBytes(n)), nil
		},
		"pjoin": func(a []Value) (Value, error) {
			parts := make([]string, len(a))
			for i, v := range a {
				parts[i] = v.Stringify()
			}
			return String(filepath.Join(parts...)), nil
		},
		"ext": func(a []Value) (Value, error) {
			if len(a) != 1 {
				return Value{}, arityErr("ext", 1, len(a))
			}
			return String(filepath.Ext(a[0].Stringify())), nil
		},
		"read": func(a []Value) (Value, error) {
			if len(a) != 1 {
				return Value{}, arityErr("read", 1, len(a))
			}
			b, err := os.ReadFile(a[0].Stringify())
			if err != nil {
				return Err("io", err.Error()), nil
			}
			return String(string(b)), nil
		},
		"read_json": func(a []Value) (Value, error) {
			if len(a) != 1 {
				return Value{}, arityErr("read_json", 1, len(a))
			}
			b, err := os.ReadFile(a[0].Stringify())
			if err != nil {
				return Err("io", err.Error()), nil
			}
			return parseJSON(string(b))
		},
		"write": func(a []Value) (Value, error) {
			if len(a) != 2 {
				return Value{}, arityErr("write", 2, len(a))
			}
			err := os.WriteFile(a[1].Stringify(), []byte(a[0].Stringify()), 0o644)
			if err != nil {
				return Err("io", err.Error()), nil
			}
			return a[0], nil
		},
		"copy": func(a []Value) (Value, error) {
			if len(a) != 2 {
				return Value{}, arityErr("copy", 2, len(a))
			}
			src, err := os.Open(a[0].Stringify())
			if err != nil {
				return Err("io", err.Error()), nil
			}
			defer src.Close()
			dst, err := os.Create(a[1].Stringify())
			if err != nil {
				return Err("io", err.Error()), nil
			}
			defer dst.Close()
			if _, err := io.Copy(dst, src); err != nil {
				return Err("io", err.Error()), nil
			}
			return Bool(true), nil
		},
		"move": func(a []Value) (Value, error) {
			if len(a) != 2 {
				return Value{}, arityErr("move", 2, len(a))
			}
			if err := os.Rename(a[0].Stringify(), a[1].Stringify()); err != nil {
				return Err("io", err.Error()), nil
			}
			return Bool(true), nil
		},
	}
}

func str1(f func(string) string) builtinFunc {
	return func(a []Value) (Value, error) {
		if len(a) != 1 {
			return Value{}, arityErr("str1", 1, len(a))
		}
		return String(f(a[0].Stringify())), nil
	}
}

func stringsToValues(parts []string) []Value {
	out := make([]Value, len(parts))
	for i, p := range parts {
		out[i] = String(p)
	}
	return out
}

func listFold(init float64, f func(acc, v float64) float64) builtinFunc {
	return func(a []Value) (Value, error) {
		if len(a) != 1 || a[0].Kind != KindList {
			return Value{}, arityErr("sum", 1, len(a))
		}
		acc := init
		for _, v := range a[0].L {
			fv, _ := v.AsFloat()
			acc = f(acc, fv)
		}
		return Float(acc), nil
	}
}

func listExtreme(a []Value, better func(x, y float64) bool) (Value, error) {
	var vals []Value
	if len(a) == 1 && a[0].Kind == KindList {
		vals = a[0].L
	} else {
		vals = a
	}
	if len(vals) == 0 {
		return Null(), nil
	}
	best := vals[0]
	bestF, _ := best.AsFloat()
	for _, v := range vals[1:] {
		f, ok := v.AsFloat()
		if ok && better(f, bestF) {
			best, bestF = v, f
		}
	}
	return best, nil
}

func parseJSON(s string) (Value, error) {
	var raw any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return Err("eval", err.Error()), nil
	}
	return jsonToValue(raw), nil
}

func jsonToValue(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case float64:
		if t == math.Trunc(t) {
			return Int(int64(t))
		}
		return Float(t)
	case string:
		return String(t)
	case []any:
		out := make([]Value, len(t))
		for i, v := range t {
			out[i] = jsonToValue(v)
		}
		return List(out)
	case map[string]any:
		out := make([]MapEntry, 0, len(t))
		for k, v := range t {
			out = append(out, MapEntry{Key: k, Value: jsonToValue(v)})
		}
		return Map(out)
	default:
		return Null()
	}
}

func humanBytes(n float64) string {
	units := []string{"B", "KB", "MB", "GB", "TB", "PB"}
	i := 0
	for n >= 1024 && i < len(units)-1 {
		n /= 1024
		i++
	}
	return strconv.FormatFloat(n, 'f', 2, 64) + units[i]
}

var _ = fmt.Sprintf
