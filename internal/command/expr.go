package command

import (
	"fmt"
	"os"

	"github.com/xanlabs/xan-go/internal/csvio"
	"github.com/xanlabs/xan-go/internal/moonblade"
	"github.com/xanlabs/xan-go/internal/xerr"
)

// CompileExpr parses and concretizes one moonblade expression against
// a header row, the shape every expression-driven subcommand
// (filter/map/search/transform) shares.
func CompileExpr(src string, headers *csvio.ByteRecord, arity int, headerless bool) (*moonblade.Program, error) {
	ast, err := moonblade.Parse(src)
	if err != nil {
		return nil, err
	}
	return moonblade.Concretize(ast, headers, arity, headerless)
}

// EvalRow evaluates prog against row under the given error policy,
// applying the -E/--errors contract uniformly across subcommands:
// panic aborts the run, ignore/log/report all continue with a Null
// substitute, log/report additionally surface the error on stderr (a
// real report sink is wired by the caller when it needs structured
// output rather than a line on stderr).
func EvalRow(prog *moonblade.Program, row *csvio.ByteRecord, policy moonblade.ErrorPolicy) (moonblade.Value, error) {
	v, err := moonblade.Eval(prog, prog.Root, row)
	if err != nil {
		switch policy {
		case moonblade.PolicyPanic:
			return moonblade.Value{}, err
		case moonblade.PolicyLog, moonblade.PolicyReport:
			fmt.Fprintf(os.Stderr, "xan: row error: %v\n", err)
			return moonblade.Null(), nil
		default: // ignore
			return moonblade.Null(), nil
		}
	}
	if v.IsError() {
		switch policy {
		case moonblade.PolicyPanic:
			return moonblade.Value{}, xerr.Newf(xerr.Eval, "%s", v.ErrorString())
		case moonblade.PolicyLog, moonblade.PolicyReport:
			fmt.Fprintf(os.Stderr, "xan: row error: %s\n", v.ErrorString())
		}
		return moonblade.Null(), nil
	}
	return v, nil
}
