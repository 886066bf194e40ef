package command

import (
	"fmt"
	"io"
	"os"
	"strings"

	flags "github.com/jessevdk/go-flags"

	"github.com/xanlabs/xan-go/internal/csvio"
	"github.com/xanlabs/xan-go/internal/moonblade"
	"github.com/xanlabs/xan-go/internal/xerr"
)

// SelectOpts is `xan select <selection> [input]`: projects a column
// selection, the simplest pipeline in the toolkit. -e additionally
// evaluates one or more moonblade expressions and appends them as
// computed columns, honoring the `expr as name` named-output contract
// (spec.md §4.3) with the raw expression text as the default name.
type SelectOpts struct {
	CommonOpts
	Expressions string `short:"e" long:"evaluate" description:"Comma-separated expr [as name] clauses appended after the selection"`

	Args struct {
		Selection string `positional-arg-name:"selection"`
		Input     string `positional-arg-name:"input"`
	} `positional-args:"yes" required:"1"`
}

// selectClause is one parsed `-e` expression, named either explicitly
// (`as name`) or by its own source text.
type selectClause struct {
	Prog *moonblade.Program
	Name string
}

func parseSelectClauses(expr string, headers *csvio.ByteRecord, arity int, headerless bool) ([]selectClause, error) {
	var out []selectClause
	for _, part := range splitTopLevel(expr, ',') {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		ast, err := moonblade.Parse(part)
		if err != nil {
			return nil, err
		}
		name := part
		inner := ast
		if inner.Kind == moonblade.NodeNamed {
			name = inner.Name
			inner = inner.Inner
		}
		prog, err := moonblade.Concretize(inner, headers, arity, headerless)
		if err != nil {
			return nil, err
		}
		out = append(out, selectClause{Prog: prog, Name: name})
	}
	return out, nil
}

func RunSelect(args []string) error {
	var opts SelectOpts
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[options] <selection> [input]"
	if _, err := parser.ParseArgs(args); err != nil {
		return flagsErr(err)
	}
	opts.CommonOpts = opts.CommonOpts.ApplyRCDefaults()
	policy, err := moonblade.ParsePolicy(opts.Errors)
	if err != nil {
		return err
	}

	in, err := OpenInput(opts.Args.Input)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := OpenOutput(opts.Output)
	if err != nil {
		return err
	}
	defer out.Close()

	rd := csvio.NewReader(in, opts.ReaderConfigFor(opts.Args.Input))
	headers, arity, err := ReadHeaders(rd, opts.NoHeaders)
	if err != nil {
		return err
	}
	sel, err := csvio.ResolveSelection(opts.Args.Selection, headers, arity)
	if err != nil {
		return err
	}
	var clauses []selectClause
	if opts.Expressions != "" {
		clauses, err = parseSelectClauses(opts.Expressions, headers, arity, opts.NoHeaders)
		if err != nil {
			return err
		}
	}

	wr := csvio.NewWriter(out, opts.WriterConfigFor())
	if !opts.NoHeaders {
		head := project(headers, sel)
		for _, c := range clauses {
			head.AppendField([]byte(c.Name))
		}
		if err := wr.Write(head); err != nil {
			return xerr.New(xerr.Io, err)
		}
	}
	rec := csvio.NewByteRecord()
	for {
		if err := rd.Read(rec); err != nil {
			if err == io.EOF {
				break
			}
			return xerr.New(xerr.Io, err)
		}
		row := project(rec, sel)
		for _, c := range clauses {
			v, err := EvalRow(c.Prog, rec, policy)
			if err != nil {
				return err
			}
			row.AppendField([]byte(v.Stringify()))
		}
		if err := wr.Write(row); err != nil {
			return xerr.New(xerr.Io, err)
		}
	}
	return wr.Flush()
}

func project(rec *csvio.ByteRecord, sel csvio.Selection) *csvio.ByteRecord {
	out := csvio.NewByteRecord()
	for _, idx := range sel.Indices {
		if idx < rec.Len() {
			out.AppendField(rec.Field(idx))
		} else {
			out.AppendField(nil)
		}
	}
	return out
}

// HeadersOpts is `xan headers [input]`: lists column names, one per
// line, optionally numbered.
type HeadersOpts struct {
	CommonOpts
	Justify bool `short:"j" long:"just-names" description:"Print only names, no indices"`

	Args struct {
		Input string `positional-arg-name:"input"`
	} `positional-args:"yes"`
}

func RunHeaders(args []string) error {
	var opts HeadersOpts
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[options] [input]"
	if _, err := parser.ParseArgs(args); err != nil {
		return flagsErr(err)
	}
	opts.CommonOpts = opts.CommonOpts.ApplyRCDefaults()

	in, err := OpenInput(opts.Args.Input)
	if err != nil {
		return err
	}
	defer in.Close()

	rd := csvio.NewReader(in, opts.ReaderConfigFor(opts.Args.Input))
	headers, _, err := ReadHeaders(rd, false)
	if err != nil {
		return err
	}
	w := os.Stdout
	for i := 0; i < headers.Len(); i++ {
		if opts.Justify {
			fmt.Fprintln(w, headers.FieldString(i))
		} else {
			fmt.Fprintf(w, "%d\t%s\n", i, headers.FieldString(i))
		}
	}
	return nil
}

// CountOpts is `xan count [input]`: counts data rows, optionally per
// group (-g), streaming with O(1) memory in the ungrouped case.
type CountOpts struct {
	CommonOpts
	Group string `short:"g" long:"groupby" description:"Count rows per distinct value of this selection"`

	Args struct {
		Input string `positional-arg-name:"input"`
	} `positional-args:"yes"`
}

func RunCount(args []string) error {
	var opts CountOpts
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[options] [input]"
	if _, err := parser.ParseArgs(args); err != nil {
		return flagsErr(err)
	}
	opts.CommonOpts = opts.CommonOpts.ApplyRCDefaults()

	in, err := OpenInput(opts.Args.Input)
	if err != nil {
		return err
	}
	defer in.Close()

	rd := csvio.NewReader(in, opts.ReaderConfigFor(opts.Args.Input))
	headers, arity, err := ReadHeaders(rd, opts.NoHeaders)
	if err != nil {
		return err
	}

	if opts.Group == "" {
		var n int64
		rec := csvio.NewByteRecord()
		for {
			if err := rd.Read(rec); err != nil {
				if err == io.EOF {
					break
				}
				return xerr.New(xerr.Io, err)
			}
			n++
		}
		fmt.Println(n)
		return nil
	}

	sel, err := csvio.ResolveSelection(opts.Group, headers, arity)
	if err != nil {
		return err
	}
	counts := map[string]int64{}
	order := []string{}
	rec := csvio.NewByteRecord()
	for {
		if err := rd.Read(rec); err != nil {
			if err == io.EOF {
				break
			}
			return xerr.New(xerr.Io, err)
		}
		fields := make([][]byte, len(sel.Indices))
		for i, idx := range sel.Indices {
			fields[i] = append([]byte(nil), rec.Field(idx)...)
		}
		key := strings.Join(bytesToStrings(fields), "\x00")
		if _, ok := counts[key]; !ok {
			order = append(order, key)
		}
		counts[key]++
	}
	for _, key := range order {
		fmt.Printf("%s\t%d\n", strings.ReplaceAll(key, "\x00", "\t"), counts[key])
	}
	return nil
}

func bytesToStrings(in [][]byte) []string {
	out := make([]string, len(in))
	for i, b := range in {
		out[i] = string(b)
	}
	return out
}

// ViewOpts is `xan view [input]`: pretty-prints a CSV as an aligned
// table, capped at a row limit by default to stay interactive.
type ViewOpts struct {
	CommonOpts
	Limit int `short:"l" long:"limit" description:"Max rows to render (0 = unlimited)" default:"30"`

	Args struct {
		Input string `positional-arg-name:"input"`
	} `positional-args:"yes"`
}

func RunView(args []string) error {
	var opts ViewOpts
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[options] [input]"
	if _, err := parser.ParseArgs(args); err != nil {
		return flagsErr(err)
	}
	opts.CommonOpts = opts.CommonOpts.ApplyRCDefaults()

	in, err := OpenInput(opts.Args.Input)
	if err != nil {
		return err
	}
	defer in.Close()

	rd := csvio.NewReader(in, opts.ReaderConfigFor(opts.Args.Input))
	headers, _, err := ReadHeaders(rd, opts.NoHeaders)
	if err != nil {
		return err
	}

	rows := [][]string{headers.Fields()}
	rec := csvio.NewByteRecord()
	count := 0
	for {
		if opts.Limit > 0 && count >= opts.Limit {
			break
		}
		if err := rd.Read(rec); err != nil {
			if err == io.EOF {
				break
			}
			return xerr.New(xerr.Io, err)
		}
		rows = append(rows, rec.Fields())
		count++
	}

	widths := make([]int, headers.Len())
	for _, row := range rows {
		for i, f := range row {
			if i < len(widths) && len(f) > widths[i] {
				widths[i] = len(f)
			}
		}
	}
	for _, row := range rows {
		parts := make([]string, len(row))
		for i, f := range row {
			w := 0
			if i < len(widths) {
				w = widths[i]
			}
			parts[i] = f + strings.Repeat(" ", w-len(f))
		}
		fmt.Println(strings.Join(parts, "  "))
	}
	return nil
}
