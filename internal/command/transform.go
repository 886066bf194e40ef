package command

import (
	"io"
	"regexp"

	flags "github.com/jessevdk/go-flags"

	"github.com/xanlabs/xan-go/internal/csvio"
	"github.com/xanlabs/xan-go/internal/moonblade"
	"github.com/xanlabs/xan-go/internal/xerr"
)

// MapOpts is `xan map <expr> [name] [input]`: appends (or, with -r,
// replaces) a column computed from expr. name may be given explicitly
// as a second positional argument, or omitted in favor of expr's own
// trailing `as name` decoration (spec.md §4.3's named-output contract,
// e.g. `map 'price * qty as total' sales.csv`).
type MapOpts struct {
	CommonOpts
	Rename  string `short:"r" long:"rename" description:"Replace this column instead of appending a new one"`

	Args struct {
		Expr string   `positional-arg-name:"expr"`
		Rest []string `positional-arg-name:"name-and-or-input"`
	} `positional-args:"yes" required:"1"`
}

// resolveMapNameAndInput disambiguates the optional trailing
// positionals against expr's parsed `as name` decoration: with two
// trailing args they are name and input explicitly; with one, it's
// input when expr already named itself and name otherwise; with
// none, expr's decoration must supply the name.
func resolveMapNameAndInput(progName string, rest []string) (name, input string, err error) {
	switch len(rest) {
	case 0:
		if progName == "" {
			return "", "", xerr.Newf(xerr.Arg, "map requires a column name: either pass it as a second argument or end expr with \"as name\"")
		}
		return progName, "", nil
	case 1:
		if progName != "" {
			return progName, rest[0], nil
		}
		return rest[0], "", nil
	case 2:
		return rest[0], rest[1], nil
	default:
		return "", "", xerr.Newf(xerr.Arg, "map takes at most expr, name, and input, got %d extra arguments", len(rest))
	}
}

func RunMap(args []string) error {
	var opts MapOpts
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[options] <expr> [name] [input]"
	if _, err := parser.ParseArgs(args); err != nil {
		return flagsErr(err)
	}
	opts.CommonOpts = opts.CommonOpts.ApplyRCDefaults()
	policy, err := moonblade.ParsePolicy(opts.Errors)
	if err != nil {
		return err
	}

	ast, err := moonblade.Parse(opts.Args.Expr)
	if err != nil {
		return err
	}
	decoratedName := ""
	if ast.Kind == moonblade.NodeNamed {
		decoratedName = ast.Name
	}
	name, inputPath, err := resolveMapNameAndInput(decoratedName, opts.Args.Rest)
	if err != nil {
		return err
	}

	in, err := OpenInput(inputPath)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := OpenOutput(opts.Output)
	if err != nil {
		return err
	}
	defer out.Close()

	rd := csvio.NewReader(in, opts.ReaderConfigFor(inputPath))
	headers, arity, err := ReadHeaders(rd, opts.NoHeaders)
	if err != nil {
		return err
	}
	prog, err := moonblade.Concretize(ast, headers, arity, opts.NoHeaders)
	if err != nil {
		return err
	}

	replaceIdx := -1
	if opts.Rename != "" {
		sel, err := csvio.ResolveSelection(opts.Rename, headers, arity)
		if err != nil {
			return err
		}
		replaceIdx = sel.Indices[0]
	}

	outHeaders := headers.Clone()
	if replaceIdx >= 0 {
		outHeaders = renameField(outHeaders, replaceIdx, name)
	} else {
		outHeaders.AppendField([]byte(name))
	}

	wr := csvio.NewWriter(out, opts.WriterConfigFor())
	if !opts.NoHeaders {
		if err := wr.Write(outHeaders); err != nil {
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
		v, err := EvalRow(prog, rec, policy)
		if err != nil {
			return err
		}
		var row *csvio.ByteRecord
		if replaceIdx >= 0 {
			row = replaceField(rec, replaceIdx, v.Stringify())
		} else {
			row = rec.Clone()
			row.AppendField([]byte(v.Stringify()))
		}
		if err := wr.Write(row); err != nil {
			return xerr.New(xerr.Io, err)
		}
	}
	return wr.Flush()
}

func renameField(rec *csvio.ByteRecord, idx int, name string) *csvio.ByteRecord {
	out := csvio.NewByteRecord()
	for i := 0; i < rec.Len(); i++ {
		if i == idx {
			out.AppendField([]byte(name))
		} else {
			out.AppendField(rec.Field(i))
		}
	}
	return out
}

func replaceField(rec *csvio.ByteRecord, idx int, value string) *csvio.ByteRecord {
	out := csvio.NewByteRecord()
	for i := 0; i < rec.Len(); i++ {
		if i == idx {
			out.AppendField([]byte(value))
		} else {
			out.AppendField(rec.Field(i))
		}
	}
	return out
}

// SearchOpts is `xan search <pattern> [input]`: keeps rows where any
// (or a selected) column matches a substring/regex.
type SearchOpts struct {
	CommonOpts
	Regex       bool   `long:"regex" description:"Treat pattern as a regular expression"`
	IgnoreCase  bool   `short:"i" long:"ignore-case" description:"Case-insensitive match"`
	Invert      bool   `short:"v" long:"invert" description:"Keep rows that do NOT match"`

	Args struct {
		Pattern string `positional-arg-name:"pattern"`
		Input   string `positional-arg-name:"input"`
	} `positional-args:"yes" required:"1"`
}

func RunSearch(args []string) error {
	var opts SearchOpts
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[options] <pattern> [input]"
	if _, err := parser.ParseArgs(args); err != nil {
		return flagsErr(err)
	}
	opts.CommonOpts = opts.CommonOpts.ApplyRCDefaults()

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
	var sel csvio.Selection
	if opts.Select != "" {
		sel, err = csvio.ResolveSelection(opts.Select, headers, arity)
		if err != nil {
			return err
		}
	} else {
		sel = csvio.All(arity)
	}

	wr := csvio.NewWriter(out, opts.WriterConfigFor())
	if !opts.NoHeaders {
		if err := wr.Write(headers); err != nil {
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
		found := false
		for _, idx := range sel.Indices {
			if idx >= rec.Len() {
				continue
			}
			field := string(rec.Field(idx))
			if opts.IgnoreCase {
				field = asciiFold(field)
			}
			needle := opts.Args.Pattern
			if opts.IgnoreCase {
				needle = asciiFold(needle)
			}
			if matches(field, needle, opts.Regex) {
				found = true
				break
			}
		}
		if found == opts.Invert {
			continue
		}
		if err := wr.Write(rec.Clone()); err != nil {
			return xerr.New(xerr.Io, err)
		}
	}
	return wr.Flush()
}

func asciiFold(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 32
		}
	}
	return string(b)
}

func matches(field, pattern string, useRegex bool) bool {
	if useRegex {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(field)
	}
	return containsSubstring(field, pattern)
}

func containsSubstring(s, sub string) bool {
	if len(sub) == 0 {
		return true
	}
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
