package command

import (
	"os"

	flags "github.com/jessevdk/go-flags"
	"github.com/k0kubun/pp/v3"

	"github.com/xanlabs/xan-go/internal/csvio"
	"github.com/xanlabs/xan-go/internal/moonblade"
)

// DebugProgramOpts is `xan debug-program <expr>`'s opts struct: a
// diagnostic command that has no row-processing pipeline of its own,
// only a header list to concretize against.
type DebugProgramOpts struct {
	NoHeaders bool     `short:"n" long:"no-headers" description:"Treat expr as headerless (only positional column refs)"`
	Headers   []string `long:"header" description:"Declare a header name, repeatable; omit for headerless mode"`

	Args struct {
		Expr string `positional-arg-name:"expr"`
	} `positional-args:"yes" required:"1"`
}

// RunDebugProgram parses and concretizes expr, then pretty-prints the
// resulting node arena, the same way a developer inspecting one of the
// teacher's parsed DDLs would pp.Println the AST before trusting a
// generator decision.
func RunDebugProgram(args []string) error {
	var opts DebugProgramOpts
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[options] <expr>"
	if _, err := parser.ParseArgs(args); err != nil {
		return flagsErr(err)
	}

	var headers *csvio.ByteRecord
	headerless := opts.NoHeaders || len(opts.Headers) == 0
	if !headerless {
		headers = csvio.NewByteRecord()
		for _, h := range opts.Headers {
			headers.AppendField([]byte(h))
		}
	}

	expr, err := moonblade.Parse(opts.Args.Expr)
	if err != nil {
		return err
	}
	prog, err := moonblade.Concretize(expr, headers, len(opts.Headers), headerless)
	if err != nil {
		return err
	}

	printer := pp.New()
	printer.SetOutput(os.Stdout)
	printer.Println(prog)
	return nil
}
