package command

import (
	"io"

	flags "github.com/jessevdk/go-flags"

	"github.com/xanlabs/xan-go/internal/csvio"
	"github.com/xanlabs/xan-go/internal/join"
	"github.com/xanlabs/xan-go/internal/xerr"
)

// JoinOpts is `xan join <left-sel> <left> <right-sel> <right>`.
type JoinOpts struct {
	CommonOpts
	Variant     string `long:"mode" description:"inner,left,right,full,semi,anti,cross" default:"inner"`
	Ignorecase  bool   `short:"i" long:"ignore-case" description:"Case-insensitive key comparison"`
	Nulls       bool   `long:"nulls" description:"Let empty keys participate in the join"`
	DropKeyFlag bool   `long:"drop-key" description:"Keep both sides' key columns even when names collide"`

	Args struct {
		LeftSel  string `positional-arg-name:"left-select"`
		Left     string `positional-arg-name:"left"`
		RightSel string `positional-arg-name:"right-select"`
		Right    string `positional-arg-name:"right"`
	} `positional-args:"yes" required:"4"`
}

func RunJoin(args []string) error {
	var opts JoinOpts
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[options] <left-select> <left> <right-select> <right>"
	if _, err := parser.ParseArgs(args); err != nil {
		return flagsErr(err)
	}
	opts.CommonOpts = opts.CommonOpts.ApplyRCDefaults()
	variant, ok := join.ParseVariant(opts.Variant)
	if !ok {
		return xerr.Newf(xerr.Arg, "unknown join mode %q", opts.Variant)
	}
	jopt := join.Options{CaseInsensitive: opts.Ignorecase, IncludeNulls: opts.Nulls, DropKey: opts.DropKeyFlag}

	leftIn, err := OpenInput(opts.Args.Left)
	if err != nil {
		return err
	}
	defer leftIn.Close()
	rightIn, err := OpenInput(opts.Args.Right)
	if err != nil {
		return err
	}
	defer rightIn.Close()
	out, err := OpenOutput(opts.Output)
	if err != nil {
		return err
	}
	defer out.Close()

	leftRd := csvio.NewReader(leftIn, opts.ReaderConfigFor(opts.Args.Left))
	rightRd := csvio.NewReader(rightIn, opts.ReaderConfigFor(opts.Args.Right))
	leftHeaders, leftArity, err := ReadHeaders(leftRd, opts.NoHeaders)
	if err != nil {
		return err
	}
	rightHeaders, rightArity, err := ReadHeaders(rightRd, opts.NoHeaders)
	if err != nil {
		return err
	}
	leftSel, err := csvio.ResolveSelection(opts.Args.LeftSel, leftHeaders, leftArity)
	if err != nil {
		return err
	}
	rightSel, err := csvio.ResolveSelection(opts.Args.RightSel, rightHeaders, rightArity)
	if err != nil {
		return err
	}
	dropSet := join.ColumnDropSet(leftHeaders, rightHeaders, jopt)

	wr := csvio.NewWriter(out, opts.WriterConfigFor())
	if !opts.NoHeaders {
		h := join.Combine(leftHeaders, rightHeaders, leftArity, rightArity, dropSet)
		if err := wr.Write(h); err != nil {
			return xerr.New(xerr.Io, err)
		}
	}

	if variant == join.Cross {
		return runCrossJoin(leftRd, rightRd, wr, leftArity, rightArity, dropSet)
	}

	// Buffer the build side fully (spec §4.6's hash multimap contract).
	buildLeft := variant == join.Right
	var buildRecs []*csvio.ByteRecord
	idx := join.NewIndex(jopt)
	buildRd, buildSel := rightRd, rightSel
	if buildLeft {
		buildRd, buildSel = leftRd, leftSel
	}
	rec := csvio.NewByteRecord()
	for {
		if err := buildRd.Read(rec); err != nil {
			if err == io.EOF {
				break
			}
			return xerr.New(xerr.Io, err)
		}
		clone := rec.Clone()
		buildRecs = append(buildRecs, clone)
		key := join.JoinKey(selectFields(clone, buildSel))
		idx.Add(len(buildRecs)-1, key)
	}

	probeRd, probeSel := leftRd, leftSel
	if buildLeft {
		probeRd, probeSel = rightRd, rightSel
	}
	matchedBuild := make([]bool, len(buildRecs))
	probe := csvio.NewByteRecord()
	for {
		if err := probeRd.Read(probe); err != nil {
			if err == io.EOF {
				break
			}
			return xerr.New(xerr.Io, err)
		}
		probeClone := probe.Clone()
		key := join.JoinKey(selectFields(probeClone, probeSel))
		matches := idx.Lookup(key)
		for _, m := range matches {
			matchedBuild[m] = true
		}
		if err := emitJoinRow(wr, variant, buildLeft, probeClone, buildRecs, matches, leftArity, rightArity, dropSet); err != nil {
			return err
		}
	}

	if variant == join.Full {
		for i, rec := range buildRecs {
			if matchedBuild[i] {
				continue
			}
			var row *csvio.ByteRecord
			if buildLeft {
				row = join.Combine(rec, nil, leftArity, rightArity, dropSet)
			} else {
				row = join.Combine(nil, rec, leftArity, rightArity, dropSet)
			}
			if err := wr.Write(row); err != nil {
				return xerr.New(xerr.Io, err)
			}
		}
	}

	return wr.Flush()
}

func emitJoinRow(wr *csvio.Writer, variant join.Variant, buildLeft bool, probeRec *csvio.ByteRecord, buildRecs []*csvio.ByteRecord, matches []int, leftArity, rightArity int, dropSet map[int]bool) error {
	switch variant {
	case join.Semi:
		if len(matches) == 0 {
			return nil
		}
		var row *csvio.ByteRecord
		if buildLeft {
			row = join.Combine(nil, probeRec, leftArity, rightArity, dropSet)
		} else {
			row = join.Combine(probeRec, nil, leftArity, rightArity, dropSet)
		}
		return wr.Write(row)
	case join.Anti:
		if len(matches) != 0 {
			return nil
		}
		var row *csvio.ByteRecord
		if buildLeft {
			row = join.Combine(nil, probeRec, leftArity, rightArity, dropSet)
		} else {
			row = join.Combine(probeRec, nil, leftArity, rightArity, dropSet)
		}
		return wr.Write(row)
	}

	if len(matches) == 0 {
		if variant == join.Inner {
			return nil
		}
		var row *csvio.ByteRecord
		if buildLeft {
			row = join.Combine(nil, probeRec, leftArity, rightArity, dropSet)
		} else {
			row = join.Combine(probeRec, nil, leftArity, rightArity, dropSet)
		}
		return wr.Write(row)
	}
	for _, m := range matches {
		build := buildRecs[m]
		var row *csvio.ByteRecord
		if buildLeft {
			row = join.Combine(build, probeRec, leftArity, rightArity, dropSet)
		} else {
			row = join.Combine(probeRec, build, leftArity, rightArity, dropSet)
		}
		if err := wr.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// runCrossJoin pairs every left row with every right row, ignoring
// keys entirely (the cross variant has no build-side index).
func runCrossJoin(leftRd, rightRd *csvio.Reader, wr *csvio.Writer, leftArity, rightArity int, dropSet map[int]bool) error {
	var rights []*csvio.ByteRecord
	rec := csvio.NewByteRecord()
	for {
		if err := rightRd.Read(rec); err != nil {
			if err == io.EOF {
				break
			}
			return xerr.New(xerr.Io, err)
		}
		rights = append(rights, rec.Clone())
	}
	left := csvio.NewByteRecord()
	for {
		if err := leftRd.Read(left); err != nil {
			if err == io.EOF {
				break
			}
			return xerr.New(xerr.Io, err)
		}
		for _, r := range rights {
			row := join.Combine(left, r, leftArity, rightArity, dropSet)
			if err := wr.Write(row); err != nil {
				return xerr.New(xerr.Io, err)
			}
		}
	}
	return wr.Flush()
}

func selectFields(rec *csvio.ByteRecord, sel csvio.Selection) [][]byte {
	out := make([][]byte, len(sel.Indices))
	for i, idx := range sel.Indices {
		if idx < rec.Len() {
			out[i] = rec.Field(idx)
		}
	}
	return out
}
