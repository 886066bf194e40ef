package command

import (
	"github.com/xanlabs/xan-go/internal/xerr"
)

// Dispatch routes a `xan <name> <args...>` invocation to its
// subcommand Run function, mirroring the teacher's per-dialect
// cmd/<dialect>/main.go pattern collapsed into one binary with an
// explicit subcommand table instead of one entrypoint per dialect.
func Dispatch(name string, args []string) error {
	switch name {
	case "view":
		return RunView(args)
	case "filter":
		return RunFilter(args)
	case "map":
		return RunMap(args)
	case "search":
		return RunSearch(args)
	case "select":
		return RunSelect(args)
	case "headers":
		return RunHeaders(args)
	case "count":
		return RunCount(args)
	case "groupby":
		return RunGroupby(args)
	case "agg":
		return RunAgg(args)
	case "stats":
		return RunStats(args)
	case "frequency":
		return RunFrequency(args)
	case "sort":
		return RunSort(args)
	case "dedup":
		return RunDedup(args)
	case "join":
		return RunJoin(args)
	case "window":
		return RunWindow(args)
	case "bins":
		return RunBins(args)
	case "merge":
		return RunMerge(args)
	case "parallel":
		return RunParallel(args)
	case "debug-program":
		return RunDebugProgram(args)
	default:
		return xerr.Newf(xerr.Arg, "unknown command %q", name)
	}
}

// Names lists every dispatchable subcommand, for top-level --help.
func Names() []string {
	return []string{
		"view", "filter", "map", "search", "select", "headers", "count",
		"groupby", "agg", "stats", "frequency", "sort", "dedup", "join",
		"window", "bins", "merge", "parallel", "debug-program",
	}
}
