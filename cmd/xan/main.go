// Command xan is the single-binary entrypoint for the CSV toolkit:
// it dispatches `xan <subcommand> [options] [args...]` to the handler
// registered in internal/command, the same subcommand-table shape the
// teacher spreads across one main() per dialect binary, collapsed
// here into one binary with many subcommands.
package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/xanlabs/xan-go/internal/command"
	"github.com/xanlabs/xan-go/internal/xanconfig"
	"github.com/xanlabs/xan-go/internal/xerr"
	"github.com/xanlabs/xan-go/internal/xlog"
)

var version = "dev"

func main() {
	xlog.Init()
	if cfg, err := xanconfig.Load(xanconfig.DefaultPath()); err != nil {
		fmt.Fprintf(os.Stderr, "xan: .xanrc.yml: %s\n", err)
		os.Exit(1)
	} else {
		command.SetRCDefaults(cfg)
	}
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}
	switch args[0] {
	case "-h", "--help":
		printUsage()
		return 0
	case "-v", "--version":
		fmt.Println("xan " + version)
		return 0
	}

	name := args[0]
	if err := command.Dispatch(name, args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "xan %s: %s\n", name, err)
		return xerr.KindOf(err).ExitCode()
	}
	return 0
}

func printUsage() {
	names := append([]string(nil), command.Names()...)
	sort.Strings(names)
	fmt.Fprintln(os.Stderr, "usage: xan <command> [options] [arguments...]")
	fmt.Fprintln(os.Stderr, "\ncommands:")
	fmt.Fprintln(os.Stderr, "  "+strings.Join(names, ", "))
}
