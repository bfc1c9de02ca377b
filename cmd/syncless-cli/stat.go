package main

import (
	"errors"
	"fmt"
	"io"

	flag "github.com/spf13/pflag"

	"github.com/epokhe/syncless/core"
)

func cmdStat(out, errOut io.Writer, args []string) int {
	fs := flag.NewFlagSet("stat", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: syncless-cli stat <path>")
		return 2
	}
	path := fs.Arg(0)

	s, err := core.OpenReadOnly(path)
	if err != nil {
		fmt.Fprintf(errOut, "open %s: %v\n", path, err)
		return 1
	}
	defer s.Close()

	report := core.Inspect(s)
	fingerprint, err := core.Fingerprint(s)
	if err != nil {
		fmt.Fprintf(errOut, "fingerprint %s: %v\n", path, err)
		return 1
	}

	fmt.Fprintf(out, "path:          %s\n", path)
	fmt.Fprintf(out, "logical size:  %d\n", report.LogicalSize)
	fmt.Fprintf(out, "physical size: %d\n", report.PhysicalSize)
	fmt.Fprintf(out, "span count:    %d\n", len(report.Spans))
	fmt.Fprintf(out, "fingerprint:   %016x\n", fingerprint)
	return 0
}
