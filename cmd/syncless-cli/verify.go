package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/natefinch/atomic"
	flag "github.com/spf13/pflag"

	"github.com/epokhe/syncless/core"
)

func cmdVerify(out, errOut io.Writer, args []string) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(errOut)
	reportPath := fs.String("report", "", "write a diagnostic report to this path (atomically)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: syncless-cli verify <path> [--report <file>]")
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
	problems := core.VerifyInvariants(report)

	var body strings.Builder
	fmt.Fprintf(&body, "store:         %s\n", path)
	fmt.Fprintf(&body, "logical size:  %d\n", report.LogicalSize)
	fmt.Fprintf(&body, "physical size: %d\n", report.PhysicalSize)
	fmt.Fprintf(&body, "span count:    %d\n", len(report.Spans))
	if len(problems) == 0 {
		fmt.Fprintln(&body, "invariants:    ok")
	} else {
		fmt.Fprintf(&body, "invariants:    %d problem(s)\n", len(problems))
		for _, p := range problems {
			fmt.Fprintf(&body, "  - %s\n", p)
		}
	}

	fmt.Fprint(out, body.String())

	if *reportPath != "" {
		if err := atomic.WriteFile(*reportPath, strings.NewReader(body.String())); err != nil {
			fmt.Fprintf(errOut, "write report %s: %v\n", *reportPath, err)
			return 1
		}
	}

	if len(problems) > 0 {
		return 1
	}
	return 0
}
