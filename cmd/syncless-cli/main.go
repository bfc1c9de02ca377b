// Command syncless-cli is a thin diagnostic wrapper around the syncless
// store: it opens a store file read-only and reports on it. It is not part
// of the store's correctness surface — nothing here is exercised by the
// core package's own tests.
package main

import (
	"fmt"
	"os"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  syncless-cli stat <path>")
	fmt.Fprintln(os.Stderr, "  syncless-cli verify <path> [--report <file>]")
}

func main() {
	if len(os.Args) < 3 {
		usage()
		os.Exit(1)
	}

	var code int
	switch os.Args[1] {
	case "stat":
		code = cmdStat(os.Stdout, os.Stderr, os.Args[2:])
	case "verify":
		code = cmdVerify(os.Stdout, os.Stderr, os.Args[2:])
	default:
		usage()
		code = 1
	}
	os.Exit(code)
}
