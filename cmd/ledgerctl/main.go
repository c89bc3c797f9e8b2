// Command ledgerctl inspects and maintains the invoice ledger from the
// command line, working directly against the store of record.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := execute(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
