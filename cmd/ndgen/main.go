// Command ndgen generates C loop nests for elementwise and broadcast
// array expressions.
//
// Usage:
//
//	ndgen gen --array out:2 --array a:2 --array b:1 'out = a + b'
//	ndgen target
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
