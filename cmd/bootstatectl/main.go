// Command bootstatectl runs the bootstrap pipeline against a saved HTML page
// and prints the initial state, its schema or the provenance of one key.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
