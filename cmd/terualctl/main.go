// Command terualctl administers a Terual deployment: schema migrations,
// user bootstrap, the audit trail and manual recurring passes.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(newCLI(os.Stdout)).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
