// gobby is a git-friendly task tracker with dependency awareness.
//
// Tasks live in a local SQLite database and are mirrored to a JSONL file
// that merges cleanly in git. The ready-work query surfaces open tasks
// whose blockers are all resolved.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
