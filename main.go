// The main package for the rewriter executable.
package main

import (
	"github.com/JakeFAU/article-rewriter/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
