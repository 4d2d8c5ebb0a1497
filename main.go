// The main package for the hansard-crawler executable.
package main

import (
	"github.com/JakeFAU/hansard-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
