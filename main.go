// The main package for the shelfscan executable.
package main

import (
	"github.com/shelfscan/shelfscan/cmd"
)

func main() {
	cmd.Execute()
}
