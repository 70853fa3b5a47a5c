// The main package for the musiclinks executable.
package main

import (
	"github.com/malirobot/musiclinks/cmd"
)

func main() {
	cmd.Execute()
}
