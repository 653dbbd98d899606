// Command prun is the interactive CLI shell for the provider runtime: a
// thin entry point that wires cobra sub-commands to the library facade in
// internal/runtime.
package main

import "github.com/Davincible/provider-runtime-go/cmd"

func main() {
	cmd.Execute()
}
