// main.go
//
// forcing evaluates time-varying simulation inputs; see cmd/ for the commands.

package main

import "github.com/simforcing/forcing/cmd"

func main() {
	cmd.Execute()
}
