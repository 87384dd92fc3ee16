package main

import (
	"os"

	"github.com/sofmeright/buildmatrix/src/cli/cmd"
)

func main() {
	os.Exit(cmd.ExitCode(cmd.Execute()))
}
