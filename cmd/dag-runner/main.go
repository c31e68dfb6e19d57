package main

import (
	"github.com/stevelan1995/dag-runner/pkg/cli/cmd"
)

func main() {
	cmd.Execute()
}
