package main

import (
	"fmt"
	"os"

	"github.com/psantana5/puppet-rerun/cmd/puppet-rerun/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "puppet-rerun: %v\n", err)
		os.Exit(1)
	}
}
