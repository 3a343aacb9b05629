package main

import (
	"os"

	"github.com/pilab-dev/helpline/cmd/helplinectl/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
