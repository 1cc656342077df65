package main

import (
	"os"

	"github.com/slatedbg/slate/cmd/slate/cmds"
)

func main() {
	if err := cmds.New().Execute(); err != nil {
		os.Exit(1)
	}
}
