package main

import (
	"os"

	"github.com/solatis/sweetbre/cmd/sweetbre/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
