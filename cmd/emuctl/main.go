package main

import (
	"os"

	"github.com/six502/emuctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
