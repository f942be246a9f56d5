package main

import (
	"os"

	"github.com/deltalog/deltalog/cmd"
)

func main() {
	if err := cmd.RootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}
