package main

import (
	"os"

	"github.com/tact-lang/llm-fuzz/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
