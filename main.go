package main

import (
	"github.com/rfeldhaus/autogui-cli/cmd"
)

// main is the entry point for the autogui CLI.
func main() {
	cmd.Execute()
}
