package main

import "github.com/halvardf/asm16/cmd"

func main() {
	cmd.Execute()
}
