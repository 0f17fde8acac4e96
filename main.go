package main

import "github.com/alejoacosta74/profiler/cmd"

func main() {
	cmd.Execute()
}
