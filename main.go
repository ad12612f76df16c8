// Package main is the entry point for the failpass CLI.
package main

import "failpass.dev/pkg/failpass/cmd"

func main() {
	cmd.Execute()
}
