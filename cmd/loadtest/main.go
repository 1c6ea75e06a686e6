// Package main provides the entry point for the loadtest CLI.
package main

import "yqhp/loadtest/cmd"

func main() {
	cmd.Execute()
}
