// Package main is the entry point for the staybook CLI.
package main

import "github.com/staybook/staybook-cli/internal/cli"

func main() {
	cli.Execute()
}
