package main

import "github.com/ogulcanaydogan/dwlr-guardian/internal/cli"

func main() {
	cli.Execute()
}
