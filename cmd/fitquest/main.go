// Package main is the single-binary entrypoint for fitquest.
package main

import "github.com/myeasy-ai/fitquest/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
