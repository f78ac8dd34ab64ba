// Package main is the single-binary entrypoint for ember.
package main

import "github.com/emberline/ember/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
