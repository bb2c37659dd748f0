// Package main is the barstatus entry point. It prints a status line for
// swaybar and i3bar on standard output and reads click events from
// standard input.
package main

import (
	"fmt"
	"os"
)

// Version is the current version of barstatus.
// This default value can be overridden at build time using:
//
//	go build -ldflags "-X main.Version=x.y.z"
var Version = "0.1.0-dev"

func main() {
	os.Exit(run())
}

func run() int {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
