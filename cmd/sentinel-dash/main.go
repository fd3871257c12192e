// Package main provides the terminal dashboard entry point for CAD-Sentinel.
package main

import (
	"flag"
	"fmt"
	"os"

	"cad-sentinel/internal/dash"
)

var (
	version = "dev"
)

func main() {
	var (
		showVersion bool
		serverURL   string
	)

	flag.BoolVar(&showVersion, "version", false, "Show version and exit")
	flag.BoolVar(&showVersion, "v", false, "Show version and exit (shorthand)")
	flag.StringVar(&serverURL, "server", "http://localhost:8085", "CAD-Sentinel server URL")
	flag.StringVar(&serverURL, "s", "http://localhost:8085", "CAD-Sentinel server URL (shorthand)")
	flag.Parse()

	if showVersion {
		fmt.Printf("sentinel-dash %s\n", version)
		os.Exit(0)
	}

	if err := dash.Run(serverURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
