// Command glyph searches the symbol corpus from the terminal and serves the
// same search to MCP clients over stdio.
//
// Usage:
//
//	glyph search grinning face
//	glyph keywords 😀
//	glyph symbols --offset 0 --limit 50
//	glyph rebuild
//	glyph mcp
package main

import (
	"fmt"
	"os"
)

// Version is set at build time with -ldflags.
var Version = "dev"

func main() {
	app := newApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
