package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tphakala/codescan/cmd"
	"github.com/tphakala/codescan/internal/buildinfo"
)

// Set at build time with -ldflags "-X main.version=... -X main.buildDate=...".
var (
	version   string
	buildDate string
)

func main() {
	info := buildinfo.NewContext(version, buildDate)

	if err := cmd.RootCommand(info).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
