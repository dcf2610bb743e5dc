// Package main provides the entry point for authctl.
//
// authctl signs in to the identity service and keeps the resulting
// session in a local or shared token store.
package main

import (
	"fmt"
	"os"

	"github.com/aelexs/authsession/internal/command"
	"github.com/aelexs/authsession/internal/errmap"
)

func main() {
	app := command.App()

	// cli.Exit errors terminate inside Run; anything reaching here is
	// unclassified.
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(errmap.ExitCode(err))
	}
}
