package main

import (
	"context"
	"fmt"
	"os"

	"registrar/internal/cli"
)

// main hands control to the command tree; the Postgres transaction runner is
// the only dependency assembled here.
func main() {
	if err := cli.NewRootCommand(newRegistrationPostgresTx).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "registrar:", err)
		os.Exit(1)
	}
}
