/*
Package main is the appdam command line client.

Every subcommand runs one use case against the backend selected by BACKEND_MODE: the hosted
backend (functions service, Postgres, S3 and a change feed) or an in-process store. The
shell subcommand keeps one process alive so the in-process store survives between commands.
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli{open: openFromEnv}
	err := c.root().ExecuteContext(ctx)
	c.close()

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
