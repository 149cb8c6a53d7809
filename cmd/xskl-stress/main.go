// Command xskl-stress hammers a lock-free skip list with concurrent readers,
// writers, erasers and iterators, verifying every answer against an oracle.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
)

const stopTimeout = 30 * time.Second

func main() {
	cfg, err := parseConfig(os.Args[1:], os.Getenv)
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	app := newApp(cfg)
	startCtx, cancel := context.WithTimeout(context.Background(), app.StartTimeout())
	defer cancel()
	if err = app.Start(startCtx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	// SIGINT and SIGTERM are delivered here as well.
	sig := <-app.Wait()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
	defer stopCancel()
	if err = app.Stop(stopCtx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(sig.ExitCode)
}
