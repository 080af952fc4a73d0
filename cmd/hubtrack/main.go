package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"hubtrack/internal/app"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args, os.Stderr)
	cancel()
	os.Exit(code)
}

// run returns the process exit code: 2 for usage errors, 1 for fatal errors.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	prog := "hubtrack"
	if len(args) > 0 {
		prog = filepath.Base(args[0])
		args = args[1:]
	}
	fs := flag.NewFlagSet(prog, flag.ContinueOnError)
	fs.SetOutput(stderr)
	var cfgPath string
	fs.StringVar(&cfgPath, "config", "", "optional path to a .json/.yaml config file")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [flags] <tracking number>\n", prog)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	a, err := app.New(ctx, app.Options{
		ConfigPath:     cfgPath,
		TrackingNumber: fs.Arg(0),
	})
	if err != nil {
		fmt.Fprintln(stderr, "fatal:", err)
		return 1
	}
	if err := a.Start(ctx); err != nil {
		fmt.Fprintln(stderr, "fatal start:", err)
		return 1
	}

	<-a.Done()
	reason := app.StopSignal
	if a.Err() != nil {
		reason = app.StopFatalError
	}
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	_ = a.Stop(stopCtx, reason)

	if err := a.Err(); err != nil {
		fmt.Fprintln(stderr, "fatal:", err)
		return 1
	}
	return 0
}
