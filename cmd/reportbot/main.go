package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"reportbot/internal/app"
)

func main() {
	var (
		cfgPath  string
		results  string
		dest     string
		simulate bool
		daemon   bool
	)
	flag.StringVar(&cfgPath, "config", "", "path to config file (json or yaml); empty uses environment only")
	flag.StringVar(&results, "results", "", "path to the aggregate results json")
	flag.StringVar(&dest, "dest", "", "destination WhatsApp number, overrides configuration")
	flag.BoolVar(&simulate, "simulate", false, "force the simulation path regardless of configured transport")
	flag.BoolVar(&daemon, "daemon", false, "run on the configured schedule instead of sending once")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
	defer func() { _ = a.Close(context.Background()) }()

	if daemon {
		if err := a.RunDaemon(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "fatal:", err)
			os.Exit(1)
		}
		return
	}

	opts := app.RunOptions{ResultsPath: results, Destination: dest}
	if simulate {
		opts.Simulate = &simulate
	}
	ok, err := a.RunOnce(ctx, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
	if !ok {
		os.Exit(1)
	}
}
