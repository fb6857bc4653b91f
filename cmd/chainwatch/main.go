// Package main starts the chain watcher CLI.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	chainwatchcmd "github.com/harborline/ledgerd/internal/cmd/chainwatch"
)

func main() {
	cfg, err := chainwatchcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[CHAINWATCH] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := chainwatchcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("watch failed: %v", err)
	}
}
