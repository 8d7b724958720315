package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ladzaretti/codex-switch/internal/sessiond"
)

var Version = "0.0.0"

func main() {
	help := flag.Bool("help", false, "Show usage information")
	version := flag.Bool("version", false, "Show version")
	socketPath := flag.String("socket", sessiond.DefaultSocketPath(), "Path to the UNIX socket to listen on")

	flag.Usage = func() {
		_, _ = fmt.Fprint(flag.CommandLine.Output(), `codexswitchd - background session daemon for codex-switch.

Usage: codexswitchd [options]

Caches the vault's derived key across short-lived codex-switch
invocations so the master password is not re-prompted on every
command. Runs over a UNIX socket, restricted to the owning UID.

Options:
`)

		flag.PrintDefaults()
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	if *version {
		fmt.Printf("%v", Version)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
	defer cancel()

	log.Println(sessiond.Run(ctx, *socketPath))
}
