package main

import (
	"os"

	"github.com/ladzaretti/codex-switch/genericclioptions"
	"github.com/ladzaretti/codex-switch/internal/cmdapp"
)

func main() {
	_ = cmdapp.Execute(*genericclioptions.NewDefaultIOStreams(), os.Args[1:])
}
