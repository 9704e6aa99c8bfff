// cmd/harvester/main.go
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/jobmesh/harvester/internal/cli"
)

func main() {
	go watchSignals()
	cli.Execute()
}

func watchSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Warn().Msg("Interrupt received, shutting down...")
	os.Exit(1)
}
