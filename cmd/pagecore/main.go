package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openfroyo/pagecore/cmd/pagecore/commands"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// exitInterrupted is the shell convention for termination by SIGINT.
const exitInterrupted = 130

func main() {
	setupLogging(os.Getenv("PAGECORE_LOG_LEVEL"))
	log.Debug().Str("version", Version).Str("commit", Commit).Msg("pagecore starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if err := commands.Execute(ctx, Version, Commit, BuildDate); err != nil {
		log.Error().Err(err).Msg("Command execution failed")
		if ctx.Err() != nil {
			os.Exit(exitInterrupted)
		}
		os.Exit(1)
	}
}

// handleSignals cancels the run on the first interrupt. The step in flight
// finishes and the report is still printed. A second interrupt exits at once
// without closing the browser.
func handleSignals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	log.Warn().Str("signal", sig.String()).Msg("Stopping after the current step, interrupt again to force")
	cancel()

	<-sigChan
	log.Error().Msg("Forced exit")
	os.Exit(exitInterrupted)
}

// setupLogging configures the global logger used until a configuration is
// loaded. An unknown level falls back to info.
func setupLogging(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	if err != nil {
		log.Warn().Str("level", level).Msg("Unknown PAGECORE_LOG_LEVEL, using info")
	}
}
