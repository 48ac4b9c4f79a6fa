// Command secure-shell is the entrypoint: load config, set up the
// rotating logger, run the sandbox bootstrap, install the signal
// handler, then run the session loop. Ported from main() in the
// original secure_shell.cpp.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"secureshell/internal/config"
	"secureshell/internal/logging"
	"secureshell/internal/procstate"
	"secureshell/internal/sandbox"
	"secureshell/internal/session"
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [config_path]\n", os.Args[0])
	}
	flag.Parse()

	configPath := config.DefaultPath
	if flag.NArg() > 0 {
		configPath = flag.Arg(0)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		return 1
	}

	logger, sink, err := logging.New(cfg.LogFile, cfg.LogRotateSize, cfg.LogRetainCount)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to set up logger: %v\n", err)
		return 1
	}
	defer sink.Close()

	logger.Info("secure shell started", "config_path", configPath)

	if err := sandbox.Bootstrap(); err != nil {
		logger.Error("sandbox bootstrap failed", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	logger.Info("resource limits and capabilities applied")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	installShutdownHandler(logger)

	logger.Info("secure shell ready")
	session.Loop(ctx, cfg, logger, os.Stdin, os.Stdout, os.Stderr)

	logger.Info("secure shell exiting")
	return 0
}

// installShutdownHandler mirrors signal_handler's no-op branch in the
// original secure_shell.cpp: with no live child, SIGINT/SIGTERM/
// SIGQUIT are swallowed and the shell keeps running. ptyexec.Run
// installs its own handling for the duration of a command and
// forwards these to the child as SIGINT. signal.Notify delivers each
// signal to every registered channel, so this handler also receives
// those; it checks procstate.ChildPID and stays silent while a child
// is live, acting only between commands, while the loop is blocked
// reading the next line — and at that point there is nothing to
// signal and nothing to stop.
func installShutdownHandler(logger *slog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		for sig := range sigCh {
			if procstate.ChildPID() != -1 {
				continue
			}
			logger.Info("signal received with no live child, ignoring", "signal", sig)
		}
	}()
}
