package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fahmaliyi/otpvault/cli"
	"github.com/fahmaliyi/otpvault/config"
	"github.com/fahmaliyi/otpvault/logging"
	"github.com/fahmaliyi/otpvault/vault"
)

func main() {
	if err := run(); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "otpvault:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		return err
	}

	var logOut io.Writer = os.Stderr
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	log := logging.New(logOut, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deviceID := cfg.DeviceID
	if deviceID == "" {
		if deviceID, err = vault.DeviceID(cfg.DataDir); err != nil {
			return err
		}
	}

	v := vault.NewVault(cfg.StorePath, deviceID,
		vault.WithLogger(log),
		vault.WithProgress(cli.ProgressPrinter(os.Stderr)),
	)
	sched := vault.NewScheduler(v, cfg.QueueSize)

	opts := []cli.Option{
		cli.WithIO(os.Stdin, os.Stdout),
		cli.WithLogger(log),
	}
	if cli.IsTerminal() {
		opts = append(opts, cli.WithPassword(cli.ReadPasswordMasked))
	}
	session := cli.NewSession(sched, cfg, opts...)

	if cfg.TUI {
		err = session.Unlock(ctx)
		if err == nil {
			err = cli.RunTUI(ctx, session)
		}
	} else {
		err = session.Run(ctx)
	}
	if errors.Is(err, cli.ErrAborted) {
		err = nil
	}

	// a fresh context: the signal one may already be done
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if lerr := session.Lock(shutdownCtx); lerr != nil {
		log.Error(shutdownCtx, "lock on exit failed", "error", lerr)
	}
	if serr := sched.Shutdown(shutdownCtx); serr != nil {
		log.Error(shutdownCtx, "scheduler shutdown", "error", serr)
	}
	return err
}
