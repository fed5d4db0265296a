// Package main provides the digitnet CLI: train a digit classifier, test it
// on held-out images and list past runs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/born-ml/digitnet/internal/config"
)

const version = "v0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		usage(stderr)
		return errors.New("missing command")
	}

	env, err := config.Load(os.Getenv("DIGITNET_ENV_FILE"))
	if err != nil {
		return err
	}
	level, err := env.Level()
	if err != nil {
		return err
	}
	app := &app{env: env, stdout: stdout, stderr: stderr, level: new(slog.LevelVar)}
	app.level.Set(level)
	app.logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: app.level}))
	slog.SetDefault(app.logger)

	switch args[0] {
	case "train":
		return app.train(ctx, args[1:])
	case "test":
		return app.test(ctx, args[1:])
	case "runs":
		return app.runs(ctx, args[1:])
	case "version":
		fmt.Fprintf(stdout, "digitnet %s\n", version)
		return nil
	case "help", "-h", "--help":
		usage(stdout)
		return nil
	default:
		usage(stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

type app struct {
	env    config.Env
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
	level  *slog.LevelVar
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "digitnet - convolutional digit classifier")
	fmt.Fprintf(w, "Version: %s\n\n", version)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  train [flags] [num_epochs]   Train a model and write its artifacts")
	fmt.Fprintln(w, "  test [flags]                 Evaluate a trained model on held-out images")
	fmt.Fprintln(w, "  runs [flags]                 List recent training runs")
	fmt.Fprintln(w, "  version                      Show version")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'digitnet <command> -h' for command flags.")
}
