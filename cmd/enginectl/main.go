// Command enginectl is a minimal demonstration CLI wiring
// settings -> registry -> engine -> stdout event printer. It accepts a
// repeatable "--step name=command args..." flag to build a linear chain of
// shell-executing items rather than parsing a project/grid file (project
// file parsing is explicitly out of scope).
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/specialistvlad/spine-engine-go/internal/concurrency"
	"github.com/specialistvlad/spine-engine-go/internal/connection"
	"github.com/specialistvlad/spine-engine-go/internal/ctxlog"
	"github.com/specialistvlad/spine-engine-go/internal/engine"
	"github.com/specialistvlad/spine-engine-go/internal/event"
	"github.com/specialistvlad/spine-engine-go/internal/item"
	"github.com/specialistvlad/spine-engine-go/internal/queuelogger"
	"github.com/specialistvlad/spine-engine-go/internal/settings"
)

// ExitError carries a process exit code alongside a user-facing message.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string { return e.Message }

func main() {
	// Minimal logger until flags are parsed and the real one is built.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := run(os.Stdout, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// stepList accumulates repeated --step flag values.
type stepList []string

func (s *stepList) String() string { return fmt.Sprint([]string(*s)) }
func (s *stepList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// run encapsulates the CLI's logic for easier testing.
func run(outW io.Writer, args []string) error {
	fs := flag.NewFlagSet("enginectl", flag.ContinueOnError)
	logLevel := fs.String("log-level", "info", "debug, info, warn, or error")
	logFormat := fs.String("log-format", "auto", "text, json, or auto (isatty-detected)")
	workers := fs.Int("workers", 4, "forward/backward sweep worker count")
	processLimit := fs.String("process-limit", "auto", `"auto", "unlimited", or a positive integer`)
	var steps stepList
	fs.Var(&steps, "step", `a "name=command args..." pipeline step; repeatable, run in the order given`)
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil
		}
		return &ExitError{Code: 2, Message: err.Error()}
	}
	if len(steps) == 0 {
		return &ExitError{Code: 2, Message: "enginectl: at least one --step is required"}
	}

	logger := newLogger(*logLevel, *logFormat, os.Stderr)
	slog.SetDefault(logger)

	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(outW, "enginectl: critical startup error: %v\n", r)
			os.Exit(1)
		}
	}()

	s := settings.New()
	s.SetString("engineSettings/processLimit", *processLimit)
	limiter, err := concurrency.NewLimiter(s)
	if err != nil {
		return fmt.Errorf("enginectl: build limiter: %w", err)
	}

	eventsCh := make(chan event.Event, 256)
	registry := item.NewRegistry()
	registry.Register("shell", newShellConstructor(eventsCh, limiter), shellSpecFactory)
	if err := registry.Validate(); err != nil {
		return fmt.Errorf("enginectl: registry: %w", err)
	}

	items := make(map[string]item.ExecutableItem, len(steps))
	names := make([]string, 0, len(steps))
	for _, raw := range steps {
		name, command, err := parseStep(raw)
		if err != nil {
			return &ExitError{Code: 2, Message: "enginectl: " + err.Error()}
		}
		built, err := registry.Build("shell", name, map[string]string{"command": command}, "")
		if err != nil {
			return fmt.Errorf("enginectl: build step %q: %w", name, err)
		}
		items[name] = built
		names = append(names, name)
	}

	connections := make([]*connection.Connection, 0, len(names)-1)
	for i := 1; i < len(names); i++ {
		connections = append(connections, connection.New(names[i-1], names[i]))
	}

	e, err := engine.New(engine.Config{
		Items:       items,
		Connections: connections,
		WorkerCount: *workers,
		Events:      eventsCh,
	})
	if err != nil {
		return fmt.Errorf("enginectl: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx = ctxlog.WithLogger(ctx, logger)

	e.NewLogger("enginectl", "").Msg(fmt.Sprintf("starting run with %d step(s)", len(names)))

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	for {
		select {
		case ev := <-e.Events():
			printEvent(outW, ev)
		case runErr := <-done:
			drainRemaining(outW, e)
			if runErr != nil {
				return fmt.Errorf("enginectl: run: %w", runErr)
			}
			return nil
		}
	}
}

// drainRemaining flushes any events already buffered on the channel after
// Run has returned, non-blockingly.
func drainRemaining(outW io.Writer, e *engine.Engine) {
	for {
		select {
		case ev := <-e.Events():
			printEvent(outW, ev)
		default:
			return
		}
	}
}

// printEvent renders one engine event as a line of human-readable output.
func printEvent(outW io.Writer, ev event.Event) {
	switch payload := ev.Payload.(type) {
	case queuelogger.LogMessage:
		fmt.Fprintf(outW, "[%s] %s: %s\n", payload.Level, payload.Author, payload.Text)
	case queuelogger.ProcessMessage:
		fmt.Fprintf(outW, "[%s] %s (%s): %s\n", payload.Stream, payload.Author, payload.ByteCount, payload.Text)
	default:
		fmt.Fprintf(outW, "%s: %v\n", ev.Type, ev.Payload)
	}
}
