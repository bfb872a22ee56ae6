// Command bbody runs the body ingestion service and decodes request bodies from the command line.
package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/lmittmann/tint"
)

// CLI is the root command.
type CLI struct {
	Verbose bool `help:"Enable debug logging" short:"v"`

	Serve ServeCLI `cmd:"" help:"Run the HTTP service, configured through BB_* environment variables"`
	Parse ParseCLI `cmd:"" help:"Decode a request body from a file"`
	Send  SendCLI  `cmd:"" help:"Post a file to a running service"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("bbody"),
		kong.Description("HTTP request body ingestion with bounded memory."),
		kong.UsageOnError(),
	)

	kctx.FatalIfErrorf(kctx.Run(newLogger(os.Stderr, cli.Verbose)))
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	return slog.New(tint.NewHandler(w, &tint.Options{Level: level, TimeFormat: "15:04:05"}))
}
