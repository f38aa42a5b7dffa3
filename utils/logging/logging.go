package logging

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

func jsonOptions() *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}
}

// Init installs the default process logger: structured JSON to the given log
// stream for ingestion, human readable text on stderr.
func Init(logStream io.Writer, service string) {
	jsonHandler := slog.NewJSONHandler(logStream, jsonOptions()).
		WithAttrs([]slog.Attr{slog.String("service", service)})

	textHandler := slog.NewTextHandler(os.Stderr, nil)

	slog.SetDefault(slog.New(slogmulti.Fanout(jsonHandler, textHandler)))
}
