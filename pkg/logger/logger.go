package logger

import (
	"log/slog"
	"os"
)

// New returns a JSON slog.Logger tagged with the given service name.
func New(service string, level slog.Level) *slog.Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("service", service)
}

// NewWithEnv returns a service logger that also carries the deploy environment.
func NewWithEnv(service, env string, level slog.Level) *slog.Logger {
	return New(service, level).With("env", env)
}
