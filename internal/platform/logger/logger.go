package logger

import (
	"log/slog"
	"os"
)

// New returns the job's structured logger. Progress goes to stdout as JSON
// lines; the final validator report is the operator-facing summary.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
