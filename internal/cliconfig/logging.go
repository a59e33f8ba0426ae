package cliconfig

import (
	"os"

	"github.com/rs/zerolog"

	logadapter "github.com/bft-labs/fahmunge/internal/adapters/log"
)

// Logger returns the console logger used by the CLI at the given level.
func Logger(level string) zerolog.Logger {
	return logadapter.NewConsoleLogger(os.Stderr, level)
}
