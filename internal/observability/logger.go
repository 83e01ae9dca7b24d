package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ComponentLogger derives a child of the process logger configured by package logging.
func ComponentLogger(node string) zerolog.Logger {
	return log.Logger.With().Str("node", node).Logger()
}
