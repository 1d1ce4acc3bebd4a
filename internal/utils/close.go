package utils

import (
	"io"

	"github.com/MrSnakeDoc/gallery/internal/logger"
)

// MustClose closes c and logs any error under what.
// Use for shutdown paths where we want to track close errors.
func MustClose(c io.Closer, what string, log logger.Logger) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		log.Warn("failed to close", logger.String("component", what), logger.Error(err))
		return
	}
	log.Debug("closed", logger.String("component", what))
}
