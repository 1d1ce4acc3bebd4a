package messaging

import (
	"strings"

	"github.com/MrSnakeDoc/gallery/internal/logger"
)

// nsqLogger routes go-nsq's log lines into the application logger.
type nsqLogger struct {
	log logger.Logger
}

func newNSQLogger(log logger.Logger) *nsqLogger {
	return &nsqLogger{log: log}
}

// Output implements go-nsq's logger interface. Lines start with the level
// abbreviation ("INF", "WRN", "ERR", ...).
func (l *nsqLogger) Output(_ int, s string) error {
	switch {
	case strings.HasPrefix(s, "ERR"):
		l.log.Error("nsq", logger.String("msg", s))
	case strings.HasPrefix(s, "WRN"):
		l.log.Warn("nsq", logger.String("msg", s))
	default:
		l.log.Debug("nsq", logger.String("msg", s))
	}
	return nil
}
