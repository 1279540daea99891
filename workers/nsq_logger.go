package workers

import (
	"strings"

	"github.com/op/go-logging"
)

// NSQLogger sends go-nsq's log output to a go-logging logger.
type NSQLogger struct {
	logger *logging.Logger
}

func NewNSQLogger(logger *logging.Logger) *NSQLogger {
	return &NSQLogger{logger: logger}
}

// Output implements the logger interface go-nsq expects. go-nsq
// prefixes each line with a three-letter level.
func (l *NSQLogger) Output(calldepth int, s string) error {
	switch {
	case strings.HasPrefix(s, "ERR"):
		l.logger.Error(s)
	case strings.HasPrefix(s, "WRN"):
		l.logger.Warning(s)
	case strings.HasPrefix(s, "DBG"):
		l.logger.Debug(s)
	default:
		l.logger.Info(s)
	}
	return nil
}
