package logger

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/op/go-logging"
)

var logFormat = logging.MustStringFormatter("[%{level}] %{message}")

var levels = map[string]logging.Level{
	"CRITICAL": logging.CRITICAL,
	"ERROR":    logging.ERROR,
	"WARNING":  logging.WARNING,
	"NOTICE":   logging.NOTICE,
	"INFO":     logging.INFO,
	"DEBUG":    logging.DEBUG,
}

/*
InitLogger creates and returns a logger suitable for logging
human-readable messages. Also returns the path to the log file,
which is named after the running executable.
*/
func InitLogger(logDir string, logLevel logging.Level) (*logging.Logger, string) {
	processName := path.Base(os.Args[0])
	writer, filename := openLogFile(logDir, processName)
	log := logging.MustGetLogger(processName)
	fileBackend := logging.NewLogBackend(writer, "", stdlog.LstdFlags|stdlog.LUTC)
	setBackend(processName, logLevel, fileBackend)
	return log, filename
}

// InitConsoleLogger is InitLogger with every message also written to
// console. The CLI tools pass os.Stderr when run with -verbose.
func InitConsoleLogger(logDir string, logLevel logging.Level, console io.Writer) (*logging.Logger, string) {
	processName := path.Base(os.Args[0])
	writer, filename := openLogFile(logDir, processName)
	log := logging.MustGetLogger(processName)
	fileBackend := logging.NewLogBackend(writer, "", stdlog.LstdFlags|stdlog.LUTC)
	consoleBackend := logging.NewLogBackend(console, "", stdlog.LstdFlags)
	setBackend(processName, logLevel, fileBackend, consoleBackend)
	return log, filename
}

func openLogFile(logDir, processName string) (*os.File, string) {
	filename := filepath.Join(logDir, fmt.Sprintf("%s.log", processName))
	writer, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot open log file '%s': %v\n", filename, err)
		os.Exit(1)
	}
	return writer, filename
}

func setBackend(module string, logLevel logging.Level, backends ...logging.Backend) {
	formatted := make([]logging.Backend, len(backends))
	for i, backend := range backends {
		formatted[i] = logging.NewBackendFormatter(backend, logFormat)
	}
	leveled := logging.MultiLogger(formatted...)
	leveled.SetLevel(logLevel, module)
	leveled.SetLevel(logLevel, "")
	logging.SetBackend(leveled)
}

// ParseLevel converts a level name such as "INFO" or "debug" to a
// logging.Level. Unknown names return INFO and false.
func ParseLevel(name string) (logging.Level, bool) {
	level, ok := levels[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return logging.INFO, false
	}
	return level, true
}
