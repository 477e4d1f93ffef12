package logging

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/kingrea/fieldstack/internal/config"
)

// FileName is the project log inside .fieldstack/logs.
const FileName = "fieldstack.log"

// Logger appends timestamped lines to .fieldstack/logs/fieldstack.log so
// module load problems can be inspected after the host exits.
type Logger struct {
	file *os.File
	path string
	*log.Logger
}

// New creates (or reuses) the log file for the current project directory.
// Lines are also copied to any extra writers.
func New(projectDir, level string, extra ...io.Writer) (*Logger, error) {
	logDir := filepath.Join(projectDir, config.ProjectDirName, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}
	path := filepath.Join(logDir, FileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file: %w", err)
	}
	var w io.Writer = f
	if len(extra) > 0 {
		w = io.MultiWriter(append([]io.Writer{f}, extra...)...)
	}
	return &Logger{file: f, path: path, Logger: newLogger(w, level)}, nil
}

// NewWriter logs to w without a backing file. Used by the CLI for stderr.
func NewWriter(w io.Writer, level string) *Logger {
	return &Logger{Logger: newLogger(w, level)}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return NewWriter(io.Discard, "error")
}

func newLogger(w io.Writer, level string) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		Prefix:          "fieldstack",
		ReportTimestamp: true,
	})
	logger.SetLevel(ParseLevel(level))
	return logger
}

// With returns a logger that adds keyvals to every line. It shares the
// parent's file, so only the parent should be closed.
func (l *Logger) With(keyvals ...any) *Logger {
	return &Logger{file: l.file, path: l.path, Logger: l.Logger.With(keyvals...)}
}

// ParseLevel maps a config log level onto the logger's levels. Unknown
// values fall back to info.
func ParseLevel(level string) log.Level {
	parsed, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return log.InfoLevel
	}
	return parsed
}

// Close releases the file handle.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Printf writes a single info line.
func (l *Logger) Printf(format string, args ...any) {
	if l == nil || l.Logger == nil {
		return
	}
	line := fmt.Sprintf(format, args...)
	l.Info(strings.TrimRight(line, "\n"))
}

// Path returns the backing log file, or "" for writer loggers.
func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Tail returns up to maxLines of the most recent lines in the log file at
// path. A missing file yields nil.
func Tail(path string, maxLines int) []string {
	if path == "" || maxLines <= 0 {
		return nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > maxLines {
			lines = lines[1:]
		}
	}
	if len(lines) == 0 {
		return nil
	}
	return lines
}
