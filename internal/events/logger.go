package events

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/TheMichaelB/lssh/internal/config"
)

// LogLevel represents logging severity.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// Logger provides structured logging.
type Logger struct {
	mu     *sync.Mutex
	level  LogLevel
	format string
	output io.Writer
	color  bool
	fields map[string]interface{}
}

// NewLogger creates a logger from config. Output goes to stderr unless a
// log file is configured, so log lines never interleave with prompts.
func NewLogger(cfg *config.LogConfig) (*Logger, error) {
	var output io.Writer = os.Stderr
	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		output = file
	}

	return &Logger{
		mu:     &sync.Mutex{},
		level:  ParseLevel(cfg.Level),
		format: cfg.Format,
		output: output,
		color:  cfg.Color && isTerminal(output),
		fields: make(map[string]interface{}),
	}, nil
}

// NewTestLogger creates a logger for testing.
func NewTestLogger(level LogLevel, format string, output io.Writer) *Logger {
	return &Logger{
		mu:     &sync.Mutex{},
		level:  level,
		format: format,
		output: output,
		fields: make(map[string]interface{}),
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return NewTestLogger(ErrorLevel+1, "text", io.Discard)
}

// WithField returns a logger with an additional field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a logger with additional fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	newFields := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}

	// Children share the parent's mutex so writes to one output stay serialised.
	return &Logger{
		mu:     l.mu,
		level:  l.level,
		format: l.format,
		output: l.output,
		color:  l.color,
		fields: newFields,
	}
}

// WithError adds an error field.
func (l *Logger) WithError(err error) *Logger {
	return l.WithField("error", err.Error())
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string) {
	l.log(DebugLevel, msg)
}

// Info logs at info level.
func (l *Logger) Info(msg string) {
	l.log(InfoLevel, msg)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string) {
	l.log(WarnLevel, msg)
}

// Error logs at error level.
func (l *Logger) Error(msg string) {
	l.log(ErrorLevel, msg)
}

// Enabled reports whether messages at level would be written.
func (l *Logger) Enabled(level LogLevel) bool {
	return level >= l.level
}

// log writes a log entry.
func (l *Logger) log(level LogLevel, msg string) {
	if level < l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := l.buildEntry(level, msg)

	if l.format == "json" {
		l.writeJSON(entry)
	} else {
		l.writeText(entry)
	}
}

// buildEntry creates a log entry.
func (l *Logger) buildEntry(level LogLevel, msg string) map[string]interface{} {
	_, file, line, _ := runtime.Caller(3)
	if idx := strings.LastIndex(file, "/"); idx >= 0 {
		file = file[idx+1:]
	}

	entry := map[string]interface{}{
		"time":   time.Now().UTC().Format(time.RFC3339Nano),
		"level":  levelString(level),
		"msg":    msg,
		"caller": fmt.Sprintf("%s:%d", file, line),
	}

	for k, v := range l.fields {
		entry[k] = v
	}

	return entry
}

// writeJSON outputs JSON format with keys in a stable order.
func (l *Logger) writeJSON(entry map[string]interface{}) {
	var sb strings.Builder
	sb.WriteString("{")

	for i, k := range sortedKeys(entry) {
		if i > 0 {
			sb.WriteString(",")
		}

		sb.WriteString(fmt.Sprintf(`"%s":`, escapeJSON(k)))

		switch val := entry[k].(type) {
		case string:
			sb.WriteString(fmt.Sprintf(`"%s"`, escapeJSON(val)))
		case int, int64, uint32, float64, bool:
			sb.WriteString(fmt.Sprintf("%v", val))
		default:
			sb.WriteString(fmt.Sprintf(`"%s"`, escapeJSON(fmt.Sprintf("%v", val))))
		}
	}

	sb.WriteString("}\n")
	_, _ = l.output.Write([]byte(sb.String()))
}

// writeText outputs human-readable format.
func (l *Logger) writeText(entry map[string]interface{}) {
	levelStr := "[" + strings.ToUpper(entry["level"].(string)) + "]"

	if l.color {
		levelStr = levelColor(entry["level"].(string)).Sprint(levelStr)
	}

	// Format: TIME [LEVEL] Message key=value key=value
	fmt.Fprintf(l.output, "%s %s %s", entry["time"], levelStr, entry["msg"])

	for _, k := range sortedKeys(entry) {
		if k == "time" || k == "level" || k == "msg" || k == "caller" {
			continue
		}
		fmt.Fprintf(l.output, " %s=%v", k, entry[k])
	}

	fmt.Fprintln(l.output)
}

// Helper functions

// ParseLevel maps a config level name to a LogLevel, defaulting to info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func levelString(l LogLevel) string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	default:
		return "unknown"
	}
}

func levelColor(level string) *color.Color {
	switch level {
	case "debug":
		return color.New(color.FgCyan)
	case "info":
		return color.New(color.FgGreen)
	case "warn":
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func escapeJSON(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	s = strings.ReplaceAll(s, "\t", `\t`)
	return s
}

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}
