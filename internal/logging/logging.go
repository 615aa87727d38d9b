package logging

import (
	"log"
	"os"
)

// Logger is a simple leveled logger that writes to standard error. Stdout
// is reserved for the MCP protocol stream in stdio mode, so nothing may be
// logged there.
type Logger struct {
	*log.Logger
}

// NewLogger creates a new Logger.
func NewLogger() *Logger {
	return &Logger{
		Logger: log.New(os.Stderr, "", log.LstdFlags),
	}
}

// Info logs an informational message.
func (l *Logger) Info(msg string, args ...interface{}) {
	l.Printf("INFO: "+msg, args...)
}

// Warn logs a non-fatal warning.
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.Printf("WARN: "+msg, args...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, args ...interface{}) {
	l.Printf("ERROR: "+msg, args...)
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.Printf("DEBUG: "+msg, args...)
}
