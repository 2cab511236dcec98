package logger

import (
	"log"
	"os"
)

// All output goes to stderr so stdout stays free for supervisors that
// capture it.
var std = log.New(os.Stderr, "", log.LstdFlags)

var isDebug = false

// SetDebug enables or disables debug logging
func SetDebug(debug bool) {
	isDebug = debug
}

// Debug logs a debug-level message
func Debug(format string, v ...interface{}) {
	if isDebug {
		std.Printf("DEBUG: "+format, v...)
	}
}

// Info logs an info-level message
func Info(format string, v ...interface{}) {
	std.Printf("INFO: "+format, v...)
}

// Warn logs a warning-level message
func Warn(format string, v ...interface{}) {
	std.Printf("WARN: "+format, v...)
}

// Error logs an error-level message
func Error(format string, v ...interface{}) {
	std.Printf("ERROR: "+format, v...)
}
