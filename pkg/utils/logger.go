// Package utils holds the workspace logger shared across the assistant.
package utils

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger writes to a rotating log file under the inlay state directory.
// Failures here must never surface into the editor, so every method is
// safe to call on a half-initialized logger.
type Logger struct {
	logger        *log.Logger
	jsonMode      bool
	correlationID string
}

var (
	globalLogger *Logger
	once         sync.Once
)

// GetLogger returns the singleton logger, initializing the rotating file
// handler on first use.
func GetLogger() *Logger {
	once.Do(func() {
		logFile := &lumberjack.Logger{
			Filename:   filepath.Join(StateDir(), "inlay.log"),
			MaxSize:    15, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		globalLogger = &Logger{
			logger: log.New(logFile, "", log.LstdFlags),
		}
		if os.Getenv("INLAY_JSON_LOGS") == "1" {
			globalLogger.jsonMode = true
		}
		if cid := os.Getenv("INLAY_CORRELATION_ID"); cid != "" {
			globalLogger.correlationID = cid
		}
	})
	return globalLogger
}

// StateDir returns the directory inlay keeps its logs, config, and history
// in, ~/.inlay unless HOME is unavailable.
func StateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".inlay"
	}
	return filepath.Join(home, ".inlay")
}

// Close flushes and closes the underlying log file.
func (l *Logger) Close() error {
	if l == nil || l.logger == nil {
		return nil
	}
	if logFile, ok := l.logger.Writer().(*lumberjack.Logger); ok {
		return logFile.Close()
	}
	return nil
}

// Log writes a message to the log file only.
func (l *Logger) Log(message string) {
	if l == nil || l.logger == nil {
		return
	}
	if l.jsonMode {
		_ = json.NewEncoder(l.logger.Writer()).Encode(map[string]any{
			"level": "info", "msg": message, "cid": l.correlationID,
		})
		return
	}
	l.logger.Print(message)
}

// Logf writes a formatted message to the log file only.
func (l *Logger) Logf(format string, v ...interface{}) {
	l.Log(fmt.Sprintf(format, v...))
}

// LogError records an error.
func (l *Logger) LogError(err error) {
	if l == nil || l.logger == nil || err == nil {
		return
	}
	if l.jsonMode {
		_ = json.NewEncoder(l.logger.Writer()).Encode(map[string]any{
			"level": "error", "error": err.Error(), "cid": l.correlationID,
		})
		return
	}
	l.logger.Printf("Error: %s", err)
}

// LogProcessStep records a step and echoes it to stdout for immediate
// visibility when running from a terminal.
func (l *Logger) LogProcessStep(step string) {
	l.Log(step)
	fmt.Println(step)
}
