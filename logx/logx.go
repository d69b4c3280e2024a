package logx

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
)

// Options controls where log lines go. A zero value logs to stderr only.
type Options struct {
	File       string
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
	Debug      bool
}

var (
	mu      sync.RWMutex
	logger  = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lmicroseconds)
	rotator *lumberjack.Logger
	debugOn bool
)

// Setup replaces the package logger. When opts.File is set, lines are written to
// stderr and to a rolling file.
func Setup(opts Options) {
	mu.Lock()
	defer mu.Unlock()

	if rotator != nil {
		rotator.Close()
		rotator = nil
	}

	var out io.Writer = os.Stderr
	if opts.File != "" {
		rotator = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB, // megabytes
			MaxAge:     opts.MaxAgeDays,
			MaxBackups: opts.MaxBackups,
		}
		out = io.MultiWriter(os.Stderr, rotator)
	}
	logger = log.New(out, "", log.Ldate|log.Ltime|log.Lmicroseconds)
	debugOn = opts.Debug
}

// SetOutput redirects all log lines to w. Used by tests to capture output.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds)
}

// Close flushes and closes the rolling file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if rotator == nil {
		return nil
	}
	err := rotator.Close()
	rotator = nil
	return err
}

func write(level, color, category string, content []interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	message := fmt.Sprint(content...)
	coloredCategory := fmt.Sprintf("%s[%s][%s]%s", color, level, category, ColorReset)
	logger.Printf("%s: %s", coloredCategory, message)
}

func Info(category string, content ...interface{}) {
	write("INFO", ColorGreen, category, content)
}

func Error(category string, content ...interface{}) {
	write("ERROR", ColorRed, category, content)
}

func Warn(category string, content ...interface{}) {
	write("WARN", ColorYellow, category, content)
}

func Debug(category string, content ...interface{}) {
	mu.RLock()
	on := debugOn
	mu.RUnlock()
	if !on {
		return
	}
	write("DEBUG", ColorBlue, category, content)
}

// Errorf logs an error message and returns a formatted error
func Errorf(format string, args ...interface{}) error {
	err := fmt.Errorf(format, args...)
	Error("ERROR", err.Error())
	return err
}
