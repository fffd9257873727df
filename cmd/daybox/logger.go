package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"

	"github.com/hylla/daybox/internal/config"
)

// runtimeLogger writes every event to a styled console sink and, in dev mode, to a
// logfmt file. It satisfies app.Logger.
type runtimeLogger struct {
	console *charmLog.Logger
	muted   bool
	file    *charmLog.Logger
	closer  io.Closer
	devLog  string
}

// newRuntimeLogger builds the sinks from the logging config.
func newRuntimeLogger(stderr io.Writer, appName string, devMode bool, cfg config.LoggingConfig, now func() time.Time) (*runtimeLogger, error) {
	level, err := charmLog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse logging level %q: %w", cfg.Level, err)
	}
	if stderr == nil {
		stderr = io.Discard
	}
	logger := &runtimeLogger{console: newSink(stderr, appName, level, charmLog.TextFormatter)}
	if !devMode || !cfg.DevFile.Enabled {
		return logger, nil
	}

	if now == nil {
		now = time.Now
	}
	path, err := devLogFilePath(cfg.DevFile.Dir, appName, now().UTC())
	if err != nil {
		return nil, fmt.Errorf("resolve dev log file path: %w", err)
	}
	f, err := openAppendFile(path)
	if err != nil {
		return nil, err
	}
	logger.file = newSink(f, appName, level, charmLog.LogfmtFormatter)
	logger.closer = f
	logger.devLog = path
	return logger, nil
}

func newSink(w io.Writer, prefix string, level charmLog.Level, formatter charmLog.Formatter) *charmLog.Logger {
	return charmLog.NewWithOptions(w, charmLog.Options{
		Level:           level,
		Prefix:          prefix,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       formatter,
	})
}

func openAppendFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create dev log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open dev log file: %w", err)
	}
	return f, nil
}

// DevLogPath is empty unless a dev log file is open.
func (l *runtimeLogger) DevLogPath() string {
	if l == nil {
		return ""
	}
	return l.devLog
}

func (l *runtimeLogger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// SetConsoleEnabled mutes or unmutes the console sink; the TUI mutes it while it owns the terminal.
func (l *runtimeLogger) SetConsoleEnabled(enabled bool) {
	if l == nil {
		return
	}
	l.muted = !enabled
}

// ConsoleEnabled reports whether console output is live.
func (l *runtimeLogger) ConsoleEnabled() bool {
	return l != nil && !l.muted
}

func (l *runtimeLogger) each(fn func(*charmLog.Logger)) {
	if l == nil {
		return
	}
	if !l.muted && l.console != nil {
		fn(l.console)
	}
	if l.file != nil {
		fn(l.file)
	}
}

func (l *runtimeLogger) Debug(msg string, keyvals ...any) {
	l.each(func(s *charmLog.Logger) { s.Debug(msg, keyvals...) })
}

func (l *runtimeLogger) Info(msg string, keyvals ...any) {
	l.each(func(s *charmLog.Logger) { s.Info(msg, keyvals...) })
}

func (l *runtimeLogger) Warn(msg string, keyvals ...any) {
	l.each(func(s *charmLog.Logger) { s.Warn(msg, keyvals...) })
}

func (l *runtimeLogger) Error(msg string, keyvals ...any) {
	l.each(func(s *charmLog.Logger) { s.Error(msg, keyvals...) })
}

// devLogFilePath resolves <dir>/<app>-YYYYMMDD.log; relative dirs hang off the workspace root.
func devLogFilePath(dir, appName string, now time.Time) (string, error) {
	baseDir := strings.TrimSpace(dir)
	if baseDir == "" {
		baseDir = ".daybox/log"
	}
	if !filepath.IsAbs(baseDir) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve working dir: %w", err)
		}
		baseDir = filepath.Join(workspaceRootFrom(cwd), baseDir)
	}
	name := fmt.Sprintf("%s-%s.log", sanitizeLogFileStem(appName), now.Format("20060102"))
	return filepath.Join(filepath.Clean(baseDir), name), nil
}

// workspaceRootFrom walks up from start to the nearest go.mod or .git, or returns start.
func workspaceRootFrom(start string) string {
	start = strings.TrimSpace(start)
	if start == "" {
		return "."
	}
	start = filepath.Clean(start)
	for dir, parent := start, ""; dir != parent; dir, parent = filepath.Dir(dir), dir {
		if hasWorkspaceMarker(dir) {
			return dir
		}
	}
	return start
}

var workspaceMarkers = []string{"go.mod", ".git"}

func hasWorkspaceMarker(dir string) bool {
	return slices.ContainsFunc(workspaceMarkers, func(marker string) bool {
		_, err := os.Stat(filepath.Join(dir, marker))
		return err == nil
	})
}

func sanitizeLogFileStem(appName string) string {
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", " ", "-")
	stem := strings.Trim(replacer.Replace(strings.TrimSpace(appName)), "-")
	if stem == "" {
		return "daybox"
	}
	return stem
}
