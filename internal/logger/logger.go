// Package logger writes structured key=value logs to a rotating file next to
// the database. Nothing reaches the terminal unless debug output is on.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/julianstephens/tally/internal/constants"
)

// Logger is the process-wide logger. Helpers are no-ops until Init runs.
var Logger *log.Logger

const (
	logDirName     = "logs"
	rotateSizeMB   = 10
	rotateKeep     = 3
	rotateMaxDays  = 28
	defaultFileLvl = log.WarnLevel
)

type Config struct {
	Debug bool
	// ConfigDir is the directory holding the database; logs go in its logs/ subdirectory
	ConfigDir string
}

// Init points the global logger at <ConfigDir>/logs/tally.log. The file is
// logfmt so it can be grepped by op or strategy; debug mode mirrors to stderr.
func Init(cfg Config) error {
	logDir := filepath.Join(cfg.ConfigDir, logDirName)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return err
	}

	var w io.Writer = &lumberjack.Logger{
		Filename:   filepath.Join(logDir, constants.AppName+".log"),
		MaxSize:    rotateSizeMB,
		MaxBackups: rotateKeep,
		MaxAge:     rotateMaxDays,
		Compress:   true,
	}
	level := defaultFileLvl
	if cfg.Debug {
		level = log.DebugLevel
		w = io.MultiWriter(os.Stderr, w)
	}

	Logger = log.NewWithOptions(w, log.Options{
		ReportCaller:    cfg.Debug,
		ReportTimestamp: true,
		Level:           level,
		Prefix:          constants.AppName,
		Formatter:       log.LogfmtFormatter,
	})
	return nil
}

// InitWriter sends logs to w instead of a file
func InitWriter(w io.Writer, level log.Level) {
	Logger = log.NewWithOptions(w, log.Options{
		Level:     level,
		Prefix:    constants.AppName,
		Formatter: log.LogfmtFormatter,
	})
}

// Op tags every record with op=<name> so one operation's lines can be
// followed through the store, engine and gateway.
type Op struct {
	name string
}

func For(name string) Op {
	return Op{name: name}
}

func (o Op) with(keyvals []interface{}) []interface{} {
	return append([]interface{}{"op", o.name}, keyvals...)
}

func (o Op) Debug(msg string, keyvals ...interface{}) { Debug(msg, o.with(keyvals)...) }
func (o Op) Info(msg string, keyvals ...interface{})  { Info(msg, o.with(keyvals)...) }
func (o Op) Warn(msg string, keyvals ...interface{})  { Warn(msg, o.with(keyvals)...) }
func (o Op) Error(msg string, keyvals ...interface{}) { Error(msg, o.with(keyvals)...) }

func Debug(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Debug(msg, keyvals...)
	}
}

func Info(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Info(msg, keyvals...)
	}
}

func Warn(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Warn(msg, keyvals...)
	}
}

func Error(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Error(msg, keyvals...)
	}
}
