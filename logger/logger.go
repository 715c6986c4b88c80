package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Config selects level, format and where lines go. Lines always go to Stdout; File adds a rotated copy.
type Config struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
	// MaxAge is how many days rotated files are kept.
	MaxAge int `yaml:"max_age"`

	Stdout io.Writer `yaml:"-"`
}

// Log wraps logrus.Logger with additional functionality
type Log struct {
	*logrus.Logger
	closer io.Closer
}

// New builds a logger from cfg. LOG_LEVEL in the environment wins over cfg.Level.
func New(cfg Config) (*Log, error) {
	l := logrus.New()

	level := cfg.Level
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = env
	}
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level '%s'", level)
	}
	l.SetLevel(lvl)

	switch cfg.Format {
	case "text", "":
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	default:
		return nil, fmt.Errorf("invalid log format '%s'", cfg.Format)
	}

	out := cfg.Stdout
	if out == nil {
		out = os.Stdout
	}

	log := &Log{Logger: l}
	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename: cfg.File,
			MaxAge:   cfg.MaxAge,
			MaxSize:  100,
			Compress: true,
		}
		log.closer = file
		out = io.MultiWriter(out, file)
	}
	l.SetOutput(out)

	return log, nil
}

// WithComponent tags every line with the part of the program that wrote it.
func (l *Log) WithComponent(component string) *logrus.Entry {
	return l.Logger.WithField("component", component)
}

// Close releases the log file, if any.
func (l *Log) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
