package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the process-wide logger. It writes text to stderr until Init
// is called, so packages and tests can log before configuration.
var Logger = logrus.New()

var once sync.Once

// Options controls Init.
type Options struct {
	Level string
	// File, when set, sends output to a rotating file instead of stdout.
	File string
}

// Init configures Logger once. Later calls are no-ops.
func Init(opts Options) {
	once.Do(func() {
		level, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			level = logrus.InfoLevel
		}
		Logger.SetLevel(level)
		Logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})

		var out io.Writer = os.Stdout
		if opts.File != "" {
			out = &lumberjack.Logger{
				Filename:   opts.File,
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     28, // days
				Compress:   true,
			}
		}
		Logger.SetOutput(out)

		Logger.WithFields(logrus.Fields{
			"level": level.String(),
			"file":  opts.File,
		}).Info("logger initialized")
	})
}
