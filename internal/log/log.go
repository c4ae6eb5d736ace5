package log

import (
	"fmt"
	"github.com/csr-ugra/hh-vacancy-loader/internal/util"
	"github.com/google/uuid"
	"github.com/nullseed/logruseq"
	"github.com/sirupsen/logrus"
	"io"
	"os"
)

type Logger = *logrus.Entry

// New builds the process logger. Every entry carries a TraceId so that all
// records of one run can be grouped in Seq.
func New(config *util.Config) (Logger, io.Closer, error) {
	level, err := logrus.ParseLevel(config.LogLevel.Value)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %v", config.LogLevel.Value, err)
	}

	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if config.LogFile.Value != "" {
		f, err := os.OpenFile(config.LogFile.Value, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %v", err)
		}
		out, closer = f, f
	}

	logger := &logrus.Logger{
		Out:   out,
		Hooks: make(logrus.LevelHooks),
		Level: level,
	}

	if config.Environment.Value == "production" || config.LogFile.Value != "" {
		logger.Formatter = &logrus.JSONFormatter{}
	} else {
		logger.Formatter = &logrus.TextFormatter{
			ForceColors:      true,
			FullTimestamp:    false,
			QuoteEmptyFields: true,
		}
	}

	if config.SeqUrl.Value != "" {
		seqHook := logruseq.NewSeqHook(config.SeqUrl.Value, logruseq.OptionAPIKey(config.SeqToken.Value))
		logger.AddHook(seqHook)
	} else {
		logger.Debug("logger running without seq hook")
	}

	return logger.WithField("TraceId", uuid.New().String()), closer, nil
}

// Discard returns a logger that writes nowhere, for tests and optional wiring.
func Discard() Logger {
	logger := logrus.New()
	logger.Out = io.Discard
	logger.Level = logrus.DebugLevel

	return logrus.NewEntry(logger)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
