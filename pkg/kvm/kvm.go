// Package kvm assembles the services into the two runnable roles: the
// server that captures and broadcasts input, and the client that receives
// and replays it.
package kvm

import (
	"fmt"
	"path/filepath"

	"github.com/dgraph-io/badger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger() (*zap.Logger, error) {
	loggerConfig := zap.NewDevelopmentConfig()
	loggerConfig.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000000000")
	loggerConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logger, err := loggerConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

func openDB(dataDir string, logger *zap.Logger) (*badger.DB, error) {
	dbOptions := badger.DefaultOptions(filepath.Join(dataDir, "db"))
	dbOptions.Logger = &badgerLogger{l: logger.Named("badger")}

	db, err := badger.Open(dbOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	return db, nil
}

type badgerLogger struct {
	l *zap.Logger
}

func (l badgerLogger) Errorf(msg string, args ...any) {
	l.l.Error(fmt.Sprintf(msg, args...))
}

func (l badgerLogger) Warningf(msg string, args ...any) {
	l.l.Warn(fmt.Sprintf(msg, args...))
}

func (l badgerLogger) Infof(msg string, args ...any) {
	l.l.Info(fmt.Sprintf(msg, args...))
}

func (l badgerLogger) Debugf(msg string, args ...any) {
	l.l.Debug(fmt.Sprintf(msg, args...))
}
