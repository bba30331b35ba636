package config

import (
	"go.uber.org/zap"
)

// Log is the process-wide logger. It is a no-op until InitLogger runs, which
// keeps tests quiet.
var Log = zap.NewNop().Sugar()

// InitLogger builds the global logger for the given environment.
func InitLogger(env string) error {
	var (
		logger *zap.Logger
		err    error
	)
	if env == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return err
	}
	Log = logger.Sugar()
	return nil
}

// SyncLogger flushes buffered log entries.
func SyncLogger() {
	Log.Sync()
}
