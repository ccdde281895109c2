// Package logging builds the process logger
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a human-readable development logger when debug is set and a
// JSON production logger otherwise
func New(debug bool) (*zap.Logger, error) {
	if debug {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg.Build()
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// Room tags log lines with the room id
func Room(id string) zap.Field {
	return zap.String("room", id)
}

// Wallet tags log lines with a participant wallet
func Wallet(w string) zap.Field {
	return zap.String("wallet", w)
}
