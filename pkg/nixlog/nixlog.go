// Package nixlog wires the engine's structured event and error logging
// on top of zap, the way pkg/util.NewLogger configures it for the rest of
// this module.
package nixlog

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a console-only structured logger at info level.
func New() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// NewWithFile builds a logger that tees to stdout and the given file path,
// creating the parent directory if needed.
func NewWithFile(logPath string) (*zap.Logger, error) {
	dir := filepath.Dir(logPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(os.Stdout), zap.InfoLevel),
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(file), zap.InfoLevel),
	)
	return zap.New(core), nil
}

// Fill logs a FillLog-shaped event at info level. Taking the individual
// fields rather than the state.FillLog struct directly avoids an import
// cycle between pkg/nix/state and pkg/nixlog.
func Fill(log *zap.Logger, market, maker, taker string, rateBps uint16, baseAtoms, quoteAtoms uint64, makerSeq, takerSeq uint64, isMakerGlobal bool) {
	log.Info("fill",
		zap.String("market", market),
		zap.String("maker", maker),
		zap.String("taker", taker),
		zap.Uint16("rate_bps", rateBps),
		zap.Uint64("base_atoms", baseAtoms),
		zap.Uint64("quote_atoms", quoteAtoms),
		zap.Uint64("maker_seq", makerSeq),
		zap.Uint64("taker_seq", takerSeq),
		zap.Bool("is_maker_global", isMakerGlobal),
	)
}

// Cancel logs a cancelled order at info level.
func Cancel(log *zap.Logger, market, trader string, sequenceNumber uint64) {
	log.Info("cancel_order",
		zap.String("market", market),
		zap.String("trader", trader),
		zap.Uint64("sequence_number", sequenceNumber),
	)
}

// Err logs an engine error with its stable numeric code.
func Err(log *zap.Logger, op string, code uint32, err error) {
	log.Error(op, zap.Uint32("nix_error_code", code), zap.Error(err))
}
