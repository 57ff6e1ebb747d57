// Package logger собирает zap.Logger для сервиса.
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config содержит настройки для логгера.
type Config struct {
	Level      string // debug, info, warn, error
	Encoding   string // json или console
	OutputPath string // пусто - stdout
	// Service попадает в каждую запись полем "service".
	Service string
	// Development включает caller, стектрейсы и отключает сэмплирование.
	Development bool
}

// Сэмплирование в проде: первые 100 одинаковых записей в секунду, дальше каждая сотая.
// Поток чанков пишет много одинаковых Debug/Info строк.
const (
	sampleInitial    = 100
	sampleThereafter = 100
)

// ParseLevel разбирает уровень логирования. Пустая строка - info.
func ParseLevel(s string) (zapcore.Level, error) {
	lvl := strings.ToLower(strings.TrimSpace(s))
	if lvl == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(lvl)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// New создает zap.Logger по конфигурации. Неизвестный уровень не валит старт:
// логгер поднимается на info и сразу пишет предупреждение.
func New(cfg Config) (*zap.Logger, error) {
	level, levelErr := ParseLevel(cfg.Level)

	encoding := strings.ToLower(cfg.Encoding)
	if encoding != "console" {
		encoding = "json"
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderCfg.EncodeDuration = zapcore.StringDurationEncoder
	if encoding == "console" {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	output := cfg.OutputPath
	if output == "" {
		output = "stdout"
	}

	zcfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       cfg.Development,
		DisableCaller:     !cfg.Development,
		DisableStacktrace: !cfg.Development,
		Encoding:          encoding,
		EncoderConfig:     encoderCfg,
		OutputPaths:       []string{output},
		ErrorOutputPaths:  []string{"stderr"},
	}
	if !cfg.Development {
		zcfg.Sampling = &zap.SamplingConfig{Initial: sampleInitial, Thereafter: sampleThereafter}
	}

	var opts []zap.Option
	if cfg.Service != "" {
		opts = append(opts, zap.Fields(zap.String("service", cfg.Service)))
	}

	logger, err := zcfg.Build(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	if levelErr != nil {
		logger.Warn("Falling back to info log level", zap.Error(levelErr))
	}
	return logger, nil
}
