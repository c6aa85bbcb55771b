package main

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/arm-runtime/arm"
	"github.com/wippyai/arm-runtime/engine"
	"github.com/wippyai/arm-runtime/heap"
	"github.com/wippyai/arm-runtime/ktf"
	"github.com/wippyai/arm-runtime/platform"
	"github.com/wippyai/arm-runtime/resource"
	"github.com/wippyai/arm-runtime/runtime"
	"github.com/wippyai/arm-runtime/scheduler"
)

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewDevelopmentConfig()
	if lvl > zapcore.DebugLevel {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func installLogger(l *zap.Logger) {
	arm.SetLogger(l.Named("arm"))
	heap.SetLogger(l.Named("heap"))
	scheduler.SetLogger(l.Named("scheduler"))
	engine.SetLogger(l.Named("engine"))
	resource.SetLogger(l.Named("resource"))
	platform.SetLogger(l.Named("platform"))
	ktf.SetLogger(l.Named("ktf"))
	runtime.SetLogger(l.Named("runtime"))
}
