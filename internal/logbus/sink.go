package logbus

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type SinkOptions struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	// Console defaults to stderr.
	Console zapcore.WriteSyncer
}

// NewLogger builds a console logger teed with a rotated JSON session file.
func NewLogger(opts SinkOptions) *zap.Logger {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")

	consoleCfg := encCfg
	consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	console := opts.Console
	if console == nil {
		console = zapcore.Lock(os.Stderr)
	}
	cores := []zapcore.Core{zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), console, level)}

	if opts.File != "" {
		fileCfg := encCfg
		fileCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		w := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), w, level))
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zap.ErrorLevel))
}

// Sink forwards every bus message to a zap logger.
type Sink struct {
	logger *zap.Logger
	cancel func()
	done   chan struct{}
}

func StartSink(bus *Bus, logger *zap.Logger) *Sink {
	ch, cancel := bus.Subscribe(1024)
	s := &Sink{logger: logger, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		for msg := range ch {
			s.write(msg)
		}
	}()
	return s
}

// Close drains what is already queued and flushes the logger.
func (s *Sink) Close() {
	s.cancel()
	<-s.done
	_ = s.logger.Sync()
}

func (s *Sink) write(msg Message) {
	switch data := msg.Data.(type) {
	case LogData:
		fields := make([]zap.Field, 0, len(data.Fields))
		for k, v := range data.Fields {
			fields = append(fields, zap.Any(k, v))
		}
		if ce := s.logger.Check(levelOf(data.Level), data.Msg); ce != nil {
			ce.Write(fields...)
		}
	default:
		lvl := zapcore.DebugLevel
		if msg.Type == TypeActivity || msg.Type == TypeChallenge {
			lvl = zapcore.InfoLevel
		}
		if ce := s.logger.Check(lvl, msg.Type); ce != nil {
			ce.Write(zap.Any("data", msg.Data))
		}
	}
}

func levelOf(s string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return zapcore.InfoLevel
	}
	return l
}
