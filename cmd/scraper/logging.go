package main

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger writes text to a terminal and JSON otherwise. When logFile is
// set the same stream is also written to a rotating file.
func newLogger(verbose bool, logFile string) (*slog.Logger, func()) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}
	opts := &slog.HandlerOptions{Level: level}

	var out io.Writer = os.Stdout
	closer := func() {}
	if logFile != "" {
		rotating := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    50,
			MaxBackups: 5,
			LocalTime:  true,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotating)
		closer = func() { _ = rotating.Close() }
	}

	var handler slog.Handler
	if isTerminal(os.Stdout) && logFile == "" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	return slog.New(handler), closer
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
