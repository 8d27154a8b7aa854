// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log renders per-file outcomes and job summaries to the
// console while mirroring everything into structured zerolog output.
package log

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

// 🎨 Display configuration
const (
	fileIndent  = 4  // spaces to indent file entries
	nameWidth   = 45 // Base width for file path
	statusWidth = 12 // Width for status text
)

// 🏷️ Outcome is the per-file result shown in the console.
type Outcome string

const (
	OutcomeCopied   Outcome = "copied"
	OutcomeMoved    Outcome = "moved"
	OutcomeVerified Outcome = "verified"
	OutcomeDeleted  Outcome = "deleted"
	OutcomeRenamed  Outcome = "renamed"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

// 🎯 FileOperation represents one file outcome for logging
type FileOperation struct {
	Path    string  // Destination (or deleted) path
	Outcome Outcome // What happened to it
	Size    int64   // Bytes involved
	Detail  string  // Error text or rename target
}

// 📦 JobOperation represents one queued job for logging
type JobOperation struct {
	ID          string // Job id
	Kind        string // copy/move/verify/delete
	Destination string // Primary destination, empty for delete/verify
	TotalFiles  int    // Files in the job after expansion
}

// 🎯 Logger handles structured logging with console output
type Logger struct {
	zlog      zerolog.Logger
	console   io.Writer
	mu        sync.Mutex
	currentOp *JobOperation
	outcomes  []FileOperation
}

// 🏭 New creates a new logger
func New(console io.Writer, level zerolog.Level) *Logger {
	zlog := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger().Level(level)
	return &Logger{
		zlog:    zlog,
		console: console,
		mu:      sync.Mutex{},
	}
}

// 📝 formatFileOperation formats a file outcome for display
func (l *Logger) formatFileOperation(op FileOperation) string {
	var symbol rune
	var symbolColor color.Attribute
	switch op.Outcome {
	case OutcomeFailed:
		symbol = '✗'
		symbolColor = color.FgRed
	case OutcomeSkipped:
		symbol = '-'
		symbolColor = color.FgYellow
	case OutcomeRenamed:
		symbol = '⟳'
		symbolColor = color.FgBlue
	case OutcomeVerified:
		symbol = '•'
		symbolColor = color.FgCyan
	default:
		symbol = '✓'
		symbolColor = color.FgGreen
	}

	line := fmt.Sprintf("%s%s %s %s",
		fmt.Sprintf("%*s", fileIndent, ""),
		color.New(symbolColor).Sprint(string(symbol)),
		fmt.Sprintf("%-*s", nameWidth, op.Path),
		fmt.Sprintf("%-*s", statusWidth, string(op.Outcome)))
	if op.Detail != "" {
		line += " " + color.New(color.Faint).Sprint(op.Detail)
	}
	return line
}

// 📝 LogFileOperation logs a file outcome
func (l *Logger) LogFileOperation(ctx context.Context, op FileOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.outcomes = append(l.outcomes, op)
	fmt.Fprintln(l.console, l.formatFileOperation(op))

	l.zlog.Info().
		Str("file", op.Path).
		Str("outcome", string(op.Outcome)).
		Int64("size", op.Size).
		Str("detail", op.Detail).
		Msg("file operation")
}

// 📝 StartJob starts a new job section
func (l *Logger) StartJob(ctx context.Context, op JobOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.currentOp = &op
	l.outcomes = nil

	header := op.Kind
	if op.Destination != "" {
		header = fmt.Sprintf("%s → %s", op.Kind, op.Destination)
	}
	fmt.Fprintf(l.console, "[%s]\n", color.New(color.FgCyan).Sprint(header))
	fmt.Fprintf(l.console, "%s %s %s %d files\n",
		color.New(color.FgMagenta).Sprint("◆"),
		color.New(color.Bold).Sprint(shortID(op.ID)),
		color.New(color.Faint).Sprint("•"),
		op.TotalFiles)

	l.zlog.Info().
		Str("job", op.ID).
		Str("kind", op.Kind).
		Str("destination", op.Destination).
		Int("total_files", op.TotalFiles).
		Msg("starting job")
}

// 📝 EndJob ends the current job section with a tally line
func (l *Logger) EndJob(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.currentOp == nil {
		return
	}

	var failed int
	for _, op := range l.outcomes {
		if op.Outcome == OutcomeFailed {
			failed++
		}
	}
	l.zlog.Info().
		Str("job", l.currentOp.ID).
		Int("files", len(l.outcomes)).
		Int("failed", failed).
		Msg("job complete")

	l.currentOp = nil
	l.outcomes = nil
}

// 📝 LogNewline logs a newline
func (l *Logger) LogNewline() {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.console)
}

// 📝 Success logs a success message
func (l *Logger) Success(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "✅ %s\n", color.New(color.FgGreen).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Warning logs a warning message
func (l *Logger) Warning(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "⚠️  %s\n", color.New(color.FgYellow).Sprint(msg))
	l.zlog.Warn().Msg(msg)
}

// 📝 Error logs an error message
func (l *Logger) Error(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "❌ %s\n", color.New(color.FgRed).Sprint(msg))
	l.zlog.Error().Msg(msg)
}

// 📝 Info logs an info message
func (l *Logger) Info(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "ℹ️  %s\n", color.New(color.FgCyan).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.Info(fmt.Sprintf(format, args...))
}

// 📝 Warningf logs a formatted warning message
func (l *Logger) Warningf(format string, args ...interface{}) {
	l.Warning(fmt.Sprintf(format, args...))
}

// 📝 Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Error(fmt.Sprintf(format, args...))
}

// 📝 Successf logs a formatted success message
func (l *Logger) Successf(format string, args ...interface{}) {
	l.Success(fmt.Sprintf(format, args...))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
