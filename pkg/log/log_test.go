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

package log

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	// Disable color for testing
	color.NoColor = true
	defer func() { color.NoColor = false }()

	tests := []struct {
		name     string
		op       func(t *testing.T, logger *Logger)
		wantLogs []string
	}{
		{
			name: "log_file_operation",
			op: func(t *testing.T, logger *Logger) {
				logger.LogFileOperation(context.Background(), FileOperation{
					Path:    "dst/report.txt",
					Outcome: OutcomeCopied,
					Size:    1024,
				})
			},
			wantLogs: []string{
				"✓ dst/report.txt                                copied",
			},
		},
		{
			name: "log_job_operation",
			op: func(t *testing.T, logger *Logger) {
				logger.StartJob(context.Background(), JobOperation{
					ID:          "4b825dc6-42f3-4ad1-9c6e-000000000000",
					Kind:        "copy",
					Destination: "/mnt/backup",
					TotalFiles:  3,
				})
			},
			wantLogs: []string{
				"[copy → /mnt/backup]",
				"◆ 4b825dc6 • 3 files",
			},
		},
		{
			name: "log_messages",
			op: func(t *testing.T, logger *Logger) {
				logger.Info("info message")
				logger.Warning("warning message")
				logger.Error("error message")
				logger.Success("success message")
			},
			wantLogs: []string{
				"ℹ️  info message",
				"⚠️  warning message",
				"❌ error message",
				"✅ success message",
			},
		},
		{
			name: "log_formatted_messages",
			op: func(t *testing.T, logger *Logger) {
				logger.Infof("info %s", "test")
				logger.Warningf("warning %s", "test")
				logger.Errorf("error %s", "test")
				logger.Successf("success %s", "test")
			},
			wantLogs: []string{
				"ℹ️  info test",
				"⚠️  warning test",
				"❌ error test",
				"✅ success test",
			},
		},
		{
			name: "log_newline",
			op: func(t *testing.T, logger *Logger) {
				logger.Info("first")
				logger.LogNewline()
				logger.Info("second")
			},
			wantLogs: []string{
				"ℹ️  first",
				"",
				"ℹ️  second",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Create buffer for console output
			buf := &bytes.Buffer{}
			logger := New(buf, zerolog.InfoLevel)

			// Perform operation
			tt.op(t, logger)

			// Check output
			output := strings.TrimSpace(buf.String())
			lines := strings.Split(output, "\n")

			require.Equal(t, len(tt.wantLogs), len(lines), "number of log lines should match")
			for i, want := range tt.wantLogs {
				assert.Equal(t, want, strings.TrimSpace(lines[i]), "log line %d should match", i)
			}
		})
	}
}

func TestJobSectionTally(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	buf := &bytes.Buffer{}
	logger := New(buf, zerolog.InfoLevel)
	ctx := context.Background()

	logger.StartJob(ctx, JobOperation{ID: "abc", Kind: "copy", TotalFiles: 2})
	logger.LogFileOperation(ctx, FileOperation{Path: "a.txt", Outcome: OutcomeCopied})
	logger.LogFileOperation(ctx, FileOperation{Path: "b.txt", Outcome: OutcomeFailed, Detail: "disk full"})
	logger.EndJob(ctx)

	require.Nil(t, logger.currentOp, "section closed")
	require.Empty(t, logger.outcomes)

	// Closing twice is a no-op.
	logger.EndJob(ctx)

	output := buf.String()
	assert.Contains(t, output, "[copy]")
	assert.Contains(t, output, "a.txt")
	assert.Contains(t, output, "disk full")
}

func TestFileOperationFormatting(t *testing.T) {
	// Disable color for testing
	color.NoColor = true
	defer func() { color.NoColor = false }()

	tests := []struct {
		name string
		op   FileOperation
		want string
	}{
		{
			name: "copied_file",
			op:   FileOperation{Path: "a.txt", Outcome: OutcomeCopied},
			want: "✓ a.txt",
		},
		{
			name: "failed_file",
			op:   FileOperation{Path: "a.txt", Outcome: OutcomeFailed, Detail: "disk full"},
			want: "✗ a.txt",
		},
		{
			name: "skipped_file",
			op:   FileOperation{Path: "a.txt", Outcome: OutcomeSkipped},
			want: "- a.txt",
		},
		{
			name: "renamed_file",
			op:   FileOperation{Path: "a.txt", Outcome: OutcomeRenamed, Detail: "a (1).txt"},
			want: "⟳ a.txt",
		},
		{
			name: "verified_file",
			op:   FileOperation{Path: "a.txt", Outcome: OutcomeVerified},
			want: "• a.txt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := New(buf, zerolog.InfoLevel)

			logger.LogFileOperation(context.Background(), tt.op)

			output := strings.TrimSpace(buf.String())
			assert.True(t, strings.HasPrefix(output, tt.want),
				"output %q should start with %q", output, tt.want)
			assert.Contains(t, output, string(tt.op.Outcome))
			if tt.op.Detail != "" {
				assert.Contains(t, output, tt.op.Detail)
			}
		})
	}
}
