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

package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/fileops/pkg/queue"
)

func TestExpandPairs(t *testing.T) {
	tmpDir := t.TempDir()
	existingDir := filepath.Join(tmpDir, "dir")
	require.NoError(t, os.MkdirAll(existingDir, 0755))

	t.Run("single_source_new_destination", func(t *testing.T) {
		sources, dests, err := expandPairs([]string{"/a/file.txt"}, filepath.Join(tmpDir, "renamed.txt"))
		require.NoError(t, err)
		assert.Equal(t, []string{"/a/file.txt"}, sources)
		assert.Equal(t, []string{filepath.Join(tmpDir, "renamed.txt")}, dests)
	})

	t.Run("single_source_into_directory", func(t *testing.T) {
		_, dests, err := expandPairs([]string{"/a/file.txt"}, existingDir)
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(existingDir, "file.txt")}, dests)
	})

	t.Run("multiple_sources", func(t *testing.T) {
		_, dests, err := expandPairs([]string{"/a/one.txt", "/b/two.txt"}, existingDir)
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(existingDir, "one.txt"),
			filepath.Join(existingDir, "two.txt"),
		}, dests)
	})

	t.Run("no_sources", func(t *testing.T) {
		_, _, err := expandPairs(nil, existingDir)
		assert.Error(t, err)
	})
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in      string
		want    queue.Priority
		wantErr bool
	}{
		{in: "critical", want: queue.PriorityCritical},
		{in: "high", want: queue.PriorityHigh},
		{in: "normal", want: queue.PriorityNormal},
		{in: "", want: queue.PriorityNormal},
		{in: "low", want: queue.PriorityLow},
		{in: "urgent", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parsePriority(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestHumanBytes(t *testing.T) {
	assert.Equal(t, "512 B", humanBytes(512))
	assert.Equal(t, "1.0 KiB", humanBytes(1024))
	assert.Equal(t, "2.5 MiB", humanBytes(5*1024*1024/2))
	assert.Equal(t, "1.0 GiB", humanBytes(1<<30))
}
