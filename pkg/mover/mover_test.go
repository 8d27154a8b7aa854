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

package mover

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/fileops/pkg/copier"
	"github.com/walteh/fileops/pkg/verify"
	"gitlab.com/tozd/go/errors"
)

// 💥 failingCopier simulates cross-volume copy failures.
type failingCopier struct {
	err         error
	leaveOutput bool // write the destination before failing, as a verify mismatch would
}

func (f *failingCopier) CopyFile(ctx context.Context, src, dst string, cb copier.ProgressFunc, opts copier.Options) error {
	if f.leaveOutput {
		_ = os.WriteFile(dst, []byte("corrupt"), 0644)
	}
	return f.err
}

func (f *failingCopier) CopyBatch(ctx context.Context, pairs []copier.Pair, cb copier.FileProgressFunc, opts copier.Options) map[string]error {
	results := make(map[string]error, len(pairs))
	for _, pair := range pairs {
		results[pair.Dest] = f.CopyFile(ctx, pair.Source, pair.Dest, nil, opts)
	}
	return results
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestMoveStrategySameVolume(t *testing.T) {
	tmpDir := t.TempDir()
	src := filepath.Join(tmpDir, "src.txt")
	writeFile(t, src, "data")

	m := New(copier.New(nil))
	assert.Equal(t, StrategyRename, m.MoveStrategy(src, filepath.Join(tmpDir, "dst.txt")))
}

func TestMoveFileSameVolume(t *testing.T) {
	tmpDir := t.TempDir()
	src := filepath.Join(tmpDir, "src.txt")
	dst := filepath.Join(tmpDir, "nested", "dst.txt")
	writeFile(t, src, "the content")

	v := verify.New(verify.SHA256)
	srcHash, err := v.Hash(context.Background(), src)
	require.NoError(t, err)

	m := New(copier.New(v))
	calls := 0
	require.NoError(t, m.MoveFile(context.Background(), src, dst, func(done, total int64) { calls++ }, copier.Options{}))

	assert.NoFileExists(t, src)
	require.FileExists(t, dst)
	dstHash, err := v.Hash(context.Background(), dst)
	require.NoError(t, err)
	assert.Equal(t, srcHash, dstHash, "content survives the move")
	assert.Zero(t, calls, "atomic rename makes no progress callbacks")
}

func TestMoveFileMissingSource(t *testing.T) {
	tmpDir := t.TempDir()
	m := New(copier.New(nil))
	err := m.MoveFile(context.Background(), filepath.Join(tmpDir, "missing"), filepath.Join(tmpDir, "dst"), nil, copier.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, copier.ErrSourceNotFound)
}

func TestCopyDeleteFailureLeavesSource(t *testing.T) {
	tmpDir := t.TempDir()
	src := filepath.Join(tmpDir, "src.txt")
	dst := filepath.Join(tmpDir, "dst.txt")
	writeFile(t, src, "precious data")

	m := New(&failingCopier{err: errors.New("injected copy failure")})
	err := m.copyDelete(context.Background(), src, dst, nil, copier.Options{})
	require.Error(t, err)

	// Source untouched, destination absent.
	content, readErr := os.ReadFile(src)
	require.NoError(t, readErr)
	assert.Equal(t, "precious data", string(content))
	assert.NoFileExists(t, dst)
}

func TestCopyDeleteVerificationFailureRemovesDestination(t *testing.T) {
	tmpDir := t.TempDir()
	src := filepath.Join(tmpDir, "src.txt")
	dst := filepath.Join(tmpDir, "dst.txt")
	writeFile(t, src, "precious data")

	injected := errors.Errorf("verifying copy: %w", verify.ErrHashMismatch)
	m := New(&failingCopier{err: injected, leaveOutput: true})

	err := m.copyDelete(context.Background(), src, dst, nil, copier.Options{Verify: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, verify.ErrHashMismatch)

	assert.FileExists(t, src, "source is preserved on verification failure")
	assert.NoFileExists(t, dst, "corrupt destination is removed")
}

func TestMoveBatch(t *testing.T) {
	tmpDir := t.TempDir()
	a := filepath.Join(tmpDir, "a.txt")
	b := filepath.Join(tmpDir, "b.txt")
	writeFile(t, a, "aaa")
	writeFile(t, b, "bbb")

	pairs := []copier.Pair{
		{Source: a, Dest: filepath.Join(tmpDir, "out", "a.txt")},
		{Source: b, Dest: filepath.Join(tmpDir, "out", "b.txt")},
	}

	m := New(copier.New(nil))
	results := m.MoveBatch(context.Background(), pairs, nil, copier.Options{})

	require.Len(t, results, 2)
	for dst, err := range results {
		assert.NoError(t, err, dst)
		assert.FileExists(t, dst)
	}
	assert.NoFileExists(t, a)
	assert.NoFileExists(t, b)
}

func TestMoveBatchVerifyFailureKeepsSources(t *testing.T) {
	tmpDir := t.TempDir()
	a := filepath.Join(tmpDir, "a.txt")
	writeFile(t, a, "aaa")
	dst := filepath.Join(tmpDir, "out", "a.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0755))

	injected := errors.Errorf("verifying copy: %w", verify.ErrSizeMismatch)
	m := New(&failingCopier{err: injected, leaveOutput: true})
	m.sameVolume = func(a, b string) (bool, error) { return false, nil } // force the cross-volume path

	results := m.MoveBatch(context.Background(), []copier.Pair{{Source: a, Dest: dst}}, nil, copier.Options{})
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[dst], verify.ErrSizeMismatch)
	assert.FileExists(t, a)
	assert.NoFileExists(t, dst)
}

func TestMoveBatchCrossVolume(t *testing.T) {
	tmpDir := t.TempDir()
	a := filepath.Join(tmpDir, "a.txt")
	writeFile(t, a, "payload")
	dst := filepath.Join(tmpDir, "out", "a.txt")

	m := New(copier.New(nil))
	m.sameVolume = func(x, y string) (bool, error) { return false, nil }

	results := m.MoveBatch(context.Background(), []copier.Pair{{Source: a, Dest: dst}}, nil, copier.Options{})
	require.Len(t, results, 1)
	require.NoError(t, results[dst])
	assert.NoFileExists(t, a, "source is deleted after a successful cross-volume copy")
	assert.FileExists(t, dst)
}

func TestMoveDirectoryRename(t *testing.T) {
	base := t.TempDir()
	srcDir := filepath.Join(base, "src")
	dstDir := filepath.Join(base, "dst")
	writeFile(t, filepath.Join(srcDir, "sub", "file.txt"), "content")

	m := New(copier.New(nil))
	results, err := m.MoveDirectory(context.Background(), srcDir, dstDir, nil, copier.Options{})
	require.NoError(t, err)
	assert.Empty(t, results, "directory-level rename needs no per-file work")

	assert.NoDirExists(t, srcDir)
	assert.FileExists(t, filepath.Join(dstDir, "sub", "file.txt"))
}

func TestTryDirectoryRename(t *testing.T) {
	t.Run("same_volume", func(t *testing.T) {
		base := t.TempDir()
		srcDir := filepath.Join(base, "src")
		dstDir := filepath.Join(base, "dst")
		writeFile(t, filepath.Join(srcDir, "file.txt"), "content")

		m := New(copier.New(nil))
		assert.True(t, m.TryDirectoryRename(srcDir, dstDir))
		assert.NoDirExists(t, srcDir)
		assert.FileExists(t, filepath.Join(dstDir, "file.txt"))
	})

	t.Run("destination_exists", func(t *testing.T) {
		base := t.TempDir()
		srcDir := filepath.Join(base, "src")
		dstDir := filepath.Join(base, "dst")
		writeFile(t, filepath.Join(srcDir, "file.txt"), "content")
		require.NoError(t, os.MkdirAll(dstDir, 0755))

		m := New(copier.New(nil))
		assert.False(t, m.TryDirectoryRename(srcDir, dstDir), "merging into an existing tree needs the per-file path")
		assert.DirExists(t, srcDir)
	})

	t.Run("cross_volume", func(t *testing.T) {
		base := t.TempDir()
		srcDir := filepath.Join(base, "src")
		writeFile(t, filepath.Join(srcDir, "file.txt"), "content")

		m := New(copier.New(nil))
		m.sameVolume = func(a, b string) (bool, error) { return false, nil }
		assert.False(t, m.TryDirectoryRename(srcDir, filepath.Join(base, "dst")))
		assert.DirExists(t, srcDir)
	})
}

func TestMoveDirectoryFallbackPrunesEmptySourceDirs(t *testing.T) {
	base := t.TempDir()
	srcDir := filepath.Join(base, "src")
	dstDir := filepath.Join(base, "dst")
	writeFile(t, filepath.Join(srcDir, "sub", "deep", "file.txt"), "content")
	// An existing destination forces the per-file fallback.
	require.NoError(t, os.MkdirAll(dstDir, 0755))

	m := New(copier.New(nil))
	results, err := m.MoveDirectory(context.Background(), srcDir, dstDir, nil, copier.Options{})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.FileExists(t, filepath.Join(dstDir, "sub", "deep", "file.txt"))
	assert.NoDirExists(t, srcDir, "emptied source tree is pruned")
}

func TestMoveDirectoryMissingSource(t *testing.T) {
	m := New(copier.New(nil))
	_, err := m.MoveDirectory(context.Background(), filepath.Join(t.TempDir(), "missing"), t.TempDir(), nil, copier.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, copier.ErrSourceNotFound)
}
