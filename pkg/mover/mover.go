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

// Package mover chooses between an atomic same-volume rename and a
// cross-volume copy-then-delete, preserving the source whenever the
// transfer cannot be completed faithfully.
package mover

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
	"github.com/walteh/fileops/pkg/copier"
	"github.com/walteh/fileops/pkg/fsutil"
	"github.com/walteh/fileops/pkg/verify"
	"gitlab.com/tozd/go/errors"
)

// 🧭 Strategy is how a move will be satisfied.
type Strategy int

const (
	// StrategyRename is a single atomic filesystem rename.
	StrategyRename Strategy = iota
	// StrategyCopyDelete copies across volumes then deletes the source.
	StrategyCopyDelete
)

func (s Strategy) String() string {
	if s == StrategyRename {
		return "rename"
	}
	return "copy_delete"
}

// 💾 FileCopier is the copy backend used for cross-volume moves. It is
// an interface so tests can inject failures.
type FileCopier interface {
	CopyFile(ctx context.Context, src, dst string, cb copier.ProgressFunc, opts copier.Options) error
	CopyBatch(ctx context.Context, pairs []copier.Pair, cb copier.FileProgressFunc, opts copier.Options) map[string]error
}

// 🔧 Mover performs moves via rename or copy+delete.
type Mover struct {
	copier FileCopier

	sameVolume func(a, b string) (bool, error) // test seam
}

// 🏭 New creates a mover backed by the given copier.
func New(c FileCopier) *Mover {
	return &Mover{
		copier:     c,
		sameVolume: fsutil.SameVolume,
	}
}

// 🧭 MoveStrategy picks rename when both paths resolve to the same
// volume. Volume detection for a not-yet-existing destination falls
// back to its nearest existing ancestor (best-effort).
func (m *Mover) MoveStrategy(src, dst string) Strategy {
	same, err := m.sameVolume(src, dst)
	if err != nil || !same {
		return StrategyCopyDelete
	}
	return StrategyRename
}

// 📄 MoveFile moves one file. A same-volume move is a single atomic
// rename: instant, no progress callbacks, no window where both files
// coexist. A cross-volume move copies then deletes the source; if the
// copy fails the source is left untouched, and if post-copy
// verification fails the corrupt destination is removed and the source
// preserved.
func (m *Mover) MoveFile(ctx context.Context, src, dst string, cb copier.ProgressFunc, opts copier.Options) error {
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return errors.Errorf("%w: %s", copier.ErrSourceNotFound, src)
		}
		return errors.Errorf("stat source %s: %w", src, err)
	}

	if m.MoveStrategy(src, dst) == StrategyRename {
		if err := m.rename(src, dst); err == nil {
			return nil
		}
		// Rename can still fail across bind mounts that defeat volume
		// detection; fall through to copy+delete.
	}
	return m.copyDelete(ctx, src, dst, cb, opts)
}

func (m *Mover) rename(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errors.Errorf("creating destination directory: %w", err)
	}
	if err := os.Rename(src, dst); err != nil {
		return errors.Errorf("renaming %s to %s: %w", src, dst, err)
	}
	return nil
}

func (m *Mover) copyDelete(ctx context.Context, src, dst string, cb copier.ProgressFunc, opts copier.Options) error {
	logger := zerolog.Ctx(ctx)

	if err := m.copier.CopyFile(ctx, src, dst, cb, opts); err != nil {
		if isVerificationError(err) {
			// The destination exists but is corrupt. Remove it, keep
			// the source.
			if rmErr := os.Remove(dst); rmErr != nil && !os.IsNotExist(rmErr) {
				logger.Warn().Str("dest", dst).Err(rmErr).Msg("could not remove corrupt destination")
			}
		}
		return errors.Errorf("copying %s for move: %w", src, err)
	}
	if err := os.Remove(src); err != nil {
		return errors.Errorf("removing source %s after copy: %w", src, err)
	}
	return nil
}

func isVerificationError(err error) bool {
	return errors.Is(err, verify.ErrSizeMismatch) || errors.Is(err, verify.ErrHashMismatch)
}

// 🏭 MoveBatch partitions pairs into same-volume and cross-volume
// groups. Renames run serially (they are instant); the cross-volume
// group fans out through the copier's batch pool. Returns a
// per-destination error map.
func (m *Mover) MoveBatch(ctx context.Context, pairs []copier.Pair, cb copier.FileProgressFunc, opts copier.Options) map[string]error {
	results := make(map[string]error, len(pairs))

	var cross []copier.Pair
	for _, pair := range pairs {
		if m.MoveStrategy(pair.Source, pair.Dest) == StrategyRename {
			if err := m.rename(pair.Source, pair.Dest); err == nil {
				results[pair.Dest] = nil
				continue
			}
			// EXDEV or similar: reclassify.
		}
		cross = append(cross, pair)
	}

	if len(cross) == 0 {
		return results
	}

	copyResults := m.copier.CopyBatch(ctx, cross, cb, opts)
	for _, pair := range cross {
		err := copyResults[pair.Dest]
		if err != nil {
			if isVerificationError(err) {
				os.Remove(pair.Dest) //nolint:errcheck // best-effort corrupt-copy cleanup
			}
			results[pair.Dest] = err
			continue
		}
		if rmErr := os.Remove(pair.Source); rmErr != nil {
			results[pair.Dest] = errors.Errorf("removing source %s after copy: %w", pair.Source, rmErr)
			continue
		}
		results[pair.Dest] = nil
	}
	return results
}

// 🌳 MoveDirectory moves a whole tree. A same-volume move first
// attempts a directory-level rename; when that is not possible it falls
// back to file-by-file moves followed by pruning of now-empty source
// subdirectories.
func (m *Mover) MoveDirectory(ctx context.Context, srcDir, dstDir string, cb copier.FileProgressFunc, opts copier.Options) (map[string]error, error) {
	info, err := os.Stat(srcDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Errorf("%w: %s", copier.ErrSourceNotFound, srcDir)
		}
		return nil, errors.Errorf("stat %s: %w", srcDir, err)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("source %s is not a directory", srcDir)
	}

	if m.TryDirectoryRename(srcDir, dstDir) {
		return map[string]error{}, nil
	}

	pairs, dirs, err := copier.EnumerateTree(ctx, srcDir, dstDir, opts.IgnorePatterns)
	if err != nil {
		return nil, err
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Errorf("creating directory %s: %w", dir, err)
		}
	}

	results := m.MoveBatch(ctx, pairs, cb, opts)

	PruneEmptyDirs(ctx, srcDir)
	return results, nil
}

// ⚡ TryDirectoryRename attempts the directory-level fast path: one
// atomic rename when both sides share a volume and the destination
// does not exist yet. Returns false when the per-file path must be
// used instead.
func (m *Mover) TryDirectoryRename(src, dst string) bool {
	if m.MoveStrategy(src, dst) != StrategyRename {
		return false
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		return false
	}
	return m.rename(src, dst) == nil
}

// 🧹 PruneEmptyDirs removes now-empty directories bottom-up, including the
// root if everything moved out.
func PruneEmptyDirs(ctx context.Context, root string) {
	logger := zerolog.Ctx(ctx)

	var dirs []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // already-removed entries are fine
		}
		if d.IsDir() {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return
	}

	// Deepest first.
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, dir := range dirs {
		if err := os.Remove(dir); err != nil {
			// Not empty or not removable: leave it.
			logger.Debug().Str("dir", dir).Err(err).Msg("keeping non-empty source directory")
		}
	}
}
