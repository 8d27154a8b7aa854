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

package copier

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

// 🔗 Pair is one source→destination copy unit.
type Pair struct {
	Source string
	Dest   string
}

// 📞 FileProgressFunc receives per-file progress during batch fan-out.
type FileProgressFunc func(path string, done, total int64)

// 🏭 CopyBatch copies pairs in parallel on the I/O-oriented pool and
// returns a per-destination error map (nil entry means copied). A
// failing file never aborts its siblings; completion order across files
// is not guaranteed.
func (c *Copier) CopyBatch(ctx context.Context, pairs []Pair, cb FileProgressFunc, opts Options) map[string]error {
	results := make(map[string]error, len(pairs))
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(c.workers)
	for _, pair := range pairs {
		pair := pair
		g.Go(func() error {
			var fileCb ProgressFunc
			if cb != nil {
				fileCb = func(done, total int64) { cb(pair.Dest, done, total) }
			}
			err := c.CopyFile(ctx, pair.Source, pair.Dest, fileCb, opts)
			mu.Lock()
			results[pair.Dest] = err
			mu.Unlock()
			return nil
		})
	}
	g.Wait() //nolint:errcheck // workers never return errors, results carry them

	return results
}

// 🌳 CopyDirectory enumerates the tree under srcDir, skips ignored
// paths, and delegates to CopyBatch. Empty directories are recreated so
// the destination mirrors the source shape.
func (c *Copier) CopyDirectory(ctx context.Context, srcDir, dstDir string, cb FileProgressFunc, opts Options) (map[string]error, error) {
	pairs, dirs, err := EnumerateTree(ctx, srcDir, dstDir, opts.IgnorePatterns)
	if err != nil {
		return nil, err
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return c.CopyBatch(ctx, pairs, cb, opts), nil
}

// 🗺️ EnumerateTree walks srcDir and produces the copy pairs plus the
// destination directories to create. Ignore patterns are doublestar
// globs matched against the path relative to srcDir.
func EnumerateTree(ctx context.Context, srcDir, dstDir string, ignorePatterns []string) ([]Pair, []string, error) {
	logger := zerolog.Ctx(ctx)

	info, err := os.Stat(srcDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.Errorf("%w: %s", ErrSourceNotFound, srcDir)
		}
		return nil, nil, errors.Errorf("stat %s: %w", srcDir, err)
	}
	if !info.IsDir() {
		return nil, nil, errors.Errorf("source %s is not a directory", srcDir)
	}

	var pairs []Pair
	dirs := []string{dstDir}

	err = filepath.WalkDir(srcDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if shouldIgnore(logger, rel, ignorePatterns) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			dirs = append(dirs, filepath.Join(dstDir, rel))
			return nil
		}
		pairs = append(pairs, Pair{Source: path, Dest: filepath.Join(dstDir, rel)})
		return nil
	})
	if err != nil {
		return nil, nil, errors.Errorf("enumerating %s: %w", srcDir, err)
	}
	return pairs, dirs, nil
}

// 🔍 shouldIgnore checks a relative path against the ignore globs.
func shouldIgnore(logger *zerolog.Logger, rel string, patterns []string) bool {
	rel = filepath.ToSlash(rel)
	for _, pattern := range patterns {
		matched, err := doublestar.Match(pattern, rel)
		if err != nil {
			logger.Debug().Str("pattern", pattern).Str("path", rel).Err(err).Msg("error matching pattern")
			continue
		}
		if matched {
			return true
		}
	}
	return false
}
