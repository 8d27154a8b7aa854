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

// Package verify computes and compares file checksums. Hashing is
// CPU-bound, unlike the I/O-bound copy path, so batch verification uses
// its own pool sizing.
package verify

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

var (
	// ❌ ErrSizeMismatch means source and destination differ in length.
	ErrSizeMismatch = errors.Base("size mismatch")
	// ❌ ErrHashMismatch means the contents differ despite equal sizes.
	ErrHashMismatch = errors.Base("hash mismatch")
)

// 🧮 Algorithm selects the digest used for verification.
type Algorithm string

const (
	CRC32  Algorithm = "crc32"
	MD5    Algorithm = "md5"
	SHA256 Algorithm = "sha256"
	SHA512 Algorithm = "sha512"
)

// 📝 ParseAlgorithm parses an algorithm name as used in config files.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case CRC32, MD5, SHA256, SHA512:
		return Algorithm(s), nil
	}
	return "", errors.Errorf("unknown hash algorithm %q", s)
}

func (a Algorithm) newHash() (hash.Hash, error) {
	switch a {
	case CRC32:
		return crc32.NewIEEE(), nil
	case MD5:
		return md5.New(), nil
	case SHA256:
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	}
	return nil, errors.Errorf("unknown hash algorithm %q", string(a))
}

// 📦 DefaultChunkSize bounds memory use regardless of file size.
const DefaultChunkSize = 64 << 20

// 👷 Workers returns the CPU-oriented pool size for batch hashing.
func Workers() int {
	n := runtime.NumCPU() - 1
	if n < 2 {
		n = 2
	}
	if n > 16 {
		n = 16
	}
	return n
}

// 🔗 Pair is one source→destination verification unit.
type Pair struct {
	Source string
	Dest   string
}

// 🔧 Verifier streams file content through a digest in fixed-size
// chunks.
type Verifier struct {
	algorithm Algorithm
	chunkSize int
	workers   int
}

// ⚙️ Option configures a Verifier.
type Option func(*Verifier)

// WithChunkSize overrides the streaming chunk size.
func WithChunkSize(n int) Option {
	return func(v *Verifier) {
		if n > 0 {
			v.chunkSize = n
		}
	}
}

// WithWorkers overrides the batch pool size.
func WithWorkers(n int) Option {
	return func(v *Verifier) {
		if n > 0 {
			v.workers = n
		}
	}
}

// 🏭 New creates a verifier for the given algorithm.
func New(algorithm Algorithm, opts ...Option) *Verifier {
	v := &Verifier{
		algorithm: algorithm,
		chunkSize: DefaultChunkSize,
		workers:   Workers(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Algorithm returns the configured digest algorithm.
func (v *Verifier) Algorithm() Algorithm {
	return v.algorithm
}

// Workers returns the configured batch pool size.
func (v *Verifier) Workers() int {
	return v.workers
}

// 🧮 Hash returns the hex digest of the file at path.
func (v *Verifier) Hash(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h, err := v.algorithm.newHash()
	if err != nil {
		return "", err
	}

	buf := make([]byte, v.chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return "", errors.Errorf("hashing %s: %w", path, err)
		}
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", errors.Errorf("reading %s: %w", path, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ✅ VerifyCopy confirms dst is a faithful copy of src. Sizes are
// compared first as a cheap short-circuit, then full-file hashes. The
// returned error distinguishes size from hash mismatches.
func (v *Verifier) VerifyCopy(ctx context.Context, src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return errors.Errorf("stat source %s: %w", src, err)
	}
	dstInfo, err := os.Stat(dst)
	if err != nil {
		return errors.Errorf("stat destination %s: %w", dst, err)
	}
	if srcInfo.Size() != dstInfo.Size() {
		return errors.Errorf("%w: %s is %d bytes, %s is %d bytes",
			ErrSizeMismatch, src, srcInfo.Size(), dst, dstInfo.Size())
	}

	srcHash, err := v.Hash(ctx, src)
	if err != nil {
		return err
	}
	dstHash, err := v.Hash(ctx, dst)
	if err != nil {
		return err
	}
	if srcHash != dstHash {
		return errors.Errorf("%w: %s %s=%s, %s %s=%s",
			ErrHashMismatch, src, v.algorithm, srcHash, dst, v.algorithm, dstHash)
	}
	return nil
}

// 🏭 VerifyBatch verifies pairs in parallel on the CPU-oriented pool and
// returns a per-destination error map (nil entry means verified).
func (v *Verifier) VerifyBatch(ctx context.Context, pairs []Pair) map[string]error {
	logger := zerolog.Ctx(ctx)

	results := make(map[string]error, len(pairs))
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(v.workers)
	for _, pair := range pairs {
		pair := pair
		g.Go(func() error {
			err := v.VerifyCopy(ctx, pair.Source, pair.Dest)
			if err != nil {
				logger.Debug().Str("source", pair.Source).Str("dest", pair.Dest).Err(err).Msg("verification failed")
			}
			mu.Lock()
			results[pair.Dest] = err
			mu.Unlock()
			return nil
		})
	}
	g.Wait() //nolint:errcheck // workers never return errors, results carry them

	return results
}

// 🌳 CompareDirectories pairs files under srcDir and dstDir by relative
// path and verifies them in parallel. Files missing on either side are
// reported as errors in the result map.
func (v *Verifier) CompareDirectories(ctx context.Context, srcDir, dstDir string) (map[string]error, error) {
	var pairs []Pair
	missing := make(map[string]error)

	err := filepath.WalkDir(srcDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		dst := filepath.Join(dstDir, rel)
		if _, err := os.Stat(dst); os.IsNotExist(err) {
			missing[dst] = errors.Errorf("missing in destination: %s", rel)
			return nil
		}
		pairs = append(pairs, Pair{Source: path, Dest: dst})
		return nil
	})
	if err != nil {
		return nil, errors.Errorf("walking %s: %w", srcDir, err)
	}

	results := v.VerifyBatch(ctx, pairs)
	for dst, err := range missing {
		results[dst] = err
	}
	return results, nil
}
