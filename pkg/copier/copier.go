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

// Package copier performs byte transfers with adaptive buffering,
// pause/cancel control, retry with exponential backoff, and batch
// fan-out over an I/O-oriented worker pool.
package copier

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/walteh/fileops/pkg/fsutil"
	"github.com/walteh/fileops/pkg/verify"
	"gitlab.com/tozd/go/errors"
)

// Error taxonomy for copy failures. Callers match with errors.Is.
var (
	ErrSourceNotFound   = errors.Base("source not found")
	ErrPermissionDenied = errors.Base("permission denied")
	ErrDiskFull         = errors.Base("disk full")
	// ErrCancelled is a normal early-exit outcome, not a failure.
	ErrCancelled = errors.Base("operation cancelled")
	// ErrRetryExhausted wraps the last underlying error after all
	// attempts failed.
	ErrRetryExhausted = errors.Base("retry attempts exhausted")
)

// 📞 ProgressFunc receives (bytes copied so far, total bytes) at each
// chunk boundary. It must tolerate being called zero or more times,
// including a final call where done == total.
type ProgressFunc func(done, total int64)

// ⚙️ Options controls a single copy.
type Options struct {
	// PreserveMetadata copies mtime/atime and permission bits.
	PreserveMetadata bool
	// Verify re-hashes source and destination after the transfer.
	Verify bool
	// BufferSize overrides the adaptive buffer when > 0.
	BufferSize int
	// IgnorePatterns are doublestar globs skipped during directory
	// enumeration.
	IgnorePatterns []string
}

// 🔧 Copier streams file content between paths. A Copier is cheap to
// construct; long-lived jobs get their own instance so the gate pauses
// only that job's transfers.
type Copier struct {
	verifier *verify.Verifier
	gate     *Gate
	workers  int

	openSource func(string) (*os.File, error) // test seam for fault injection
}

// ⚙️ CopierOption configures a Copier.
type CopierOption func(*Copier)

// WithGate attaches a pause gate checked at chunk boundaries.
func WithGate(g *Gate) CopierOption {
	return func(c *Copier) { c.gate = g }
}

// WithWorkers overrides the batch fan-out pool size.
func WithWorkers(n int) CopierOption {
	return func(c *Copier) {
		if n > 0 {
			c.workers = n
		}
	}
}

// 🏭 New creates a copier. The verifier is used when Options.Verify is
// set; it may be nil if verification is never requested.
func New(verifier *verify.Verifier, opts ...CopierOption) *Copier {
	c := &Copier{
		verifier:   verifier,
		workers:    IOWorkers(),
		openSource: os.Open,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Gate returns the copier's pause gate, or nil.
func (c *Copier) Gate() *Gate {
	return c.gate
}

// 📄 CopyFile streams src to dst. The cancel flag (ctx) is checked and
// the pause gate waited on before every chunk; a cancelled copy removes
// the partial destination and returns ErrCancelled. Any error during
// the transfer removes the partial destination (best-effort) before
// propagating.
func (c *Copier) CopyFile(ctx context.Context, src, dst string, cb ProgressFunc, opts Options) error {
	logger := zerolog.Ctx(ctx)

	srcInfo, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Errorf("%w: %s", ErrSourceNotFound, src)
		}
		return classify(errors.Errorf("stat source %s: %w", src, err))
	}
	if srcInfo.IsDir() {
		return errors.Errorf("source %s is a directory, use CopyDirectory", src)
	}
	total := srcInfo.Size()

	// Free-space preflight. Unknown volumes are not fatal, the write
	// itself still reports ENOSPC.
	if free, err := fsutil.FreeSpace(filepath.Dir(dst)); err == nil && free < uint64(total) {
		return errors.Errorf("%w: need %d bytes, %d available at %s", ErrDiskFull, total, free, filepath.Dir(dst))
	}

	buffer := opts.BufferSize
	if buffer <= 0 {
		buffer = BufferSize(total)
		if same, err := fsutil.SameVolume(src, dst); err == nil {
			buffer = AdjustBufferSize(buffer, same)
		}
	}

	in, err := c.openSource(src)
	if err != nil {
		return classify(errors.Errorf("opening source %s: %w", src, err))
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return classify(errors.Errorf("creating destination directory: %w", err))
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return classify(errors.Errorf("opening destination %s: %w", dst, err))
	}

	_, err = c.transfer(ctx, in, out, buffer, total, cb)
	closeErr := out.Close()
	if err == nil && closeErr != nil {
		err = classify(errors.Errorf("closing destination %s: %w", dst, closeErr))
	}
	if err != nil {
		// Never leave a partially written destination behind.
		if rmErr := os.Remove(dst); rmErr != nil {
			logger.Warn().Str("dest", dst).Err(rmErr).Msg("could not remove partial destination")
		}
		return err
	}

	if opts.PreserveMetadata {
		if err := copyMetadata(srcInfo, dst); err != nil {
			logger.Warn().Str("dest", dst).Err(err).Msg("could not preserve metadata")
		}
	}

	if opts.Verify {
		if c.verifier == nil {
			return errors.Errorf("verification requested but no verifier configured")
		}
		if err := c.verifier.VerifyCopy(ctx, src, dst); err != nil {
			return errors.Errorf("verifying %s: %w", dst, err)
		}
	}

	return nil
}

// transfer runs the chunk loop. Suspension points sit at chunk
// boundaries: the gate is coarse-grained, not file-open-granularity.
func (c *Copier) transfer(ctx context.Context, in io.Reader, out io.Writer, buffer int, total int64, cb ProgressFunc) (int64, error) {
	buf := make([]byte, buffer)
	var copied int64
	for {
		if err := ctx.Err(); err != nil {
			return copied, errors.Errorf("%w: %w", ErrCancelled, err)
		}
		if c.gate != nil {
			if err := c.gate.Wait(ctx); err != nil {
				return copied, errors.Errorf("%w: %w", ErrCancelled, err)
			}
		}

		n, readErr := in.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				return copied, classify(errors.Errorf("writing chunk: %w", err))
			}
			copied += int64(n)
			if cb != nil {
				cb(copied, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return copied, classify(errors.Errorf("reading chunk: %w", readErr))
		}
	}
	if cb != nil && copied == 0 && total == 0 {
		cb(0, 0)
	}
	return copied, nil
}

// 🔁 CopyFileWithRetry wraps CopyFile with exponential backoff:
// delay = baseDelay * 2^attempt. Cancellation is never retried. The
// boolean reports success; on failure the error wraps both
// ErrRetryExhausted and the last underlying error.
func (c *Copier) CopyFileWithRetry(ctx context.Context, src, dst string, cb ProgressFunc, opts Options, attempts int, baseDelay time.Duration) (bool, error) {
	logger := zerolog.Ctx(ctx)
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := baseDelay << uint(attempt-1)
			logger.Debug().Str("source", src).Int("attempt", attempt).Dur("delay", delay).Msg("retrying copy")
			select {
			case <-ctx.Done():
				return false, errors.Errorf("%w: %w", ErrCancelled, ctx.Err())
			case <-time.After(delay):
			}
		}

		lastErr = c.CopyFile(ctx, src, dst, cb, opts)
		if lastErr == nil {
			return true, nil
		}
		if errors.Is(lastErr, ErrCancelled) {
			return false, lastErr
		}
		// Verification runs once per copy request; a mismatch means
		// the bytes that landed are wrong, not that the transfer is
		// transient.
		if errors.Is(lastErr, verify.ErrSizeMismatch) || errors.Is(lastErr, verify.ErrHashMismatch) {
			return false, lastErr
		}
	}
	return false, errors.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempts, lastErr)
}

// copyMetadata applies mtime/atime and permission bits from the source.
func copyMetadata(srcInfo os.FileInfo, dst string) error {
	if err := os.Chmod(dst, srcInfo.Mode().Perm()); err != nil {
		return errors.Errorf("chmod %s: %w", dst, err)
	}
	mtime := srcInfo.ModTime()
	if err := os.Chtimes(dst, mtime, mtime); err != nil {
		return errors.Errorf("chtimes %s: %w", dst, err)
	}
	return nil
}

// classify maps OS-level failures onto the package error taxonomy.
func classify(err error) error {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return errors.Errorf("%w: %w", ErrPermissionDenied, err)
	case errors.Is(err, syscall.ENOSPC):
		return errors.Errorf("%w: %w", ErrDiskFull, err)
	default:
		return err
	}
}
