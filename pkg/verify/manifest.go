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

package verify

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// 📜 ManifestFormat selects the checksum manifest line layout.
type ManifestFormat int

const (
	// FormatGNU writes "<hexhash> *<filename>" lines, compatible with
	// md5sum/sha256sum -c.
	FormatGNU ManifestFormat = iota
	// FormatSimple writes "<filename>: <hexhash>" lines.
	FormatSimple
)

// 📝 GenerateChecksumFile writes a manifest of the given files. Paths
// are recorded relative to the manifest's directory when possible.
func (v *Verifier) GenerateChecksumFile(ctx context.Context, manifestPath string, files []string, format ManifestFormat) error {
	baseDir := filepath.Dir(manifestPath)

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s checksums\n", v.algorithm)

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return errors.Errorf("generating manifest: %w", err)
		}
		sum, err := v.Hash(ctx, file)
		if err != nil {
			return errors.Errorf("hashing %s: %w", file, err)
		}
		name := file
		if rel, err := filepath.Rel(baseDir, file); err == nil && !strings.HasPrefix(rel, "..") {
			name = rel
		}
		switch format {
		case FormatSimple:
			fmt.Fprintf(&sb, "%s: %s\n", name, sum)
		default:
			fmt.Fprintf(&sb, "%s *%s\n", sum, name)
		}
	}

	if err := os.WriteFile(manifestPath, []byte(sb.String()), 0644); err != nil {
		return errors.Errorf("writing manifest %s: %w", manifestPath, err)
	}
	return nil
}

// ✅ VerifyChecksumFile checks every entry of a manifest against the
// files on disk, returning a per-file error map (nil entry means
// verified). Lines starting with # are comments; both manifest formats
// are recognized.
func (v *Verifier) VerifyChecksumFile(ctx context.Context, manifestPath string) (map[string]error, error) {
	f, err := os.Open(manifestPath)
	if err != nil {
		return nil, errors.Errorf("opening manifest %s: %w", manifestPath, err)
	}
	defer f.Close()

	baseDir := filepath.Dir(manifestPath)
	results := make(map[string]error)

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		name, want, err := parseManifestLine(line)
		if err != nil {
			return nil, errors.Errorf("manifest %s line %d: %w", manifestPath, lineNo, err)
		}

		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, name)
		}
		got, err := v.Hash(ctx, path)
		if err != nil {
			results[name] = err
			continue
		}
		if got != want {
			results[name] = errors.Errorf("%w: %s expected %s, got %s", ErrHashMismatch, name, want, got)
			continue
		}
		results[name] = nil
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Errorf("reading manifest %s: %w", manifestPath, err)
	}
	return results, nil
}

// parseManifestLine recognizes "<hash> *<name>", "<hash>  <name>" and
// "<name>: <hash>".
func parseManifestLine(line string) (name, sum string, err error) {
	// Simple format: the digest sits after the last ": ", which keeps
	// filenames containing spaces (or even colons) intact.
	if idx := strings.LastIndex(line, ": "); idx > 0 {
		if candidate := strings.TrimSpace(line[idx+2:]); isHexDigest(candidate) {
			return line[:idx], candidate, nil
		}
	}
	fields := strings.SplitN(line, " ", 2)
	if len(fields) != 2 || !isHexDigest(fields[0]) {
		return "", "", errors.Errorf("malformed line %q", line)
	}
	name = strings.TrimSpace(fields[1])
	name = strings.TrimPrefix(name, "*")
	if name == "" {
		return "", "", errors.Errorf("malformed line %q", line)
	}
	return name, fields[0], nil
}

// isHexDigest reports whether s has the hex length of a supported
// digest (crc32, md5, sha256, sha512).
func isHexDigest(s string) bool {
	switch len(s) {
	case 8, 32, 64, 128:
	default:
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}
