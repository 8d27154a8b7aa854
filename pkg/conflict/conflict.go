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

// Package conflict decides what happens when a destination path already
// exists at write time.
package conflict

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gitlab.com/tozd/go/errors"
)

// ❌ ErrUnresolved is returned when no non-colliding name could be
// generated within the safety limit.
var ErrUnresolved = errors.Base("conflict could not be resolved")

// 🎬 Action is the chosen behavior for a destination collision.
type Action int

const (
	ActionSkip Action = iota
	ActionOverwrite
	ActionOverwriteIfNewer
	ActionRename
	ActionAsk
)

var actionNames = map[Action]string{
	ActionSkip:             "skip",
	ActionOverwrite:        "overwrite",
	ActionOverwriteIfNewer: "overwrite_if_newer",
	ActionRename:           "rename",
	ActionAsk:              "ask",
}

func (a Action) String() string {
	if s, ok := actionNames[a]; ok {
		return s
	}
	return "unknown"
}

// 📝 ParseAction parses an action name as used in config files.
func ParseAction(s string) (Action, error) {
	for a, name := range actionNames {
		if name == s {
			return a, nil
		}
	}
	return ActionSkip, errors.Errorf("unknown conflict action %q", s)
}

// MarshalJSON writes the action as its config-file name.
func (a Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON reads the action from its config-file name.
func (a *Action) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Errorf("decoding conflict action: %w", err)
	}
	parsed, err := ParseAction(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// 📦 Resolution is the outcome of resolving one collision.
type Resolution struct {
	Action      Action
	RenamedPath string // set when Action is ActionRename
}

// 🙋 AskFunc is a caller-supplied callback consulted under the Ask
// policy. It may be called from worker goroutines.
type AskFunc func(source, dest string) Resolution

// 🔧 Resolver applies a conflict policy, with an optional sticky
// "apply to all remaining conflicts" override.
type Resolver struct {
	mu          sync.Mutex
	policy      Action
	pattern     string
	maxAttempts int
	ask         AskFunc
	applyAll    *Action
}

// DefaultRenamePattern yields "report (1).txt" style names.
const DefaultRenamePattern = "{stem} ({counter}){suffix}"

// 🛑 safety limit for unique-name probing
const defaultMaxAttempts = 9999

// ⚙️ Option configures a Resolver.
type Option func(*Resolver)

// WithRenamePattern overrides the unique-name template. The template
// understands {stem}, {counter} and {suffix} placeholders.
func WithRenamePattern(pattern string) Option {
	return func(r *Resolver) { r.pattern = pattern }
}

// WithAskFunc registers the Ask-policy callback.
func WithAskFunc(fn AskFunc) Option {
	return func(r *Resolver) { r.ask = fn }
}

// WithMaxAttempts overrides the unique-name probing limit.
func WithMaxAttempts(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// 🏭 NewResolver creates a resolver for the given policy.
func NewResolver(policy Action, opts ...Option) *Resolver {
	r := &Resolver{
		policy:      policy,
		pattern:     DefaultRenamePattern,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// 📌 ApplyToAll makes the given action sticky for every remaining
// conflict in the batch. Rename paths are recomputed per file.
func (r *Resolver) ApplyToAll(a Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applyAll = &a
}

// 🔄 Reset clears the sticky override between batches.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applyAll = nil
}

// 🎯 Resolve decides what to do about dest already existing. When dest
// does not exist there is no conflict and the write proceeds.
func (r *Resolver) Resolve(source, dest string) (Resolution, error) {
	if _, err := os.Stat(dest); os.IsNotExist(err) {
		return Resolution{Action: ActionOverwrite}, nil
	}

	r.mu.Lock()
	policy := r.policy
	if r.applyAll != nil {
		policy = *r.applyAll
	}
	ask := r.ask
	r.mu.Unlock()

	return r.apply(policy, ask, source, dest)
}

func (r *Resolver) apply(policy Action, ask AskFunc, source, dest string) (Resolution, error) {
	switch policy {
	case ActionSkip:
		return Resolution{Action: ActionSkip}, nil

	case ActionOverwrite:
		return Resolution{Action: ActionOverwrite}, nil

	case ActionOverwriteIfNewer:
		srcInfo, err := os.Stat(source)
		if err != nil {
			return Resolution{}, errors.Errorf("stat source %s: %w", source, err)
		}
		dstInfo, err := os.Stat(dest)
		if err != nil {
			return Resolution{}, errors.Errorf("stat destination %s: %w", dest, err)
		}
		if srcInfo.ModTime().After(dstInfo.ModTime()) {
			return Resolution{Action: ActionOverwrite}, nil
		}
		return Resolution{Action: ActionSkip}, nil

	case ActionRename:
		renamed, err := r.uniqueName(dest)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Action: ActionRename, RenamedPath: renamed}, nil

	case ActionAsk:
		if ask == nil {
			// No callback registered, fall back to renaming.
			return r.apply(ActionRename, nil, source, dest)
		}
		res := ask(source, dest)
		if res.Action == ActionAsk {
			return r.apply(ActionRename, nil, source, dest)
		}
		if res.Action == ActionRename && res.RenamedPath == "" {
			return r.apply(ActionRename, nil, source, dest)
		}
		return res, nil

	default:
		return Resolution{}, errors.Errorf("unknown conflict action %d", policy)
	}
}

// 👀 RenamePreview returns up to max non-colliding candidate names for
// dest without touching the filesystem contents. Pure query.
func (r *Resolver) RenamePreview(dest string, max int) ([]string, error) {
	var out []string
	counter := 1
	for len(out) < max && counter <= r.maxAttempts {
		candidate := r.expandPattern(dest, counter)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			out = append(out, candidate)
		} else if err != nil && !os.IsNotExist(err) {
			return nil, errors.Errorf("probing %s: %w", candidate, err)
		}
		counter++
	}
	return out, nil
}

// uniqueName probes the filesystem for the first unused candidate.
func (r *Resolver) uniqueName(dest string) (string, error) {
	for counter := 1; counter <= r.maxAttempts; counter++ {
		candidate := r.expandPattern(dest, counter)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", errors.Errorf("%w: no free name for %s within %d attempts", ErrUnresolved, dest, r.maxAttempts)
}

// expandPattern fills the rename template for one counter value.
func (r *Resolver) expandPattern(dest string, counter int) string {
	dir := filepath.Dir(dest)
	base := filepath.Base(dest)
	suffix := filepath.Ext(base)
	stem := strings.TrimSuffix(base, suffix)

	name := r.pattern
	name = strings.ReplaceAll(name, "{stem}", stem)
	name = strings.ReplaceAll(name, "{counter}", fmt.Sprintf("%d", counter))
	name = strings.ReplaceAll(name, "{suffix}", suffix)
	return filepath.Join(dir, name)
}
