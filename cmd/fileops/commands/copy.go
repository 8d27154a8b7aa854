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
	"github.com/spf13/cobra"
	"github.com/walteh/fileops/pkg/conflict"
	"github.com/walteh/fileops/pkg/queue"
	"gitlab.com/tozd/go/errors"
)

// NewCopyCmd creates a new copy command
func NewCopyCmd(opts *RootOpts) *cobra.Command {
	var (
		verifyAfter bool
		preserve    bool
		onConflict  string
		priority    string
	)

	cmd := &cobra.Command{
		Use:   "copy SOURCE... DEST",
		Short: "Copy files or directories through the job queue",
		Long: `Copy queues a copy job and waits for it to finish. Directories are
copied recursively, empty directories included. Destination collisions
are resolved by the configured conflict policy.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, dests, err := expandPairs(args[:len(args)-1], args[len(args)-1])
			if err != nil {
				return err
			}
			jobOpts, prio, err := transferOptions(opts, verifyAfter, preserve, onConflict, priority)
			if err != nil {
				return err
			}

			mgr, err := opts.newManager()
			if err != nil {
				return err
			}
			id, err := mgr.QueueCopy(sources, dests, prio, jobOpts)
			if err != nil {
				return errors.Errorf("queueing copy: %w", err)
			}
			return opts.runJob(cmd.Context(), mgr, id)
		},
	}

	addTransferFlags(cmd, &verifyAfter, &preserve, &onConflict, &priority)
	return cmd
}

// addTransferFlags wires the flags shared by copy and move.
func addTransferFlags(cmd *cobra.Command, verifyAfter, preserve *bool, onConflict, priority *string) {
	cmd.Flags().BoolVar(verifyAfter, "verify", false, "verify each destination by checksum after it lands")
	cmd.Flags().BoolVar(preserve, "preserve", false, "preserve permissions and modification times")
	cmd.Flags().StringVar(onConflict, "on-conflict", "", "conflict policy: skip, overwrite, overwrite_if_newer, rename, ask")
	cmd.Flags().StringVar(priority, "priority", "normal", "job priority: critical, high, normal, low")
}

// transferOptions folds flags and config into job options.
func transferOptions(opts *RootOpts, verifyAfter, preserve bool, onConflict, priority string) (queue.JobOptions, queue.Priority, error) {
	policy := opts.Config.Action()
	if onConflict != "" {
		parsed, err := conflict.ParseAction(onConflict)
		if err != nil {
			return queue.JobOptions{}, 0, err
		}
		policy = parsed
	}
	prio, err := parsePriority(priority)
	if err != nil {
		return queue.JobOptions{}, 0, err
	}
	return queue.JobOptions{
		Verify:           verifyAfter || opts.Config.VerifyAfterCopy,
		PreserveMetadata: preserve || opts.Config.PreserveMetadata,
		ConflictPolicy:   policy,
	}, prio, nil
}
