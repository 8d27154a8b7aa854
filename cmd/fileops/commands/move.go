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
	"gitlab.com/tozd/go/errors"
)

// NewMoveCmd creates a new move command
func NewMoveCmd(opts *RootOpts) *cobra.Command {
	var (
		verifyAfter bool
		preserve    bool
		onConflict  string
		priority    string
	)

	cmd := &cobra.Command{
		Use:   "move SOURCE... DEST",
		Short: "Move files or directories through the job queue",
		Long: `Move queues a move job and waits for it to finish. Same-volume moves
are atomic renames; cross-volume moves copy then delete the source only
after the copy succeeds. Emptied source directories are pruned.`,
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
			id, err := mgr.QueueMove(sources, dests, prio, jobOpts)
			if err != nil {
				return errors.Errorf("queueing move: %w", err)
			}
			return opts.runJob(cmd.Context(), mgr, id)
		},
	}

	addTransferFlags(cmd, &verifyAfter, &preserve, &onConflict, &priority)
	return cmd
}
