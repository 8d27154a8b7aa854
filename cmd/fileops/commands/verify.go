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

// NewVerifyCmd creates a new verify command
func NewVerifyCmd(opts *RootOpts) *cobra.Command {
	var priority string

	cmd := &cobra.Command{
		Use:   "verify SOURCE DEST",
		Short: "Verify that a copy matches its source",
		Long: `Verify compares SOURCE against DEST by size and checksum. Directories
are compared file by file; files missing from DEST count as failures.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			prio, err := parsePriority(priority)
			if err != nil {
				return err
			}

			mgr, err := opts.newManager()
			if err != nil {
				return err
			}
			id, err := mgr.QueueVerify([]string{args[0]}, []string{args[1]}, prio)
			if err != nil {
				return errors.Errorf("queueing verify: %w", err)
			}
			return opts.runJob(cmd.Context(), mgr, id)
		},
	}

	cmd.Flags().StringVar(&priority, "priority", "normal", "job priority: critical, high, normal, low")
	return cmd
}
