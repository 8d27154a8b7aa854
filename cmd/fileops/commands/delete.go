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
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
)

// NewDeleteCmd creates a new delete command
func NewDeleteCmd(opts *RootOpts) *cobra.Command {
	var (
		priority string
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "delete PATH...",
		Short: "Delete files or directories through the job queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prio, err := parsePriority(priority)
			if err != nil {
				return err
			}

			if !force {
				ok, err := pterm.DefaultInteractiveConfirm.
					WithDefaultText(pterm.Sprintf("Delete %d path(s)?", len(args))).
					Show()
				if err != nil || !ok {
					opts.Logger.Infof("aborted, %d path(s) untouched", len(args))
					return nil
				}
			}

			mgr, err := opts.newManager()
			if err != nil {
				return err
			}
			id, err := mgr.QueueDelete(args, prio)
			if err != nil {
				return errors.Errorf("queueing delete: %w", err)
			}
			return opts.runJob(cmd.Context(), mgr, id)
		},
	}

	cmd.Flags().StringVar(&priority, "priority", "normal", "job priority: critical, high, normal, low")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip the confirmation prompt")
	return cmd
}
