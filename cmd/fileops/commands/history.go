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
)

// NewHistoryCmd creates a new history command
func NewHistoryCmd(opts *RootOpts) *cobra.Command {
	var clear bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show or clear the persisted operation history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := opts.newManager()
			if err != nil {
				return err
			}

			if clear {
				n, err := mgr.ClearHistory()
				if err != nil {
					return err
				}
				opts.Logger.Successf("cleared %d history entries", n)
				return nil
			}

			records := mgr.History()
			if len(records) == 0 {
				opts.Logger.Info("history is empty")
				return nil
			}

			rows := pterm.TableData{
				{"ID", "KIND", "STATUS", "FILES", "SIZE", "CREATED"},
			}
			for _, job := range records {
				rows = append(rows, []string{
					shortID(job.ID),
					string(job.Kind),
					string(job.Status),
					pterm.Sprintf("%d/%d", job.ProcessedFiles, job.TotalFiles),
					humanBytes(job.ProcessedSize),
					job.CreatedAt.Format("2006-01-02 15:04:05"),
				})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
		},
	}

	cmd.Flags().BoolVar(&clear, "clear", false, "delete all history entries")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
