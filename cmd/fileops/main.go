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

package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/fileops/cmd/fileops/commands"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.InfoLevel)
	ctx := logger.WithContext(context.Background())

	opts := commands.NewRootOpts()

	rootCmd := &cobra.Command{
		Use:   "fileops",
		Short: "A queued engine for copying, moving, verifying, and deleting files",
		Long: `fileops runs file operations through a prioritized job queue with
adaptive buffering, checksum verification, conflict resolution, and a
persisted operation history.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.Init(cmd.Context(), configFile, debug)
		},
	}

	addRootFlags(rootCmd)

	rootCmd.AddCommand(
		commands.NewCopyCmd(opts),
		commands.NewMoveCmd(opts),
		commands.NewVerifyCmd(opts),
		commands.NewDeleteCmd(opts),
		commands.NewChecksumCmd(opts),
		commands.NewHistoryCmd(opts),
	)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		opts.Logger.Errorf("%v", err)
		logger.Debug().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
