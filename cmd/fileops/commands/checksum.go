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
	"sort"

	"github.com/spf13/cobra"
	"github.com/walteh/fileops/pkg/log"
	"github.com/walteh/fileops/pkg/verify"
	"gitlab.com/tozd/go/errors"
)

// NewChecksumCmd creates a new checksum command with write/check verbs
func NewChecksumCmd(opts *RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checksum",
		Short: "Write or check checksum manifest files",
	}
	cmd.AddCommand(newChecksumWriteCmd(opts), newChecksumCheckCmd(opts))
	return cmd
}

func newChecksumWriteCmd(opts *RootOpts) *cobra.Command {
	var (
		algorithm string
		output    string
		simple    bool
	)

	cmd := &cobra.Command{
		Use:   "write FILE...",
		Short: "Write a checksum manifest for the given files",
		Long: `Write hashes each file and records it in a manifest. The default
format matches the GNU coreutils *sum tools ("<hex> *<name>").`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			algo, err := verify.ParseAlgorithm(algorithm)
			if err != nil {
				return err
			}
			format := verify.FormatGNU
			if simple {
				format = verify.FormatSimple
			}

			v := verify.New(algo)
			if err := v.GenerateChecksumFile(cmd.Context(), output, args, format); err != nil {
				return errors.Errorf("writing manifest: %w", err)
			}
			opts.Logger.Successf("wrote %s for %d files", output, len(args))
			return nil
		},
	}

	cmd.Flags().StringVar(&algorithm, "algorithm", "sha256", "digest: crc32, md5, sha256, sha512")
	cmd.Flags().StringVarP(&output, "output", "o", "checksums.txt", "manifest path")
	cmd.Flags().BoolVar(&simple, "simple", false, "write \"<name>: <hex>\" lines instead of GNU format")
	return cmd
}

func newChecksumCheckCmd(opts *RootOpts) *cobra.Command {
	var algorithm string

	cmd := &cobra.Command{
		Use:   "check MANIFEST",
		Short: "Check files against a checksum manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			algo, err := verify.ParseAlgorithm(algorithm)
			if err != nil {
				return err
			}

			v := verify.New(algo)
			results, err := v.VerifyChecksumFile(cmd.Context(), args[0])
			if err != nil {
				return errors.Errorf("checking manifest: %w", err)
			}

			names := make([]string, 0, len(results))
			for name := range results {
				names = append(names, name)
			}
			sort.Strings(names)

			failed := 0
			for _, name := range names {
				if checkErr := results[name]; checkErr != nil {
					failed++
					opts.Logger.LogFileOperation(cmd.Context(), log.FileOperation{
						Path:    name,
						Outcome: log.OutcomeFailed,
						Detail:  checkErr.Error(),
					})
					continue
				}
				opts.Logger.LogFileOperation(cmd.Context(), log.FileOperation{
					Path:    name,
					Outcome: log.OutcomeVerified,
				})
			}

			if failed > 0 {
				return errors.Errorf("%d of %d files failed verification", failed, len(results))
			}
			opts.Logger.Successf("all %d files verified", len(results))
			return nil
		},
	}

	cmd.Flags().StringVar(&algorithm, "algorithm", "sha256", "digest: crc32, md5, sha256, sha512")
	return cmd
}
