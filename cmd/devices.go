// SPDX-License-Identifier: MIT
package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"stomp/internal/audio"
	"stomp/pkg/build"
)

func newDevicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err := audio.Initialize(); err != nil {
				return err
			}
			defer func() { err = errors.Join(err, audio.Terminate()) }()
			return audio.ListDevices(cmd.OutOrStdout())
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), build.Get())
		},
	}
}
