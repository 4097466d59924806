package main

import (
	"fmt"

	"github.com/kamilpajak/radiolens/internal/snapshot"
	"github.com/spf13/cobra"
)

func newInstallBrowserCmd() *cobra.Command {
	return newInstallBrowserCmdWith(snapshot.Install)
}

func newInstallBrowserCmdWith(install func() error) *cobra.Command {
	return &cobra.Command{
		Use:   "install-browser",
		Short: "Install the headless Chromium used by --png",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.ErrOrStderr(), "Installing Playwright driver and Chromium...")
			if err := install(); err != nil {
				return fmt.Errorf("failed to install browser: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Chromium installed.")
			return nil
		},
	}
}
