// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vulntor/sand/cmd/sand/internal/format"
	"github.com/vulntor/sand/pkg/version"
)

func newVersionCommand() *cobra.Command {
	var (
		short   bool
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Get()
			w := cmd.OutOrStdout()
			if jsonOut {
				return format.New(w, cmd.ErrOrStderr(), format.ModeJSON, false).PrintJSON(info)
			}

			if _, err := fmt.Fprintf(w, "%s version: %s\n", cliExecutable, info.Version); err != nil {
				return err
			}
			if short {
				return nil
			}
			_, err := fmt.Fprintf(w, "Commit: %s\nBuild Date: %s\nGo Version: %s\nPlatform: %s\n",
				info.Commit, info.BuildDate, info.GoVersion, info.Platform)
			return err
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only the version number")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print version information as JSON")

	return cmd
}
