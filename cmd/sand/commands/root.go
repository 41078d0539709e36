// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package commands implements the sand command line.
package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vulntor/sand/pkg/appctx"
	"github.com/vulntor/sand/pkg/config"
	"github.com/vulntor/sand/pkg/logging"
	"github.com/vulntor/sand/pkg/paths"
	"github.com/vulntor/sand/pkg/signature"
)

const cliExecutable = "sand"

// errConfig marks configuration failures so they map to the usage exit code.
var errConfig = errors.New("configuration error")

// NewCommand constructs the top-level sand command, wiring global flags,
// configuration loading and logging setup.
func NewCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   cliExecutable,
		Short: "Identify the application protocol of TCP connections",
		Long: `sand classifies TCP connections by application protocol. It matches the
bytes each side sends against ordered signature lists loaded from a
directory of YAML definitions, and reports new, identified and ended
streams as events.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			path := configFile
			if path == "" {
				path = paths.DefaultConfigFile()
			}
			mgr := config.NewManager()
			if err := mgr.Load(cmd.Flags(), path); err != nil {
				return fmt.Errorf("%w: %v", errConfig, err)
			}
			cfg := mgr.Get()
			if err := logging.ConfigureGlobalLogging(cfg.Log.Level, cfg.Log.Format); err != nil {
				return fmt.Errorf("%w: %v", errConfig, err)
			}

			ctx := appctx.WithConfig(cmd.Context(), mgr)
			cmd.SetContext(ctx)
			if root := cmd.Root(); root != nil && root != cmd {
				root.SetContext(ctx)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path (default $XDG_CONFIG_HOME/sand/config.yaml)")
	config.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(newReplayCommand())
	cmd.AddCommand(newSignaturesCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, errConfig) {
		return 2
	}
	return signature.ExitCode(err)
}

// PrintError writes err and any remediation hints to w.
func PrintError(w io.Writer, err error) {
	if err == nil {
		return
	}
	red := color.New(color.FgRed)
	_, _ = red.Fprintf(w, "Error: %v\n", err)
	for _, hint := range signature.Suggestions(err) {
		_, _ = fmt.Fprintf(w, "  hint: %s\n", hint)
	}
}
