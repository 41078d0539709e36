// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/vulntor/sand/cmd/sand/internal/format"
	"github.com/vulntor/sand/pkg/appctx"
	"github.com/vulntor/sand/pkg/config"
	"github.com/vulntor/sand/pkg/signature"
	"github.com/vulntor/sand/pkg/stringutil"
)

func newSignaturesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "signatures",
		Aliases: []string{"sig", "sigs"},
		Short:   "Inspect and validate signature definitions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newSignaturesValidateCommand())
	cmd.AddCommand(newSignaturesListCommand())

	return cmd
}

func signatureFlags(cmd *cobra.Command) {
	def := config.DefaultConfig()
	cmd.Flags().StringP("signatures", "s", def.Signatures.Dir, "Directory of signature definitions")
	cmd.Flags().StringP("output", "o", def.Output.Format, "Output format (text, json)")
	cmd.Flags().Bool("color", def.Output.Color, "Colorize output")
}

// signatureDir prefers a positional directory over the configured one.
func signatureDir(cfg config.Config, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.Signatures.Dir
}

func newSignaturesValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [dir]",
		Short: "Check every definition file in a signature directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := appctx.ConfigOrDefault(cmd.Context()).Get()
			out := format.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), format.ParseMode(cfg.Output.Format), cfg.Output.Color)
			return validateSignatures(out, signatureDir(cfg, args))
		},
	}
	signatureFlags(cmd)
	return cmd
}

// validateSignatures checks files one by one for a per-file report, then
// loads the whole directory to catch cross-file problems such as duplicates.
func validateSignatures(out format.Formatter, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return &signature.ConfigError{Source: dir, Err: fmt.Errorf("%w: %v", signature.ErrDirUnreadable, err)}
	}

	for _, e := range entries {
		if e.IsDir() || !signature.IsDefinitionFile(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		reg, err := signature.LoadFiles(path)
		if err != nil {
			for _, fileErr := range multierr.Errors(err) {
				if perr := out.PrintCheck(false, path, problem(fileErr)); perr != nil {
					return perr
				}
			}
			continue
		}
		if perr := out.PrintCheck(true, path, strings.Join(reg.Names(), ", ")); perr != nil {
			return perr
		}
	}

	reg, err := signature.Load(dir)
	if err != nil {
		return err
	}
	return out.PrintSummary(fmt.Sprintf("%d protocols valid in %s", reg.Len(), dir))
}

// problem strips the file prefix a ConfigError adds, since the path is already printed.
func problem(err error) string {
	var cfgErr *signature.ConfigError
	if errors.As(err, &cfgErr) {
		if cfgErr.Field != "" {
			return cfgErr.Field + ": " + cfgErr.Err.Error()
		}
		return cfgErr.Err.Error()
	}
	return err.Error()
}

func newSignaturesListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [dir]",
		Short: "List the protocols defined in a signature directory, in evaluation order",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := appctx.ConfigOrDefault(cmd.Context()).Get()
			out := format.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), format.ParseMode(cfg.Output.Format), cfg.Output.Color)

			reg, err := signature.Load(signatureDir(cfg, args))
			if err != nil {
				return err
			}
			return listSignatures(out, reg)
		},
	}
	signatureFlags(cmd)
	return cmd
}

func listSignatures(out format.Formatter, reg *signature.Registry) error {
	headers := []string{"order", "protocol", "threshold", "client", "server", "first", "source", "description"}
	rows := make([][]string, 0, reg.Len())
	for i, id := range reg.Identifiers() {
		threshold := strconv.Itoa(id.Threshold)
		if !id.Reachable() {
			threshold += " (unreachable)"
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			id.Name,
			threshold,
			strconv.Itoa(len(id.Client)),
			strconv.Itoa(len(id.Server)),
			firstPattern(id),
			filepath.Base(id.Source),
			stringutil.Ellipsis(id.Description, 48),
		})
	}
	return out.PrintTable(headers, rows)
}

// firstPattern previews the signature searched first: server before client.
func firstPattern(id *signature.Identifier) string {
	switch {
	case len(id.Server) > 0:
		return `server "` + stringutil.Printable(id.Server[0], 24) + `"`
	case len(id.Client) > 0:
		return `client "` + stringutil.Printable(id.Client[0], 24) + `"`
	default:
		return ""
	}
}
