// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/vulntor/sand/cmd/sand/commands"
)

// Exit codes:
//   - 0: Success
//   - 1: General error, including a failing event handler during replay
//   - 2: Invalid signature definitions or configuration
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	cmd := commands.NewCommand()
	err := cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		commands.PrintError(cmd.ErrOrStderr(), err)
		os.Exit(commands.ExitCode(err))
	}
}
