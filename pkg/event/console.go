// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package event

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	newStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")) // Gray

	identifiedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")). // Bright green
			Bold(true)

	endedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // Cyan

	unidentifiedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("11")) // Yellow
)

// ConsoleSubscriber prints one human readable line per event.
type ConsoleSubscriber struct {
	mu      sync.Mutex
	w       io.Writer
	color   bool
	verbose bool // also print "new" events
}

// NewConsoleSubscriber creates a ConsoleSubscriber writing to w.
func NewConsoleSubscriber(w io.Writer, color, verbose bool) *ConsoleSubscriber {
	return &ConsoleSubscriber{w: w, color: color, verbose: verbose}
}

func (c *ConsoleSubscriber) render(style lipgloss.Style, s string) string {
	if !c.color {
		return s
	}
	return style.Render(s)
}

func (c *ConsoleSubscriber) println(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.w, line)
	return err
}

func (c *ConsoleSubscriber) OnNew(_ context.Context, s StreamInfo) error {
	if !c.verbose {
		return nil
	}
	return c.println(c.render(newStyle, "[new]        ") + s.ID)
}

func (c *ConsoleSubscriber) OnIdentified(_ context.Context, s StreamInfo, protocol string) error {
	return c.println(c.render(identifiedStyle, "[identified] ") + s.ID + " " + c.render(identifiedStyle, protocol))
}

func (c *ConsoleSubscriber) OnEnded(_ context.Context, s StreamInfo, reason Reason) error {
	if s.Protocol != "" {
		return c.println(c.render(endedStyle, "[ended]      ") + fmt.Sprintf("%s %s (%s)", s.ID, s.Protocol, reason))
	}
	return c.println(c.render(unidentifiedStyle, "[ended]      ") + fmt.Sprintf("%s unidentified (%s)", s.ID, reason))
}
