// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package stringutil renders strings and raw signature bytes for logs and tables.
package stringutil

import (
	"strings"
)

// Ellipsis shortens s to at most maxLength bytes, appending "..." if truncated.
// Surrounding spaces are trimmed and line breaks become spaces. With maxLength
// of 3 or less the string is cut without an ellipsis.
func Ellipsis(s string, maxLength int) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")

	if maxLength < 0 {
		return ""
	}
	if len(s) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return s[:maxLength]
	}
	return s[:maxLength-3] + "..."
}

// Printable renders b as printable ASCII, escaping every other byte as \xNN
// and backslashes as \\. The result is cut with Ellipsis at maxLength.
func Printable(b []byte, maxLength int) string {
	const hexDigits = "0123456789abcdef"

	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		switch {
		case c == '\\':
			sb.WriteString(`\\`)
		case c >= 0x20 && c < 0x7f:
			sb.WriteByte(c)
		default:
			sb.WriteString(`\x`)
			sb.WriteByte(hexDigits[c>>4])
			sb.WriteByte(hexDigits[c&0x0f])
		}
	}
	out := sb.String()
	if maxLength < 0 || len(out) <= maxLength {
		return out
	}
	if maxLength <= 3 {
		return out[:maxLength]
	}
	return out[:maxLength-3] + "..."
}
