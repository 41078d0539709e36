// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package signature

import (
	"errors"
	"fmt"
)

const (
	errorCodeConfigInvalid  = "SIGNATURE_CONFIG_INVALID"
	errorCodeDuplicate      = "SIGNATURE_DUPLICATE"
	errorCodeDirUnreadable  = "SIGNATURE_DIR_UNREADABLE"
	errorCodeNoDefinitions  = "SIGNATURE_NONE_FOUND"
	errorCodeUnknownFailure = "SIGNATURE_LOAD_FAILED"
)

var (
	// ErrInvalidDefinition indicates a definition that is malformed or fails validation.
	ErrInvalidDefinition = errors.New("invalid signature definition")
	// ErrDuplicateProtocol indicates two definitions share a protocol name.
	ErrDuplicateProtocol = errors.New("duplicate protocol")
	// ErrDirUnreadable indicates the signature directory could not be listed or a file could not be read.
	ErrDirUnreadable = errors.New("signature source unreadable")
	// ErrNoDefinitions indicates a signature directory without any definition files.
	ErrNoDefinitions = errors.New("no signature definitions found")
)

// ConfigError describes a problem with one signature definition source.
type ConfigError struct {
	Source string // File path (or "<memory>") the definition came from
	Field  string // Offending field, empty when the whole document is at fault
	Err    error
}

func (e *ConfigError) Error() string {
	switch {
	case e.Source != "" && e.Field != "":
		return fmt.Sprintf("%s: %s: %v", e.Source, e.Field, e.Err)
	case e.Source != "":
		return fmt.Sprintf("%s: %v", e.Source, e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Code returns the machine readable code for the error.
func (e *ConfigError) Code() string {
	switch {
	case errors.Is(e.Err, ErrDuplicateProtocol):
		return errorCodeDuplicate
	case errors.Is(e.Err, ErrDirUnreadable):
		return errorCodeDirUnreadable
	case errors.Is(e.Err, ErrNoDefinitions):
		return errorCodeNoDefinitions
	default:
		return errorCodeConfigInvalid
	}
}

func invalidf(source, field, format string, args ...any) *ConfigError {
	return &ConfigError{
		Source: source,
		Field:  field,
		Err:    fmt.Errorf("%w: "+format, append([]any{ErrInvalidDefinition}, args...)...),
	}
}

type errorCoder interface {
	error
	Code() string
}

// ErrorCode resolves an error to its signature error code.
// Aggregated errors report the code of the first coded error they contain.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var coded errorCoder
	if errors.As(err, &coded) {
		if code := coded.Code(); code != "" {
			return code
		}
	}

	switch {
	case errors.Is(err, ErrDuplicateProtocol):
		return errorCodeDuplicate
	case errors.Is(err, ErrDirUnreadable):
		return errorCodeDirUnreadable
	case errors.Is(err, ErrInvalidDefinition):
		return errorCodeConfigInvalid
	default:
		return errorCodeUnknownFailure
	}
}

// ExitCode maps signature loading errors to CLI exit codes.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return 2
	}
	return 1
}

// Suggestions provides CLI hints for signature loading errors.
func Suggestions(err error) []string {
	switch ErrorCode(err) {
	case errorCodeDuplicate:
		return []string{
			"Each protocol name may be defined once across the signature directory",
			"Rename or remove one of the conflicting definitions",
		}
	case errorCodeDirUnreadable:
		return []string{
			"Check that --signatures points to an existing directory",
			"Check file permissions of the definition files",
		}
	case errorCodeNoDefinitions:
		return []string{
			"Add at least one *.yaml definition file to the signature directory",
		}
	case errorCodeConfigInvalid:
		return []string{
			"Validate definitions with:  sand signatures validate <dir>",
			"Every definition needs a protocol, a positive threshold and at least one signature",
		}
	default:
		return nil
	}
}
