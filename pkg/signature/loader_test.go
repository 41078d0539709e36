// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package signature

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func writeDefinition(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_OrdersByFileName(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "20-ssh.yaml", "protocol: ssh\nthreshold: 1\nserver: [\"SSH-2.0\"]\n")
	writeDefinition(t, dir, "10-http.yml", "protocol: http\nthreshold: 2\nclient: [\"GET \", \"HTTP/1.1\"]\n")
	writeDefinition(t, dir, "README.md", "not a definition")
	writeDefinition(t, dir, ".hidden.yaml", "protocol: [")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.yaml"), 0o755))

	reg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"http", "ssh"}, reg.Names())

	id, ok := reg.Lookup("ssh")
	require.True(t, ok)
	require.Equal(t, filepath.Join(dir, "20-ssh.yaml"), id.Source)
}

func TestLoad_MissingDirectory(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing"))
	require.ErrorIs(t, err, ErrDirUnreadable)
	require.Equal(t, errorCodeDirUnreadable, ErrorCode(err))
	require.Equal(t, 2, ExitCode(err))
}

func TestLoad_EmptyDirectory(t *testing.T) {
	_, err := Load(t.TempDir())
	require.ErrorIs(t, err, ErrNoDefinitions)
	require.Equal(t, errorCodeNoDefinitions, ErrorCode(err))
}

func TestLoad_DuplicateProtocolAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "a.yaml", "protocol: http\nthreshold: 1\nclient: [GET]\n")
	writeDefinition(t, dir, "b.yaml", "protocol: http\nthreshold: 1\nclient: [POST]\n")

	_, err := Load(dir)
	require.ErrorIs(t, err, ErrDuplicateProtocol)
	require.Equal(t, errorCodeDuplicate, ErrorCode(err))
	require.Contains(t, err.Error(), filepath.Join(dir, "a.yaml"))
}

func TestLoad_ReportsEveryBadFile(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "a.yaml", "protocol: a\nclient: [x]\n")
	writeDefinition(t, dir, "b.yaml", "protocol: b\nthreshold: 1\n")
	writeDefinition(t, dir, "c.yaml", "protocol: c\nthreshold: 1\nclient: [x]\n")

	_, err := Load(dir)
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 2)
	require.Equal(t, 2, ExitCode(err))
}

func TestNew_ValidatesInMemoryIdentifiers(t *testing.T) {
	_, err := New(Identifier{Name: "x", Threshold: 1})
	require.ErrorIs(t, err, ErrInvalidDefinition)

	reg, err := New(
		Identifier{Name: "a", Threshold: 1, Client: [][]byte{[]byte("a")}},
		Identifier{Name: "b", Threshold: 1, Server: [][]byte{[]byte("b")}},
	)
	require.NoError(t, err)
	require.Equal(t, 2, reg.Len())
	require.Equal(t, []string{"a", "b"}, reg.Names())
}

func TestNew_CopiesPatterns(t *testing.T) {
	pattern := []byte("GET ")
	reg := MustNew(Identifier{Name: "http", Threshold: 1, Client: [][]byte{pattern}})
	pattern[0] = 'X'

	id, ok := reg.Lookup("http")
	require.True(t, ok)
	require.Equal(t, []byte("GET "), id.Client[0])
}

func TestSuggestions(t *testing.T) {
	_, err := Load(t.TempDir())
	require.NotEmpty(t, Suggestions(err))
	require.Nil(t, Suggestions(nil))
}
