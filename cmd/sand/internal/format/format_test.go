// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package format

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintTable(t *testing.T) {
	headers := []string{"protocol", "threshold"}
	rows := [][]string{{"http", "2"}, {"ssh", "1"}}

	t.Run("text", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		require.NoError(t, New(&stdout, &stderr, ModeText, false).PrintTable(headers, rows))
		assert.Equal(t, "PROTOCOL  THRESHOLD\nhttp      2\nssh       1\n", stdout.String())
	})

	t.Run("json", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		require.NoError(t, New(&stdout, &stderr, ModeJSON, false).PrintTable(headers, rows))

		var items []map[string]string
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &items))
		require.Len(t, items, 2)
		assert.Equal(t, "http", items[0]["protocol"])
		assert.Equal(t, "1", items[1]["threshold"])
	})
}

func TestPrintSummary(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.NoError(t, New(&stdout, &stderr, ModeText, false).PrintSummary("3 streams"))
	assert.Equal(t, "3 streams\n", stdout.String())

	stdout.Reset()
	require.NoError(t, New(&stdout, &stderr, ModeJSON, false).PrintSummary("3 streams"))
	assert.Empty(t, stdout.String())
	assert.Equal(t, "3 streams\n", stderr.String())
}

func TestPrintError(t *testing.T) {
	var stdout, stderr bytes.Buffer
	f := New(&stdout, &stderr, ModeText, false)
	require.NoError(t, f.PrintError(nil))
	require.NoError(t, f.PrintError(errors.New("boom")))
	assert.Equal(t, "Error: boom\n", stderr.String())

	stdout.Reset()
	require.NoError(t, New(&stdout, &stderr, ModeJSON, false).PrintError(errors.New("boom")))
	assert.JSONEq(t, `{"success":false,"error":"boom"}`, stdout.String())
}

func TestPrintCheck(t *testing.T) {
	var stdout, stderr bytes.Buffer
	f := New(&stdout, &stderr, ModeText, false)
	require.NoError(t, f.PrintCheck(true, "http.yaml", ""))
	require.NoError(t, f.PrintCheck(false, "bad.yaml", "threshold must be > 0"))
	assert.Equal(t, "✓ http.yaml\n✗ bad.yaml: threshold must be > 0\n", stdout.String())
}

func TestModes(t *testing.T) {
	require.NoError(t, ValidateMode("json"))
	require.NoError(t, ValidateMode("TEXT"))
	require.Error(t, ValidateMode("table"))
	assert.Equal(t, ModeJSON, ParseMode("JSON"))
	assert.Equal(t, ModeText, ParseMode("anything"))
}
