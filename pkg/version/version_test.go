// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package version

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInfo_ReturnsFormattedString(t *testing.T) {
	info := Info()
	assert.Contains(t, info, "sand")
	assert.Contains(t, info, Version)
	assert.Contains(t, info, Commit)
	assert.Contains(t, info, BuildDate)
}

func TestGet_ReturnsCorrectStruct(t *testing.T) {
	v := Get()
	assert.Equal(t, Version, v.Version)
	assert.Equal(t, Commit, v.Commit)
	assert.Equal(t, BuildDate, v.BuildDate)
	assert.Equal(t, runtime.Version(), v.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, v.Platform)
}

func TestStartDate_IsInitialized(t *testing.T) {
	assert.Less(t, time.Since(StartDate), time.Minute)
}
