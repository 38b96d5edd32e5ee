//go:build linux

package main

import (
	"bytes"
	"errors"
	"io/fs"
	"testing"

	"github.com/loicpoulain/kvmlat/kvm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport(t *testing.T) {
	sys, err := kvm.Open()
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		t.Skipf("kvm unavailable: %v", err)
	}

	require.NoError(t, err)
	defer sys.Close()

	out := new(bytes.Buffer)
	_, err = report(out, sys)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "KVM API version: 12\n")
	assert.Contains(t, out.String(), "KVM_CAP_USER_MEMORY: 1\n")
	assert.Contains(t, out.String(), "# extensions\n")
}
