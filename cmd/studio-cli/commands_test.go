package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fpang/portrait-studio/internal/region"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	jsonFlag = false
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestCheckCommand(t *testing.T) {
	out, err := execute(t, "check", "--instruction", "make my nose smaller")
	require.NoError(t, err)
	assert.Contains(t, out, "blocked")

	out, err = execute(t, "check", "--instruction", "swap the background for a beach")
	require.NoError(t, err)
	assert.Contains(t, out, "allowed")
	assert.Contains(t, out, "background")
}

func TestScopeCommandJSON(t *testing.T) {
	out, err := execute(t, "scope", "--json", "--studio", "garment", "--warp-risk", "0.45")
	require.NoError(t, err)

	var plan struct {
		Scope struct {
			Allowed  []region.Region `json:"allowedRegions"`
			Preserve []region.Region `json:"preserveRegions"`
		}
		IdentityWeight float64
	}
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	assert.NotContains(t, plan.Scope.Allowed, region.Neck)
	assert.Contains(t, plan.Scope.Allowed, region.Collar)
	assert.Contains(t, plan.Scope.Preserve, region.Jaw)
	assert.InDelta(t, 0.95, plan.IdentityWeight, 1e-9)
}

func TestScopeCommandRejectsUnknownStudio(t *testing.T) {
	_, err := execute(t, "scope", "--studio", "tattoo")
	assert.Error(t, err)
}
