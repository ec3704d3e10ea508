package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fpang/portrait-studio/internal/perception/perceptiontest"
	"github.com/fpang/portrait-studio/internal/pipeline"
	"github.com/fpang/portrait-studio/internal/store"
	"github.com/fpang/portrait-studio/internal/studio"
)

func TestFormatDurationShort(t *testing.T) {
	assert.Equal(t, "0:05", FormatDurationShort(5*time.Second))
	assert.Equal(t, "2:03", FormatDurationShort(123*time.Second))
	assert.Equal(t, "1:00:01", FormatDurationShort(time.Hour+time.Second))
}

func TestParseParams(t *testing.T) {
	params, err := ParseParams([]string{"garment=navy suit", " style = slim fit"})
	require.NoError(t, err)
	assert.Equal(t, "navy suit", params["garment"])
	assert.Equal(t, "slim fit", params["style"])

	_, err = ParseParams([]string{"garment"})
	assert.Error(t, err)
	_, err = ParseParams([]string{"=x"})
	assert.Error(t, err)
}

func TestResolveImagePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "me.jpg")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	got, err := ResolveImagePath(path)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	got, err = ResolveImagePath("s3://bucket/me.jpg")
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/me.jpg", got)

	_, err = ResolveImagePath(filepath.Join(dir, "missing.jpg"))
	assert.ErrorContains(t, err, "not found")
	_, err = ResolveImagePath(dir)
	assert.ErrorContains(t, err, "directory")
}

func TestPromptForInstruction(t *testing.T) {
	var out bytes.Buffer
	got, err := PromptForInstruction(strings.NewReader("  give me a denim jacket \n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "give me a denim jacket", got)
	assert.Contains(t, out.String(), "Describe the edit")

	got, err = PromptForInstruction(strings.NewReader(""), &out)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPrintAnalysis(t *testing.T) {
	var buf bytes.Buffer
	PrintAnalysis(&buf, studio.AnalyzeInstruction("reshape the jaw"))
	assert.Contains(t, buf.String(), "blocked")
	assert.Contains(t, buf.String(), "face_reshape")

	buf.Reset()
	PrintAnalysis(&buf, studio.AnalyzeInstruction("give me a curly hairstyle"))
	assert.Contains(t, buf.String(), "allowed")
	assert.Contains(t, buf.String(), "hair")
}

func TestPrintScope(t *testing.T) {
	ctrl, err := studio.New(studio.Garment)
	require.NoError(t, err)
	setup, err := ctrl.ComputeEditScope(perceptiontest.Portrait("in.jpg"), nil, studio.Overrides{})
	require.NoError(t, err)

	var buf bytes.Buffer
	PrintScope(&buf, studio.Garment, setup)
	out := buf.String()
	assert.Contains(t, out, "collar")
	assert.Contains(t, out, "Negative prompt:")
	assert.NotContains(t, out, "Warp risk high")
}

func TestPrintResultAndRecord(t *testing.T) {
	res := pipeline.Result{
		RunID:          "run-1",
		Studio:         studio.Hairstyle,
		Status:         pipeline.StatusBestEffort,
		OutputImageRef: "out.png",
		Attempts:       []pipeline.AttemptRecord{{Index: 0}, {Index: 1}},
		BestAttempt:    1,
		Guidance:       "Try a photo with a simpler, uncluttered background.",
	}
	var buf bytes.Buffer
	PrintResult(&buf, res)
	assert.Contains(t, buf.String(), "best_effort")
	assert.Contains(t, buf.String(), "* attempt 1")
	assert.Contains(t, buf.String(), "Tip:")

	rec, err := store.NewRunRecord(res, nil)
	require.NoError(t, err)
	buf.Reset()
	PrintRecord(&buf, rec)
	assert.Contains(t, buf.String(), "run-1")
	assert.Contains(t, buf.String(), "attempt 1")
}
