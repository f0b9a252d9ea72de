package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"valet/internal/modules/pricing"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func samplePricingFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join("..", "..", "configs", "pricing.yaml")
	_, err := os.Stat(path)
	require.NoError(t, err)
	return path
}

func TestQuoteCmd_RepeatConverges(t *testing.T) {
	out, err := runCmd(t, "quote",
		"-f", samplePricingFile(t),
		"--scope", "downtown",
		"--hours", "2",
		"--occupancy", "1",
		"--at", "2026-03-03T18:00:00Z",
		"--repeat", "3",
	)
	require.NoError(t, err, out)

	dec := json.NewDecoder(strings.NewReader(out))
	var smoothed []float64
	for dec.More() {
		var q pricing.PriceQuote
		require.NoError(t, dec.Decode(&q))
		assert.Equal(t, "downtown", q.Scope)
		assert.InDelta(t, 1.75, q.ClampedMultiplier, 1e-9)
		smoothed = append(smoothed, q.SmoothedMultiplier)
	}
	require.Len(t, smoothed, 3)
	assert.Less(t, smoothed[0], smoothed[1])
	assert.Less(t, smoothed[1], smoothed[2])
}

func TestQuoteCmd_ValidationError(t *testing.T) {
	_, err := runCmd(t, "quote", "-f", samplePricingFile(t), "--scope", "downtown", "--vehicle", "bus")
	require.Error(t, err)
	assert.ErrorIs(t, err, pricing.ErrValidation)
}

func TestQuoteCmd_RequiresScope(t *testing.T) {
	_, err := runCmd(t, "quote", "-f", samplePricingFile(t))
	assert.Error(t, err)
}

func TestBenchCmd_MemoryBackends(t *testing.T) {
	out, err := runCmd(t, "bench",
		"-f", samplePricingFile(t),
		"--scope", "airport-long-term",
		"--requests", "50",
		"--concurrency", "8",
		"--duration", "50ms",
	)
	require.NoError(t, err, out)
	assert.Contains(t, out, "FAIL=0")
}
