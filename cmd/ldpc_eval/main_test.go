package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/observe-l/seclink/fec"
)

func TestParseCodes(t *testing.T) {
	all, err := parseCodes("all")
	require.NoError(t, err)
	assert.Len(t, all, len(fec.Codes()))

	got, err := parseCodes("qc512, qc2048")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "qc2048", got[1].Name)

	_, err = parseCodes("qc512,nope")
	assert.Error(t, err)
}

func TestBuildCellsValidates(t *testing.T) {
	cells, err := buildCells([]fec.Params{fec.QC512}, []int{1, 2}, []float64{0.01})
	require.NoError(t, err)
	assert.Len(t, cells, 3)

	_, err = buildCells([]fec.Params{fec.QC512}, []int{-1}, nil)
	assert.Error(t, err)
	_, err = buildCells([]fec.Params{fec.QC512}, nil, []float64{1.5})
	assert.Error(t, err)
}

func TestRunCellWithinRadiusAlwaysSucceeds(t *testing.T) {
	c := cell{Code: fec.QC2048, Sweep: sweepWeight, Weight: fec.QC2048.CorrectionRadius()}
	a, err := runCell(context.Background(), c, 50, 20, 7)
	require.NoError(t, err)
	assert.Equal(t, 50, a.Successes)
	assert.Equal(t, 50*c.Weight, a.Iterations)
	assert.Equal(t, 50*c.Weight, a.Flipped)
	assert.Zero(t, a.Exhausted)
}

func TestRunCellNoBudgetExhausts(t *testing.T) {
	c := cell{Code: fec.QC512, Sweep: sweepWeight, Weight: 1}
	a, err := runCell(context.Background(), c, 10, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 10, a.Exhausted)
}

func TestReportsAreWritten(t *testing.T) {
	dir := t.TempDir()
	cells, err := buildCells([]fec.Params{fec.QC512}, []int{1}, []float64{0.001})
	require.NoError(t, err)
	var res []result
	for i, c := range cells {
		a, err := runCell(context.Background(), c, 5, 20, int64(i))
		require.NoError(t, err)
		res = append(res, result{cell: c, agg: a})
	}

	jsonPath := filepath.Join(dir, "r.json")
	require.NoError(t, writeJSON(jsonPath, res))
	b, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var doc struct {
		Records []map[string]any `json:"records"`
	}
	require.NoError(t, json.Unmarshal(b, &doc))
	require.Len(t, doc.Records, 2)
	assert.Equal(t, "qc512", doc.Records[0]["code"])
	assert.Equal(t, "weight", doc.Records[0]["sweep"])
	assert.Equal(t, float64(5), doc.Records[0]["successes"])

	mdPath := filepath.Join(dir, "sub", "r.md")
	require.NoError(t, writeMarkdown(mdPath, res, 20))
	md, err := os.ReadFile(mdPath)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(md), "## qc512"))
	assert.True(t, strings.Contains(string(md), "Success Rate by Error Weight"))
	assert.True(t, strings.Contains(string(md), "| 1 | 100.00 |"))
}
