package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/spigell/resume-ranker/internal/document"
	"github.com/spigell/resume-ranker/internal/ranking"
)

func sampleResult() *ranking.Result {
	return &ranking.Result{
		RunID:    "run-1",
		Keywords: []string{"python", "sql"},
		Ranked: []ranking.Candidate{
			{Filename: "bob.pdf", Index: 2, Score: 0.8765, Missing: []string{}, Document: document.FromPath("/cv/bob.pdf"), Text: "Python and SQL"},
			{Filename: "alice.docx", Index: 0, Score: 0.5, Missing: []string{"sql"}, Document: document.FromPath("/cv/alice.docx"), Text: strings.Repeat("a", 2000)},
			{Filename: "carol.pdf", Index: 3, Score: 0.1, Missing: []string{"python", "sql"}, Text: "Java"},
		},
		Failed: []ranking.Failure{
			{Filename: "broken.docx", Stage: ranking.StageExtract, Err: errors.New("zip: not a valid zip file")},
		},
	}
}

func TestBuildReportKeepsTop(t *testing.T) {
	rep := buildReport(sampleResult(), 2)

	require.Len(t, rep.Ranked, 2)
	assert.Equal(t, 1, rep.Ranked[0].Rank)
	assert.Equal(t, "bob.pdf", rep.Ranked[0].Filename)
	assert.Equal(t, "/cv/bob.pdf", rep.Ranked[0].Path)
	assert.Equal(t, []string{"sql"}, rep.Ranked[1].Missing)
	assert.Equal(t, []reportFailed{{Filename: "broken.docx", Stage: "extract", Error: "zip: not a valid zip file"}}, rep.Failed)

	assert.Len(t, buildReport(sampleResult(), 0).Ranked, 3)
	assert.Len(t, buildReport(sampleResult(), 50).Ranked, 3)
}

func TestWriteStructured(t *testing.T) {
	rep := buildReport(sampleResult(), 10)

	var jsonBuf bytes.Buffer
	require.NoError(t, writeStructured(&jsonBuf, rep, OutputJSON))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])
	assert.Len(t, decoded["ranked"], 3)

	var yamlBuf bytes.Buffer
	require.NoError(t, writeStructured(&yamlBuf, rep, OutputYAML))
	var fromYAML report
	require.NoError(t, yaml.Unmarshal(yamlBuf.Bytes(), &fromYAML))
	assert.Equal(t, rep.Keywords, fromYAML.Keywords)
	assert.Equal(t, "carol.pdf", fromYAML.Ranked[2].Filename)

	assert.Error(t, writeStructured(&bytes.Buffer{}, rep, "xml"))
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	writeTable(&buf, sampleResult(), 2)
	out := buf.String()

	assert.Contains(t, out, "Could not extract text from: broken.docx")
	assert.Contains(t, out, "Sample parsed resume text (alice.docx)")
	assert.Contains(t, out, strings.Repeat("a", samplePreviewLength)+"...")
	assert.NotContains(t, out, strings.Repeat("a", samplePreviewLength+1))
	assert.Contains(t, out, "Key job keywords: python, sql")
	assert.Contains(t, out, "1. bob.pdf")
	assert.Contains(t, out, "Match Score: 87.65%")
	assert.Contains(t, out, allKeywordsFound)
	assert.Contains(t, out, "Missing keywords: sql")
	assert.NotContains(t, out, "carol.pdf")
}

func TestWriteTableNothingRanked(t *testing.T) {
	var buf bytes.Buffer
	writeTable(&buf, &ranking.Result{Failed: sampleResult().Failed}, 10)

	assert.Contains(t, buf.String(), "Could not extract text from: broken.docx")
	assert.Contains(t, buf.String(), "No resumes could be ranked.")
	assert.NotContains(t, buf.String(), "Sample parsed resume text")
}
