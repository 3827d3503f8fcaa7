package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spigell/resume-ranker/internal/ranking"
	"github.com/spigell/resume-ranker/internal/utils"
	"gopkg.in/yaml.v3"
)

const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputYAML  = "yaml"

	samplePreviewLength = 1500
	allKeywordsFound    = "All key job keywords found"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	nameStyle    = lipgloss.NewStyle().Bold(true).Width(44)
	scoreStyle   = lipgloss.NewStyle().Width(24)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	missingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	foundStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

type report struct {
	RunID    string         `json:"run_id" yaml:"run_id"`
	Keywords []string       `json:"keywords" yaml:"keywords"`
	Ranked   []reportEntry  `json:"ranked" yaml:"ranked"`
	Failed   []reportFailed `json:"failed" yaml:"failed"`
}

type reportEntry struct {
	Rank     int      `json:"rank" yaml:"rank"`
	Filename string   `json:"filename" yaml:"filename"`
	Score    float64  `json:"score" yaml:"score"`
	Missing  []string `json:"missing_keywords" yaml:"missing_keywords"`
	Path     string   `json:"path,omitempty" yaml:"path,omitempty"`
}

type reportFailed struct {
	Filename string `json:"filename" yaml:"filename"`
	Stage    string `json:"stage" yaml:"stage"`
	Error    string `json:"error" yaml:"error"`
}

// buildReport keeps the top candidates of res. A non-positive top keeps all.
func buildReport(res *ranking.Result, top int) report {
	ranked := topCandidates(res, top)

	rep := report{
		RunID:    res.RunID,
		Keywords: res.Keywords,
		Ranked:   make([]reportEntry, len(ranked)),
		Failed:   make([]reportFailed, len(res.Failed)),
	}
	if rep.Keywords == nil {
		rep.Keywords = []string{}
	}
	for i, c := range ranked {
		rep.Ranked[i] = reportEntry{
			Rank:     i + 1,
			Filename: c.Filename,
			Score:    c.Score,
			Missing:  c.Missing,
			Path:     c.Document.Path,
		}
	}
	for i, f := range res.Failed {
		rep.Failed[i] = reportFailed{Filename: f.Filename, Stage: string(f.Stage), Error: f.Err.Error()}
	}
	return rep
}

func topCandidates(res *ranking.Result, top int) []ranking.Candidate {
	if top <= 0 || top > len(res.Ranked) {
		return res.Ranked
	}
	return res.Ranked[:top]
}

func writeStructured(w io.Writer, rep report, format string) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// writeTable renders the human readable report: failure notices, a sample
// of the first parsed resume, the target keywords and the top candidates.
func writeTable(w io.Writer, res *ranking.Result, top int) {
	for _, f := range res.Failed {
		fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("Could not extract text from: %s (%v)", f.Filename, f.Err)))
	}

	if first, ok := firstParsed(res); ok {
		fmt.Fprintln(w)
		fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Sample parsed resume text (%s)", first.Filename)))
		fmt.Fprintln(w, mutedStyle.Render(utils.TruncateForLog(first.Text, samplePreviewLength)))
	}

	if len(res.Ranked) == 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "No resumes could be ranked.")
		return
	}

	fmt.Fprintln(w)
	if len(res.Keywords) > 0 {
		fmt.Fprintln(w, "Key job keywords: "+strings.Join(res.Keywords, ", "))
	}
	fmt.Fprintln(w, headerStyle.Render("Top Ranked Resumes"))

	for i, c := range topCandidates(res, top) {
		gap := foundStyle.Render(allKeywordsFound)
		if len(c.Missing) > 0 {
			gap = missingStyle.Render("Missing keywords: " + strings.Join(c.Missing, ", "))
		}
		fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top,
			nameStyle.Render(fmt.Sprintf("%d. %s", i+1, c.Filename)),
			scoreStyle.Render(fmt.Sprintf("Match Score: %.2f%%", c.Score*100)),
			gap,
		))
	}
}

// firstParsed returns the successfully parsed candidate that came first in
// the input batch.
func firstParsed(res *ranking.Result) (ranking.Candidate, bool) {
	if len(res.Ranked) == 0 {
		return ranking.Candidate{}, false
	}
	first := res.Ranked[0]
	for _, c := range res.Ranked[1:] {
		if c.Index < first.Index {
			first = c
		}
	}
	return first, true
}
