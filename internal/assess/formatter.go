/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package assess

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aymerick/raymond"
	"github.com/beevik/etree"
	"github.com/mattn/go-runewidth"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// OutputFormat represents the format for report output
type OutputFormat string

const (
	FormatJSON       OutputFormat = "json"
	FormatYAML       OutputFormat = "yaml"
	FormatMarkdown   OutputFormat = "markdown"
	FormatHTML       OutputFormat = "html"
	FormatCheckstyle OutputFormat = "checkstyle"
)

// Formats lists every supported output format.
var Formats = []OutputFormat{FormatJSON, FormatYAML, FormatMarkdown, FormatHTML, FormatCheckstyle}

// ParseFormat accepts a format name, case-insensitively, with "md" and "yml" aliases.
func ParseFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	case "checkstyle", "xml":
		return FormatCheckstyle, nil
	}
	return "", fmt.Errorf("unsupported format: %s", s)
}

//go:embed templates/report.html
var htmlTemplate string

var titleCaser = cases.Title(language.Und)

// Render writes report to w in the given format.
func Render(w io.Writer, report *Report, format OutputFormat) error {
	if report == nil {
		return fmt.Errorf("nil report")
	}
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	case FormatMarkdown:
		_, err := io.WriteString(w, formatMarkdown(report))
		return err
	case FormatHTML:
		out, err := formatHTML(report)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	case FormatCheckstyle:
		return writeCheckstyle(w, report)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// RenderDiff writes a report-to-report comparison.
func RenderDiff(w io.Writer, d DiffResult, format OutputFormat) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(d); err != nil {
			return err
		}
		return enc.Close()
	case FormatMarkdown:
		_, err := io.WriteString(w, formatDiffMarkdown(d))
		return err
	default:
		return fmt.Errorf("format %s is not supported for report diffs", format)
	}
}

func reportTitle(r *Report) string {
	if r.Filename != "" {
		return r.Filename
	}
	return "stdin"
}

func categoryCounts(r *Report) map[Category]int {
	counts := map[Category]int{}
	for _, i := range r.AllIssues() {
		counts[i.Category]++
	}
	return counts
}

// padRight pads s to width display columns.
func padRight(s string, width int) string {
	if gap := width - runewidth.StringWidth(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}

// markdownTable renders rows with columns aligned by display width.
func markdownTable(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	var sb strings.Builder
	line := func(cells []string) {
		sb.WriteString("|")
		for i, c := range cells {
			sb.WriteString(" " + padRight(c, widths[i]) + " |")
		}
		sb.WriteString("\n")
	}
	line(header)
	sep := make([]string, len(header))
	for i := range sep {
		sep[i] = strings.Repeat("-", widths[i])
	}
	line(sep)
	for _, row := range rows {
		line(row)
	}
	return sb.String()
}

func mdEscape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func lineLabel(line int) string {
	if line <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d", line)
}

func formatMarkdown(r *Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Code quality: %s\n\n", reportTitle(r))
	fmt.Fprintf(&sb, "**Score:** %.0f%% (%.3f)  \n", r.Snapshot.Score()*100, r.Snapshot.Score())
	fmt.Fprintf(&sb, "**Language:** %s (%s, confidence %.2f)  \n", r.Detection.Language, r.Detection.Method, r.Detection.Confidence)
	fmt.Fprintf(&sb, "**Issues:** %d  \n", r.Snapshot.IssueCount())
	fmt.Fprintf(&sb, "**Generated:** %s\n\n", r.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	sb.WriteString("## Penalties\n\n")
	counts := categoryCounts(r)
	var rows [][]string
	for _, c := range Categories {
		rows = append(rows, []string{
			titleCaser.String(string(c)),
			fmt.Sprintf("%.2f", r.Score.Weights.Get(c)),
			fmt.Sprintf("%.3f", r.Score.Penalties.Get(c)),
			fmt.Sprintf("%d", counts[c]),
		})
	}
	sb.WriteString(markdownTable([]string{"Category", "Weight", "Penalty", "Issues"}, rows))

	for _, c := range Categories {
		var issues []Issue
		for _, i := range r.AllIssues() {
			if i.Category == c {
				issues = append(issues, i)
			}
		}
		if len(issues) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n## %s (%d)\n\n", titleCaser.String(string(c)), len(issues))
		rows = rows[:0]
		for _, i := range issues {
			rows = append(rows, []string{lineLabel(i.Line), string(i.Severity), mdEscape(i.Message)})
		}
		sb.WriteString(markdownTable([]string{"Line", "Severity", "Message"}, rows))
	}

	if len(r.Complexity.Functions) > 0 {
		sb.WriteString("\n## Functions\n\n")
		rows = rows[:0]
		for _, fn := range r.Complexity.Functions {
			rows = append(rows, []string{
				mdEscape(fn.Name), lineLabel(fn.Line),
				fmt.Sprintf("%d", fn.CyclomaticComplexity), fmt.Sprintf("%d", fn.Length), fmt.Sprintf("%d", fn.NestingDepth),
			})
		}
		sb.WriteString(markdownTable([]string{"Function", "Line", "Cyclomatic", "Length", "Nesting"}, rows))
		s := r.Complexity.Summary
		fmt.Fprintf(&sb, "\nMean %.2f, std dev %.2f, p90 %.1f, max %d\n", s.Mean, s.StdDev, s.P90, s.Max)
	}

	if r.Formatting != nil && r.Formatting.Diff != "" {
		fmt.Fprintf(&sb, "\n## Formatting (%d changes)\n\n```diff\n%s```\n", r.Formatting.ChangesCount, r.Formatting.Diff)
	}

	if len(r.Stages) > 0 {
		sb.WriteString("\n## Stages\n\n")
		rows = rows[:0]
		for _, s := range r.Stages {
			rows = append(rows, []string{s.Label, string(s.Status), fmt.Sprintf("%d", s.DurationMs)})
		}
		sb.WriteString(markdownTable([]string{"Stage", "Status", "ms"}, rows))
	}

	if r.Diff != nil {
		sb.WriteString("\n")
		sb.WriteString(formatDiffMarkdown(*r.Diff))
	}
	return sb.String()
}

func formatDiffMarkdown(d DiffResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Change since previous run\n\n**Score:** %.3f → %.3f (%+.3f)\n", d.OldScore, d.NewScore, d.ScoreDelta)
	section := func(title string, issues []Issue) {
		fmt.Fprintf(&sb, "\n### %s (%d)\n\n", title, len(issues))
		if len(issues) == 0 {
			sb.WriteString("None.\n")
			return
		}
		var rows [][]string
		for _, i := range issues {
			rows = append(rows, []string{lineLabel(i.Line), string(i.Category), string(i.Severity), mdEscape(i.Message)})
		}
		sb.WriteString(markdownTable([]string{"Line", "Category", "Severity", "Message"}, rows))
	}
	section("New issues", d.NewIssues)
	section("Resolved issues", d.ResolvedIssues)
	return sb.String()
}

func grade(score float64) string {
	switch {
	case score >= 0.9:
		return "good"
	case score >= 0.7:
		return "fair"
	default:
		return "poor"
	}
}

func formatHTML(r *Report) (string, error) {
	counts := categoryCounts(r)
	categories := make([]map[string]any, 0, len(Categories))
	for _, c := range Categories {
		categories = append(categories, map[string]any{
			"name":    titleCaser.String(string(c)),
			"weight":  fmt.Sprintf("%.2f", r.Score.Weights.Get(c)),
			"penalty": fmt.Sprintf("%.3f", r.Score.Penalties.Get(c)),
			"count":   counts[c],
		})
	}
	issues := make([]map[string]any, 0)
	for _, i := range r.AllIssues() {
		issues = append(issues, map[string]any{
			"line":       lineLabel(i.Line),
			"severity":   string(i.Severity),
			"category":   string(i.Category),
			"message":    i.Message,
			"suggestion": i.Suggestion,
		})
	}
	functions := make([]map[string]any, 0, len(r.Complexity.Functions))
	for _, fn := range r.Complexity.Functions {
		functions = append(functions, map[string]any{
			"name": fn.Name, "line": fn.Line, "cyclomatic": fn.CyclomaticComplexity,
			"length": fn.Length, "nesting": fn.NestingDepth,
		})
	}
	stages := make([]map[string]any, 0, len(r.Stages))
	for _, s := range r.Stages {
		stages = append(stages, map[string]any{"label": s.Label, "status": string(s.Status), "ms": s.DurationMs})
	}
	diffText := ""
	if r.Formatting != nil {
		diffText = r.Formatting.Diff
	}

	data := map[string]any{
		"title":        reportTitle(r),
		"language":     string(r.Detection.Language),
		"method":       string(r.Detection.Method),
		"confidence":   fmt.Sprintf("%.2f", r.Detection.Confidence),
		"generatedAt":  r.GeneratedAt.Format("2006-01-02 15:04:05 MST"),
		"runId":        r.RunID,
		"scorePercent": fmt.Sprintf("%.0f", r.Snapshot.Score()*100),
		"grade":        grade(r.Snapshot.Score()),
		"categories":   categories,
		"issueCount":   len(issues),
		"issues":       issues,
		"functions":    functions,
		"diff":         diffText,
		"stages":       stages,
	}

	tpl, err := raymond.Parse(htmlTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse report template: %w", err)
	}
	out, err := tpl.Exec(data)
	if err != nil {
		return "", fmt.Errorf("failed to render report template: %w", err)
	}
	return out, nil
}

// writeCheckstyle emits the checkstyle XML format read by most CI annotators.
func writeCheckstyle(w io.Writer, r *Report) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("checkstyle")
	root.CreateAttr("version", "8.0")

	file := root.CreateElement("file")
	file.CreateAttr("name", reportTitle(r))
	for _, i := range r.AllIssues() {
		e := file.CreateElement("error")
		e.CreateAttr("line", fmt.Sprintf("%d", max(i.Line, 0)))
		if i.Column > 0 {
			e.CreateAttr("column", fmt.Sprintf("%d", i.Column))
		}
		e.CreateAttr("severity", string(i.Severity))
		e.CreateAttr("message", i.Message)
		source := "codescore." + string(i.Category)
		if i.Rule != "" {
			source += "." + i.Rule
		}
		e.CreateAttr("source", source)
	}

	doc.Indent(2)
	_, err := doc.WriteTo(w)
	return err
}
