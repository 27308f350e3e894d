package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/rufus/internal/model"
)

// Score bands used by the Markdown score distribution.
const (
	highScore   = 0.7
	mediumScore = 0.4
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the full report in Markdown format: the summary followed by
// the ranked results, the crawl passes and an excerpt of every result.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	summary := model.NewSummary(report)

	w.writeHeader(md, summary)
	w.writeFeedback(md, summary)
	w.writeResults(md, report.Results)
	w.writePasses(md, report.Passes)
	w.writeExcerpts(md, report.Results)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteSummary outputs the summary in Markdown format.
func (w *MarkdownWriter) WriteSummary(summary *model.Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeFeedback(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with crawl information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *model.Summary) {
	md.H1("Rufus Crawl Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seed", "`" + s.Seed + "`"},
			{"Instruction", escapeCell(s.Instruction)},
			{"Crawl Date", s.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Elapsed", s.Elapsed.Round(time.Millisecond).String()},
			{"Pages Visited", strconv.Itoa(s.PagesDequeued)},
			{"Pages Harvested", strconv.Itoa(s.PagesHarvested)},
			{"Results", strconv.Itoa(s.ResultCount)},
			{"Mean Score", formatScore(s.MeanScore)},
			{"Top Score", formatScore(s.TopScore)},
			{"Status", w.getStatusText(s)},
		},
	})
	md.PlainText("")
}

// getStatusText returns the status text based on report state.
func (w *MarkdownWriter) getStatusText(s *model.Summary) string {
	if s.TimedOut {
		return "⚠️ Timed Out (partial results)"
	}
	if s.Error != "" {
		return "❌ Error - " + escapeCell(s.Error)
	}
	return "✅ Complete"
}

// writeFeedback writes the feedback decisions and an alert describing them.
func (w *MarkdownWriter) writeFeedback(md *markdown.Markdown, s *model.Summary) {
	md.H2("Feedback")
	md.PlainText("")

	switch {
	case s.ResultCount == 0:
		md.Cautionf("No page passed the relevance gate after %d pass(es).", s.Passes)
	case s.Refined && s.MeanScore < s.FinalConfig.EvaluationThreshold:
		md.Warningf(
			"The refined crawl still scored %.2f on average, below the evaluation threshold %.2f.",
			s.MeanScore, s.FinalConfig.EvaluationThreshold,
		)
	case s.Refined:
		md.Note("The first pass scored too low; a refined pass with relaxed parameters was run.")
	default:
		md.Tip("The first pass met the evaluation threshold.")
	}
	md.PlainText("")

	if len(s.Transitions) > 0 {
		items := make([]string, len(s.Transitions))
		for i, t := range s.Transitions {
			items[i] = fmt.Sprintf("%s → %s: %s", t.From, t.To, t.Reason)
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	cfg := s.FinalConfig
	md.Table(markdown.TableSet{
		Header: []string{"Final Parameter", "Value"},
		Rows: [][]string{
			{"Max Depth", strconv.Itoa(cfg.MaxDepth)},
			{"Max Pages", strconv.Itoa(cfg.MaxPages)},
			{"Concurrency", strconv.Itoa(cfg.Concurrency)},
			{"Relevance Threshold", formatScore(cfg.RelevanceThreshold)},
			{"Evaluation Threshold", formatScore(cfg.EvaluationThreshold)},
		},
	})
	md.PlainText("")
}

// writeResults writes the ranked results table and the score distribution.
func (w *MarkdownWriter) writeResults(md *markdown.Markdown, results []model.ScoredPage) {
	md.H2("Results")
	md.PlainText("")

	if len(results) == 0 {
		md.PlainText("No relevant pages found.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(results))
	for i, r := range results {
		title := r.Title
		if title == "" {
			title = "-"
		}
		rows[i] = []string{
			strconv.Itoa(i + 1),
			formatScore(r.Score),
			escapeCell(truncateString(title, 50)),
			r.URL,
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Rank", "Score", "Title", "URL"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writePieChart(md, results)
}

// writePieChart writes a mermaid pie chart of the score distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, results []model.ScoredPage) {
	var high, medium, low uint64
	for _, r := range results {
		switch {
		case r.Score >= highScore:
			high++
		case r.Score >= mediumScore:
			medium++
		default:
			low++
		}
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Score Distribution"),
		piechart.WithShowData(true),
	)
	if high > 0 {
		chart.LabelAndIntValue("High", high)
	}
	if medium > 0 {
		chart.LabelAndIntValue("Medium", medium)
	}
	if low > 0 {
		chart.LabelAndIntValue("Low", low)
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writePasses writes one row per crawl pass.
func (w *MarkdownWriter) writePasses(md *markdown.Markdown, passes []model.PassRecord) {
	if len(passes) == 0 {
		return
	}

	md.H2("Passes")
	md.PlainText("")

	rows := make([][]string, len(passes))
	for i, p := range passes {
		rows[i] = []string{
			p.State.String(),
			strconv.Itoa(p.Config.MaxDepth),
			strconv.Itoa(p.Config.MaxPages),
			formatScore(p.Config.RelevanceThreshold),
			strconv.Itoa(p.Stats.Dequeued),
			strconv.Itoa(p.Stats.Failed),
			strconv.Itoa(p.Stats.Harvested),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Pass", "Depth", "Pages", "Threshold", "Visited", "Failed", "Harvested"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeExcerpts writes a collapsible excerpt of every result.
func (w *MarkdownWriter) writeExcerpts(md *markdown.Markdown, results []model.ScoredPage) {
	if len(results) == 0 {
		return
	}

	md.H2("Excerpts")
	md.PlainText("")
	for i, r := range results {
		excerpt := strings.Join(r.Content, "\n\n")
		if excerpt == "" {
			continue
		}
		md.Details(fmt.Sprintf("%d. %s", i+1, r.URL), truncateString(excerpt, 500))
	}
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [rufus](https://github.com/nao1215/rufus)*")
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// escapeCell keeps a value from breaking the table layout.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
