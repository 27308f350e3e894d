package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/rufus/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose adds the feedback transitions and a content excerpt per result.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the summary followed by the ranked results.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder

	summary := model.NewSummary(report)
	w.writeHeader(&sb, summary)
	w.writeFeedback(&sb, summary)
	w.writeResults(&sb, report.Results)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// WriteSummary outputs the summary in human-readable format.
func (w *SimpleWriter) WriteSummary(summary *model.Summary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeFeedback(&sb, summary)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with crawl information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, s *model.Summary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                          RUFUS CRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Seed:            %s\n", s.Seed)
	fmt.Fprintf(sb, "Instruction:     %s\n", s.Instruction)
	fmt.Fprintf(sb, "Crawl Date:      %s\n", s.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Elapsed:         %s\n", s.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(sb, "Pages Visited:   %d\n", s.PagesDequeued)
	fmt.Fprintf(sb, "Pages Harvested: %d\n", s.PagesHarvested)

	switch {
	case s.TimedOut:
		sb.WriteString("Status:          TIMED OUT (partial results)\n")
	case s.Error != "":
		fmt.Fprintf(sb, "Status:          ERROR - %s\n", s.Error)
	default:
		sb.WriteString("Status:          Complete\n")
	}

	sb.WriteString("\n")
}

// writeFeedback writes the pass count and scores.
func (w *SimpleWriter) writeFeedback(sb *strings.Builder, s *model.Summary) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("FEEDBACK\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	refined := "no"
	if s.Refined {
		refined = "yes"
	}
	fmt.Fprintf(sb, "  PASSES:     %d\n", s.Passes)
	fmt.Fprintf(sb, "  REFINED:    %s\n", refined)
	fmt.Fprintf(sb, "  RESULTS:    %d\n", s.ResultCount)
	fmt.Fprintf(sb, "  MEAN SCORE: %.2f\n", s.MeanScore)
	fmt.Fprintf(sb, "  TOP SCORE:  %.2f\n", s.TopScore)

	if w.verbose {
		for _, t := range s.Transitions {
			fmt.Fprintf(sb, "  [%s -> %s] %s\n", t.From, t.To, t.Reason)
		}
	}
	sb.WriteString("\n")
}

// writeResults writes one line per ranked result.
func (w *SimpleWriter) writeResults(sb *strings.Builder, results []model.ScoredPage) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("RESULTS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(results) == 0 {
		sb.WriteString("  No relevant pages found\n\n")
		return
	}

	for i, r := range results {
		fmt.Fprintf(sb, "  %3d. [%.2f] %s\n", i+1, r.Score, r.URL)
		if r.Title != "" {
			fmt.Fprintf(sb, "       %s\n", r.Title)
		}
		if w.verbose && len(r.Content) > 0 {
			fmt.Fprintf(sb, "       %s\n", truncateString(r.Content[0], 120))
		}
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by rufus\n")
	sb.WriteString("https://github.com/nao1215/rufus\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
