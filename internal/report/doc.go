// Package report writes crawl reports.
//
// This package contains writers for different output formats:
//   - JSONWriter: the ranked results as a JSON array
//   - FullJSONWriter: the whole report with a summary and version
//   - MarkdownWriter: tables and a score chart for sharing
//   - SimpleWriter: human-readable text for terminal display
//
// WriteDocuments stores every ranked result in its own document_N.json file.
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
