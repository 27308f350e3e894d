// Package model defines the data structures shared by the crawler, the
// evaluator, the feedback controller and the report writers.
//
// This package contains the following main types:
//   - CrawlTarget: a URL waiting in the frontier with its priority and depth
//   - HarvestedPage: a fetched page that passed the relevance gate
//   - ScoredPage: a harvested page with its extracted text and final score
//   - CrawlConfig: the tunable parameters of a single crawl pass
//   - CrawlReport: everything one crawl request produced, pass by pass
//
// Models live in their own package so that crawler, evaluate, feedback,
// pipeline and report can share them without import cycles. All of them
// serialize to JSON for report output and for the result database.
package model
