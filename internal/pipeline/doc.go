// Package pipeline runs a crawl request as a sequence of steps.
//
// A request goes through crawl, extract, evaluate, refine and rank. Each
// step is a Step that receives the shared model.CrawlReport and fills in
// its part. The refine step consults the feedback controller and, at most
// once, repeats the crawl, extract and evaluate steps with a relaxed
// configuration.
//
// Crawl is the entry point for a single seed. BatchProcessor crawls several
// seeds concurrently, each with its own pipeline, bounded with errgroup.
package pipeline
