// Package crawler runs one goal-directed crawl pass.
//
// # Architecture
//
// The Spider coordinates a pass. It takes targets from a Frontier in
// priority order, fetches them in waves of at most Concurrency pages, and
// waits for the whole wave before taking the next one. Each fetched page is
// parsed, scored against the instruction, and kept when its score reaches
// the relevance threshold. Links are enqueued whatever the page scored; their
// priority is 1 minus the relevance of the anchor text, so links that look
// relevant are fetched first.
//
// # Components
//
//   - Spider: the wave scheduler and relevance gate
//   - Frontier: priority queue plus visited set, marked at enqueue time
//   - Parser: HTML parser that extracts the title, visible text and links
//   - HTTPFetcher: bounded-time GET that accepts only 200 HTML/text answers
//   - NewHTTPClient: the fetcher's client, optionally through a SOCKS5 proxy
//
// # Usage
//
//	fetcher := crawler.NewHTTPFetcher(nil, crawler.WithTimeout(10*time.Second))
//	spider := crawler.NewSpider(fetcher, relevance, crawler.WithLogger(logger))
//	pages, err := spider.Crawl(ctx, "https://example.com", "find pricing", cfg)
//
// # Limits
//
// A pass dequeues at most MaxPages URLs and never follows a link beyond
// MaxDepth. By default links leaving the seed host are skipped.
package crawler
