// Package main provides the entry point for the rufus CLI.
//
// rufus crawls a website towards a natural-language instruction. Links are
// followed in order of how relevant their anchor text looks, pages are kept
// when their text passes a relevance gate, and a poor first result triggers
// one refined crawl with relaxed parameters.
//
// Usage:
//
//	rufus crawl <url> -i "<instruction>"
//	rufus history
//
// See --help for all available options.
package main

// main is the entry point for rufus.
func main() {
	Execute()
}
