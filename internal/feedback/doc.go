// Package feedback decides whether a crawl request needs a second,
// relaxed pass.
//
// The Controller starts in InitialPass. When the first pass harvested
// nothing, or its documents scored below the evaluation threshold on
// average, it moves to RefinedPass and returns a configuration with a lower
// relevance threshold, more depth and a bigger page budget. Every other path
// ends in Done, so a request runs at most two passes.
package feedback
